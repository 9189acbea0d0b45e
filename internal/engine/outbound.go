package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ciphera/internal/domain"
	"ciphera/internal/encoding"
	"ciphera/internal/ratchet"
	"ciphera/internal/topic"
)

// publishEnvelope encodes and publishes env. A transport failure is pushed
// to the error log and also returned to the caller; recovery is deferred to
// the transport port and the engine continues to accept new work.
func (e *Engine) publishEnvelope(ctx context.Context, t string, env domain.Envelope) error {
	raw, err := domain.EncodeEnvelope(env)
	if err != nil {
		return err
	}
	if err := e.transport.Publish(ctx, t, raw); err != nil {
		e.logError("publish "+t, err)
		return err
	}
	return nil
}

// sealAndAdvance seals inner under sess's current send chain key and
// returns the ciphertext, nonce, counter to report, and the advanced
// Session (not yet persisted).
func sealAndAdvance(sess domain.Session, inner domain.Inner) (ct, nonce []byte, n uint64, next domain.Session, err error) {
	plain, err := domain.EncodeInner(inner)
	if err != nil {
		return nil, nil, 0, sess, err
	}
	mk, n, next, err := ratchet.AdvanceSend(sess)
	if err != nil {
		return nil, nil, 0, sess, err
	}
	ct, nonce, err = secretBoxSeal(plain, mk)
	return ct, nonce, n, next, err
}

// SendText sends a text message on an accepted DM chat.
func (e *Engine) SendText(ctx context.Context, chatID, body, replyTo string) (domain.Message, error) {
	myPub, _, err := e.requireUnlocked("SendText")
	if err != nil {
		return domain.Message{}, err
	}

	sess, ok, err := e.stores.Sessions.Get(ctx, chatID)
	if err != nil {
		return domain.Message{}, err
	}
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: no session for chat %s", domain.ErrNotFound, chatID)
	}

	msgID := uuid.NewString()
	ct, nonce, n, nextSess, err := sealAndAdvance(sess, domain.Inner{Kind: domain.InnerText, Body: body, ReplyTo: replyTo})
	if err != nil {
		return domain.Message{}, err
	}
	if err := e.stores.Sessions.Put(ctx, chatID, nextSess); err != nil {
		return domain.Message{}, err
	}

	env := domain.Envelope{
		Type:           domain.EnvDMMessage,
		Timestamp:      nowMillis(),
		ConversationID: chatID,
		MessageID:      msgID,
		FromPubKey:     encoding.B58Encode(myPub[:]),
		N:              n,
		Nonce:          encoding.B64Encode(nonce),
		Ciphertext:     encoding.B64Encode(ct),
	}
	msg := domain.Message{
		ID:         msgID,
		ChatID:     chatID,
		Type:       domain.MessageText,
		FromPubKey: myPub,
		Body:       body,
		Timestamp:  env.Timestamp,
		Status:     domain.StatusSent,
		N:          &n,
		ReplyTo:    replyTo,
	}
	// Persisted before publishing: delivery may be synchronous, and the
	// peer's dm_ack must find this record to mark it delivered.
	if err := e.stores.Messages.Put(ctx, msgID, msg); err != nil {
		return domain.Message{}, err
	}
	if err := e.publishEnvelope(ctx, topic.DMTopic(chatID), env); err != nil {
		msg.Status = domain.StatusFailed
		_ = e.stores.Messages.Put(ctx, msgID, msg)
		return domain.Message{}, err
	}
	return msg, nil
}

// sendInnerDM seals and publishes an arbitrary Inner payload on an
// existing DM session without creating a persisted Message (used by
// reaction/edit/delete/typing and attachment meta/chunks, which have their
// own persistence rules or none at all). Rekey seals its notice directly.
func (e *Engine) sendInnerDM(ctx context.Context, chatID string, inner domain.Inner) error {
	myPub, _, err := e.requireUnlocked("sendInnerDM")
	if err != nil {
		return err
	}
	sess, ok, err := e.stores.Sessions.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no session for chat %s", domain.ErrNotFound, chatID)
	}

	ct, nonce, n, nextSess, err := sealAndAdvance(sess, inner)
	if err != nil {
		return err
	}
	if err := e.stores.Sessions.Put(ctx, chatID, nextSess); err != nil {
		return err
	}

	env := domain.Envelope{
		Type:           domain.EnvDMMessage,
		Timestamp:      nowMillis(),
		ConversationID: chatID,
		MessageID:      uuid.NewString(),
		FromPubKey:     encoding.B58Encode(myPub[:]),
		N:              n,
		Nonce:          encoding.B64Encode(nonce),
		Ciphertext:     encoding.B64Encode(ct),
	}
	return e.publishEnvelope(ctx, topic.DMTopic(chatID), env)
}

// SendReaction emits a reaction on messageID within chatID.
func (e *Engine) SendReaction(ctx context.Context, chatID, messageID, emoji string) error {
	return e.sendInnerDM(ctx, chatID, domain.Inner{Kind: domain.InnerReaction, MessageID: messageID, Emoji: emoji})
}

// SendEdit updates messageID's body locally and notifies the peer.
func (e *Engine) SendEdit(ctx context.Context, chatID, messageID, body string) error {
	if msg, ok, err := e.stores.Messages.Get(ctx, messageID); err == nil && ok {
		msg.Body = body
		msg.Edited = true
		_ = e.stores.Messages.Put(ctx, messageID, msg)
	}
	return e.sendInnerDM(ctx, chatID, domain.Inner{Kind: domain.InnerEdit, MessageID: messageID, Body: body})
}

// SendDelete marks messageID deleted locally and notifies the peer.
func (e *Engine) SendDelete(ctx context.Context, chatID, messageID string) error {
	if msg, ok, err := e.stores.Messages.Get(ctx, messageID); err == nil && ok {
		msg.Deleted = true
		msg.Body = ""
		_ = e.stores.Messages.Put(ctx, messageID, msg)
	}
	return e.sendInnerDM(ctx, chatID, domain.Inner{Kind: domain.InnerDelete, MessageID: messageID})
}

// SendTyping emits a transient typing indicator; it is not persisted.
func (e *Engine) SendTyping(ctx context.Context, chatID string, isTyping bool) error {
	return e.sendInnerDM(ctx, chatID, domain.Inner{Kind: domain.InnerTyping, IsTyping: isTyping})
}

// SendAttachment chunks data into domain.AttachmentChunkSize pieces and
// sends an attachment_meta followed by one attachment_chunk per piece.
func (e *Engine) SendAttachment(ctx context.Context, chatID, name, mime string, data []byte) (string, error) {
	attachmentID := uuid.NewString()
	totalChunks := (len(data) + domain.AttachmentChunkSize - 1) / domain.AttachmentChunkSize
	if totalChunks == 0 {
		totalChunks = 1
	}

	if err := e.sendInnerDM(ctx, chatID, domain.Inner{
		Kind:         domain.InnerAttachmentMeta,
		AttachmentID: attachmentID,
		Name:         name,
		Mime:         mime,
		Size:         int64(len(data)),
		TotalChunks:  totalChunks,
	}); err != nil {
		return "", err
	}

	myPub, _, err := e.requireUnlocked("SendAttachment")
	if err != nil {
		return "", err
	}
	msg := domain.Message{
		ID:           uuid.NewString(),
		ChatID:       chatID,
		Type:         domain.MessageAttachmentMeta,
		FromPubKey:   myPub,
		Timestamp:    nowMillis(),
		AttachmentID: attachmentID,
	}
	if err := e.stores.Messages.Put(ctx, msg.ID, msg); err != nil {
		return "", err
	}

	for i := 0; i < totalChunks; i++ {
		start := i * domain.AttachmentChunkSize
		end := start + domain.AttachmentChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[start:end]
		if err := e.sendInnerDM(ctx, chatID, domain.Inner{
			Kind:         domain.InnerAttachmentChunk,
			AttachmentID: attachmentID,
			Index:        i,
			TotalChunks:  totalChunks,
			Data:         encoding.B64Encode(chunk),
		}); err != nil {
			return attachmentID, err
		}
	}
	return attachmentID, nil
}

// Rekey rebuilds the Session for chatID from the DH seed and notifies the
// peer. Per the resolved open question, the {kind:"rekey"} notice is
// sealed under the pre-reset send chain so the peer can still decrypt it
// under the chain it already shares, and the local reset happens after.
func (e *Engine) Rekey(ctx context.Context, chatID string) error {
	myPub, mySec, err := e.requireUnlocked("Rekey")
	if err != nil {
		return err
	}
	sess, ok, err := e.stores.Sessions.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no session for chat %s", domain.ErrNotFound, chatID)
	}

	ct, nonce, n, advancedSess, err := sealAndAdvance(sess, domain.Inner{Kind: domain.InnerRekey})
	if err != nil {
		return err
	}
	env := domain.Envelope{
		Type:           domain.EnvDMMessage,
		Timestamp:      nowMillis(),
		ConversationID: chatID,
		MessageID:      uuid.NewString(),
		FromPubKey:     encoding.B58Encode(myPub[:]),
		N:              n,
		Nonce:          encoding.B64Encode(nonce),
		Ciphertext:     encoding.B64Encode(ct),
	}
	if err := e.publishEnvelope(ctx, topic.DMTopic(chatID), env); err != nil {
		return err
	}

	reset, err := ratchet.Reset(advancedSess, myPub, mySec)
	if err != nil {
		return err
	}
	if err := e.stores.Sessions.Put(ctx, chatID, reset); err != nil {
		return err
	}
	return e.appendSystemMessage(ctx, chatID, "Session rekeyed.")
}
