package engine

import (
	"context"

	"github.com/google/uuid"

	"ciphera/internal/domain"
	"ciphera/internal/encoding"
	"ciphera/internal/ratchet"
	"ciphera/internal/topic"
)

// HandleIncoming parses a raw wire payload and dispatches it per the
// envelope's type. Malformed JSON or an unknown type is dropped silently
// (domain.ErrBadInput); a locked identity makes every inbound a no-op.
func (e *Engine) HandleIncoming(ctx context.Context, payload []byte) {
	env, err := domain.DecodeEnvelope(payload)
	if err != nil {
		return // BadInput: adversarial-plausible, dropped silently
	}
	if !e.Unlocked() {
		return // Locked: inbound processing is a no-op
	}

	switch env.Type {
	case domain.EnvChatRequest:
		_ = e.HandleChatRequest(ctx, env)
	case domain.EnvChatAccept:
		_ = e.HandleChatAccept(ctx, env)
	case domain.EnvChatDeclined, domain.EnvChatBlocked:
		_ = e.HandleChatDeclinedOrBlocked(ctx, env)
	case domain.EnvGroupInvite:
		_ = e.HandleGroupInvite(ctx, env)
	case domain.EnvGroupAccepted:
		// no-op: see SPEC_FULL §9 open-question resolution 2.
	case domain.EnvGroupDeclined, domain.EnvGroupBlocked:
		_ = e.HandleGroupDeclinedOrBlocked(ctx, env)
	case domain.EnvDMAck:
		_ = e.handleAck(ctx, env)
	case domain.EnvDMMessage:
		_ = e.handleEncryptedMessage(ctx, env)
	case domain.EnvGroupMessage:
		_ = e.handleGroupMessage(ctx, env)
	}
}

// dmTopicHandler returns the subscription callback for a DM topic.
func (e *Engine) dmTopicHandler(_ string) func([]byte) {
	return func(payload []byte) {
		e.HandleIncoming(context.Background(), payload)
	}
}

// groupTopicHandler returns the subscription callback for a group topic.
func (e *Engine) groupTopicHandler(_ string) func([]byte) {
	return func(payload []byte) {
		e.HandleIncoming(context.Background(), payload)
	}
}

func (e *Engine) handleAck(ctx context.Context, env domain.Envelope) error {
	msg, ok, err := e.stores.Messages.Get(ctx, env.MessageID)
	if err != nil || !ok {
		return nil
	}
	msg.Status = domain.StatusDelivered
	return e.stores.Messages.Put(ctx, msg.ID, msg)
}

// handleEncryptedMessage implements §4.H's handleEncryptedMessage: own-echo
// guard, lazy session creation, receive-key derivation, decrypt, ack, and
// inner-payload application. Message-id dedup is applied uniformly with
// handleGroupMessage, per open-question resolution 3.
func (e *Engine) handleEncryptedMessage(ctx context.Context, env domain.Envelope) error {
	myPub, mySec, err := e.requireUnlocked("handleEncryptedMessage")
	if err != nil {
		return nil
	}
	fromPub, err := decodePub(env.FromPubKey)
	if err != nil {
		return nil
	}
	if fromPub == myPub {
		return nil // own echo
	}
	if e.alreadyApplied(ctx, env.MessageID) {
		return nil
	}

	sess, ok, err := e.stores.Sessions.Get(ctx, env.ConversationID)
	if err != nil {
		return err
	}
	if !ok {
		sess, err = ratchet.New(env.ConversationID, domain.ChatDM, myPub, mySec, fromPub)
		if err != nil {
			return err
		}
	}

	nonce, nErr := encoding.B64Decode(env.Nonce)
	ct, cErr := encoding.B64Decode(env.Ciphertext)
	if nErr != nil || cErr != nil {
		return nil
	}

	mk, nextSess, derr := ratchet.DeriveReceive(sess, env.N)
	if derr != nil {
		return e.appendKeyMismatch(ctx, env.ConversationID)
	}
	plain, oerr := secretBoxOpen(ct, nonce, mk)
	if oerr != nil {
		// Persist the advanced receive chain even on an open failure so a
		// later correctly-keyed message is not blocked by this one.
		_ = e.stores.Sessions.Put(ctx, env.ConversationID, nextSess)
		return e.appendKeyMismatch(ctx, env.ConversationID)
	}
	if err := e.stores.Sessions.Put(ctx, env.ConversationID, nextSess); err != nil {
		return err
	}

	inner, ierr := domain.DecodeInner(plain)
	if ierr != nil {
		return nil
	}

	ack := domain.Envelope{
		Type:           domain.EnvDMAck,
		Timestamp:      nowMillis(),
		ConversationID: env.ConversationID,
		MessageID:      env.MessageID,
		FromPubKey:     encoding.B58Encode(myPub[:]),
		ToPubKey:       env.FromPubKey,
	}
	if err := e.publishEnvelope(ctx, topic.InboxTopic(fromPub), ack); err != nil {
		e.logError("publish dm_ack", err)
	}

	return e.applyInner(ctx, env.ConversationID, env.ConversationID, domain.ChatDM, env.MessageID, fromPub, env.Timestamp, inner)
}

// handleGroupMessage finds the sealed entry addressed to us, decrypts it
// with the pairwise group session, and applies it. No ack is emitted for
// groups.
func (e *Engine) handleGroupMessage(ctx context.Context, env domain.Envelope) error {
	myPub, mySec, err := e.requireUnlocked("handleGroupMessage")
	if err != nil {
		return nil
	}
	fromPub, err := decodePub(env.FromPubKey)
	if err != nil {
		return nil
	}
	if fromPub == myPub {
		return nil
	}
	if e.alreadyApplied(ctx, env.MessageID) {
		return nil
	}

	myChatKey := encoding.B58Encode(myPub[:])
	var entry *domain.SealedEntry
	for i := range env.Sealed {
		if env.Sealed[i].ToPubKey == myChatKey {
			entry = &env.Sealed[i]
			break
		}
	}
	if entry == nil {
		return nil // not addressed to us
	}

	sessionID := topic.GroupSessionID(env.GroupID, myPub, fromPub)
	sess, ok, err := e.stores.Sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		sess, err = ratchet.New(sessionID, domain.ChatGroup, myPub, mySec, fromPub)
		if err != nil {
			return err
		}
	}

	nonce, nErr := encoding.B64Decode(entry.Nonce)
	ct, cErr := encoding.B64Decode(entry.Ciphertext)
	if nErr != nil || cErr != nil {
		return nil
	}

	mk, nextSess, derr := ratchet.DeriveReceive(sess, entry.N)
	if derr != nil {
		return e.appendKeyMismatch(ctx, env.GroupID)
	}
	plain, oerr := secretBoxOpen(ct, nonce, mk)
	if oerr != nil {
		_ = e.stores.Sessions.Put(ctx, sessionID, nextSess)
		return e.appendKeyMismatch(ctx, env.GroupID)
	}
	if err := e.stores.Sessions.Put(ctx, sessionID, nextSess); err != nil {
		return err
	}

	inner, ierr := domain.DecodeInner(plain)
	if ierr != nil {
		return nil
	}
	return e.applyInner(ctx, env.GroupID, sessionID, domain.ChatGroup, env.MessageID, fromPub, env.Timestamp, inner)
}

func (e *Engine) appendKeyMismatch(ctx context.Context, chatID string) error {
	msg := domain.Message{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		Type:        domain.MessageSystem,
		Body:        "Key mismatch. Rekey to continue.",
		Timestamp:   nowMillis(),
		KeyMismatch: true,
	}
	return e.stores.Messages.Put(ctx, msg.ID, msg)
}

// alreadyApplied reports whether messageID has already been persisted as a
// Message, guarding against transport-level duplicate delivery uniformly
// for both DM and group paths (SPEC_FULL §9 open-question resolution 3).
func (e *Engine) alreadyApplied(ctx context.Context, messageID string) bool {
	_, ok, err := e.stores.Messages.Get(ctx, messageID)
	return err == nil && ok
}

// applyInner dispatches a decrypted Inner payload per §4.H's inner
// payload table. chatID is the Chat/Message-store key (a conversation id
// for DMs, a group id for groups); sessionID is the ratchet session key a
// rekey must reset — for DMs these are the same string, but for a
// group-sourced message sessionID is the pairwise topic.GroupSessionID
// between us and fromPub, not the bare group id.
func (e *Engine) applyInner(ctx context.Context, chatID, sessionID string, kind domain.ChatKind, messageID string, fromPub [32]byte, timestamp int64, inner domain.Inner) error {
	switch inner.Kind {
	case domain.InnerText:
		msg := domain.Message{
			ID:         messageID,
			ChatID:     chatID,
			Type:       domain.MessageText,
			FromPubKey: fromPub,
			Body:       inner.Body,
			Timestamp:  timestamp,
			Status:     domain.StatusDelivered,
			ReplyTo:    inner.ReplyTo,
		}
		if err := e.stores.Messages.Put(ctx, messageID, msg); err != nil {
			return err
		}
		return e.bumpUnreadIfInactive(ctx, chatID)

	case domain.InnerReaction:
		reaction := domain.Reaction{
			ID:         messageID,
			MessageID:  inner.MessageID,
			FromPubKey: fromPub,
			Emoji:      inner.Emoji,
			Timestamp:  timestamp,
		}
		return e.stores.Reactions.Put(ctx, reaction.ID, reaction)

	case domain.InnerEdit:
		msg, ok, err := e.stores.Messages.Get(ctx, inner.MessageID)
		if err != nil || !ok {
			return nil // target not yet seen: no-op and drop, per §4.H
		}
		msg.Body = inner.Body
		msg.Edited = true
		return e.stores.Messages.Put(ctx, msg.ID, msg)

	case domain.InnerDelete:
		msg, ok, err := e.stores.Messages.Get(ctx, inner.MessageID)
		if err != nil || !ok {
			return nil
		}
		msg.Deleted = true
		msg.Body = ""
		return e.stores.Messages.Put(ctx, msg.ID, msg)

	case domain.InnerTyping:
		e.mu.Lock()
		e.typing[chatID+"|"+encoding.B58Encode(fromPub[:])] = inner.IsTyping
		e.mu.Unlock()
		return nil

	case domain.InnerAttachmentMeta:
		att := domain.Attachment{
			ID:          inner.AttachmentID,
			MessageID:   messageID,
			Name:        inner.Name,
			Mime:        inner.Mime,
			Size:        inner.Size,
			TotalChunks: inner.TotalChunks,
			Chunks:      make(map[int]string),
		}
		if err := e.stores.Attachments.Put(ctx, att.ID, att); err != nil {
			return err
		}
		msg := domain.Message{
			ID:           messageID,
			ChatID:       chatID,
			Type:         domain.MessageAttachmentMeta,
			FromPubKey:   fromPub,
			Timestamp:    timestamp,
			AttachmentID: att.ID,
		}
		return e.stores.Messages.Put(ctx, messageID, msg)

	case domain.InnerAttachmentChunk:
		return e.applyAttachmentChunk(ctx, inner)

	case domain.InnerRekey:
		return e.handlePeerRekey(ctx, chatID, sessionID, kind, fromPub)
	}
	return nil
}

func (e *Engine) bumpUnreadIfInactive(ctx context.Context, chatID string) error {
	e.mu.Lock()
	active := e.activeChatID
	e.mu.Unlock()
	if active == chatID {
		return nil
	}
	chat, ok, err := e.stores.Chats.Get(ctx, chatID)
	if err != nil || !ok {
		return nil
	}
	chat.UnreadCount++
	return e.stores.Chats.Put(ctx, chatID, chat)
}

func (e *Engine) applyAttachmentChunk(ctx context.Context, inner domain.Inner) error {
	att, ok, err := e.stores.Attachments.Get(ctx, inner.AttachmentID)
	if err != nil || !ok {
		return nil
	}
	if att.Chunks == nil {
		att.Chunks = make(map[int]string)
	}
	att.Chunks[inner.Index] = inner.Data
	att.ReceivedChunks = len(att.Chunks)

	if att.ReceivedChunks == att.TotalChunks {
		var full []byte
		for i := 0; i < att.TotalChunks; i++ {
			chunk, err := encoding.B64Decode(att.Chunks[i])
			if err != nil {
				return e.stores.Attachments.Put(ctx, att.ID, att)
			}
			full = append(full, chunk...)
		}
		att.Data = full
		att.Complete = true
	}
	return e.stores.Attachments.Put(ctx, att.ID, att)
}

// handlePeerRekey implements the `rekey` inner payload: re-seed the
// session from the DH seed and append a system message. sessionID is the
// ratchet session key (equal to chatID for a DM, the pairwise
// topic.GroupSessionID for a group); chatID is where the system message
// is filed so it shows up in the right conversation thread.
func (e *Engine) handlePeerRekey(ctx context.Context, chatID, sessionID string, kind domain.ChatKind, peerPub [32]byte) error {
	myPub, mySec, err := e.requireUnlocked("handlePeerRekey")
	if err != nil {
		return nil
	}
	reset, err := ratchet.New(sessionID, kind, myPub, mySec, peerPub)
	if err != nil {
		return err
	}
	if err := e.stores.Sessions.Put(ctx, sessionID, reset); err != nil {
		return err
	}
	return e.appendSystemMessage(ctx, chatID, "Session rekeyed by peer.")
}
