package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
	"ciphera/internal/encoding"
	"ciphera/internal/ratchet"
	"ciphera/internal/topic"
)

// SendRequest sends a chat_request to toPubKey's inbox, sealing intro with
// nacl/box under a fresh ephemeral-free box (our long-term key pair), and
// persists a local pending Request.
func (e *Engine) SendRequest(ctx context.Context, toPubKey [32]byte, intro string) (domain.Request, error) {
	myPub, mySec, err := e.requireUnlocked("SendRequest")
	if err != nil {
		return domain.Request{}, err
	}

	ct, nonce, err := crypto.Box([]byte(intro), &toPubKey, &mySec)
	if err != nil {
		return domain.Request{}, err
	}

	req := domain.Request{
		ID:         uuid.NewString(),
		Kind:       domain.RequestDM,
		FromPubKey: myPub,
		ToPubKey:   toPubKey,
		Intro:      intro,
		Status:     domain.RequestPending,
		CreatedAt:  nowMillis(),
	}
	if err := e.stores.Requests.Put(ctx, req.ID, req); err != nil {
		return domain.Request{}, err
	}

	env := domain.Envelope{
		Type:       domain.EnvChatRequest,
		Timestamp:  nowMillis(),
		RequestID:  req.ID,
		FromPubKey: encoding.B58Encode(myPub[:]),
		ToPubKey:   encoding.B58Encode(toPubKey[:]),
		Nonce:      encoding.B64Encode(nonce),
		Ciphertext: encoding.B64Encode(ct),
	}
	if err := e.publishEnvelope(ctx, topic.InboxTopic(toPubKey), env); err != nil {
		return domain.Request{}, err
	}
	return req, nil
}

// RespondToRequest accepts, declines, or blocks requestID, persisting the
// new status and, on accept, creating the Chat and Session and subscribing
// the DM topic.
func (e *Engine) RespondToRequest(ctx context.Context, requestID string, status domain.RequestStatus) error {
	myPub, mySec, err := e.requireUnlocked("RespondToRequest")
	if err != nil {
		return err
	}

	req, ok, err := e.stores.Requests.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: request %s", domain.ErrNotFound, requestID)
	}
	req.Status = status
	if err := e.stores.Requests.Put(ctx, req.ID, req); err != nil {
		return err
	}

	var envType domain.EnvelopeType
	switch status {
	case domain.RequestAccepted:
		envType = domain.EnvChatAccept
	case domain.RequestDeclined:
		envType = domain.EnvChatDeclined
	case domain.RequestBlocked:
		envType = domain.EnvChatBlocked
	default:
		return fmt.Errorf("%w: invalid response status %q", domain.ErrBadInput, status)
	}

	cid := topic.ConversationID(myPub, req.FromPubKey)
	env := domain.Envelope{
		Type:           envType,
		Timestamp:      nowMillis(),
		RequestID:      req.ID,
		FromPubKey:     encoding.B58Encode(myPub[:]),
		ToPubKey:       encoding.B58Encode(req.FromPubKey[:]),
		ConversationID: cid,
	}
	if err := e.publishEnvelope(ctx, topic.InboxTopic(req.FromPubKey), env); err != nil {
		return err
	}

	if status == domain.RequestAccepted {
		if err := e.establishDMChat(ctx, myPub, mySec, req.FromPubKey, cid, req.Intro); err != nil {
			return err
		}
	}
	return nil
}

// establishDMChat creates (if absent) the accepted Chat, initializes and
// persists the Session, subscribes the DM topic, and appends the
// "accepted" system message.
func (e *Engine) establishDMChat(ctx context.Context, myPub, mySec, peerPub [32]byte, cid, intro string) error {
	if _, ok, err := e.stores.Chats.Get(ctx, cid); err != nil {
		return err
	} else if !ok {
		chat := domain.Chat{
			ID:           cid,
			Kind:         domain.ChatDM,
			Participants: [][32]byte{myPub, peerPub},
			Accepted:     true,
			CreatedAt:    nowMillis(),
		}
		if err := e.stores.Chats.Put(ctx, cid, chat); err != nil {
			return err
		}
	}

	if _, ok, err := e.stores.Sessions.Get(ctx, cid); err != nil {
		return err
	} else if !ok {
		sess, err := ratchet.New(cid, domain.ChatDM, myPub, mySec, peerPub)
		if err != nil {
			return err
		}
		if err := e.stores.Sessions.Put(ctx, cid, sess); err != nil {
			return err
		}
	}

	if err := e.transport.Subscribe(ctx, topic.DMTopic(cid), e.dmTopicHandler(cid)); err != nil {
		e.logError("subscribe dm topic", err)
	}

	return e.appendSystemMessage(ctx, cid, fmt.Sprintf("Chat request accepted. %s", intro))
}

func (e *Engine) appendSystemMessage(ctx context.Context, chatID, body string) error {
	msg := domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Type:      domain.MessageSystem,
		Body:      body,
		Timestamp: nowMillis(),
	}
	return e.stores.Messages.Put(ctx, msg.ID, msg)
}

// HandleChatRequest implements §4.H transition 2: idempotent re-accept if
// a chat already exists, blocked short-circuit, else decrypt intro
// (falling back to a placeholder on failure) and persist a pending
// Request.
func (e *Engine) HandleChatRequest(ctx context.Context, env domain.Envelope) error {
	myPub, mySec, err := e.requireUnlocked("HandleChatRequest")
	if err != nil {
		return nil // Locked: inbound processing is a no-op
	}

	fromPub, err := decodePub(env.FromPubKey)
	if err != nil {
		return nil
	}
	cid := topic.ConversationID(myPub, fromPub)

	if chat, ok, err := e.stores.Chats.Get(ctx, cid); err == nil && ok && chat.Accepted {
		accept := domain.Envelope{
			Type:           domain.EnvChatAccept,
			Timestamp:      nowMillis(),
			RequestID:      env.RequestID,
			FromPubKey:     encoding.B58Encode(myPub[:]),
			ToPubKey:       env.FromPubKey,
			ConversationID: cid,
		}
		return e.publishEnvelope(ctx, topic.InboxTopic(fromPub), accept)
	}

	for _, existing := range mustAllRequests(ctx, e.stores.Requests) {
		if existing.FromPubKey == fromPub && existing.Status == domain.RequestBlocked {
			blocked := domain.Envelope{
				Type:           domain.EnvChatBlocked,
				Timestamp:      nowMillis(),
				RequestID:      env.RequestID,
				FromPubKey:     encoding.B58Encode(myPub[:]),
				ToPubKey:       env.FromPubKey,
				ConversationID: cid,
			}
			return e.publishEnvelope(ctx, topic.InboxTopic(fromPub), blocked)
		}
	}

	intro := "(unable to decrypt intro)"
	nonce, nErr := encoding.B64Decode(env.Nonce)
	ct, cErr := encoding.B64Decode(env.Ciphertext)
	if nErr == nil && cErr == nil {
		if pt, err := crypto.BoxOpen(ct, nonce, &fromPub, &mySec); err == nil {
			intro = string(pt)
		}
	}

	req := domain.Request{
		ID:         env.RequestID,
		Kind:       domain.RequestDM,
		FromPubKey: fromPub,
		ToPubKey:   myPub,
		Intro:      intro,
		Status:     domain.RequestPending,
		CreatedAt:  env.Timestamp,
	}
	return e.stores.Requests.Put(ctx, req.ID, req)
}

// HandleChatAccept implements §4.H transition 4.
func (e *Engine) HandleChatAccept(ctx context.Context, env domain.Envelope) error {
	myPub, mySec, err := e.requireUnlocked("HandleChatAccept")
	if err != nil {
		return nil
	}
	peerPub, err := decodePub(env.FromPubKey)
	if err != nil {
		return nil
	}
	cid := topic.ConversationID(myPub, peerPub)

	if err := e.establishDMChat(ctx, myPub, mySec, peerPub, cid, ""); err != nil {
		e.logError("establish dm chat on accept", err)
	}

	if req, ok, err := e.stores.Requests.Get(ctx, env.RequestID); err == nil && ok {
		req.Status = domain.RequestAccepted
		_ = e.stores.Requests.Put(ctx, req.ID, req)
	}
	return nil
}

// HandleChatDeclinedOrBlocked implements §4.H transition 5.
func (e *Engine) HandleChatDeclinedOrBlocked(ctx context.Context, env domain.Envelope) error {
	if _, _, err := e.requireUnlocked("HandleChatDeclinedOrBlocked"); err != nil {
		return nil
	}
	req, ok, err := e.stores.Requests.Get(ctx, env.RequestID)
	if err != nil || !ok {
		return nil
	}
	if env.Type == domain.EnvChatDeclined {
		req.Status = domain.RequestDeclined
	} else {
		req.Status = domain.RequestBlocked
	}
	return e.stores.Requests.Put(ctx, req.ID, req)
}

func decodePub(s string) ([32]byte, error) {
	return encoding.DecodeChatKey(s)
}

func mustAllRequests(ctx context.Context, store domain.RequestStore) []domain.Request {
	all, err := store.GetAll(ctx)
	if err != nil {
		return nil
	}
	out := make([]domain.Request, 0, len(all))
	for _, r := range all {
		out = append(out, r)
	}
	return out
}
