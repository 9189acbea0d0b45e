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

// CreateGroup seals a per-recipient group_invite to each member's inbox,
// persists the creator's group Chat (already marked accepted, with every
// invited member as a participant), and subscribes the group topic. No
// Request records are kept on the creator's side for the invitees.
func (e *Engine) CreateGroup(ctx context.Context, groupID, name string, members [][32]byte) error {
	myPub, mySec, err := e.requireUnlocked("CreateGroup")
	if err != nil {
		return err
	}

	for _, member := range members {
		ct, nonce, err := crypto.Box([]byte(name), &member, &mySec)
		if err != nil {
			return err
		}
		env := domain.Envelope{
			Type:       domain.EnvGroupInvite,
			Timestamp:  nowMillis(),
			FromPubKey: encoding.B58Encode(myPub[:]),
			ToPubKey:   encoding.B58Encode(member[:]),
			GroupID:    groupID,
			Nonce:      encoding.B64Encode(nonce),
			Ciphertext: encoding.B64Encode(ct),
		}
		if err := e.publishEnvelope(ctx, topic.InboxTopic(member), env); err != nil {
			e.logError("publish group_invite", err)
		}
	}

	participants := append([][32]byte{myPub}, members...)
	chat := domain.Chat{
		ID:           groupID,
		Kind:         domain.ChatGroup,
		Title:        name,
		Participants: topic.SortPubKeys(participants),
		Accepted:     true,
		CreatedAt:    nowMillis(),
	}
	if err := e.stores.Chats.Put(ctx, groupID, chat); err != nil {
		return err
	}
	return e.transport.Subscribe(ctx, topic.GroupTopic(groupID), e.groupTopicHandler(groupID))
}

// HandleGroupInvite mirrors HandleChatRequest for group invites.
func (e *Engine) HandleGroupInvite(ctx context.Context, env domain.Envelope) error {
	myPub, mySec, err := e.requireUnlocked("HandleGroupInvite")
	if err != nil {
		return nil
	}
	fromPub, err := decodePub(env.FromPubKey)
	if err != nil {
		return nil
	}

	name := "(unable to decrypt group name)"
	nonce, nErr := encoding.B64Decode(env.Nonce)
	ct, cErr := encoding.B64Decode(env.Ciphertext)
	if nErr == nil && cErr == nil {
		if pt, err := crypto.BoxOpen(ct, nonce, &fromPub, &mySec); err == nil {
			name = string(pt)
		}
	}

	req := domain.Request{
		ID:         domain.GroupInviteID(env.GroupID, fromPub),
		Kind:       domain.RequestGroup,
		FromPubKey: fromPub,
		ToPubKey:   myPub,
		Intro:      name,
		Status:     domain.RequestPending,
		CreatedAt:  env.Timestamp,
		GroupID:    env.GroupID,
		GroupName:  name,
	}
	return e.stores.Requests.Put(ctx, req.ID, req)
}

// RespondToGroupInvite accepts/declines/blocks a group invite. On accept,
// it creates the local group Chat, subscribes the group topic, and
// initializes a pairwise Session with the inviter.
func (e *Engine) RespondToGroupInvite(ctx context.Context, requestID string, status domain.RequestStatus) error {
	myPub, mySec, err := e.requireUnlocked("RespondToGroupInvite")
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
		envType = domain.EnvGroupAccepted
	case domain.RequestDeclined:
		envType = domain.EnvGroupDeclined
	case domain.RequestBlocked:
		envType = domain.EnvGroupBlocked
	default:
		return fmt.Errorf("%w: invalid response status %q", domain.ErrBadInput, status)
	}
	env := domain.Envelope{
		Type:       envType,
		Timestamp:  nowMillis(),
		RequestID:  req.ID,
		GroupID:    req.GroupID,
		FromPubKey: encoding.B58Encode(myPub[:]),
		ToPubKey:   encoding.B58Encode(req.FromPubKey[:]),
	}
	if err := e.publishEnvelope(ctx, topic.InboxTopic(req.FromPubKey), env); err != nil {
		return err
	}

	if status != domain.RequestAccepted {
		return nil
	}

	if _, ok, err := e.stores.Chats.Get(ctx, req.GroupID); err != nil {
		return err
	} else if !ok {
		chat := domain.Chat{
			ID:           req.GroupID,
			Kind:         domain.ChatGroup,
			Title:        req.GroupName,
			Participants: topic.SortPubKeys([][32]byte{myPub, req.FromPubKey}),
			Accepted:     true,
			CreatedAt:    nowMillis(),
		}
		if err := e.stores.Chats.Put(ctx, req.GroupID, chat); err != nil {
			return err
		}
	}
	sessionID := topic.GroupSessionID(req.GroupID, myPub, req.FromPubKey)
	if _, ok, err := e.stores.Sessions.Get(ctx, sessionID); err != nil {
		return err
	} else if !ok {
		sess, err := ratchet.New(sessionID, domain.ChatGroup, myPub, mySec, req.FromPubKey)
		if err != nil {
			return err
		}
		if err := e.stores.Sessions.Put(ctx, sessionID, sess); err != nil {
			return err
		}
	}
	return e.transport.Subscribe(ctx, topic.GroupTopic(req.GroupID), e.groupTopicHandler(req.GroupID))
}

// HandleGroupDeclinedOrBlocked updates the matching invite Request's
// status; no chat mutation follows.
func (e *Engine) HandleGroupDeclinedOrBlocked(ctx context.Context, env domain.Envelope) error {
	if _, _, err := e.requireUnlocked("HandleGroupDeclinedOrBlocked"); err != nil {
		return nil
	}
	req, ok, err := e.stores.Requests.Get(ctx, env.RequestID)
	if err != nil || !ok {
		return nil
	}
	if env.Type == domain.EnvGroupDeclined {
		req.Status = domain.RequestDeclined
	} else {
		req.Status = domain.RequestBlocked
	}
	return e.stores.Requests.Put(ctx, req.ID, req)
}

// SendGroupText seals "hello group"-style text independently per member of
// groupID's pairwise session, publishing exactly one group_message
// envelope with one sealed entry per other participant.
func (e *Engine) SendGroupText(ctx context.Context, groupID, body string) (domain.Message, error) {
	myPub, mySec, err := e.requireUnlocked("SendGroupText")
	if err != nil {
		return domain.Message{}, err
	}
	chat, ok, err := e.stores.Chats.Get(ctx, groupID)
	if err != nil {
		return domain.Message{}, err
	}
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: no chat %s", domain.ErrNotFound, groupID)
	}

	msgID := uuid.NewString()
	sealedEntries := make([]domain.SealedEntry, 0, len(chat.Participants))
	for _, member := range chat.Participants {
		if member == myPub {
			continue
		}
		sessionID := topic.GroupSessionID(groupID, myPub, member)
		sess, ok, err := e.stores.Sessions.Get(ctx, sessionID)
		if err != nil {
			return domain.Message{}, err
		}
		if !ok {
			// Lazily established, mirroring handleGroupMessage's receive-side
			// behavior: whichever side sends or receives first seeds the pair's
			// session.
			sess, err = ratchet.New(sessionID, domain.ChatGroup, myPub, mySec, member)
			if err != nil {
				return domain.Message{}, err
			}
		}

		ct, nonce, n, nextSess, err := sealAndAdvance(sess, domain.Inner{Kind: domain.InnerText, Body: body})
		if err != nil {
			return domain.Message{}, err
		}
		if err := e.stores.Sessions.Put(ctx, sessionID, nextSess); err != nil {
			return domain.Message{}, err
		}
		sealedEntries = append(sealedEntries, domain.SealedEntry{
			ToPubKey:   encoding.B58Encode(member[:]),
			N:          n,
			Nonce:      encoding.B64Encode(nonce),
			Ciphertext: encoding.B64Encode(ct),
		})
	}

	env := domain.Envelope{
		Type:       domain.EnvGroupMessage,
		Timestamp:  nowMillis(),
		GroupID:    groupID,
		MessageID:  msgID,
		FromPubKey: encoding.B58Encode(myPub[:]),
		Sealed:     sealedEntries,
	}
	if err := e.publishEnvelope(ctx, topic.GroupTopic(groupID), env); err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:         msgID,
		ChatID:     groupID,
		Type:       domain.MessageText,
		FromPubKey: myPub,
		Body:       body,
		Timestamp:  env.Timestamp,
		Status:     domain.StatusSent,
	}
	if err := e.stores.Messages.Put(ctx, msgID, msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}
