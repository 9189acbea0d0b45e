package domain

import (
	"encoding/json"
	"fmt"
)

// EnvelopeType enumerates the wire `type` field. Hand-written dispatch on
// this string, rather than generic map-walking, is the normative parsing
// strategy (SPEC_FULL, Envelope codec).
type EnvelopeType string

const (
	EnvChatRequest    EnvelopeType = "chat_request"
	EnvChatAccept     EnvelopeType = "chat_accept"
	EnvChatDeclined   EnvelopeType = "chat_declined"
	EnvChatBlocked    EnvelopeType = "chat_blocked"
	EnvGroupInvite    EnvelopeType = "group_invite"
	EnvGroupAccepted  EnvelopeType = "group_accepted"
	EnvGroupDeclined  EnvelopeType = "group_declined"
	EnvGroupBlocked   EnvelopeType = "group_blocked"
	EnvDMMessage      EnvelopeType = "dm_message"
	EnvDMAck          EnvelopeType = "dm_ack"
	EnvGroupMessage   EnvelopeType = "group_message"
)

// SealedEntry is one recipient's independently-secretboxed copy of a group
// message's inner payload.
type SealedEntry struct {
	ToPubKey   string `json:"toPubKey"`
	N          uint64 `json:"n"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Envelope is the tagged union of every wire message. All fields are
// base58/base64/plain text, per the JSON wire format's "no binary" rule;
// unused fields are left zero for a given Type.
type Envelope struct {
	V         int          `json:"v"`
	Type       EnvelopeType `json:"type"`
	Timestamp  int64        `json:"timestamp"`

	RequestID      string        `json:"requestId,omitempty"`
	FromPubKey     string        `json:"fromPubKey,omitempty"`
	ToPubKey       string        `json:"toPubKey,omitempty"`
	Nonce          string        `json:"nonce,omitempty"`
	Ciphertext     string        `json:"ciphertext,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
	MessageID      string        `json:"messageId,omitempty"`
	N              uint64        `json:"n,omitempty"`
	GroupID        string        `json:"groupId,omitempty"`
	Sealed         []SealedEntry `json:"sealed,omitempty"`
}

// EnvelopeVersion is the only `v` value this engine accepts.
const EnvelopeVersion = 1

// EncodeEnvelope serializes e to its normative JSON wire form.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	e.V = EnvelopeVersion
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return b, nil
}

// DecodeEnvelope parses raw wire bytes, returning ErrBadInput on malformed
// JSON, an unsupported version, an unknown type, or a missing field
// required for that type.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: malformed envelope json: %v", ErrBadInput, err)
	}
	if e.V != EnvelopeVersion {
		return Envelope{}, fmt.Errorf("%w: unsupported envelope version %d", ErrBadInput, e.V)
	}
	if err := requireFields(e); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

func requireFields(e Envelope) error {
	missing := func(name string) error {
		return fmt.Errorf("%w: %s missing required field %s", ErrBadInput, e.Type, name)
	}
	switch e.Type {
	case EnvChatRequest:
		if e.RequestID == "" {
			return missing("requestId")
		}
		if e.FromPubKey == "" || e.ToPubKey == "" || e.Nonce == "" || e.Ciphertext == "" {
			return missing("fromPubKey/toPubKey/nonce/ciphertext")
		}
	case EnvChatAccept, EnvChatDeclined, EnvChatBlocked:
		if e.RequestID == "" || e.FromPubKey == "" || e.ToPubKey == "" || e.ConversationID == "" {
			return missing("requestId/fromPubKey/toPubKey/conversationId")
		}
	case EnvGroupInvite:
		if e.FromPubKey == "" || e.ToPubKey == "" || e.Nonce == "" || e.Ciphertext == "" {
			return missing("fromPubKey/toPubKey/nonce/ciphertext")
		}
	case EnvGroupAccepted, EnvGroupDeclined, EnvGroupBlocked:
		if e.RequestID == "" || e.GroupID == "" || e.FromPubKey == "" || e.ToPubKey == "" {
			return missing("requestId/groupId/fromPubKey/toPubKey")
		}
	case EnvDMMessage:
		if e.ConversationID == "" || e.MessageID == "" || e.FromPubKey == "" || e.Nonce == "" || e.Ciphertext == "" {
			return missing("conversationId/messageId/fromPubKey/nonce/ciphertext")
		}
	case EnvDMAck:
		if e.ConversationID == "" || e.MessageID == "" || e.FromPubKey == "" || e.ToPubKey == "" {
			return missing("conversationId/messageId/fromPubKey/toPubKey")
		}
	case EnvGroupMessage:
		if e.GroupID == "" || e.MessageID == "" || e.FromPubKey == "" || len(e.Sealed) == 0 {
			return missing("groupId/messageId/fromPubKey/sealed")
		}
	default:
		return fmt.Errorf("%w: unknown envelope type %q", ErrBadInput, e.Type)
	}
	return nil
}
