package domain

import (
	"encoding/json"
	"fmt"
)

// InnerKind is the `kind` discriminator of the plaintext payload sealed
// inside a dm_message/group_message envelope.
type InnerKind string

const (
	InnerText            InnerKind = "text"
	InnerReaction        InnerKind = "reaction"
	InnerEdit            InnerKind = "edit"
	InnerDelete          InnerKind = "delete"
	InnerTyping          InnerKind = "typing"
	InnerAttachmentMeta  InnerKind = "attachment_meta"
	InnerAttachmentChunk InnerKind = "attachment_chunk"
	InnerRekey           InnerKind = "rekey"
)

// Inner is the decrypted payload carried inside a session envelope. Only
// the fields relevant to Kind are populated.
type Inner struct {
	Kind InnerKind `json:"kind"`

	Body      string `json:"body,omitempty"`
	ReplyTo   string `json:"replyTo,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
	IsTyping  bool   `json:"isTyping,omitempty"`

	AttachmentID string `json:"attachmentId,omitempty"`
	Name         string `json:"name,omitempty"`
	Mime         string `json:"mime,omitempty"`
	Size         int64  `json:"size,omitempty"`
	TotalChunks  int    `json:"totalChunks,omitempty"`
	Index        int    `json:"index,omitempty"`
	Data         string `json:"data,omitempty"` // base64 chunk bytes
}

// EncodeInner serializes an Inner payload to the plaintext JSON that gets
// secretbox-sealed.
func EncodeInner(in Inner) ([]byte, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode inner payload: %w", err)
	}
	return b, nil
}

// DecodeInner parses a decrypted inner payload.
func DecodeInner(raw []byte) (Inner, error) {
	var in Inner
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inner{}, fmt.Errorf("%w: malformed inner payload: %v", ErrBadInput, err)
	}
	return in, nil
}
