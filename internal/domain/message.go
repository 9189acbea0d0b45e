package domain

// MessageType is the inner-payload kind carried by a Message record. Note
// that attachment chunks are not persisted as their own Message; only
// attachment_meta is.
type MessageType string

const (
	MessageText            MessageType = "text"
	MessageReaction        MessageType = "reaction"
	MessageEdit            MessageType = "edit"
	MessageDelete          MessageType = "delete"
	MessageTyping          MessageType = "typing"
	MessageAttachmentMeta  MessageType = "attachment_meta"
	MessageAttachmentChunk MessageType = "attachment_chunk"
	MessageSystem          MessageType = "system"
	MessageRekey           MessageType = "rekey"
)

// MessageStatus tracks outbound delivery.
type MessageStatus string

const (
	StatusSending    MessageStatus = "sending"
	StatusSent       MessageStatus = "sent"
	StatusDelivered  MessageStatus = "delivered"
	StatusFailed     MessageStatus = "failed"
)

// Message is immutable except for its Edited/Deleted/Status/KeyMismatch
// flags. Its ID is chosen by the sender and survives edits and deletes.
type Message struct {
	ID           string        `json:"id"`
	ChatID       string        `json:"chatId"`
	Type         MessageType   `json:"type"`
	FromPubKey   [32]byte      `json:"fromPubKey"`
	Body         string        `json:"body,omitempty"`
	Timestamp    int64         `json:"timestamp"`
	Status       MessageStatus `json:"status,omitempty"`
	N            *uint64       `json:"n,omitempty"`
	ReplyTo      string        `json:"replyTo,omitempty"`
	Edited       bool          `json:"edited,omitempty"`
	Deleted      bool          `json:"deleted,omitempty"`
	KeyMismatch  bool          `json:"keyMismatch,omitempty"`
	AttachmentID string        `json:"attachmentId,omitempty"`
}

// Reaction is a single emoji reaction to a Message; duplicates by ID are
// idempotent.
type Reaction struct {
	ID         string   `json:"id"`
	MessageID  string   `json:"messageId"`
	FromPubKey [32]byte `json:"fromPubKey"`
	Emoji      string   `json:"emoji"`
	Timestamp  int64    `json:"timestamp"`
}

// Attachment accumulates chunks by index until every index in
// [0, TotalChunks) is present, at which point Complete is set and Data
// holds the reassembled blob.
type Attachment struct {
	ID              string            `json:"id"`
	MessageID       string            `json:"messageId"`
	Name            string            `json:"name"`
	Mime            string            `json:"mime"`
	Size            int64             `json:"size"`
	TotalChunks     int               `json:"totalChunks"`
	ReceivedChunks  int               `json:"receivedChunks"`
	Chunks          map[int]string    `json:"chunks"` // index -> base64
	Complete        bool              `json:"complete"`
	Data            []byte            `json:"data,omitempty"`
}

// AttachmentChunkSize is the fixed size, in bytes, of each attachment chunk
// before base64 encoding.
const AttachmentChunkSize = 20000
