package domain

import "context"

// Store is the shared shape of every keyed persistence port: get, put,
// getAll, and the snapshot-replacing write restore needs. Implementations
// live in internal/store (file-backed and in-memory).
type Store[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool, error)
	Put(ctx context.Context, key K, value V) error
	GetAll(ctx context.Context) (map[K]V, error)
	ReplaceAll(ctx context.Context, snapshot map[K]V) error
}

// IdentityStore persists the single local Identity record under a fixed key.
type IdentityStore = Store[string, Identity]

// RequestStore persists handshake Request records keyed by Request.ID.
type RequestStore = Store[string, Request]

// RequestStateStore is the §6 store list's "requestStates" entry. Request
// state (pending/accepted/declined/blocked) is carried on Request.Status
// rather than split into its own record, so this is a plain alias over the
// same backing store as RequestStore, not an independent one — Stores.
// RequestStates and Stores.Requests point at the same underlying store.
type RequestStateStore = Store[string, Request]

// ChatStore persists Chat records keyed by Chat.ID.
type ChatStore = Store[string, Chat]

// SessionStore persists Session records keyed by ConversationID (or
// group-pairwise session id, which shares the same string keyspace).
type SessionStore = Store[string, Session]

// MessageStore persists Message records keyed by Message.ID.
type MessageStore = Store[string, Message]

// ReactionStore persists Reaction records keyed by Reaction.ID.
type ReactionStore = Store[string, Reaction]

// AttachmentStore persists Attachment records keyed by Attachment.ID.
type AttachmentStore = Store[string, Attachment]

// Transport is the gossip/pubsub port the engine publishes to and
// subscribes on. Payloads are opaque bytes; the transport gives no
// ordering or delivery guarantee.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler func(payload []byte)) error
	Unsubscribe(ctx context.Context, topic string) error
}

// Stores bundles every persistence port the engine needs. It is the unit
// Backup.Dump/Restore operates over.
type Stores struct {
	Identity      IdentityStore
	Requests      RequestStore
	RequestStates RequestStateStore
	Chats         ChatStore
	Sessions      SessionStore
	Messages      MessageStore
	Reactions     ReactionStore
	Attachments   AttachmentStore
}
