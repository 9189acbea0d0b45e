package store

import (
	"fmt"
	"os"
	"path/filepath"

	"ciphera/internal/domain"
)

// OpenFileStores builds the full domain.Stores set as JSON files under dir,
// one file per record kind, creating dir if needed. This mirrors the
// teacher's one-struct-per-concern store layout, generalized to the
// engine's seven record kinds instead of identity/prekey/session/bundle.
func OpenFileStores(dir string) (domain.Stores, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return domain.Stores{}, fmt.Errorf("open file stores: %w", err)
	}

	identity, err := NewFileStore[string, domain.Identity](filepath.Join(dir, "identity.json"))
	if err != nil {
		return domain.Stores{}, err
	}
	requests, err := NewFileStore[string, domain.Request](filepath.Join(dir, "requests.json"))
	if err != nil {
		return domain.Stores{}, err
	}
	chats, err := NewFileStore[string, domain.Chat](filepath.Join(dir, "chats.json"))
	if err != nil {
		return domain.Stores{}, err
	}
	sessions, err := NewFileStore[string, domain.Session](filepath.Join(dir, "sessions.json"))
	if err != nil {
		return domain.Stores{}, err
	}
	messages, err := NewFileStore[string, domain.Message](filepath.Join(dir, "messages.json"))
	if err != nil {
		return domain.Stores{}, err
	}
	reactions, err := NewFileStore[string, domain.Reaction](filepath.Join(dir, "reactions.json"))
	if err != nil {
		return domain.Stores{}, err
	}
	attachments, err := NewFileStore[string, domain.Attachment](filepath.Join(dir, "attachments.json"))
	if err != nil {
		return domain.Stores{}, err
	}

	return domain.Stores{
		Identity: identity,
		Requests: requests,
		// RequestStates is the same backing store as Requests: request state
		// lives on Request.Status, not a separate record, so there is no
		// second file to open here.
		RequestStates: requests,
		Chats:         chats,
		Sessions:      sessions,
		Messages:      messages,
		Reactions:     reactions,
		Attachments:   attachments,
	}, nil
}

// OpenMemStores builds the full domain.Stores set backed by in-process
// maps, for tests and the in-memory integration scenario.
func OpenMemStores() domain.Stores {
	requests := NewMemStore[string, domain.Request]()
	return domain.Stores{
		Identity:      NewMemStore[string, domain.Identity](),
		Requests:      requests,
		RequestStates: requests,
		Chats:         NewMemStore[string, domain.Chat](),
		Sessions:      NewMemStore[string, domain.Session](),
		Messages:      NewMemStore[string, domain.Message](),
		Reactions:     NewMemStore[string, domain.Reaction](),
		Attachments:   NewMemStore[string, domain.Attachment](),
	}
}

// IdentityKey is the fixed key the single Identity record is stored under.
const IdentityKey = "self"
