// Package engine is the session and messaging protocol engine: identity
// lifecycle, the request/accept handshake state machine, per-peer and
// per-group-pair ratchet sessions, the inbound pipeline, and rekey. It is
// the single state owner the rest of the repo (CLI, tests) drives; Sessions
// are always looked up by conversation id, never held by reference, so
// there is no cross-goroutine mutation hazard under the engine's
// single-threaded cooperative scheduling model.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

// maxErrorLog bounds the in-memory log Locked-state outbound attempts push
// to, per the error taxonomy's "short (last-5) in-memory error log".
const maxErrorLog = 5

// Engine owns the unlocked identity (if any), the persistence and
// transport ports, and the small in-memory state (error log, typing
// indicators, active chat) that does not belong in any durable store.
type Engine struct {
	mu sync.Mutex

	stores    domain.Stores
	transport domain.Transport
	logger    *zap.Logger

	pub       [32]byte
	sec       [32]byte
	unlocked  bool

	activeChatID string
	errLog       []string
	typing       map[string]bool // "chatId|fromPubKey" -> isTyping
}

// New builds an Engine over the given ports. It starts locked: Unlock must
// be called before any session traffic can be sent or received.
func New(stores domain.Stores, transport domain.Transport, logger *zap.Logger) *Engine {
	return &Engine{
		stores:    stores,
		transport: transport,
		logger:    logger,
		typing:    make(map[string]bool),
	}
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// logError appends to the bounded in-memory error log and to the
// structured logger.
func (e *Engine) logError(op string, err error) {
	e.logger.Warn("engine error", zap.String("op", op), zap.Error(err))
	e.errLog = append(e.errLog, fmt.Sprintf("%s: %v", op, err))
	if len(e.errLog) > maxErrorLog {
		e.errLog = e.errLog[len(e.errLog)-maxErrorLog:]
	}
}

// ErrorLog returns the last (at most) 5 absorbed errors, newest last.
func (e *Engine) ErrorLog() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.errLog))
	copy(out, e.errLog)
	return out
}

// SetActiveChat records which chat the user currently has open, so inbound
// text messages for other chats bump unreadCount.
func (e *Engine) SetActiveChat(chatID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeChatID = chatID
}

// GenerateIdentity creates a fresh identity key pair, seals the secret key
// under passphrase, persists it, and unlocks the engine with it.
func (e *Engine) GenerateIdentity(ctx context.Context, passphrase string) (domain.Identity, error) {
	pub, sec, err := crypto.GenerateIdentityKeyPair()
	if err != nil {
		return domain.Identity{}, err
	}
	sealed, err := crypto.EncryptWithPassphrase(sec[:], passphrase)
	if err != nil {
		return domain.Identity{}, err
	}
	id := domain.Identity{
		PublicKey: pub,
		Sealed: domain.Sealed{
			Ciphertext: sealed.Ciphertext,
			IV:         sealed.IV,
			Salt:       sealed.Salt,
		},
		CreatedAt: time.Now(),
	}
	if err := e.stores.Identity.Put(ctx, identityKey, id); err != nil {
		return domain.Identity{}, err
	}

	e.mu.Lock()
	e.pub, e.sec, e.unlocked = pub, sec, true
	e.mu.Unlock()

	return id, nil
}

const identityKey = "self"

// Unlock loads the persisted Identity and unseals its secret key under
// passphrase. Returns domain.ErrLocked if no identity has been created yet,
// domain.ErrBadPassphrase on a wrong passphrase.
func (e *Engine) Unlock(ctx context.Context, passphrase string) error {
	id, ok, err := e.stores.Identity.Get(ctx, identityKey)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrLocked
	}
	sec, err := crypto.DecryptWithPassphrase(crypto.Sealed{
		Ciphertext: id.Sealed.Ciphertext,
		IV:         id.Sealed.IV,
		Salt:       id.Sealed.Salt,
	}, passphrase)
	if err != nil {
		return err
	}

	e.mu.Lock()
	copy(e.sec[:], sec)
	e.pub = id.PublicKey
	e.unlocked = true
	e.mu.Unlock()
	crypto.Wipe(sec)
	return nil
}

// Lock wipes the unsealed secret key from memory.
func (e *Engine) Lock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	crypto.Wipe(e.sec[:])
	e.sec = [32]byte{}
	e.unlocked = false
}

// Unlocked reports whether the engine currently holds an unsealed identity.
func (e *Engine) Unlocked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unlocked
}

// Self returns the local public key and chat-key. Callers must check
// Unlocked first: before any unlock Self returns the zero key, and after
// Lock it still returns the last unlocked public key.
func (e *Engine) Self() (pub [32]byte, chatKey string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pub, domain.Identity{PublicKey: e.pub}.ChatKey()
}

// requireUnlocked returns domain.ErrLocked and pushes it to the error log
// if the engine is not currently unlocked. Callers hold e.mu themselves are
// not assumed; this takes the lock itself.
func (e *Engine) requireUnlocked(op string) (pub, sec [32]byte, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.unlocked {
		e.logError(op, domain.ErrLocked)
		return pub, sec, domain.ErrLocked
	}
	return e.pub, e.sec, nil
}
