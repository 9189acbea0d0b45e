// Package domainerr holds the engine's sentinel errors in a leaf package so
// that internal/encoding and internal/crypto can classify their own
// failures the same way internal/domain and internal/engine do, without an
// import cycle back through internal/domain.
package domainerr

import "errors"

var (
	// ErrBadInput marks malformed base58/base64, non-UTF-8 text, or
	// unparseable envelope JSON. Inbound handling drops the envelope
	// silently; outbound callers get the error back.
	ErrBadInput = errors.New("bad input")

	// ErrBadPassphrase marks a failed passphrase-derived AEAD open where
	// the caller explicitly supplied a passphrase (unlock, restore).
	ErrBadPassphrase = errors.New("bad passphrase")

	// ErrDecryptFail marks an AEAD or secretbox/box tag mismatch that is
	// not passphrase-related (a session message, a request intro box).
	ErrDecryptFail = errors.New("decrypt failed")

	// ErrLocked marks an attempt to use the identity before it has been
	// unlocked, or after it has never been created.
	ErrLocked = errors.New("identity locked")

	// ErrNotFound marks a missing record in a persistence store.
	ErrNotFound = errors.New("not found")
)
