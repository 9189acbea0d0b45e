package domain

import "ciphera/internal/domain/domainerr"

// Re-exported here so callers working against the domain package (stores,
// engine, CLI) don't need to import the leaf domainerr package directly.
var (
	ErrBadInput     = domainerr.ErrBadInput
	ErrBadPassphrase = domainerr.ErrBadPassphrase
	ErrDecryptFail  = domainerr.ErrDecryptFail
	ErrLocked       = domainerr.ErrLocked
	ErrNotFound     = domainerr.ErrNotFound
)
