// Package identity wraps the engine's identity lifecycle with the
// passphrase strength policy the CLI enforces at creation time, grounded in
// the teacher's identity.Service.isSecurePassphrase check.
package identity

import (
	"context"
	"fmt"
	"unicode"

	"ciphera/internal/domain"
	"ciphera/internal/engine"
)

// MinPassphraseLength is the shortest passphrase GenerateIdentity accepts.
const MinPassphraseLength = 10

// Service enforces passphrase policy around an *engine.Engine.
type Service struct {
	Engine *engine.Engine
}

// New wraps eng.
func New(eng *engine.Engine) *Service {
	return &Service{Engine: eng}
}

// GenerateIdentity validates passphrase strength, then delegates to the
// engine.
func (s *Service) GenerateIdentity(ctx context.Context, passphrase string) (domain.Identity, error) {
	if err := isSecurePassphrase(passphrase); err != nil {
		return domain.Identity{}, err
	}
	return s.Engine.GenerateIdentity(ctx, passphrase)
}

// Unlock delegates to the engine; no passphrase-strength check applies
// since this passphrase was already chosen at creation time.
func (s *Service) Unlock(ctx context.Context, passphrase string) error {
	return s.Engine.Unlock(ctx, passphrase)
}

// isSecurePassphrase requires a minimum length and at least one digit and
// one letter, rejecting trivially weak passphrases without imposing a full
// character-class policy.
func isSecurePassphrase(passphrase string) error {
	if len(passphrase) < MinPassphraseLength {
		return fmt.Errorf("%w: passphrase must be at least %d characters", domain.ErrBadInput, MinPassphraseLength)
	}
	var hasLetter, hasDigit bool
	for _, r := range passphrase {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: passphrase must mix letters and digits", domain.ErrBadInput)
	}
	return nil
}
