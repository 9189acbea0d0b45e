// Package encoding holds the base64, base58, and UTF-8 conversions shared
// across the engine's wire and storage formats. Every exported function is
// pure and returns domain.ErrBadInput on malformed input.
package encoding

import (
	"encoding/base64"
	"fmt"
	"unicode/utf8"

	"github.com/mr-tron/base58"

	"ciphera/internal/domain/domainerr"
)

// B64Encode returns the standard base64 encoding of b.
func B64Encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// B64Decode decodes standard base64 text, wrapping malformed input as
// domainerr.ErrBadInput.
func B64Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", domainerr.ErrBadInput, err)
	}
	return b, nil
}

// B58Encode returns the base58 encoding of b — used for chat-keys.
func B58Encode(b []byte) string { return base58.Encode(b) }

// B58Decode decodes base58 text, wrapping malformed input as
// domainerr.ErrBadInput.
func B58Decode(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: base58: %v", domainerr.ErrBadInput, err)
	}
	return b, nil
}

// DecodeChatKey decodes a chat-key into a 32-byte curve25519 public key.
func DecodeChatKey(s string) ([32]byte, error) {
	var out [32]byte
	b, err := B58Decode(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("%w: chat-key must decode to 32 bytes, got %d", domainerr.ErrBadInput, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// UTF8Bytes returns the bytes of s, kept for symmetry with UTF8String. It
// does not check that s is valid UTF-8.
func UTF8Bytes(s string) []byte { return []byte(s) }

// UTF8String converts b to a string, returning domainerr.ErrBadInput if it
// is not valid UTF-8.
func UTF8String(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: invalid UTF-8", domainerr.ErrBadInput)
	}
	return string(b), nil
}
