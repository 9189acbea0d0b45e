// Package crypto wraps every cryptographic primitive the engine uses:
// CSPRNG, the passphrase-sealed AEAD envelope, HKDF-SHA256, HMAC-SHA256,
// curve25519 box/secretbox, and the identity key pair's DH. Every AEAD
// primitive here fails with domainerr.ErrDecryptFail on tag mismatch (or
// domainerr.ErrBadPassphrase for the passphrase envelope specifically).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/pbkdf2"

	"ciphera/internal/domain/domainerr"
)

const (
	pbkdf2Iterations = 120000
	saltLen          = 16
	ivLen            = 12
	keyLen           = 32
)

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("random bytes: %w", err)
	}
	return b, nil
}

// Sealed is the output of EncryptWithPassphrase: an AES-256-GCM ciphertext
// plus the IV and PBKDF2 salt needed to decrypt it.
type Sealed struct {
	Ciphertext []byte
	IV         []byte
	Salt       []byte
}

// deriveKey runs PBKDF2-SHA256 over the UTF-8 passphrase and salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLen, sha256.New)
}

// EncryptWithPassphrase derives a 256-bit key via PBKDF2-SHA256 (120000
// iterations) and AEAD-encrypts plaintext with AES-256-GCM under a fresh
// IV and salt.
func EncryptWithPassphrase(plaintext []byte, passphrase string) (Sealed, error) {
	salt, err := RandomBytes(saltLen)
	if err != nil {
		return Sealed{}, err
	}
	iv, err := RandomBytes(ivLen)
	if err != nil {
		return Sealed{}, err
	}
	key := deriveKey(passphrase, salt)
	defer Wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return Sealed{}, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Sealed{}, fmt.Errorf("gcm: %w", err)
	}
	ct := gcm.Seal(nil, iv, plaintext, nil)
	return Sealed{Ciphertext: ct, IV: iv, Salt: salt}, nil
}

// DecryptWithPassphrase is the inverse of EncryptWithPassphrase. A tag
// mismatch is reported as domainerr.ErrBadPassphrase, since the only way
// AES-GCM fails here is a wrong key derived from a wrong passphrase.
func DecryptWithPassphrase(s Sealed, passphrase string) ([]byte, error) {
	key := deriveKey(passphrase, s.Salt)
	defer Wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	pt, err := gcm.Open(nil, s.IV, s.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerr.ErrBadPassphrase, err)
	}
	return pt, nil
}

// HKDF derives length bytes from ikm via HKDF-SHA256 with the given salt
// and info.
func HKDF(ikm, salt, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return out, nil
}

// HMACSHA256 returns HMAC-SHA256(key, data).
func HMACSHA256(key, data []byte) [32]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// Box seals msg to peerPub using mySec under a fresh 24-byte nonce,
// curve25519-xsalsa20-poly1305 (nacl/box). The nonce is returned alongside
// the ciphertext since the caller must transmit it.
func Box(msg []byte, peerPub, mySec *[32]byte) (ciphertext, nonce []byte, err error) {
	var n [24]byte
	if _, err := io.ReadFull(rand.Reader, n[:]); err != nil {
		return nil, nil, fmt.Errorf("box nonce: %w", err)
	}
	ct := box.Seal(nil, msg, &n, peerPub, mySec)
	return ct, n[:], nil
}

// BoxOpen opens a box.Seal'd ciphertext, failing with
// domainerr.ErrDecryptFail on tag mismatch.
func BoxOpen(ciphertext, nonce []byte, peerPub, mySec *[32]byte) ([]byte, error) {
	if len(nonce) != 24 {
		return nil, fmt.Errorf("%w: bad nonce length", domainerr.ErrBadInput)
	}
	var n [24]byte
	copy(n[:], nonce)
	pt, ok := box.Open(nil, ciphertext, &n, peerPub, mySec)
	if !ok {
		return nil, fmt.Errorf("%w: box open", domainerr.ErrDecryptFail)
	}
	return pt, nil
}

// SecretBox seals msg under key with a fresh 24-byte nonce,
// xsalsa20-poly1305 (nacl/secretbox).
func SecretBox(msg []byte, key *[32]byte) (ciphertext, nonce []byte, err error) {
	var n [24]byte
	if _, err := io.ReadFull(rand.Reader, n[:]); err != nil {
		return nil, nil, fmt.Errorf("secretbox nonce: %w", err)
	}
	ct := secretbox.Seal(nil, msg, &n, key)
	return ct, n[:], nil
}

// SecretBoxOpen opens a secretbox.Seal'd ciphertext, failing with
// domainerr.ErrDecryptFail on tag mismatch.
func SecretBoxOpen(ciphertext, nonce []byte, key *[32]byte) ([]byte, error) {
	if len(nonce) != 24 {
		return nil, fmt.Errorf("%w: bad nonce length", domainerr.ErrBadInput)
	}
	var n [24]byte
	copy(n[:], nonce)
	pt, ok := secretbox.Open(nil, ciphertext, &n, key)
	if !ok {
		return nil, fmt.Errorf("%w: secretbox open", domainerr.ErrDecryptFail)
	}
	return pt, nil
}

// GenerateIdentityKeyPair returns a fresh curve25519 key pair, clamped per
// RFC 7748.
func GenerateIdentityKeyPair() (pub, sec [32]byte, err error) {
	if _, err = io.ReadFull(rand.Reader, sec[:]); err != nil {
		return pub, sec, fmt.Errorf("identity key pair: %w", err)
	}
	clamp(&sec)
	p, err := curve25519.X25519(sec[:], curve25519.Basepoint)
	if err != nil {
		return pub, sec, fmt.Errorf("identity key pair: %w", err)
	}
	copy(pub[:], p)
	return pub, sec, nil
}

// DH computes the curve25519 shared secret between mySec and peerPub.
func DH(mySec, peerPub [32]byte) ([32]byte, error) {
	var out [32]byte
	shared, err := curve25519.X25519(mySec[:], peerPub[:])
	if err != nil {
		return out, fmt.Errorf("dh: %w", err)
	}
	copy(out[:], shared)
	return out, nil
}

func clamp(sec *[32]byte) {
	sec[0] &= 248
	sec[31] &= 127
	sec[31] |= 64
}
