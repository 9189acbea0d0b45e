package crypto

import (
	"bytes"
	"errors"
	"testing"

	"ciphera/internal/domain/domainerr"
)

func TestPassphraseRoundTrip(t *testing.T) {
	pt := []byte("hello ciphera")
	sealed, err := EncryptWithPassphrase(pt, "correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecryptWithPassphrase(sealed, "correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, pt) {
		t.Fatal("round trip did not return original plaintext")
	}
}

func TestPassphraseWrongFails(t *testing.T) {
	sealed, err := EncryptWithPassphrase([]byte("secret"), "right-pass")
	if err != nil {
		t.Fatal(err)
	}
	_, err = DecryptWithPassphrase(sealed, "wrong-pass")
	if !errors.Is(err, domainerr.ErrBadPassphrase) {
		t.Fatalf("expected ErrBadPassphrase, got %v", err)
	}
}

func TestBoxRoundTripAndTagMismatch(t *testing.T) {
	aPub, aSec, err := GenerateIdentityKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	bPub, bSec, err := GenerateIdentityKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	msg := []byte("intro request")
	ct, nonce, err := Box(msg, &bPub, &aSec)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := BoxOpen(ct, nonce, &aPub, &bSec)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pt, msg) {
		t.Fatal("box round trip mismatch")
	}

	ct[0] ^= 0xFF
	_, err = BoxOpen(ct, nonce, &aPub, &bSec)
	if !errors.Is(err, domainerr.ErrDecryptFail) {
		t.Fatalf("expected ErrDecryptFail on tampered ciphertext, got %v", err)
	}
}

func TestSecretBoxRoundTripAndTagMismatch(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))

	msg := []byte("sealed message body")
	ct, nonce, err := SecretBox(msg, &key)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := SecretBoxOpen(ct, nonce, &key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pt, msg) {
		t.Fatal("secretbox round trip mismatch")
	}

	ct[len(ct)-1] ^= 0xFF
	_, err = SecretBoxOpen(ct, nonce, &key)
	if !errors.Is(err, domainerr.ErrDecryptFail) {
		t.Fatalf("expected ErrDecryptFail on tampered ciphertext, got %v", err)
	}
}

func TestDHIsSymmetric(t *testing.T) {
	aPub, aSec, err := GenerateIdentityKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	bPub, bSec, err := GenerateIdentityKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	ab, err := DH(aSec, bPub)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := DH(bSec, aPub)
	if err != nil {
		t.Fatal(err)
	}
	if ab != ba {
		t.Fatal("DH must be symmetric across both peers")
	}
}

func TestHMACSHA256Deterministic(t *testing.T) {
	key := []byte("chain-key")
	a := HMACSHA256(key, []byte("msg"))
	b := HMACSHA256(key, []byte("msg"))
	if a != b {
		t.Fatal("HMAC-SHA256 must be deterministic for the same inputs")
	}
	c := HMACSHA256(key, []byte("ck"))
	if a == c {
		t.Fatal("different info strings must yield different outputs")
	}
}
