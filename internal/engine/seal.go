package engine

import "ciphera/internal/crypto"

// secretBoxSeal/secretBoxOpen adapt crypto's [32]byte-key API to the
// value-typed domain.Session message keys used throughout the engine.
func secretBoxSeal(plain []byte, mk [32]byte) (ciphertext, nonce []byte, err error) {
	return crypto.SecretBox(plain, &mk)
}

func secretBoxOpen(ciphertext, nonce []byte, mk [32]byte) ([]byte, error) {
	return crypto.SecretBoxOpen(ciphertext, nonce, &mk)
}
