package domain

import (
	"time"

	"ciphera/internal/encoding"
)

// Identity is the one long-term key pair an installation holds. The secret
// key is stored sealed; it exists unsealed only in the Engine's volatile
// memory between Unlock and process exit or Lock.
type Identity struct {
	PublicKey [32]byte  `json:"publicKey"`
	Sealed    Sealed    `json:"sealed"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatKey is the base58 text form of a public key, the sole out-of-band
// identifier two users exchange to begin a conversation.
func (id Identity) ChatKey() string {
	return encoding.B58Encode(id.PublicKey[:])
}

// Sealed is a passphrase-encrypted secret, produced by
// crypto.EncryptWithPassphrase and consumed by crypto.DecryptWithPassphrase.
type Sealed struct {
	Ciphertext []byte `json:"ciphertext"`
	IV         []byte `json:"iv"`
	Salt       []byte `json:"salt"`
}
