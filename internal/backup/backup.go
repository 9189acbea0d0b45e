// Package backup implements the passphrase-encrypted local-backup
// envelope: a full dump of every persisted store, sealed with the same
// passphrase AEAD the identity uses, and its inverse restore.
package backup

import (
	"context"
	"encoding/json"
	"fmt"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
	"ciphera/internal/encoding"
)

// Snapshot is the full set of records across every store, keyed the same
// way the stores themselves are keyed. There is no separate requestStates
// entry: Stores.RequestStates is the same backing store as Stores.Requests
// (request state lives on Request.Status), so dumping Requests already
// covers it — a second field would just duplicate this map byte for byte.
type Snapshot struct {
	Identity    map[string]domain.Identity   `json:"identity"`
	Requests    map[string]domain.Request    `json:"requests"`
	Chats       map[string]domain.Chat       `json:"chats"`
	Sessions    map[string]domain.Session    `json:"sessions"`
	Messages    map[string]domain.Message    `json:"messages"`
	Reactions   map[string]domain.Reaction   `json:"reactions"`
	Attachments map[string]domain.Attachment `json:"attachments"`
}

// Envelope is the backup file's top-level JSON shape.
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Salt       string `json:"salt"`
}

// Dump serializes every store in stores into one Snapshot.
func Dump(ctx context.Context, stores domain.Stores) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Identity, err = stores.Identity.GetAll(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Requests, err = stores.Requests.GetAll(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Chats, err = stores.Chats.GetAll(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Sessions, err = stores.Sessions.GetAll(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Messages, err = stores.Messages.GetAll(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Reactions, err = stores.Reactions.GetAll(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Attachments, err = stores.Attachments.GetAll(ctx); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Backup dumps every store and seals the result under passphrase, returning
// the serialized Envelope JSON text.
func Backup(ctx context.Context, stores domain.Stores, passphrase string) ([]byte, error) {
	snap, err := Dump(ctx, stores)
	if err != nil {
		return nil, err
	}
	plain, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	sealed, err := crypto.EncryptWithPassphrase(plain, passphrase)
	if err != nil {
		return nil, err
	}
	env := Envelope{
		Ciphertext: encoding.B64Encode(sealed.Ciphertext),
		IV:         encoding.B64Encode(sealed.IV),
		Salt:       encoding.B64Encode(sealed.Salt),
	}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal backup envelope: %w", err)
	}
	return out, nil
}

// Restore decrypts blob under passphrase and, on success, replaces every
// store's contents with the decrypted snapshot, one store after another.
// Each store's ReplaceAll is atomic on its own; there is no transaction
// across stores, so a ReplaceAll error part way through leaves the stores
// replaced before it holding the snapshot and the rest unchanged.
func Restore(ctx context.Context, stores domain.Stores, blob []byte, passphrase string) (Snapshot, error) {
	var env Envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return Snapshot{}, fmt.Errorf("%w: malformed backup envelope", domain.ErrBadInput)
	}
	ct, err := encoding.B64Decode(env.Ciphertext)
	if err != nil {
		return Snapshot{}, err
	}
	iv, err := encoding.B64Decode(env.IV)
	if err != nil {
		return Snapshot{}, err
	}
	salt, err := encoding.B64Decode(env.Salt)
	if err != nil {
		return Snapshot{}, err
	}

	plain, err := crypto.DecryptWithPassphrase(crypto.Sealed{Ciphertext: ct, IV: iv, Salt: salt}, passphrase)
	if err != nil {
		return Snapshot{}, err // domain.ErrBadPassphrase; current state is untouched
	}

	var snap Snapshot
	if err := json.Unmarshal(plain, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: malformed snapshot", domain.ErrBadInput)
	}

	if err := stores.Identity.ReplaceAll(ctx, snap.Identity); err != nil {
		return Snapshot{}, err
	}
	if err := stores.Requests.ReplaceAll(ctx, snap.Requests); err != nil {
		return Snapshot{}, err
	}
	if err := stores.Chats.ReplaceAll(ctx, snap.Chats); err != nil {
		return Snapshot{}, err
	}
	if err := stores.Sessions.ReplaceAll(ctx, snap.Sessions); err != nil {
		return Snapshot{}, err
	}
	if err := stores.Messages.ReplaceAll(ctx, snap.Messages); err != nil {
		return Snapshot{}, err
	}
	if err := stores.Reactions.ReplaceAll(ctx, snap.Reactions); err != nil {
		return Snapshot{}, err
	}
	if err := stores.Attachments.ReplaceAll(ctx, snap.Attachments); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
