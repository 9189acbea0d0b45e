// Package topic derives the deterministic content-topic names and
// conversation identifiers the engine uses, all as pure functions over
// public-key bytes via keccak-256.
package topic

import (
	"bytes"
	"encoding/hex"
	"sort"

	"golang.org/x/crypto/sha3"

	"ciphera/internal/encoding"
)

func keccak256Hex(parts ...[]byte) string {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// sortChatKeys returns a, b's base58 chat-key strings reordered so the
// lexicographically smaller one comes first — the ordering that makes
// conversation ids and group-session ids commutative under argument swap.
// Sorting and hashing the chat-key strings (not the raw public-key bytes)
// is what keeps this derivation consistent with a peer's, since the
// chat-key string is the only form of the key ever exchanged out of band.
func sortChatKeys(a, b [32]byte) (lo, hi string) {
	ka, kb := encoding.B58Encode(a[:]), encoding.B58Encode(b[:])
	if ka <= kb {
		return ka, kb
	}
	return kb, ka
}

// ConversationID derives the DM conversation id:
// keccak256_hex(sort([A.chatKey,B.chatKey]).join(":")), lowercase, no 0x
// prefix. Stable under argument reordering.
func ConversationID(a, b [32]byte) string {
	lo, hi := sortChatKeys(a, b)
	return keccak256Hex([]byte(lo), []byte(":"), []byte(hi))
}

// GroupSessionID derives the per-pair ratchet session id shared by two
// members of a group:
// keccak256_hex(groupId + ":" + sort([A.chatKey,B.chatKey]).join(":")).
func GroupSessionID(groupID string, a, b [32]byte) string {
	lo, hi := sortChatKeys(a, b)
	return keccak256Hex([]byte(groupID), []byte(":"), []byte(lo), []byte(":"), []byte(hi))
}

// InboxTopic is the per-identity topic used for out-of-session traffic
// (requests, accepts, invites, acks). It keccaks the raw public-key bytes,
// not the chat-key string.
func InboxTopic(pub [32]byte) string {
	return "/app/1/inbox/" + keccak256Hex(pub[:])
}

// DMTopic is the topic a DM conversation's messages are published on.
func DMTopic(cid string) string {
	return "/app/1/dm/" + cid
}

// GroupTopic is the topic a group's messages are published on.
func GroupTopic(groupID string) string {
	return "/app/1/group/" + groupID
}

// SortPubKeys is exported for callers (e.g. the engine's group fanout) that
// need the same deterministic ordering without hashing.
func SortPubKeys(keys [][32]byte) [][32]byte {
	out := make([][32]byte, len(keys))
	copy(out, keys)
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}
