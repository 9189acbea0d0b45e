// Package ratchet implements the engine's symmetric-only per-peer ratchet:
// a single DH seeds a root key once, each side's send chain is the other's
// receive chain, and only HMAC chain advancement moves state forward after
// that — there is no ongoing DH ratchet step, per the engine's explicit
// choice not to pursue post-compromise security that way.
package ratchet

import (
	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

// Seed derives the root key and the two mirrored chain keys for a fresh
// Session between us (myPub, mySec) and peer (peerPub), for the given
// conversation id.
func Seed(conversationID string, myPub, mySec, peerPub [32]byte) (sendCK, recvCK [32]byte, err error) {
	shared, err := crypto.DH(mySec, peerPub)
	if err != nil {
		return sendCK, recvCK, err
	}
	defer func() { crypto.Wipe(shared[:]) }()

	rootKey, err := crypto.HKDF(shared[:], []byte(conversationID), []byte("root"), 32)
	if err != nil {
		return sendCK, recvCK, err
	}
	defer crypto.Wipe(rootKey)

	sendCK = crypto.HMACSHA256(rootKey, []byte("send:"+chatKey(myPub)))
	recvCK = crypto.HMACSHA256(rootKey, []byte("send:"+chatKey(peerPub)))
	return sendCK, recvCK, nil
}

func chatKey(pub [32]byte) string {
	return domain.Identity{PublicKey: pub}.ChatKey()
}

// New builds a freshly-seeded Session for conversationID between us and
// peer.
func New(conversationID string, kind domain.ChatKind, myPub, mySec, peerPub [32]byte) (domain.Session, error) {
	sendCK, recvCK, err := Seed(conversationID, myPub, mySec, peerPub)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{
		ConversationID: conversationID,
		Kind:           kind,
		PeerPubKey:     peerPub,
		SendCK:         sendCK,
		RecvCK:         recvCK,
		SendN:          0,
		RecvN:          0,
		SkippedKeys:    make(map[uint64][32]byte),
	}, nil
}

// Reset returns s re-derived from the same DH seed, with counters zeroed and
// an empty skipped-key cache — used by rekey.
func Reset(s domain.Session, myPub, mySec [32]byte) (domain.Session, error) {
	return New(s.ConversationID, s.Kind, myPub, mySec, s.PeerPubKey)
}

// AdvanceSend derives the next send-side message key and returns the
// updated Session. The wire counter to report alongside the returned key
// is the session's SendN *before* this call (max(0, sendN-1) semantics are
// satisfied automatically since callers report s.SendN after incrementing
// minus one, i.e. the pre-advance SendN).
func AdvanceSend(s domain.Session) (mk [32]byte, n uint64, next domain.Session, err error) {
	mk = crypto.HMACSHA256(s.SendCK[:], []byte("msg"))
	nextCK := crypto.HMACSHA256(s.SendCK[:], []byte("ck"))

	next = s
	next.SendCK = nextCK
	n = s.SendN
	next.SendN = s.SendN + 1
	return mk, n, next, nil
}

// ErrNoKey is returned by DeriveReceive when n is behind RecvN and no
// skipped entry exists for it — either a duplicate delivery or a message
// that fell off the skipped-key cache.
var ErrNoKey = domainNoKey{}

type domainNoKey struct{}

func (domainNoKey) Error() string { return "ratchet: no key available for index" }

// DeriveReceive derives (or looks up) the receive-side message key for
// wire counter n, returning the updated Session. Out-of-order indices
// ahead of RecvN are derived iteratively and cached; indices behind RecvN
// are served from the skipped-key cache or fail with ErrNoKey.
func DeriveReceive(s domain.Session, n uint64) (mk [32]byte, next domain.Session, err error) {
	next = s
	if next.SkippedKeys == nil {
		next.SkippedKeys = make(map[uint64][32]byte)
	}

	if n < s.RecvN {
		key, ok := next.SkippedKeys[n]
		if !ok {
			return mk, next, ErrNoKey
		}
		delete(next.SkippedKeys, n)
		return key, next, nil
	}

	ck := s.RecvCK
	for i := s.RecvN; i <= n; i++ {
		derived := crypto.HMACSHA256(ck[:], []byte("msg"))
		nextCK := crypto.HMACSHA256(ck[:], []byte("ck"))
		if i < n {
			next.SkippedKeys[i] = derived
		} else {
			mk = derived
		}
		ck = nextCK
	}
	next.RecvCK = ck
	next.RecvN = n + 1

	trimOldest(&next)
	return mk, next, nil
}

// trimOldest drops the smallest-index skipped entries until the cache is
// back at domain.MaxSkippedKeys — a deliberately newer-biased eviction
// policy both peers must share so they agree on which late messages are
// recoverable.
func trimOldest(s *domain.Session) {
	for len(s.SkippedKeys) > domain.MaxSkippedKeys {
		var min uint64
		first := true
		for k := range s.SkippedKeys {
			if first || k < min {
				min = k
				first = false
			}
		}
		delete(s.SkippedKeys, min)
	}
}
