package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ciphera/internal/domain"
	"ciphera/internal/encoding"
	"ciphera/internal/store"
	"ciphera/internal/topic"
	"ciphera/internal/transport"
)

type testPeer struct {
	eng    *Engine
	stores domain.Stores
	bus    *transport.MemoryBus
	pub    [32]byte
}

// newTestPeer builds an unlocked Engine on its own process-view of bus
// (bus.Fork(), mirroring a separate process joining the same broker — see
// MemoryBus.Fork) subscribed to its own inbox, mirroring
// cmd/ciphera/commands/listen.go's subscription pattern. Each simulated
// peer gets an independent fork so that two peers subscribing to the same
// shared DM/group topic each get their own delivery, the same way two real
// processes each subscribing to a Redis channel both get delivery.
func newTestPeer(t *testing.T, ctx context.Context, bus *transport.MemoryBus) *testPeer {
	t.Helper()
	peerBus := bus.Fork()
	stores := store.OpenMemStores()
	eng := New(stores, peerBus, zap.NewNop())
	if _, err := eng.GenerateIdentity(ctx, "passphrase-for-test-identity"); err != nil {
		t.Fatal(err)
	}
	pub, _ := eng.Self()
	if err := peerBus.Subscribe(ctx, topic.InboxTopic(pub), func(payload []byte) {
		eng.HandleIncoming(ctx, payload)
	}); err != nil {
		t.Fatal(err)
	}
	return &testPeer{eng: eng, stores: stores, bus: peerBus, pub: pub}
}

func (p *testPeer) subscribeDM(t *testing.T, ctx context.Context, cid string) {
	t.Helper()
	if err := p.bus.Subscribe(ctx, topic.DMTopic(cid), func(payload []byte) {
		p.eng.HandleIncoming(ctx, payload)
	}); err != nil {
		t.Fatal(err)
	}
}

func establishDM(t *testing.T, ctx context.Context, a, b *testPeer) string {
	t.Helper()
	if _, err := a.eng.SendRequest(ctx, b.pub, "hi, let's chat"); err != nil {
		t.Fatal(err)
	}
	cid := topic.ConversationID(a.pub, b.pub)

	reqs, err := b.stores.Requests.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var reqID string
	for id := range reqs {
		reqID = id
	}
	if reqID == "" {
		t.Fatal("expected request to be persisted on the recipient side")
	}

	if err := b.eng.RespondToRequest(ctx, reqID, domain.RequestAccepted); err != nil {
		t.Fatal(err)
	}

	a.subscribeDM(t, ctx, cid)
	b.subscribeDM(t, ctx, cid)
	return cid
}

func TestDMHandshakeAndMessageDeliveryStatus(t *testing.T) {
	ctx := context.Background()
	bus := transport.NewMemoryBus()
	alice := newTestPeer(t, ctx, bus)
	bob := newTestPeer(t, ctx, bus)

	cid := establishDM(t, ctx, alice, bob)

	msg, err := alice.eng.SendText(ctx, cid, "hello bob", "")
	if err != nil {
		t.Fatal(err)
	}

	got, ok, err := alice.stores.Messages.Get(ctx, msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected sent message to be persisted")
	}
	if got.Status != domain.StatusDelivered {
		t.Fatalf("expected status to flip to delivered after bob's ack, got %s", got.Status)
	}

	bobMsg, ok, err := bob.stores.Messages.Get(ctx, msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || bobMsg.Body != "hello bob" {
		t.Fatalf("expected bob to have received the message, got ok=%v body=%q", ok, bobMsg.Body)
	}
}

func TestOutOfOrderWithinWindowDecryptsAll(t *testing.T) {
	ctx := context.Background()
	bus := transport.NewMemoryBus()
	alice := newTestPeer(t, ctx, bus)
	bob := newTestPeer(t, ctx, bus)
	cid := establishDM(t, ctx, alice, bob)

	// Stop bob's DM subscription so messages are captured one by one instead
	// of applied eagerly, then feed them back out of order.
	if err := bob.bus.Unsubscribe(ctx, topic.DMTopic(cid)); err != nil {
		t.Fatal(err)
	}

	var captured [][]byte
	if err := bob.bus.Subscribe(ctx, topic.DMTopic(cid), func(payload []byte) {
		captured = append(captured, payload)
	}); err != nil {
		t.Fatal(err)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		msg, err := alice.eng.SendText(ctx, cid, "msg", "")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, msg.ID)
	}
	if len(captured) != 3 {
		t.Fatalf("expected 3 captured envelopes, got %d", len(captured))
	}

	order := []int{2, 0, 1}
	for _, idx := range order {
		bob.eng.HandleIncoming(ctx, captured[idx])
	}

	for _, id := range ids {
		if _, ok, err := bob.stores.Messages.Get(ctx, id); err != nil || !ok {
			t.Fatalf("expected message %s to be decrypted despite out-of-order delivery", id)
		}
	}
}

func TestOutOfOrderBeyondWindowProducesKeyMismatch(t *testing.T) {
	ctx := context.Background()
	bus := transport.NewMemoryBus()
	alice := newTestPeer(t, ctx, bus)
	bob := newTestPeer(t, ctx, bus)
	cid := establishDM(t, ctx, alice, bob)

	if err := bob.bus.Unsubscribe(ctx, topic.DMTopic(cid)); err != nil {
		t.Fatal(err)
	}
	var first []byte
	captureFirst := true
	if err := bob.bus.Subscribe(ctx, topic.DMTopic(cid), func(payload []byte) {
		if captureFirst {
			first = payload
			captureFirst = false
			return
		}
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := alice.eng.SendText(ctx, cid, "gets left behind", ""); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < domain.MaxSkippedKeys+5; i++ {
		if _, err := alice.eng.SendText(ctx, cid, "filler", ""); err != nil {
			t.Fatal(err)
		}
	}

	if err := bob.bus.Unsubscribe(ctx, topic.DMTopic(cid)); err != nil {
		t.Fatal(err)
	}
	if err := bob.bus.Subscribe(ctx, topic.DMTopic(cid), func(payload []byte) {
		bob.eng.HandleIncoming(ctx, payload)
	}); err != nil {
		t.Fatal(err)
	}
	// Advance bob's recv chain far past message 0's window by sending one
	// more message (counter 56) that bob does receive, then hand bob the
	// orphaned first message.
	if _, err := alice.eng.SendText(ctx, cid, "advances bob past the window", ""); err != nil {
		t.Fatal(err)
	}
	bob.eng.HandleIncoming(ctx, first)

	all, err := bob.stores.Messages.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var sawKeyMismatch bool
	for _, m := range all {
		if m.KeyMismatch {
			sawKeyMismatch = true
		}
	}
	if !sawKeyMismatch {
		t.Fatal("expected a keyMismatch system message for a message beyond the skipped-key window")
	}
}

func TestRekeyRecoversSession(t *testing.T) {
	ctx := context.Background()
	bus := transport.NewMemoryBus()
	alice := newTestPeer(t, ctx, bus)
	bob := newTestPeer(t, ctx, bus)
	cid := establishDM(t, ctx, alice, bob)

	if err := alice.eng.Rekey(ctx, cid); err != nil {
		t.Fatal(err)
	}

	msg, err := alice.eng.SendText(ctx, cid, "after rekey", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := bob.stores.Messages.Get(ctx, msg.ID); err != nil || !ok {
		t.Fatal("expected bob to decrypt a post-rekey message")
	}

	aliceSess, _, err := alice.stores.Sessions.Get(ctx, cid)
	if err != nil {
		t.Fatal(err)
	}
	bobSess, _, err := bob.stores.Sessions.Get(ctx, cid)
	if err != nil {
		t.Fatal(err)
	}
	if aliceSess.SendCK != bobSess.RecvCK {
		t.Fatal("expected sessions to still mirror each other after rekey")
	}
}

func TestGroupFanoutToThreeMembers(t *testing.T) {
	ctx := context.Background()
	bus := transport.NewMemoryBus()
	owner := newTestPeer(t, ctx, bus)
	m1 := newTestPeer(t, ctx, bus)
	m2 := newTestPeer(t, ctx, bus)

	groupID := "group-1"
	if err := owner.eng.CreateGroup(ctx, groupID, "squad", [][32]byte{m1.pub, m2.pub}); err != nil {
		t.Fatal(err)
	}

	for _, member := range []*testPeer{m1, m2} {
		reqs, err := member.stores.Requests.GetAll(ctx)
		if err != nil {
			t.Fatal(err)
		}
		var reqID string
		for id := range reqs {
			reqID = id
		}
		if reqID == "" {
			t.Fatalf("expected member to have a pending group invite")
		}
		if err := member.eng.RespondToGroupInvite(ctx, reqID, domain.RequestAccepted); err != nil {
			t.Fatal(err)
		}
	}

	msg, err := owner.eng.SendGroupText(ctx, groupID, "hello squad")
	if err != nil {
		t.Fatal(err)
	}

	for _, member := range []*testPeer{m1, m2} {
		got, ok, err := member.stores.Messages.Get(ctx, msg.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !ok || got.Body != "hello squad" {
			t.Fatalf("expected group member to receive the fanout message, got ok=%v body=%q", ok, got.Body)
		}
	}
}

// TestGroupRekeyResetsPairwiseSessionNotBareGroupID guards against a
// group-sourced rekey inner payload being applied under env.GroupID
// instead of the pairwise topic.GroupSessionID the rest of the group
// ratchet actually reads and writes.
func TestGroupRekeyResetsPairwiseSessionNotBareGroupID(t *testing.T) {
	ctx := context.Background()
	bus := transport.NewMemoryBus()
	owner := newTestPeer(t, ctx, bus)
	m1 := newTestPeer(t, ctx, bus)

	groupID := "group-rekey"
	if err := owner.eng.CreateGroup(ctx, groupID, "pair", [][32]byte{m1.pub}); err != nil {
		t.Fatal(err)
	}
	reqs, err := m1.stores.Requests.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var reqID string
	for id := range reqs {
		reqID = id
	}
	if reqID == "" {
		t.Fatal("expected m1 to have a pending group invite")
	}
	if err := m1.eng.RespondToGroupInvite(ctx, reqID, domain.RequestAccepted); err != nil {
		t.Fatal(err)
	}

	// A normal group message establishes the pairwise session both ways.
	if _, err := owner.eng.SendGroupText(ctx, groupID, "hi"); err != nil {
		t.Fatal(err)
	}

	sessionID := topic.GroupSessionID(groupID, owner.pub, m1.pub)
	sess, ok, err := m1.stores.Sessions.Get(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected m1 to have established the pairwise group session")
	}

	// Hand-craft a group_message from m1 to owner carrying a rekey inner
	// payload, sealed under the pairwise session rather than going through
	// a production send path (there is no group-rekey command yet).
	ct, nonce, n, nextSess, err := sealAndAdvance(sess, domain.Inner{Kind: domain.InnerRekey})
	if err != nil {
		t.Fatal(err)
	}
	if err := m1.stores.Sessions.Put(ctx, sessionID, nextSess); err != nil {
		t.Fatal(err)
	}

	env := domain.Envelope{
		Type:       domain.EnvGroupMessage,
		Timestamp:  nowMillis(),
		GroupID:    groupID,
		MessageID:  uuid.NewString(),
		FromPubKey: encoding.B58Encode(m1.pub[:]),
		Sealed: []domain.SealedEntry{{
			ToPubKey:   encoding.B58Encode(owner.pub[:]),
			N:          n,
			Nonce:      encoding.B64Encode(nonce),
			Ciphertext: encoding.B64Encode(ct),
		}},
	}
	payload, err := domain.EncodeEnvelope(env)
	if err != nil {
		t.Fatal(err)
	}
	owner.eng.HandleIncoming(ctx, payload)

	if _, ok, err := owner.stores.Sessions.Get(ctx, groupID); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Fatal("rekey must not create a session keyed by the bare group id")
	}
	if _, ok, err := owner.stores.Sessions.Get(ctx, sessionID); err != nil {
		t.Fatal(err)
	} else if !ok {
		t.Fatal("expected owner's pairwise session to be reset under the GroupSessionID key")
	}
}

func TestDuplicateChatRequestToAcceptedChatIsIdempotent(t *testing.T) {
	ctx := context.Background()
	bus := transport.NewMemoryBus()
	alice := newTestPeer(t, ctx, bus)
	bob := newTestPeer(t, ctx, bus)
	establishDM(t, ctx, alice, bob)

	reqsBefore, err := alice.stores.Requests.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := alice.eng.SendRequest(ctx, bob.pub, "hi again"); err != nil {
		t.Fatal(err)
	}

	reqsAfter, err := bob.stores.Requests.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var accepted int
	for _, r := range reqsAfter {
		if r.Status == domain.RequestAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted request on bob's side, got %d", accepted)
	}

	if len(reqsBefore) != 1 {
		t.Fatalf("unexpected pre-condition request count on alice's side: %d", len(reqsBefore))
	}
}

func TestAcceptedChatRatchetSessionMirrors(t *testing.T) {
	ctx := context.Background()
	bus := transport.NewMemoryBus()
	alice := newTestPeer(t, ctx, bus)
	bob := newTestPeer(t, ctx, bus)
	cid := establishDM(t, ctx, alice, bob)

	aliceSess, ok, err := alice.stores.Sessions.Get(ctx, cid)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected alice to have a session after handshake")
	}
	bobSess, ok, err := bob.stores.Sessions.Get(ctx, cid)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected bob to have a session after handshake")
	}
	if aliceSess.SendCK != bobSess.RecvCK || aliceSess.RecvCK != bobSess.SendCK {
		t.Fatal("expected freshly-established sessions to mirror each other")
	}
}
