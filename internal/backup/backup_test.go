package backup

import (
	"context"
	"errors"
	"testing"

	"ciphera/internal/domain"
	"ciphera/internal/store"
)

func seedStores(t *testing.T, ctx context.Context) domain.Stores {
	t.Helper()
	stores := store.OpenMemStores()
	if err := stores.Identity.Put(ctx, store.IdentityKey, domain.Identity{PublicKey: [32]byte{1}}); err != nil {
		t.Fatal(err)
	}
	if err := stores.Chats.Put(ctx, "c1", domain.Chat{ID: "c1", Kind: domain.ChatDM, Title: "alice"}); err != nil {
		t.Fatal(err)
	}
	if err := stores.Messages.Put(ctx, "m1", domain.Message{ID: "m1", ChatID: "c1", Type: domain.MessageText, Body: "hey"}); err != nil {
		t.Fatal(err)
	}
	return stores
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	stores := seedStores(t, ctx)
	passphrase := "correct horse battery staple"

	blob, err := Backup(ctx, stores, passphrase)
	if err != nil {
		t.Fatal(err)
	}

	fresh := store.OpenMemStores()
	snap, err := Restore(ctx, fresh, blob, passphrase)
	if err != nil {
		t.Fatal(err)
	}

	if len(snap.Chats) != 1 || snap.Chats["c1"].Title != "alice" {
		t.Fatalf("restored snapshot missing expected chat: %+v", snap.Chats)
	}

	got, ok, err := fresh.Messages.Get(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got.Body != "hey" {
		t.Fatalf("restored store missing expected message: ok=%v got=%+v", ok, got)
	}
}

func TestRestoreWrongPassphraseLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	stores := seedStores(t, ctx)

	blob, err := Backup(ctx, stores, "right-passphrase")
	if err != nil {
		t.Fatal(err)
	}

	target := store.OpenMemStores()
	if err := target.Chats.Put(ctx, "preexisting", domain.Chat{ID: "preexisting", Kind: domain.ChatDM}); err != nil {
		t.Fatal(err)
	}

	_, err = Restore(ctx, target, blob, "wrong-passphrase")
	if !errors.Is(err, domain.ErrBadPassphrase) {
		t.Fatalf("expected ErrBadPassphrase, got %v", err)
	}

	all, err := target.Chats.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected store to be untouched by a failed restore, got %d entries", len(all))
	}
	if _, ok := all["preexisting"]; !ok {
		t.Fatal("expected pre-existing chat to survive a failed restore")
	}
}
