package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"ciphera/internal/domain"
)

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "chats.json")

	fs, err := NewFileStore[string, domain.Chat](path)
	if err != nil {
		t.Fatal(err)
	}
	want := domain.Chat{ID: "c1", Kind: domain.ChatDM, Title: "alice"}
	if err := fs.Put(ctx, "c1", want); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewFileStore[string, domain.Chat](path)
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := reopened.Get(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected chat to persist across reopen")
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestFileStoreMissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	_, err := NewFileStore[string, domain.Chat](filepath.Join(dir, "does-not-exist.json"))
	if err != nil {
		t.Fatalf("opening a missing file should not error, got %v", err)
	}
}

func TestFileStoreGetAllAndReplaceAll(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.json")

	fs, err := NewFileStore[string, domain.Message](path)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Put(ctx, "m1", domain.Message{ID: "m1", Body: "hi"}); err != nil {
		t.Fatal(err)
	}
	if err := fs.Put(ctx, "m2", domain.Message{ID: "m2", Body: "there"}); err != nil {
		t.Fatal(err)
	}

	all, err := fs.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}

	snapshot := map[string]domain.Message{"m3": {ID: "m3", Body: "only this one"}}
	if err := fs.ReplaceAll(ctx, snapshot); err != nil {
		t.Fatal(err)
	}

	all, err = fs.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected ReplaceAll to discard prior entries, got %d", len(all))
	}
	if _, ok := all["m3"]; !ok {
		t.Fatal("expected replaced snapshot entry to be present")
	}

	reopened, err := NewFileStore[string, domain.Message](path)
	if err != nil {
		t.Fatal(err)
	}
	persisted, err := reopened.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted) != 1 {
		t.Fatalf("expected ReplaceAll to be durable across reopen, got %d entries", len(persisted))
	}
}

func TestFileStoreGetMissingKey(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := NewFileStore[string, domain.Chat](filepath.Join(dir, "chats.json"))
	if err != nil {
		t.Fatal(err)
	}
	_, ok, err := fs.Get(ctx, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected ok=false for a missing key")
	}
}
