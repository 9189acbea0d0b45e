package store

import (
	"context"
	"testing"
)

func TestMemStorePutGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore[string, int]()

	if err := m.Put(ctx, "a", 1); err != nil {
		t.Fatal(err)
	}
	v, ok, err := m.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || v != 1 {
		t.Fatalf("got (%d, %v), want (1, true)", v, ok)
	}

	_, ok, err = m.Get(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected ok=false for a missing key")
	}
}

func TestMemStoreReplaceAllDiscardsPriorEntries(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore[string, int]()
	if err := m.Put(ctx, "a", 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Put(ctx, "b", 2); err != nil {
		t.Fatal(err)
	}

	if err := m.ReplaceAll(ctx, map[string]int{"c": 3}); err != nil {
		t.Fatal(err)
	}

	all, err := m.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 entry after ReplaceAll, got %d", len(all))
	}
	if all["c"] != 3 {
		t.Fatalf("expected replaced entry c=3, got %v", all["c"])
	}
}

func TestMemStoreGetAllIsACopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore[string, int]()
	if err := m.Put(ctx, "a", 1); err != nil {
		t.Fatal(err)
	}

	snapshot, err := m.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	snapshot["a"] = 999

	v, _, err := m.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatal("mutating a GetAll snapshot must not affect the store")
	}
}
