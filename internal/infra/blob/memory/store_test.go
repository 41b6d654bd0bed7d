package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"cladecore/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := New()
	if store.Driver() != core.DriverMemory {
		t.Fatalf("driver = %s", store.Driver())
	}

	if _, _, err := store.Get(ctx, "missing"); err == nil {
		t.Fatal("get missing succeeded")
	}
	if _, err := store.Head(ctx, "missing"); err == nil {
		t.Fatal("head missing succeeded")
	}
	if ok, err := store.Delete(ctx, "missing"); err != nil || ok {
		t.Fatalf("delete missing = (%v, %v)", ok, err)
	}

	info, err := store.Put(ctx, "frames/record.json", bytes.NewReader([]byte(`{"rows":[]}`)), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"tick": "3"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 11 || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "frames/record.json", bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
		t.Fatal("duplicate put succeeded")
	}

	g, rc, err := store.Get(ctx, "frames/record.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != `{"rows":[]}` || g.Metadata["tick"] != "3" {
		t.Fatalf("get mismatch: %q %+v", b, g.Metadata)
	}

	if list, err := store.List(ctx, "frames/"); err != nil || len(list) != 1 {
		t.Fatalf("list prefix: %v %d", err, len(list))
	}
	if list, err := store.List(ctx, "other/"); err != nil || len(list) != 0 {
		t.Fatalf("list other: %v %d", err, len(list))
	}
	if _, err := store.PresignURL(ctx, "frames/record.json", core.SignedURLOptions{}); err != core.ErrUnsupported {
		t.Fatalf("presign = %v, want ErrUnsupported", err)
	}
	if ok, err := store.Delete(ctx, "frames/record.json"); err != nil || !ok {
		t.Fatalf("delete = (%v, %v)", ok, err)
	}
}

func TestStoreListSortedByKey(t *testing.T) {
	ctx := context.Background()
	store := New()
	for _, key := range []string{"c", "a", "b"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte(key)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Key != "a" || list[1].Key != "b" || list[2].Key != "c" {
		t.Fatalf("unexpected order %+v", list)
	}
}

func TestStoreCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := New()
	md := map[string]string{"k": "v"}
	if _, err := store.Put(ctx, "obj", bytes.NewReader([]byte("data")), core.PutOptions{Metadata: md}); err != nil {
		t.Fatalf("put: %v", err)
	}
	md["k"] = "changed"
	h, err := store.Head(ctx, "obj")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if h.Metadata["k"] != "v" {
		t.Fatal("caller mutation leaked into stored metadata")
	}
	h.Metadata["k"] = "again"
	if fresh, _ := store.Head(ctx, "obj"); fresh.Metadata["k"] != "v" {
		t.Fatal("returned metadata aliases stored metadata")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, fmt.Errorf("read failed") }

func TestStorePutReadError(t *testing.T) {
	store := New()
	if _, err := store.Put(context.Background(), "bad", failingReader{}, core.PutOptions{}); err == nil {
		t.Fatal("put with failing reader succeeded")
	}
	if _, err := store.Head(context.Background(), "bad"); err == nil {
		t.Fatal("failed put left a stored object")
	}
}
