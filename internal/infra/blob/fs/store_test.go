package fs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cladecore/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStorePutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("driver = %s", store.Driver())
	}

	info, err := store.Put(ctx, "frames/run1/record.csv", bytes.NewReader([]byte("time,count\n1,2\n")), core.PutOptions{ContentType: "text/csv", Metadata: map[string]string{"format": "csv"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "frames/run1/record.csv" || info.Size != 15 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "frames/run1/record.csv", bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
		t.Fatal("duplicate put succeeded")
	}

	h, err := store.Head(ctx, "frames/run1/record.csv")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if h.ContentType != "text/csv" || h.Metadata["format"] != "csv" {
		t.Fatalf("head metadata lost: %+v", h)
	}

	g, rc, err := store.Get(ctx, "frames/run1/record.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(b) != "time,count\n1,2\n" || g.ETag != h.ETag {
		t.Fatalf("get mismatch: %q etag %s vs %s", b, g.ETag, h.ETag)
	}

	list, err := store.List(ctx, "frames/run1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "frames/run1/record.csv" {
		t.Fatalf("unexpected list %+v", list)
	}

	url, err := store.PresignURL(ctx, "frames/run1/record.csv", core.SignedURLOptions{})
	if err != nil || !strings.Contains(url, "frames/run1/record.csv") {
		t.Fatalf("presign: %v %s", err, url)
	}
	if _, err := store.PresignURL(ctx, "frames/run1/record.csv", core.SignedURLOptions{Method: "PUT"}); err == nil {
		t.Fatal("presign PUT should be unsupported")
	}

	ok, err := store.Delete(ctx, "frames/run1/record.csv")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = store.Delete(ctx, "frames/run1/record.csv")
	if err != nil || ok {
		t.Fatal("second delete should report absent")
	}
}

func TestStoreRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"", "  ", "../escape.txt", "/abs.txt", "a/../../b"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
			t.Errorf("put %q succeeded, want key rejection", key)
		}
	}
}

func TestStoreListWalksNestedKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"run2/frames/zones.json", "run2/frames/species.json", "run3/frames/zones.json"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("{}")), core.PutOptions{ContentType: "application/json"}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "run2/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "run2/frames/species.json" || list[1].Key != "run2/frames/zones.json" {
		t.Fatalf("unexpected list %+v", list)
	}
	all, err := store.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("list all: %v %d", err, len(all))
	}
}

func TestStoreSidecarOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := store.Put(ctx, "tick.html", bytes.NewReader([]byte("<table/>")), core.PutOptions{ContentType: "text/html"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	meta, err := os.ReadFile(filepath.Join(dir, "tick.html.meta"))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	if !bytes.Contains(meta, []byte("text/html")) {
		t.Fatalf("sidecar missing content type: %s", meta)
	}
}

func TestStoreDefaultRoot(t *testing.T) {
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(old) }()
	store, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := os.Stat("framedata"); err != nil {
		t.Fatalf("default root missing: %v", err)
	}
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("driver = %s", store.Driver())
	}
}
