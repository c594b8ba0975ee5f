package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"twido/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStore_PutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	info, err := store.Put(ctx, "backups/u1/a.json.zst", bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "application/zstd", Metadata: map[string]string{"user": "u1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "backups/u1/a.json.zst" || info.Size != 5 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	h, err := store.Head(ctx, "backups/u1/a.json.zst")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	g, rc, err := store.Get(ctx, "backups/u1/a.json.zst")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(b) != "hello" || g.ETag != h.ETag || g.Metadata["user"] != "u1" {
		t.Fatalf("unexpected get artifacts %+v", g)
	}
	if _, err := store.Put(ctx, "backups/u2/b.json.zst", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	list, err := store.List(ctx, "backups/u1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "backups/u1/a.json.zst" {
		t.Fatalf("unexpected list %+v", list)
	}
	if all, _ := store.List(ctx, ""); len(all) != 2 {
		t.Fatalf("expected two blobs, got %+v", all)
	}
	ok, err := store.Delete(ctx, "backups/u1/a.json.zst")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err = store.Delete(ctx, "backups/u1/a.json.zst"); err != nil || ok {
		t.Fatalf("second delete should be false")
	}
}

func TestStore_OverwriteKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	clock := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	if _, err := store.Put(ctx, "twido.state", bytes.NewReader([]byte("v1")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	clock = clock.Add(time.Hour)
	info, err := store.Put(ctx, "twido.state", bytes.NewReader([]byte("v2")), core.PutOptions{})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if !info.LastModified.Equal(clock) {
		t.Fatalf("expected updated timestamp, got %v", info.LastModified)
	}
	_, metaPath, _ := store.pathFor("twido.state")
	mf, err := readMeta(metaPath)
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if !mf.CreatedAt.Equal(clock.Add(-time.Hour)) {
		t.Fatalf("created_at should survive overwrite, got %v", mf.CreatedAt)
	}
	if _, err := store.Put(ctx, "twido.state", bytes.NewReader([]byte("v3")), core.PutOptions{IfAbsent: true}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestStore_InvalidKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"", "  ", "../escape", "/abs", "a/../../b", "x.meta"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

type errorReader struct{}

func (errorReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestStore_ErrorBranches(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "bad.bin", errorReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected reader error")
	}
	if _, err := store.Head(ctx, "bad.bin"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("failed put must not leave a blob, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := store.Put(ctx, "corrupt", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, metaPath, _ := store.pathFor("corrupt")
	if err := os.WriteFile(metaPath, []byte("{"), 0o644); err != nil {
		t.Fatalf("corrupt meta: %v", err)
	}
	if _, err := store.Head(ctx, "corrupt"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, err := store.List(ctx, ""); err == nil {
		t.Fatalf("expected list to surface corrupt sidecar")
	}
	if store.Driver() != core.DriverFilesystem || store.Root() == "" {
		t.Fatalf("unexpected identity")
	}
}
