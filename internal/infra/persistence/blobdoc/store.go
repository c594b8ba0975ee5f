// Package blobdoc provides a local backend that keeps the document blob in a
// blob store object, so a guest profile can live on disk or in a bucket.
package blobdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"twido/internal/blob"
	"twido/pkg/domain"
)

var _ domain.Backend = (*Backend)(nil)

// DefaultKey is the object key the document blob is stored under.
const DefaultKey = "twido.state"

const contentType = "application/json"

// Backend persists the whole document as one object.
type Backend struct {
	store blob.Store
	key   string
	mu    sync.Mutex
}

// NewBackend stores the document under key (DefaultKey when empty).
func NewBackend(store blob.Store, key string) (*Backend, error) {
	if store == nil {
		return nil, errors.New("blobdoc: nil blob store")
	}
	if key == "" {
		key = DefaultKey
	}
	return &Backend{store: store, key: key}, nil
}

// Name implements domain.Backend.
func (b *Backend) Name() string { return "blob-" + string(b.store.Driver()) }

// Kind implements domain.Backend.
func (b *Backend) Kind() domain.BackendKind { return domain.BackendLocal }

// Key returns the object key in use.
func (b *Backend) Key() string { return b.key }

// Subscribe reads the stored object once and hands it to fn.
func (b *Backend) Subscribe(ctx context.Context, fn domain.SnapshotFunc) (domain.Unsubscribe, error) {
	doc, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	fn(doc)
	return func() {}, nil
}

func (b *Backend) load(ctx context.Context) (domain.Document, error) {
	_, rc, err := b.store.Get(ctx, b.key)
	if errors.Is(err, blob.ErrNotFound) {
		return domain.EmptyDocument(), nil
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("read %s: %w", b.key, err)
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read %s: %w", b.key, err)
	}
	return domain.UnmarshalDocument(raw)
}

// Write merges patch into base and replaces the object.
func (b *Backend) Write(ctx context.Context, base domain.Document, patch domain.Patch) error {
	data, err := domain.MarshalDocument(base.Apply(patch))
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.store.Put(ctx, b.key, bytes.NewReader(data), blob.PutOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("write %s: %w", b.key, err)
	}
	return nil
}

// Close is a no-op; the blob store outlives the session.
func (b *Backend) Close() error { return nil }
