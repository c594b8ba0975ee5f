// Package sqlite provides the guest (local) backend: the whole document is
// stored as one JSON blob under a single key in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"twido/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.Backend = (*Backend)(nil)

// StorageKey is the key the document blob is stored under.
const StorageKey = "twido.state"

// Backend persists the document blob to SQLite.
type Backend struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewBackend opens (creating if needed) the SQLite file at path.
func NewBackend(path string) (*Backend, error) {
	if path == "" {
		path = "twido.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &Backend{db: db, path: path}, nil
}

// Name implements domain.Backend.
func (b *Backend) Name() string { return "sqlite" }

// Kind implements domain.Backend.
func (b *Backend) Kind() domain.BackendKind { return domain.BackendLocal }

// Subscribe reads the stored blob once and hands it to fn.
func (b *Backend) Subscribe(ctx context.Context, fn domain.SnapshotFunc) (domain.Unsubscribe, error) {
	doc, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	fn(doc)
	return func() {}, nil
}

func (b *Backend) load(ctx context.Context) (domain.Document, error) {
	var payload []byte
	err := b.db.QueryRowContext(ctx, `SELECT payload FROM kv WHERE key = ?`, StorageKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EmptyDocument(), nil
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("select state: %w", err)
	}
	return domain.UnmarshalDocument(payload)
}

// Write merges patch into base and stores the whole blob.
func (b *Backend) Write(ctx context.Context, base domain.Document, patch domain.Patch) error {
	data, err := domain.MarshalDocument(base.Apply(patch))
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.db.ExecContext(ctx, `INSERT INTO kv(key,payload) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET payload=excluded.payload`, StorageKey, data); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (b *Backend) Close() error { return b.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (b *Backend) DB() *sql.DB { return b.db }

// Path returns the configured database path.
func (b *Backend) Path() string { return b.path }
