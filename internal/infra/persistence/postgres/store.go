// Package postgres provides the remote backend: one JSONB document per user,
// top-level merge writes and live change delivery over LISTEN/NOTIFY.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"twido/pkg/domain"
)

var _ domain.Backend = (*Backend)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/twido?sslmode=disable"
	// Channel is the NOTIFY channel carrying the id of the changed user document.
	Channel = "twido_documents"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex

	retryDelay = time.Second
)

// Listener receives NOTIFY payloads on a dedicated connection.
type Listener interface {
	Listen(ctx context.Context, channel string) error
	WaitForNotification(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// ListenerFactory dials a Listener.
type ListenerFactory func(ctx context.Context, dsn string) (Listener, error)

// Option configures a Backend.
type Option func(*Backend)

// WithListenerFactory overrides how notification connections are dialled.
func WithListenerFactory(f ListenerFactory) Option {
	return func(b *Backend) {
		if f != nil {
			b.dial = f
		}
	}
}

// WithLogger sets the logger used by the listen loop.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// Backend is a per-user remote document backend.
type Backend struct {
	db     *sql.DB
	dsn    string
	userID string
	dial   ListenerFactory
	logger *slog.Logger

	mu      sync.Mutex
	cancels []context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

// NewBackend opens a Postgres connection for userID using dsn (falls back to
// defaultDSN) and ensures the documents table exists.
func NewBackend(ctx context.Context, dsn, userID string, opts ...Option) (*Backend, error) {
	if userID == "" {
		return nil, errors.New("postgres backend requires a user id")
	}
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureDocumentsTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	b := &Backend{db: db, dsn: dsn, userID: userID, dial: dialPGX, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func ensureDocumentsTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS user_documents (
		user_id TEXT PRIMARY KEY,
		doc JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure documents table: %w", err)
	}
	return nil
}

// Name implements domain.Backend.
func (b *Backend) Name() string { return "postgres" }

// Kind implements domain.Backend.
func (b *Backend) Kind() domain.BackendKind { return domain.BackendRemote }

// DB exposes the underlying sql.DB for integration testing hooks.
func (b *Backend) DB() *sql.DB { return b.db }

// Subscribe delivers the stored document, then re-reads and delivers it on
// every notification naming this user until the subscription is cancelled.
func (b *Backend) Subscribe(ctx context.Context, fn domain.SnapshotFunc) (domain.Unsubscribe, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errors.New("postgres backend closed")
	}
	b.mu.Unlock()

	listener, err := b.dial(ctx, b.dsn)
	if err != nil {
		return nil, fmt.Errorf("dial listener: %w", err)
	}
	if err := listener.Listen(ctx, Channel); err != nil {
		_ = listener.Close(ctx)
		return nil, fmt.Errorf("listen: %w", err)
	}
	doc, err := b.load(ctx)
	if err != nil {
		_ = listener.Close(ctx)
		return nil, err
	}
	fn(doc)

	loopCtx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		_ = listener.Close(ctx)
		return nil, errors.New("postgres backend closed")
	}
	b.cancels = append(b.cancels, cancel)
	b.wg.Add(1)
	b.mu.Unlock()
	go b.listen(loopCtx, listener, fn)

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

func (b *Backend) listen(ctx context.Context, listener Listener, fn domain.SnapshotFunc) {
	defer b.wg.Done()
	defer func() { _ = listener.Close(context.Background()) }()
	for {
		payload, err := listener.WaitForNotification(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			b.logger.Warn("postgres listen failed", "user", b.userID, "error", err)
			_ = listener.Close(ctx)
			listener = b.redial(ctx)
			if listener == nil {
				return
			}
			continue
		}
		if payload != b.userID {
			continue
		}
		doc, err := b.load(ctx)
		if err != nil {
			b.logger.Warn("postgres reload failed", "user", b.userID, "error", err)
			continue
		}
		fn(doc)
	}
}

// redial retries the listener connection until it succeeds or ctx ends.
func (b *Backend) redial(ctx context.Context) Listener {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retryDelay):
		}
		l, err := b.dial(ctx, b.dsn)
		if err == nil {
			if err = l.Listen(ctx, Channel); err == nil {
				return l
			}
			_ = l.Close(ctx)
		}
		b.logger.Warn("postgres redial failed", "user", b.userID, "error", err)
	}
}

func (b *Backend) load(ctx context.Context) (domain.Document, error) {
	var raw []byte
	err := b.db.QueryRowContext(ctx, `SELECT doc FROM user_documents WHERE user_id = $1`, b.userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EmptyDocument(), nil
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("select document: %w", err)
	}
	return domain.UnmarshalDocument(raw)
}

// Write merges the patched top-level keys into the stored document and
// notifies listeners in the same transaction.
func (b *Backend) Write(ctx context.Context, _ domain.Document, patch domain.Patch) error {
	encoded, err := patch.Encode()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(encoded)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO user_documents (user_id, doc) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET doc = user_documents.doc || EXCLUDED.doc, updated_at = now()`, b.userID, payload); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, Channel, b.userID); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Close stops every listen loop and closes the database handle.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	cancels := b.cancels
	b.cancels = nil
	b.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	b.wg.Wait()
	return b.db.Close()
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

type pgxListener struct {
	conn *pgx.Conn
}

func dialPGX(ctx context.Context, dsn string) (Listener, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &pgxListener{conn: conn}, nil
}

func (l *pgxListener) Listen(ctx context.Context, channel string) error {
	_, err := l.conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize())
	return err
}

func (l *pgxListener) WaitForNotification(ctx context.Context) (string, error) {
	n, err := l.conn.WaitForNotification(ctx)
	if err != nil {
		return "", err
	}
	return n.Payload, nil
}

func (l *pgxListener) Close(ctx context.Context) error { return l.conn.Close(ctx) }
