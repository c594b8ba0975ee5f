package domain

import "context"

// BackendKind distinguishes the remote-synced and local-only strategies.
type BackendKind string

// Backend kinds.
const (
	BackendRemote BackendKind = "remote"
	BackendLocal  BackendKind = "local"
)

// SnapshotFunc receives a full document whenever the backend hydrates or the
// remote document changes. It may be called from any goroutine.
type SnapshotFunc func(Document)

// Unsubscribe detaches a snapshot subscription. It is safe to call more than once.
type Unsubscribe func()

// Backend is the persistence strategy active for a session. The store owns all
// state; a backend is only a write sink and a source of inbound snapshots.
//
// Remote backends keep delivering snapshots until the returned Unsubscribe is
// called. Local backends deliver exactly one snapshot (the stored blob) before
// Subscribe returns and never push afterwards.
type Backend interface {
	Name() string
	Kind() BackendKind
	Subscribe(ctx context.Context, fn SnapshotFunc) (Unsubscribe, error)
	// Write persists patch. Remote backends merge only the patched top-level
	// keys; local backends merge the patch into base and store the whole blob.
	Write(ctx context.Context, base Document, patch Patch) error
	Close() error
}

// Geolocator samples the device position on demand.
type Geolocator interface {
	CurrentCoordinate(ctx context.Context) (Coordinate, error)
}

// Notifier surfaces toasts and one-shot alerts to the user.
type Notifier interface {
	Notify(n Notification)
}

// Logger is the structured logging surface shared by the store and its
// helpers. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards every record.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
