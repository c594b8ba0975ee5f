// Package persistence selects the document backend for a session: the local
// driver for guests and the remote driver for signed-in users.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"twido/internal/blob"
	"twido/internal/infra/persistence/blobdoc"
	"twido/internal/infra/persistence/memory"
	"twido/internal/infra/persistence/postgres"
	"twido/internal/infra/persistence/sqlite"
	"twido/pkg/domain"
)

// Driver identifies a concrete backend implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-process (tests / demos)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file (local default)
	DriverBlob     Driver = "blob"     // one object in a blob store
	DriverPostgres Driver = "postgres" // shared PostgreSQL document table (remote default)
)

// Config selects the local and remote drivers.
type Config struct {
	LocalDriver  Driver `yaml:"local_driver"`
	RemoteDriver Driver `yaml:"remote_driver"`
	SQLitePath   string `yaml:"sqlite_path"`
	PostgresDSN  string `yaml:"postgres_dsn"`
	BlobKey      string `yaml:"blob_key"`
}

// ConfigFromEnv overlays environment variables on base.
//
//	TWIDO_LOCAL_DRIVER: sqlite|blob|memory (default sqlite)
//	TWIDO_REMOTE_DRIVER: postgres|memory (default postgres)
//	TWIDO_SQLITE_PATH: path to sqlite file (default ./twido.db)
//	TWIDO_POSTGRES_DSN: postgres DSN for the remote driver
//	TWIDO_BLOB_KEY: object key for the blob driver
func ConfigFromEnv(base Config) Config {
	cfg := base
	if v := os.Getenv("TWIDO_LOCAL_DRIVER"); v != "" {
		cfg.LocalDriver = Driver(v)
	}
	if v := os.Getenv("TWIDO_REMOTE_DRIVER"); v != "" {
		cfg.RemoteDriver = Driver(v)
	}
	if v := os.Getenv("TWIDO_SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	if v := os.Getenv("TWIDO_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("TWIDO_BLOB_KEY"); v != "" {
		cfg.BlobKey = v
	}
	return cfg
}

// Deps carries long-lived collaborators shared across sessions.
type Deps struct {
	Blob   blob.Store     // required by DriverBlob
	Server *memory.Server // shared remote for DriverMemory; created on demand
	Logger *slog.Logger
}

// Factory opens backends for user ids; an empty id selects the local driver.
type Factory struct {
	cfg   Config
	deps  Deps
	local *memory.Local
}

// NewFactory validates cfg and returns a Factory.
func NewFactory(cfg Config, deps Deps) (*Factory, error) {
	if cfg.LocalDriver == "" {
		cfg.LocalDriver = DriverSQLite
	}
	if cfg.RemoteDriver == "" {
		cfg.RemoteDriver = DriverPostgres
	}
	switch cfg.LocalDriver {
	case DriverSQLite, DriverMemory:
	case DriverBlob:
		if deps.Blob == nil {
			return nil, fmt.Errorf("local driver %s requires a blob store", cfg.LocalDriver)
		}
	default:
		return nil, fmt.Errorf("unknown local driver %s", cfg.LocalDriver)
	}
	switch cfg.RemoteDriver {
	case DriverPostgres, DriverMemory:
	default:
		return nil, fmt.Errorf("unknown remote driver %s", cfg.RemoteDriver)
	}
	if deps.Server == nil {
		deps.Server = memory.NewServer()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Factory{cfg: cfg, deps: deps, local: memory.NewLocal()}, nil
}

// Config returns the effective configuration.
func (f *Factory) Config() Config { return f.cfg }

// Open returns a fresh backend for userID.
func (f *Factory) Open(ctx context.Context, userID string) (domain.Backend, error) {
	if userID == "" {
		return f.openLocal()
	}
	switch f.cfg.RemoteDriver {
	case DriverMemory:
		return f.deps.Server.Backend(userID), nil
	default:
		return postgres.NewBackend(ctx, f.cfg.PostgresDSN, userID, postgres.WithLogger(f.deps.Logger))
	}
}

func (f *Factory) openLocal() (domain.Backend, error) {
	switch f.cfg.LocalDriver {
	case DriverMemory:
		return f.local, nil
	case DriverBlob:
		return blobdoc.NewBackend(f.deps.Blob, f.cfg.BlobKey)
	default:
		return sqlite.NewBackend(f.cfg.SQLitePath)
	}
}
