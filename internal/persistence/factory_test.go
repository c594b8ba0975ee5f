package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"twido/internal/blob"
	"twido/pkg/domain"
)

func TestNewFactoryDefaultsAndValidation(t *testing.T) {
	f, err := NewFactory(Config{}, Deps{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if f.Config().LocalDriver != DriverSQLite || f.Config().RemoteDriver != DriverPostgres {
		t.Fatalf("unexpected defaults %+v", f.Config())
	}
	cases := []Config{
		{LocalDriver: "floppy"},
		{RemoteDriver: "carrier-pigeon"},
		{LocalDriver: DriverBlob},
	}
	for _, cfg := range cases {
		if _, err := NewFactory(cfg, Deps{}); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestOpenSelectsLocalForGuests(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "guest.db")
	f, err := NewFactory(Config{SQLitePath: path, RemoteDriver: DriverMemory}, Deps{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	guest, err := f.Open(ctx, "")
	if err != nil {
		t.Fatalf("open guest: %v", err)
	}
	defer func() { _ = guest.Close() }()
	if guest.Kind() != domain.BackendLocal || guest.Name() != "sqlite" {
		t.Fatalf("expected sqlite local backend, got %s/%s", guest.Kind(), guest.Name())
	}
	user, err := f.Open(ctx, "u1")
	if err != nil {
		t.Fatalf("open user: %v", err)
	}
	if user.Kind() != domain.BackendRemote || user.Name() != "memory-remote" {
		t.Fatalf("expected memory remote backend, got %s/%s", user.Kind(), user.Name())
	}
}

func TestMemoryDriversShareStateAcrossSessions(t *testing.T) {
	ctx := context.Background()
	f, err := NewFactory(Config{LocalDriver: DriverMemory, RemoteDriver: DriverMemory}, Deps{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	first, _ := f.Open(ctx, "")
	doc := domain.EmptyDocument()
	doc.IsLowEnergyMode = true
	if err := first.Write(ctx, doc, domain.NewPatch(doc, domain.FieldLowEnergy)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = first.Close()

	second, _ := f.Open(ctx, "")
	var got domain.Document
	if _, err := second.Subscribe(ctx, func(d domain.Document) { got = d }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !got.IsLowEnergyMode {
		t.Fatalf("guest state lost between sessions")
	}

	a, _ := f.Open(ctx, "u1")
	if err := a.Write(ctx, doc, domain.NewPatch(doc, domain.FieldLowEnergy)); err != nil {
		t.Fatalf("remote write: %v", err)
	}
	_ = a.Close()
	b, _ := f.Open(ctx, "u1")
	var remote domain.Document
	unsub, err := b.Subscribe(ctx, func(d domain.Document) { remote = d })
	if err != nil {
		t.Fatalf("remote subscribe: %v", err)
	}
	defer unsub()
	if !remote.IsLowEnergyMode {
		t.Fatalf("remote state lost between sessions")
	}
}

func TestBlobLocalDriver(t *testing.T) {
	f, err := NewFactory(Config{LocalDriver: DriverBlob, BlobKey: "guest.json"}, Deps{Blob: blob.NewMemory()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b, err := f.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if b.Name() != "blob-memory" || b.Kind() != domain.BackendLocal {
		t.Fatalf("unexpected backend %s", b.Name())
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("TWIDO_LOCAL_DRIVER", "blob")
	t.Setenv("TWIDO_POSTGRES_DSN", "postgres://db/twido")
	cfg := ConfigFromEnv(Config{SQLitePath: "keep.db"})
	if cfg.LocalDriver != DriverBlob || cfg.PostgresDSN != "postgres://db/twido" || cfg.SQLitePath != "keep.db" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
