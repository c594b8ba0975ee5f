package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"twido/internal/blob"
	"twido/internal/persistence"
	"twido/internal/rewards"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "twido.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RespawnInterval != DefaultRespawnInterval || cfg.Persistence.LocalDriver != persistence.DriverSQLite {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.RewardsConfig() != rewards.DefaultConfig() {
		t.Fatalf("rewards should default, got %+v", cfg.RewardsConfig())
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Fatalf("unexpected level %v", cfg.SlogLevel())
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeFile(t, `
user_id: alice
timezone: Asia/Tokyo
log_level: debug
respawn_interval: 30m
rewards:
  daily_shovel_limit: 5
  pickaxe_bonus_probability: 0
persistence:
  local_driver: blob
  blob_key: guest.json
blob:
  driver: memory
`)
	t.Setenv("TWIDO_REMOTE_DRIVER", "memory")
	t.Setenv("TWIDO_PICKAXE_BONUS_PROBABILITY", "0.25")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.UserID != "alice" || cfg.RespawnInterval != 30*time.Minute || cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.Persistence.LocalDriver != persistence.DriverBlob || cfg.Persistence.RemoteDriver != persistence.DriverMemory || cfg.Persistence.SQLitePath != "twido.db" {
		t.Fatalf("persistence config wrong: %+v", cfg.Persistence)
	}
	if cfg.Blob.Driver != blob.DriverMemory {
		t.Fatalf("blob config wrong: %+v", cfg.Blob)
	}
	rc := cfg.RewardsConfig()
	if rc.DailyShovelLimit != 5 || rc.PickaxeBonusProbability != 0.25 || rc.RockDropProbability != rewards.DefaultRockDropProbability {
		t.Fatalf("rewards override wrong: %+v", rc)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Asia/Tokyo" {
		t.Fatalf("location: %v %v", loc, err)
	}
}

func TestEnvCanClearUserID(t *testing.T) {
	path := writeFile(t, "user_id: alice\n")
	t.Setenv("TWIDO_USER_ID", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.UserID != "" {
		t.Fatalf("empty TWIDO_USER_ID should select guest mode, got %q", cfg.UserID)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"interval":    "respawn_interval: -1s\n",
		"probability": "rewards:\n  rock_drop_probability: 1.5\n",
		"timezone":    "timezone: Mars/Olympus\n",
		"level":       "log_level: chatty\n",
		"shovels":     "rewards:\n  daily_shovel_limit: -1\n",
		"syntax":      "user_id: [\n",
	}
	for name, body := range cases {
		if _, err := Load(writeFile(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
	t.Setenv("TWIDO_RESPAWN_INTERVAL", "soon")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "TWIDO_RESPAWN_INTERVAL") {
		t.Fatalf("expected env parse error, got %v", err)
	}
}
