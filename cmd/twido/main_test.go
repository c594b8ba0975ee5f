package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"twido/internal/backup"
	"twido/internal/garden"
	"twido/pkg/domain"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TWIDO_USER_ID", "")
	t.Setenv("TWIDO_LOCAL_DRIVER", "sqlite")
	t.Setenv("TWIDO_SQLITE_PATH", filepath.Join(dir, "twido.db"))
	t.Setenv("TWIDO_BLOB_DRIVER", "fs")
	t.Setenv("TWIDO_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))
	t.Setenv("TWIDO_LOG_LEVEL", "error")
	t.Setenv("TWIDO_PICKAXE_BONUS_PROBABILITY", "0")
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := run(t, args...)
	if err != nil {
		t.Fatalf("twido %v: %v (stderr %q)", args, err, stderr)
	}
	return out
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func decorationOf(kind domain.DecorationKind) string {
	for _, d := range garden.Decorations() {
		if d.Kind == kind {
			return d.ID
		}
	}
	return ""
}

func TestTaskLifecyclePersistsAcrossInvocations(t *testing.T) {
	setupEnv(t)
	id := firstField(mustRun(t, "add", "--size", "l", "write", "report"))
	if id == "" {
		t.Fatalf("expected task id")
	}
	if out := mustRun(t, "list"); !strings.Contains(out, "write report") || !strings.Contains(out, "[private/L]") {
		t.Fatalf("unexpected list output %q", out)
	}
	sub := firstField(mustRun(t, "subtask", "add", id, "outline"))
	mustRun(t, "subtask", "toggle", id, sub)
	if out := mustRun(t, "list"); !strings.Contains(out, "[x] "+sub) {
		t.Fatalf("subtask not toggled: %q", out)
	}

	if out := mustRun(t, "timer", id); !strings.Contains(out, "started") {
		t.Fatalf("unexpected timer output %q", out)
	}
	if out := mustRun(t, "list"); !strings.Contains(out, "(running)") {
		t.Fatalf("running marker missing: %q", out)
	}

	out := mustRun(t, "done", id)
	if !strings.Contains(out, "+1 shovel, +1 pickaxe") {
		t.Fatalf("size L completion should grant both tools: %q", out)
	}
	if out := mustRun(t, "list", "--completed"); !strings.Contains(out, "[x] "+id) || strings.Contains(out, "(running)") {
		t.Fatalf("completion should stop the timer: %q", out)
	}
	if out := mustRun(t, "garden"); !strings.Contains(out, "shovels: 1  pickaxes: 1  today: 1") {
		t.Fatalf("unexpected garden output %q", out)
	}

	if out := mustRun(t, "done", id); !strings.Contains(out, "reopened") {
		t.Fatalf("expected reopen, got %q", out)
	}
	if out := mustRun(t, "garden"); !strings.Contains(out, "shovels: 1") {
		t.Fatalf("reopening must not revoke rewards: %q", out)
	}
}

func TestModeScopesVisibleTasks(t *testing.T) {
	setupEnv(t)
	mustRun(t, "add", "groceries")
	if out := mustRun(t, "mode", "work"); strings.TrimSpace(out) != "work" {
		t.Fatalf("unexpected mode output %q", out)
	}
	mustRun(t, "add", "standup")
	out := mustRun(t, "list")
	if !strings.Contains(out, "standup") || strings.Contains(out, "groceries") {
		t.Fatalf("work list should hide private tasks: %q", out)
	}
	if out := mustRun(t, "list", "--all"); !strings.Contains(out, "groceries") {
		t.Fatalf("--all should list every task: %q", out)
	}
	if out := mustRun(t, "list", "--mode", "private"); !strings.Contains(out, "groceries") || strings.Contains(out, "standup") {
		t.Fatalf("unexpected private list %q", out)
	}
	if _, _, err := run(t, "mode", "vacation"); !errors.Is(err, domain.ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if out := mustRun(t, "balance"); !strings.Contains(out, "Perfectly Balanced") {
		t.Fatalf("untimed tasks should be balanced: %q", out)
	}
}

func TestEditAndDelete(t *testing.T) {
	setupEnv(t)
	a := firstField(mustRun(t, "add", "first"))
	b := firstField(mustRun(t, "add", "second"))
	mustRun(t, "edit", a, "--title", "renamed", "--size", "s")
	if out := mustRun(t, "list"); !strings.Contains(out, "renamed\t[private/S]") {
		t.Fatalf("edit not applied: %q", out)
	}
	if _, _, err := run(t, "edit", a, "--title", "  "); !errors.Is(err, domain.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	mustRun(t, "done", b)
	if out := mustRun(t, "delete", "--completed"); !strings.Contains(out, "deleted 1") {
		t.Fatalf("unexpected delete output %q", out)
	}
	mustRun(t, "delete", a)
	if out := mustRun(t, "list", "--all"); strings.TrimSpace(out) != "no tasks" {
		t.Fatalf("expected empty list, got %q", out)
	}
	if _, _, err := run(t, "delete", "missing"); !errors.Is(err, errTaskNotFound) {
		t.Fatalf("expected errTaskNotFound, got %v", err)
	}
	if _, _, err := run(t, "delete"); err == nil {
		t.Fatalf("expected error without a target")
	}
}

func TestToolUseAndRespawn(t *testing.T) {
	setupEnv(t)
	weed := decorationOf(domain.DecorationWeed)
	rock := decorationOf(domain.DecorationRock)
	if _, _, err := run(t, "tool", "shovel", weed); err == nil {
		t.Fatalf("expected failure without shovels")
	}
	id := firstField(mustRun(t, "add", "chore"))
	mustRun(t, "done", id)
	if _, _, err := run(t, "tool", "shovel", rock); err == nil {
		t.Fatalf("a shovel must not clear rocks")
	}
	if out := mustRun(t, "tool", "shovel", weed); !strings.Contains(out, "cleared weed "+weed) {
		t.Fatalf("unexpected tool output %q", out)
	}
	if out := mustRun(t, "garden"); !strings.Contains(out, "(1 removed)") {
		t.Fatalf("decoration not removed: %q", out)
	}
	mustRun(t, "respawn", "restore", weed)
	if out := mustRun(t, "garden"); !strings.Contains(out, "(0 removed)") {
		t.Fatalf("decoration not restored: %q", out)
	}
	if _, _, err := run(t, "respawn", "restore", weed); err == nil {
		t.Fatalf("restoring a present decoration should fail")
	}
	mustRun(t, "respawn", "remove", rock)
	if _, _, err := run(t, "tool", "hammer", rock); err == nil {
		t.Fatalf("expected unknown tool error")
	}
	if _, _, err := run(t, "tool", "pickaxe", "decoration-x"); err == nil {
		t.Fatalf("expected unknown decoration error")
	}
}

func TestLocateRegisterAndCheck(t *testing.T) {
	setupEnv(t)
	if _, _, err := run(t, "locate", "check"); !errors.Is(err, errNoCoordinate) {
		t.Fatalf("expected errNoCoordinate, got %v", err)
	}
	mustRun(t, "--lat", "52.52", "--lon", "13.405", "locate", "register", "work")
	mustRun(t, "--lat", "52.40", "--lon", "13.05", "locate", "register", "home")
	if out := mustRun(t, "locate", "show"); !strings.Contains(out, "work: 52.52000,13.40500") {
		t.Fatalf("unexpected locations %q", out)
	}
	if out := mustRun(t, "--lat", "52.5201", "--lon", "13.4051", "locate", "check"); !strings.Contains(out, "suggest switching to work") {
		t.Fatalf("expected work suggestion, got %q", out)
	}
	if out := mustRun(t, "mode"); strings.TrimSpace(out) != "private" {
		t.Fatalf("check must not switch the mode, got %q", out)
	}
	if _, _, err := run(t, "--lat", "1", "--lon", "1", "locate", "register", "gym"); !errors.Is(err, domain.ErrInvalidLocationKind) {
		t.Fatalf("expected ErrInvalidLocationKind, got %v", err)
	}
}

func TestBackupExportAndRestore(t *testing.T) {
	setupEnv(t)
	mustRun(t, "add", "keep me")
	if out := mustRun(t, "backup", "list"); strings.TrimSpace(out) != "no backups" {
		t.Fatalf("unexpected list %q", out)
	}
	if _, _, err := run(t, "backup", "restore"); !errors.Is(err, backup.ErrNoBackups) {
		t.Fatalf("expected ErrNoBackups, got %v", err)
	}
	key := firstField(mustRun(t, "backup", "export"))
	if !strings.HasPrefix(key, backup.Prefix("")) {
		t.Fatalf("unexpected key %q", key)
	}
	mustRun(t, "delete", "--all")
	if out := mustRun(t, "backup", "restore"); !strings.Contains(out, "restored 1 tasks") {
		t.Fatalf("unexpected restore output %q", out)
	}
	if out := mustRun(t, "list"); !strings.Contains(out, "keep me") {
		t.Fatalf("task not restored: %q", out)
	}
	if out := mustRun(t, "backup", "list"); firstField(out) != key {
		t.Fatalf("expected %s listed, got %q", key, out)
	}
}

func TestSignedInUserUsesRemoteDriver(t *testing.T) {
	setupEnv(t)
	t.Setenv("TWIDO_REMOTE_DRIVER", "memory")
	out := mustRun(t, "--user", "alice", "add", "remote task")
	if firstField(out) == "" {
		t.Fatalf("expected task id, got %q", out)
	}
	// the in-memory remote does not outlive the process; the guest store is untouched
	if out := mustRun(t, "list", "--all"); strings.TrimSpace(out) != "no tasks" {
		t.Fatalf("guest store should be empty, got %q", out)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	setupEnv(t)
	t.Setenv("TWIDO_TIMEZONE", "Mars/Olympus")
	if _, _, err := run(t, "list"); err == nil {
		t.Fatalf("expected config error")
	}
}

func TestNotifierPrefixesAlerts(t *testing.T) {
	var buf bytes.Buffer
	n := &printNotifier{w: &buf}
	n.Notify(domain.Notification{Kind: domain.AlertPersistence, Title: "Sync failed", Message: "offline"})
	n.Notify(domain.Notification{Kind: domain.NoticeShovel, Title: "Reward", Message: "shovel"})
	if got := buf.String(); got != "! Sync failed: offline\n* Reward: shovel\n" {
		t.Fatalf("unexpected notifier output %q", got)
	}
}
