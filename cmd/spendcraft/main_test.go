package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spendcraft/internal/config"
	"spendcraft/internal/core"
	applog "spendcraft/internal/log"
	"spendcraft/internal/services"
	"spendcraft/internal/worker"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	return newTestAppWith(t, func(*config.Config) {})
}

func newTestAppWith(t *testing.T, mutate func(*config.Config)) *app {
	t.Helper()
	cfg := &config.Config{
		DataBackend:          "memory",
		DataDir:              t.TempDir(),
		AlertThresholds:      "50,80,100,120",
		AlertRetentionMonths: 12,
		ChangePollInterval:   20 * time.Millisecond,
		SpendCacheSize:       16,
		SpendCacheTTL:        time.Minute,
		LogLevel:             "error",
	}
	mutate(cfg)
	a, err := newApp(context.Background(), cfg, applog.New(applog.Config{Output: io.Discard}))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func runCmd(t *testing.T, a *app, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := run(context.Background(), a, args, &out); err != nil {
		t.Fatalf("run(%v) error = %v", args, err)
	}
	return out.String()
}

func TestBudgetFlow(t *testing.T) {
	a := newTestApp(t)

	runCmd(t, a, "budget", "set", "-category", "food", "-limit", "10.00")
	out := runCmd(t, a, "tx", "add", "-amount", "8,50", "-category", "food", "-note", "groceries")
	for _, want := range []string{
		"Budget warning for Food! Spent: 8.50, Budget: 10.00 (level 50%, used 85%)",
		"Budget warning for Food! Spent: 8.50, Budget: 10.00 (level 80%, used 85%)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("tx add output = %q, missing %q", out, want)
		}
	}

	out = runCmd(t, a, "check")
	if !strings.Contains(out, "no new budget alerts") {
		t.Errorf("check after tx add = %q", out)
	}

	runCmd(t, a, "tx", "add", "-amount", "4", "-category", "food")
	out = runCmd(t, a, "budget", "list")
	if !strings.Contains(out, "12.50") {
		t.Errorf("budget list = %q", out)
	}

	out = runCmd(t, a, "streak")
	if out != "current: 1\nlongest: 1\n" {
		t.Errorf("streak = %q", out)
	}
	out = runCmd(t, a, "log-today")
	if !strings.Contains(out, "already logged") {
		t.Errorf("log-today = %q", out)
	}
}

func TestZeroBudgetIsAccepted(t *testing.T) {
	a := newTestApp(t)
	out := runCmd(t, a, "budget", "set", "-category", "food", "-limit", "0")
	if !strings.Contains(out, "set to 0.00") {
		t.Errorf("output = %q", out)
	}
	if err := run(context.Background(), a, []string{"budget", "set", "-category", "food", "-limit", "-1"}, io.Discard); err == nil {
		t.Error("expected negative limit to be rejected")
	}
}

func TestAccountsAndDefault(t *testing.T) {
	a := newTestApp(t)
	runCmd(t, a, "account", "add", "-id", "cash", "-name", "Cash", "-default")
	runCmd(t, a, "account", "add", "-id", "bank", "-name", "Bank")
	runCmd(t, a, "account", "default", "-id", "bank")

	out := runCmd(t, a, "account", "list")
	if !strings.Contains(out, "*bank") || strings.Contains(out, "*cash") {
		t.Errorf("account list = %q", out)
	}

	runCmd(t, a, "tx", "add", "-amount", "1", "-category", "food")
	out = runCmd(t, a, "tx", "list")
	if !strings.Contains(out, "bank") {
		t.Errorf("tx list = %q, want default account", out)
	}
}

func TestPrune(t *testing.T) {
	a := newTestApp(t)
	out := runCmd(t, a, "prune", "-retention", "3")
	if out != "deleted 0 alerts\n" {
		t.Errorf("prune = %q", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	a := newTestApp(t)
	err := run(context.Background(), a, []string{"frobnicate"}, io.Discard)
	if !errors.Is(err, errUsage) {
		t.Errorf("err = %v, want errUsage", err)
	}
	err = run(context.Background(), a, []string{"budget"}, io.Discard)
	if !errors.Is(err, errUsage) {
		t.Errorf("err = %v, want errUsage", err)
	}
}

type recordingSink struct {
	ch chan services.Breach
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan services.Breach, 16)}
}

func (s *recordingSink) DeliverAlerts(_ context.Context, breaches []services.Breach) error {
	for _, b := range breaches {
		s.ch <- b
	}
	return nil
}

func (s *recordingSink) next(t *testing.T) services.Breach {
	t.Helper()
	select {
	case b := <-s.ch:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an alert")
		return services.Breach{}
	}
}

func TestDaemonSeesWritesFromAnotherProcess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "shared.db")
	onSQLite := func(c *config.Config) {
		c.DataBackend = "sqlite"
		c.SQLiteDBPath = path
	}
	daemon := newTestAppWith(t, onSQLite)
	writer := newTestAppWith(t, onSQLite)

	sink := newRecordingSink()
	watcher := worker.NewWatcher(daemon.hub, daemon.budget, daemon.streak)
	watcher.AddAlertSink(sink)
	feed, err := daemon.startWatching(ctx, watcher)
	if err != nil {
		t.Fatalf("startWatching() error = %v", err)
	}
	if feed == nil {
		t.Fatal("sqlite store should feed the watcher from its change log")
	}
	t.Cleanup(func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		feed.Stop(stopCtx)
		watcher.Stop(stopCtx)
	})

	// writes that only reach the writer's own hub
	runCmd(t, writer, "budget", "set", "-category", "food", "-limit", "10")
	if _, err := writer.ledger.RecordTransaction(ctx, core.Transaction{
		Amount:     core.Money{Minor: 900},
		CategoryID: "food",
	}); err != nil {
		t.Fatal(err)
	}

	first := sink.next(t)
	second := sink.next(t)
	if first.Level != 1 || second.Level != 2 {
		t.Errorf("levels = %d, %d; want 1, 2", first.Level, second.Level)
	}
	if first.Text == second.Text {
		t.Errorf("both alerts read %q", first.Text)
	}
	if !strings.Contains(second.Text, "(level 80%, used 90%)") {
		t.Errorf("second alert = %q", second.Text)
	}

	// the fired levels are shared through the store, so the writer has nothing new
	out := runCmd(t, writer, "check")
	if !strings.Contains(out, "no new budget alerts") {
		t.Errorf("writer check = %q", out)
	}
}

func TestMemoryStoreHasNoChangeFeed(t *testing.T) {
	a := newTestApp(t)
	watcher := worker.NewWatcher(a.hub, a.budget, a.streak)
	feed, err := a.startWatching(context.Background(), watcher)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop(context.Background())
	if feed != nil {
		t.Error("memory store has no change log to follow")
	}
}

func TestRecurringCommands(t *testing.T) {
	a := newTestApp(t)
	start := time.Now().UTC().AddDate(0, 0, -14).Format(time.DateOnly)

	out := runCmd(t, a, "recurring", "add", "-name", "Gym", "-amount", "20", "-category", "food",
		"-frequency", "weekly", "-start", start)
	fields := strings.Fields(out)
	if len(fields) < 4 || fields[0] != "added" {
		t.Fatalf("recurring add = %q", out)
	}
	id := strings.TrimSuffix(fields[3], ",")

	if out := runCmd(t, a, "recurring", "run"); out != "created 3 transactions\n" {
		t.Errorf("first run = %q", out)
	}
	if out := runCmd(t, a, "recurring", "run"); out != "created 0 transactions\n" {
		t.Errorf("second run = %q", out)
	}
	if out := runCmd(t, a, "tx", "list"); strings.Count(out, "Gym (recurring)") != 3 {
		t.Errorf("tx list = %q", out)
	}
	if out := runCmd(t, a, "streak"); !strings.HasPrefix(out, "current: 0") {
		t.Errorf("recurring transactions should not count as logging: %q", out)
	}

	out = runCmd(t, a, "recurring", "pause", "-id", id)
	if !strings.Contains(out, "active=false") {
		t.Errorf("pause = %q", out)
	}
	out = runCmd(t, a, "recurring", "list")
	if !strings.Contains(out, "Gym") || !strings.Contains(out, "1 weekly") || !strings.Contains(out, "false") {
		t.Errorf("recurring list = %q", out)
	}
	runCmd(t, a, "recurring", "rm", "-id", id)
	if err := run(context.Background(), a, []string{"recurring", "rm", "-id", id}, io.Discard); err == nil {
		t.Error("removing a missing rule should fail")
	}
	if err := run(context.Background(), a, []string{"recurring", "add", "-name", "X", "-amount", "1", "-frequency", "hourly"}, io.Discard); !errors.Is(err, core.ErrInvalidFrequency) {
		t.Errorf("err = %v, want ErrInvalidFrequency", err)
	}
}

func TestCloseReportsEveryCleanupError(t *testing.T) {
	a := newTestApp(t)
	errFirst := errors.New("first resource")
	errSecond := errors.New("second resource")
	a.cleanup = append(a.cleanup,
		func() error { return errFirst },
		nil,
		func() error { return errSecond },
	)

	err := a.Close()
	if !errors.Is(err, errFirst) || !errors.Is(err, errSecond) {
		t.Errorf("Close() = %v, want both cleanup errors", err)
	}
}
