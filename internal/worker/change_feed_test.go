package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"spendcraft/internal/core"
	"spendcraft/internal/notify"
	"spendcraft/internal/store"
)

// fakeChangeLog stands in for the trigger-maintained table of the SQLite
// store.
type fakeChangeLog struct {
	mu      sync.Mutex
	records []store.ChangeRecord
	nextID  int64
}

func (l *fakeChangeLog) append(table, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.records = append(l.records, store.ChangeRecord{ID: l.nextID, Table: table, Key: key})
}

func (l *fakeChangeLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *fakeChangeLog) LatestChangeID(context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextID, nil
}

func (l *fakeChangeLog) ChangesSince(_ context.Context, afterID int64, limit int) ([]store.ChangeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []store.ChangeRecord
	for _, r := range l.records {
		if r.ID > afterID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *fakeChangeLog) PruneChanges(_ context.Context, throughID int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.records[:0]
	var n int64
	for _, r := range l.records {
		if r.ID <= throughID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	l.records = kept
	return n, nil
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
}

func TestChangeFeedSeekSkipsOlderRecords(t *testing.T) {
	ctx := context.Background()
	log := &fakeChangeLog{}
	log.append("transactions", "food")
	log.append("budgets", "food")

	hub := notify.NewHub()
	defer hub.Close()

	feed := NewChangeFeed(log, hub, nil, time.Hour)
	if err := feed.Seek(ctx); err != nil {
		t.Fatal(err)
	}
	if feed.Cursor() != 2 || log.count() != 0 {
		t.Fatalf("cursor = %d, records left = %d; want 2, 0", feed.Cursor(), log.count())
	}
	if n, err := feed.Poll(ctx); err != nil || n != 0 {
		t.Fatalf("Poll() = %d, %v; want nothing after seek", n, err)
	}
}

func TestChangeFeedPollPublishesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	log := &fakeChangeLog{}
	hub := notify.NewHub()
	defer hub.Close()
	sub := hub.Subscribe()
	defer sub.Close()
	spend := &recordingInvalidator{}

	feed := NewChangeFeed(log, hub, spend, time.Hour)
	for i := 0; i < changeBatch+5; i++ {
		log.append("transactions", "food")
	}
	log.append("budgets", "transport")
	log.append("daily_entries", "19797")
	log.append("transactions", "")

	n, err := feed.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != changeBatch+8 {
		t.Fatalf("read %d records, want %d", n, changeBatch+8)
	}
	if log.count() != 0 {
		t.Errorf("%d records left after poll, want 0", log.count())
	}

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	changes, err := sub.Next(waitCtx)
	if err != nil {
		t.Fatal(err)
	}
	want := []notify.Change{
		{Table: notify.Transactions, Key: "food"},
		{Table: notify.Budgets, Key: "transport"},
		{Table: notify.DailyEntries, Key: "19797"},
		{Table: notify.Transactions, Key: ""},
	}
	if len(changes) != len(want) {
		t.Fatalf("changes = %+v, want %+v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, changes[i], want[i])
		}
	}

	spend.mu.Lock()
	defer spend.mu.Unlock()
	for _, id := range spend.ids {
		if id != "food" {
			t.Errorf("invalidated %q, only transaction categories should be", id)
		}
	}
	if len(spend.ids) == 0 {
		t.Error("spend for food was not invalidated")
	}
}

func TestChangeFeedCarriesExternalWritesToWatcher(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if err := f.budget.UpsertBudget(ctx, core.Budget{CategoryID: "food", MonthlyLimit: core.Money{Minor: 1000}}); err != nil {
		t.Fatal(err)
	}

	log := &fakeChangeLog{}
	feed := NewChangeFeed(log, f.hub, nil, 10*time.Millisecond)
	if err := feed.Seek(ctx); err != nil {
		t.Fatal(err)
	}
	f.start(t)
	receive(t, f.sink.streaks)
	if err := feed.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := feed.Stop(context.Background()); err != nil {
			t.Errorf("feed Stop() = %v", err)
		}
	})
	if err := feed.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	// another process writes straight to the store; only the log sees it
	tx := core.Transaction{ID: "ext-1", Amount: core.Money{Minor: 900}, CategoryID: "food",
		TimestampUTCMillis: fixedNow.UnixMilli()}
	if err := f.store.UpsertTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}
	log.append("transactions", "food")

	first := receive(t, f.sink.alerts)
	second := receive(t, f.sink.alerts)
	if first.Level != 1 || second.Level != 2 {
		t.Errorf("levels = %d, %d; want 1, 2", first.Level, second.Level)
	}
	if first.Text == second.Text {
		t.Errorf("alerts for different levels share the text %q", first.Text)
	}
}
