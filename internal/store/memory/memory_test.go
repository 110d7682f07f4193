package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spendcraft/internal/core"
	"spendcraft/internal/store"
)

var march = core.MonthKey{Year: 2024, Month: time.March}

func TestRecordIfAbsentAtMostOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := core.BudgetAlert{CategoryID: "food", Level: 2, Month: march}

	first, err := s.RecordIfAbsent(ctx, a)
	if err != nil || !first {
		t.Fatalf("first call: fired=%v err=%v", first, err)
	}
	second, err := s.RecordIfAbsent(ctx, a)
	if err != nil || second {
		t.Fatalf("second call: fired=%v err=%v", second, err)
	}
	if s.AlertCount() != 1 {
		t.Fatalf("expected exactly one record, got %d", s.AlertCount())
	}
}

func TestRecordIfAbsentConcurrent(t *testing.T) {
	s := New()
	a := core.BudgetAlert{CategoryID: "food", Level: 3, Month: march}

	var fired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.RecordIfAbsent(context.Background(), a)
			if err != nil {
				t.Errorf("RecordIfAbsent: %v", err)
			}
			if ok {
				fired.Add(1)
			}
		}()
	}
	wg.Wait()
	if fired.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", fired.Load())
	}
}

func TestPruneBeforeKeepsCutoffAndLater(t *testing.T) {
	s := New()
	ctx := context.Background()
	feb := march.AddMonths(-1)
	apr := march.AddMonths(1)
	for _, m := range []core.MonthKey{feb, march, apr} {
		if _, err := s.RecordIfAbsent(ctx, core.BudgetAlert{CategoryID: "c", Level: 1, Month: m}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.PruneBefore(ctx, march)
	if err != nil || n != 1 {
		t.Fatalf("PruneBefore: n=%d err=%v", n, err)
	}
	for _, m := range []core.MonthKey{march, apr} {
		levels, _ := s.FiredLevels(ctx, "c", m)
		if len(levels) != 1 {
			t.Fatalf("month %s must survive pruning", m)
		}
	}

	// a pruned triple fires again
	again, err := s.RecordIfAbsent(ctx, core.BudgetAlert{CategoryID: "c", Level: 1, Month: feb})
	if err != nil || !again {
		t.Fatalf("pruned alert must fire again: fired=%v err=%v", again, err)
	}
	// an unpruned one still does not
	dup, _ := s.RecordIfAbsent(ctx, core.BudgetAlert{CategoryID: "c", Level: 1, Month: march})
	if dup {
		t.Fatalf("alert at the cutoff month must still be deduplicated")
	}
}

func TestDefaultAccountSwitch(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, a := range []core.Account{
		{ID: "cash", Name: "Cash", IsDefault: true},
		{ID: "bank", Name: "Bank"},
	} {
		if err := s.InsertAccount(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.SetDefaultAccount(ctx, "bank"); err != nil {
		t.Fatalf("SetDefaultAccount: %v", err)
	}
	accounts, _ := s.ListAccounts(ctx)
	defaults := 0
	for _, a := range accounts {
		if a.IsDefault {
			defaults++
		}
	}
	if defaults != 1 || !accounts[0].IsDefault || accounts[0].ID != "bank" {
		t.Fatalf("expected bank as the only default, got %+v", accounts)
	}

	if err := s.DeleteAccount(ctx, "bank"); !errors.Is(err, store.ErrDefaultAccount) {
		t.Fatalf("expected ErrDefaultAccount, got %v", err)
	}
	if err := s.SetDefaultAccount(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCategoryKeepsTransactions(t *testing.T) {
	s := New(core.Category{ID: "food", Name: "Food"})
	ctx := context.Background()
	tx := core.Transaction{ID: "t1", Amount: core.Money{Minor: 100}, TimestampUTCMillis: 1, CategoryID: "food"}
	if err := s.UpsertTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCategory(ctx, "food"); err != nil {
		t.Fatal(err)
	}
	txs, _ := s.ListTransactionsByCategory(ctx, "food")
	if len(txs) != 1 {
		t.Fatalf("transaction must survive category deletion, got %v", txs)
	}
	if _, err := s.GetCategory(ctx, "food"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDaysAscendingAndIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, d := range []int{12, 10, 11, 12} {
		if _, err := s.InsertDay(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	days, _ := s.ListDays(ctx)
	if len(days) != 3 || days[0] != 10 || days[2] != 12 {
		t.Fatalf("unexpected days %v", days)
	}
	inserted, _ := s.InsertDay(ctx, 10)
	if inserted {
		t.Fatalf("duplicate day must not be inserted")
	}
	if ok, _ := s.HasDay(ctx, 11); !ok {
		t.Fatalf("expected day 11 present")
	}
}

func TestNewFromFilesSeedsCategories(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	cats, _ := s.ListCategories(context.Background())
	if len(cats) == 0 {
		t.Fatalf("expected defaults when file missing")
	}

	content := "# header\nfood:Food\nrent\nfood:Food\n\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s = NewFromFiles(dir)
	cats, _ = s.ListCategories(context.Background())
	if len(cats) != 2 || cats[0].ID != "food" || cats[1].Name != "rent" {
		t.Fatalf("unexpected categories %+v", cats)
	}
}

func testRule(id string, next time.Time) core.RecurringRule {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	return core.RecurringRule{
		ID: id, Name: "Rent " + id, Amount: core.Money{Minor: 1000},
		Frequency: core.Monthly, Interval: 1,
		StartUTCMillis: start, NextRunUTCMillis: next.UnixMilli(), Active: true,
	}
}

func TestDueRecurringRules(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	rules := []core.RecurringRule{
		testRule("later", now.AddDate(0, 0, 1)),
		testRule("b", now.AddDate(0, 0, -1)),
		testRule("a", now.AddDate(0, -1, 0)),
		testRule("exact", now),
	}
	paused := testRule("paused", now.AddDate(0, -2, 0))
	paused.Active = false
	rules = append(rules, paused)
	for _, r := range rules {
		if err := s.UpsertRecurringRule(ctx, r); err != nil {
			t.Fatalf("UpsertRecurringRule(%s): %v", r.ID, err)
		}
	}

	due, err := s.DueRecurringRules(ctx, now.UnixMilli())
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range due {
		ids = append(ids, r.ID)
	}
	want := []string{"a", "b", "exact"}
	if len(ids) != len(want) {
		t.Fatalf("due = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("due = %v, want %v", ids, want)
		}
	}

	next := now.AddDate(0, 1, 0).UnixMilli()
	if err := s.AdvanceRecurringRule(ctx, "a", now.UnixMilli(), next, true); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetRecurringRule(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.NextRunUTCMillis != next || got.LastRunUTCMillis != now.UnixMilli() || !got.Active {
		t.Fatalf("advanced rule = %+v", got)
	}
	if err := s.AdvanceRecurringRule(ctx, "missing", 0, next, true); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteRecurringRule(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetRecurringRule(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
