package core

import (
	"errors"
	"testing"
	"time"
)

func TestRecurringRuleValidate(t *testing.T) {
	start := time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC).UnixMilli()
	good := RecurringRule{
		ID: "r1", Name: "Rent", Amount: Money{Minor: 90000},
		Frequency: Monthly, Interval: 1,
		StartUTCMillis: start, NextRunUTCMillis: start, Active: true,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		name   string
		mutate func(r *RecurringRule)
		want   error
	}{
		{"no id", func(r *RecurringRule) { r.ID = "" }, ErrEmptyID},
		{"no name", func(r *RecurringRule) { r.Name = " " }, ErrEmptyName},
		{"zero amount", func(r *RecurringRule) { r.Amount = Money{} }, ErrInvalidAmount},
		{"bad frequency", func(r *RecurringRule) { r.Frequency = "hourly" }, ErrInvalidFrequency},
		{"zero interval", func(r *RecurringRule) { r.Interval = 0 }, ErrInvalidInterval},
		{"no start", func(r *RecurringRule) { r.StartUTCMillis, r.NextRunUTCMillis = 0, 0 }, ErrInvalidSchedule},
		{"next before start", func(r *RecurringRule) { r.NextRunUTCMillis = start - 1 }, ErrInvalidSchedule},
		{"ends before start", func(r *RecurringRule) { r.EndUTCMillis = start - 1 }, ErrInvalidSchedule},
	}
	for _, tc := range bads {
		t.Run(tc.name, func(t *testing.T) {
			r := good
			tc.mutate(&r)
			if err := r.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseFrequency(t *testing.T) {
	for _, f := range Frequencies() {
		got, err := ParseFrequency(" " + string(f) + " ")
		if err != nil || got != f {
			t.Fatalf("ParseFrequency(%q) = %q, %v", f, got, err)
		}
	}
	if got, err := ParseFrequency("MONTHLY"); err != nil || got != Monthly {
		t.Fatalf("ParseFrequency(MONTHLY) = %q, %v", got, err)
	}
	if _, err := ParseFrequency("fortnightly"); !errors.Is(err, ErrInvalidFrequency) {
		t.Fatalf("expected ErrInvalidFrequency, got %v", err)
	}
}

func TestRecurringRuleIsDue(t *testing.T) {
	next := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	r := RecurringRule{NextRunUTCMillis: next.UnixMilli(), Active: true}

	if r.IsDue(next.Add(-time.Millisecond)) {
		t.Error("due before the next run")
	}
	if !r.IsDue(next) {
		t.Error("not due at the next run")
	}

	paused := r
	paused.Active = false
	if paused.IsDue(next.AddDate(0, 1, 0)) {
		t.Error("paused rule is due")
	}

	ended := r
	ended.EndUTCMillis = next.Add(-time.Hour).UnixMilli()
	if ended.IsDue(next.AddDate(0, 1, 0)) {
		t.Error("rule past its end date is due")
	}
}

func TestRecurringRuleTransaction(t *testing.T) {
	r := RecurringRule{Name: "Gym", Amount: Money{Minor: 2500}, CategoryID: "health", AccountID: "bank"}
	at := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC).UnixMilli()

	tx := r.Transaction(at)
	if tx.Note != "Gym (recurring)" || tx.Amount.Minor != 2500 || tx.TimestampUTCMillis != at {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if tx.CategoryID != "health" || tx.AccountID != "bank" || tx.IsIncome {
		t.Fatalf("unexpected references %+v", tx)
	}

	r.Note = "monthly membership"
	if got := r.Transaction(at).Note; got != "monthly membership" {
		t.Fatalf("note = %q", got)
	}
}
