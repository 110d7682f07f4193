package core

import (
	"errors"
	"testing"
	"time"
)

func TestMonthOf(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{"mid month", time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), "2024-03"},
		{"first instant", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-03"},
		{"last instant", time.Date(2024, 3, 31, 23, 59, 59, 999e6, time.UTC), "2024-03"},
		// 00:30 on April 1st in UTC+2 is still March in UTC
		{"zone is ignored", time.Date(2024, 4, 1, 0, 30, 0, 0, time.FixedZone("CEST", 2*3600)), "2024-03"},
		{"year boundary", time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC), "2023-12"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MonthOf(tc.at.UnixMilli()).String(); got != tc.want {
				t.Errorf("MonthOf() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestMonthKeyOrdering(t *testing.T) {
	dec := MonthKey{Year: 2023, Month: time.December}
	jan := MonthKey{Year: 2024, Month: time.January}
	mar := MonthKey{Year: 2024, Month: time.March}

	if !dec.Before(jan) || !jan.Before(mar) {
		t.Fatalf("expected dec < jan < mar")
	}
	if mar.Before(mar) || mar.Compare(mar) != 0 {
		t.Fatalf("a key must equal itself")
	}
	if mar.Compare(dec) != 1 {
		t.Fatalf("expected mar > dec")
	}
	if !(dec.String() < jan.String()) {
		t.Fatalf("string form must sort chronologically")
	}
}

func TestMonthKeyAddMonths(t *testing.T) {
	k := MonthKey{Year: 2024, Month: time.February}
	if got := k.AddMonths(-2).String(); got != "2023-12" {
		t.Errorf("AddMonths(-2) = %s", got)
	}
	if got := k.AddMonths(11).String(); got != "2025-01" {
		t.Errorf("AddMonths(11) = %s", got)
	}
	if got := k.AddMonths(0); got != k {
		t.Errorf("AddMonths(0) = %v", got)
	}
}

func TestMonthKeyBounds(t *testing.T) {
	start, end := MonthKey{Year: 2024, Month: time.February}.Bounds()
	if start != time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("unexpected start %d", start)
	}
	if end != time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("unexpected end %d", end)
	}
	if MonthOf(end-1).String() != "2024-02" || MonthOf(end).String() != "2024-03" {
		t.Errorf("bounds must be half-open")
	}
}

func TestParseMonthKey(t *testing.T) {
	k, err := ParseMonthKey("2024-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != (MonthKey{Year: 2024, Month: time.March}) {
		t.Fatalf("unexpected key %v", k)
	}
	for _, bad := range []string{"", "2024-13", "2024/03", "march"} {
		if _, err := ParseMonthKey(bad); !errors.Is(err, ErrInvalidMonthKey) {
			t.Errorf("%q: expected ErrInvalidMonthKey, got %v", bad, err)
		}
	}
}

func TestEpochDayOf(t *testing.T) {
	if got := EpochDayOf(time.Date(1970, 1, 1, 23, 59, 0, 0, time.UTC)); got != 0 {
		t.Errorf("epoch day 0, got %d", got)
	}
	if got := EpochDayOf(time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)); got != 1 {
		t.Errorf("epoch day 1, got %d", got)
	}
	// 2024-03-15 is day 19797
	if got := EpochDayOf(time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)); got != 19797 {
		t.Errorf("expected 19797, got %d", got)
	}
}
