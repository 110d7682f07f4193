package core

import (
	"testing"
	"time"
)

func ms(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC).UnixMilli()
}

func TestMonthlySpend(t *testing.T) {
	march := MonthKey{Year: 2024, Month: time.March}
	april := MonthKey{Year: 2024, Month: time.April}
	txs := []Transaction{
		{ID: "1", Amount: Money{Minor: 500}, TimestampUTCMillis: ms(2024, 3, 2), CategoryID: "c"},
		{ID: "2", Amount: Money{Minor: 2000}, TimestampUTCMillis: ms(2024, 3, 5), CategoryID: "c", IsIncome: true},
		{ID: "3", Amount: Money{Minor: 300}, TimestampUTCMillis: ms(2024, 4, 1), CategoryID: "c"},
	}

	tests := []struct {
		name     string
		txs      []Transaction
		category string
		month    MonthKey
		want     int64
	}{
		{"income does not reduce spend", txs, "c", march, 500},
		{"other month", txs, "c", april, 300},
		{"other category", txs, "d", march, 0},
		{"no transactions", nil, "c", march, 0},
		{
			name: "negative amount contributes nothing",
			txs: append(append([]Transaction(nil), txs...),
				Transaction{ID: "4", Amount: Money{Minor: -400}, TimestampUTCMillis: ms(2024, 3, 9), CategoryID: "c"}),
			category: "c",
			month:    march,
			want:     500,
		},
		{
			name: "uncategorised transactions are skipped",
			txs: []Transaction{
				{ID: "5", Amount: Money{Minor: 100}, TimestampUTCMillis: ms(2024, 3, 9)},
			},
			category: "c",
			month:    march,
			want:     0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthlySpend(tt.txs, tt.category, tt.month); got.Minor != tt.want {
				t.Errorf("MonthlySpend() = %d, want %d", got.Minor, tt.want)
			}
		})
	}
}

func TestMonthlySpendGrowsWithExpenses(t *testing.T) {
	march := MonthKey{Year: 2024, Month: time.March}
	var txs []Transaction
	last := int64(0)
	for i, amt := range []int64{100, 250, 1, 999} {
		txs = append(txs, Transaction{ID: string(rune('a' + i)), Amount: Money{Minor: amt}, TimestampUTCMillis: ms(2024, 3, i+1), CategoryID: "c"})
		got := MonthlySpend(txs, "c", march).Minor
		if got <= last {
			t.Fatalf("spend did not increase: %d -> %d", last, got)
		}
		last = got
	}
	if last != 1350 {
		t.Fatalf("expected 1350, got %d", last)
	}
}

func TestSpendByMonth(t *testing.T) {
	txs := []Transaction{
		{ID: "1", Amount: Money{Minor: 500}, TimestampUTCMillis: ms(2024, 3, 2), CategoryID: "c"},
		{ID: "2", Amount: Money{Minor: 250}, TimestampUTCMillis: ms(2024, 3, 20), CategoryID: "c"},
		{ID: "3", Amount: Money{Minor: 300}, TimestampUTCMillis: ms(2024, 4, 1), CategoryID: "c"},
		{ID: "4", Amount: Money{Minor: 900}, TimestampUTCMillis: ms(2024, 4, 1), CategoryID: "c", IsIncome: true},
	}
	got := SpendByMonth(txs, "c")
	if len(got) != 2 {
		t.Fatalf("expected 2 months, got %v", got)
	}
	if got[MonthKey{Year: 2024, Month: time.March}].Minor != 750 {
		t.Errorf("march: %v", got)
	}
	if got[MonthKey{Year: 2024, Month: time.April}].Minor != 300 {
		t.Errorf("april: %v", got)
	}
}
