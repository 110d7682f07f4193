package core

import (
	"fmt"
	"time"
)

// MonthKey identifies a calendar month in UTC. It buckets transactions for
// aggregation and scopes alert deduplication.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthOf maps a UTC instant in epoch milliseconds to its calendar month.
// The conversion never consults the local zone, so the same transaction lands
// in the same month on every device.
func MonthOf(timestampUTCMillis int64) MonthKey {
	return MonthOfTime(time.UnixMilli(timestampUTCMillis))
}

// MonthOfTime returns the UTC calendar month containing t.
func MonthOfTime(t time.Time) MonthKey {
	y, m, _ := t.UTC().Date()
	return MonthKey{Year: y, Month: m}
}

// ParseMonthKey parses the "YYYY-MM" form produced by String.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthOfTime(t), nil
}

// String renders the key as "YYYY-MM". For years 0..9999 the lexical order of
// the rendered form equals chronological order, which the SQL store relies on.
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Compare returns -1, 0 or +1 depending on whether k is before, equal to or
// after o.
func (k MonthKey) Compare(o MonthKey) int {
	switch {
	case k.Year < o.Year:
		return -1
	case k.Year > o.Year:
		return 1
	case k.Month < o.Month:
		return -1
	case k.Month > o.Month:
		return 1
	default:
		return 0
	}
}

// Before reports whether k is strictly earlier than o.
func (k MonthKey) Before(o MonthKey) bool {
	return k.Compare(o) < 0
}

// IsZero reports whether the key was never set.
func (k MonthKey) IsZero() bool {
	return k.Year == 0 && k.Month == 0
}

// AddMonths returns the key n months later (earlier for negative n).
func (k MonthKey) AddMonths(n int) MonthKey {
	return MonthOfTime(time.Date(k.Year, k.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC))
}

// Bounds returns the half-open [start, end) range of the month in epoch
// milliseconds.
func (k MonthKey) Bounds() (startMillis, endMillis int64) {
	start := time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
	return start.UnixMilli(), start.AddDate(0, 1, 0).UnixMilli()
}

// EpochDayOf returns the number of whole UTC days between the Unix epoch and t.
func EpochDayOf(t time.Time) int {
	y, m, d := t.UTC().Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(midnight.Unix() / 86400)
}
