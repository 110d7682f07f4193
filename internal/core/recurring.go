package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frequency is the calendar unit a recurring rule repeats in.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// Frequencies lists every supported frequency.
func Frequencies() []Frequency {
	return []Frequency{Daily, Weekly, Monthly, Yearly}
}

// ParseFrequency accepts any casing of a supported frequency.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	return f, nil
}

func (f Frequency) IsValid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

var (
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidInterval  = errors.New("invalid interval")
	ErrInvalidSchedule  = errors.New("invalid recurring schedule")
)

// RecurringRule is a template that materialises a transaction every Interval
// units of Frequency, starting at StartUTCMillis. NextRunUTCMillis is the
// next occurrence still to be recorded. A zero EndUTCMillis means no end and
// a zero LastRunUTCMillis means the rule never ran.
type RecurringRule struct {
	ID         string
	Name       string
	Amount     Money
	Note       string
	CategoryID string
	AccountID  string
	IsIncome   bool

	Frequency Frequency
	Interval  int

	StartUTCMillis   int64
	NextRunUTCMillis int64
	LastRunUTCMillis int64
	EndUTCMillis     int64
	Active           bool
}

func (r RecurringRule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if len(r.Name) > 100 || len(r.Note) > 200 {
		return errors.New("name or note too long (max 100 and 200 characters)")
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if !r.Frequency.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Frequency)
	}
	if r.Interval < 1 {
		return ErrInvalidInterval
	}
	if r.StartUTCMillis <= 0 || r.NextRunUTCMillis < r.StartUTCMillis {
		return ErrInvalidSchedule
	}
	if r.EndUTCMillis != 0 && r.EndUTCMillis < r.StartUTCMillis {
		return fmt.Errorf("%w: ends before it starts", ErrInvalidSchedule)
	}
	return nil
}

// Start returns the anchor instant in UTC. Monthly and yearly rules keep its
// day of month.
func (r RecurringRule) Start() time.Time {
	return time.UnixMilli(r.StartUTCMillis).UTC()
}

// NextRun returns the next pending occurrence in UTC.
func (r RecurringRule) NextRun() time.Time {
	return time.UnixMilli(r.NextRunUTCMillis).UTC()
}

// Ended reports whether the occurrence at millis falls after the end date.
func (r RecurringRule) Ended(millis int64) bool {
	return r.EndUTCMillis != 0 && millis > r.EndUTCMillis
}

// IsDue reports whether an active rule has an occurrence at or before now
// that is still inside its end date.
func (r RecurringRule) IsDue(now time.Time) bool {
	return r.Active && r.NextRunUTCMillis <= now.UnixMilli() && !r.Ended(r.NextRunUTCMillis)
}

// Transaction builds the ledger line for the occurrence at millis. The caller
// picks the id.
func (r RecurringRule) Transaction(millis int64) Transaction {
	note := r.Note
	if note == "" {
		note = r.Name + " (recurring)"
	}
	return Transaction{
		Amount:             r.Amount,
		TimestampUTCMillis: millis,
		Note:               note,
		CategoryID:         r.CategoryID,
		AccountID:          r.AccountID,
		IsIncome:           r.IsIncome,
	}
}
