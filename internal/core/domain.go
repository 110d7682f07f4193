package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Transaction is one ledger line. CategoryID and AccountID are optional;
	// an empty string means no reference. References are by value and may
	// dangle after the referenced row is deleted.
	Transaction struct {
		ID                 string
		Amount             Money
		TimestampUTCMillis int64
		Note               string
		CategoryID         string
		AccountID          string
		IsIncome           bool
	}

	Category struct {
		ID   string
		Name string
		Icon string // optional
	}

	// Account is a wallet or bank account. Exactly one account is the default
	// at any time; the store switches it atomically.
	Account struct {
		ID        string
		Name      string
		IsDefault bool
	}

	// Budget is the monthly spending limit for one category. The category does
	// not need to exist yet.
	Budget struct {
		CategoryID   string
		MonthlyLimit Money
	}

	// BudgetAlert records that the alert for (category, level, month) has
	// already been emitted.
	BudgetAlert struct {
		CategoryID string
		Level      Level
		Month      MonthKey
	}

	// DailyEntry marks a UTC day, as epoch day, on which the user logged
	// activity.
	DailyEntry struct {
		EpochDay int
	}

	Streak struct {
		Current int
		Longest int
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidLimit      = errors.New("invalid budget limit")
	ErrInvalidThresholds = errors.New("invalid alert thresholds")
	ErrInvalidMonthKey   = errors.New("invalid month key")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrEmptyID           = errors.New("empty id")
	ErrEmptyName         = errors.New("empty name")
)

// Time returns the transaction instant in UTC.
func (t Transaction) Time() time.Time {
	return time.UnixMilli(t.TimestampUTCMillis).UTC()
}

// Month returns the calendar month the transaction is bucketed in.
func (t Transaction) Month() MonthKey {
	return MonthOf(t.TimestampUTCMillis)
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.TimestampUTCMillis <= 0 {
		return ErrInvalidTimestamp
	}
	if len(t.Note) > 200 {
		return errors.New("note too long (max 200 characters)")
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Validate rejects a negative limit. A zero limit is legal and never alerts.
func (b Budget) Validate() error {
	if strings.TrimSpace(b.CategoryID) == "" {
		return ErrEmptyID
	}
	if b.MonthlyLimit.IsNegative() {
		return ErrInvalidLimit
	}
	return nil
}

func (a BudgetAlert) Validate() error {
	if strings.TrimSpace(a.CategoryID) == "" {
		return ErrEmptyID
	}
	if a.Level <= 0 {
		return ErrInvalidThresholds
	}
	if a.Month.IsZero() {
		return ErrInvalidMonthKey
	}
	return nil
}
