// Package core holds the value types of the ledger and the pure budget and
// streak engine that runs over them.
//
// This file contains the minor-unit Money type together with parsing and
// display helpers. Every calculation in the engine is done on int64 minor
// units; decimals only appear at the input and output edges.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed amount expressed in minor currency units (cents).
type Money struct {
	Minor int64
}

// Zero is the empty amount.
var Zero = Money{}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Minor: m.Minor + o.Minor}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{Minor: m.Minor - o.Minor}
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Minor > 0
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Minor == 0
}

// IsNegative reports whether the amount is strictly below zero.
func (m Money) IsNegative() bool {
	return m.Minor < 0
}

// Validate rejects amounts that cannot be recorded as a transaction.
func (m Money) Validate() error {
	if m.Minor <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the amount in major units, e.g. 1234 -> 12.34.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Minor, -2)
}

// String formats the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ParseDecimalToMinor converts a user supplied decimal string to minor units.
//
// Both dot (12.34) and comma (12,34) separators are accepted and the third
// fractional digit is rounded half-up. Signs, zero and values that overflow
// int64 are rejected with ErrInvalidAmount.
//
// Examples:
//   ParseDecimalToMinor("12.34")  -> 1234, nil
//   ParseDecimalToMinor("12,345") -> 1235, nil
//   ParseDecimalToMinor("-1")     -> 0, ErrInvalidAmount
func ParseDecimalToMinor(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	// decimal accepts exponents; amounts typed by a person never carry one
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	minor := d.Shift(2).Round(0)
	if minor.GreaterThan(maxMinor) {
		return 0, ErrInvalidAmount
	}
	cents := minor.IntPart()
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}
