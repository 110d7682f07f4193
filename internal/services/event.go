package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"spendcraft/internal/core"
)

// AlertEvent is a budget alert that passed the dedup gate.
type AlertEvent struct {
	CategoryID string
	Level      core.Level
	Percent    int64 // configured threshold percentage of Level
	Month      core.MonthKey
	Spend      core.Money
	Limit      core.Money
}

// UsedPercent is spend as a whole percentage of the limit, rounded down.
func (e AlertEvent) UsedPercent() int64 {
	if e.Limit.Minor <= 0 {
		return 0
	}
	return e.Spend.Decimal().Mul(decimal.NewFromInt(100)).Div(e.Limit.Decimal()).Floor().IntPart()
}

// Exceeded reports whether the alert is at or past the limit itself.
func (e AlertEvent) Exceeded() bool {
	return e.Percent >= 100
}

// Message renders the alert for display. name is the category's display name.
// The crossed threshold is part of the text, so two levels fired by one jump
// read differently.
func (e AlertEvent) Message(name string) string {
	if name == "" {
		name = e.CategoryID
	}
	kind := "warning"
	if e.Exceeded() {
		kind = "exceeded"
	}
	return fmt.Sprintf("Budget %s for %s! Spent: %s, Budget: %s (level %d%%, used %d%%)",
		kind, name, e.Spend, e.Limit, e.Percent, e.UsedPercent())
}
