// This file holds one occurrence step per recurrence frequency. Monthly and
// yearly steps re-anchor on the rule's start day every time, so a rule that
// starts on the 31st clamps to shorter months without drifting.

package services

import (
	"fmt"
	"time"

	"spendcraft/internal/core"
)

// RecurrenceStep computes the occurrence that follows prev for a rule
// anchored at start and repeating every interval units.
type RecurrenceStep interface {
	Next(prev, start time.Time, interval int) time.Time
}

type DailyStep struct{}

func (DailyStep) Next(prev, _ time.Time, interval int) time.Time {
	return prev.AddDate(0, 0, interval)
}

type WeeklyStep struct{}

func (WeeklyStep) Next(prev, _ time.Time, interval int) time.Time {
	return prev.AddDate(0, 0, 7*interval)
}

// MonthlyStep lands on the start day, or on the last day of months that are
// too short.
type MonthlyStep struct{}

func (MonthlyStep) Next(prev, start time.Time, interval int) time.Time {
	return clampedDate(prev.Year(), prev.Month()+time.Month(interval), start)
}

// YearlyStep lands on the start month and day; 29 February becomes the 28th
// in common years.
type YearlyStep struct{}

func (YearlyStep) Next(prev, start time.Time, interval int) time.Time {
	return clampedDate(prev.Year()+interval, start.Month(), start)
}

// clampedDate builds year/month at the start's day and clock time. month may
// overflow 12; it is normalised first.
func clampedDate(year int, month time.Month, start time.Time) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := start.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day,
		start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), time.UTC)
}

var recurrenceSteps = map[core.Frequency]RecurrenceStep{
	core.Daily:   DailyStep{},
	core.Weekly:  WeeklyStep{},
	core.Monthly: MonthlyStep{},
	core.Yearly:  YearlyStep{},
}

// StepFor returns the step for frequency.
func StepFor(frequency core.Frequency) (RecurrenceStep, error) {
	step, ok := recurrenceSteps[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return step, nil
}

// Occurrences lists, oldest first, the pending occurrences of r at or before
// now and inside its end date, at most limit of them. next is the first
// occurrence left pending afterwards.
func Occurrences(r core.RecurringRule, now time.Time, limit int) (due []int64, next int64, err error) {
	step, err := StepFor(r.Frequency)
	if err != nil {
		return nil, 0, err
	}
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}

	start := r.Start()
	at := r.NextRun()
	for len(due) < limit && !at.After(now) && !r.Ended(at.UnixMilli()) {
		due = append(due, at.UnixMilli())
		at = step.Next(at, start, interval)
	}
	return due, at.UnixMilli(), nil
}

// FirstOnOrAfter returns the first occurrence of r that is not before t.
func FirstOnOrAfter(r core.RecurringRule, t time.Time) (int64, error) {
	step, err := StepFor(r.Frequency)
	if err != nil {
		return 0, err
	}
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}
	start := r.Start()
	at := r.NextRun()
	for at.Before(t) {
		at = step.Next(at, start, interval)
	}
	return at.UnixMilli(), nil
}
