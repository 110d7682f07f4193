package core

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Level ranks an alert threshold, starting at 1 for the lowest percentage.
type Level int

// Threshold ties a level to the percentage of the monthly limit at which it
// fires.
type Threshold struct {
	Level   Level
	Percent int64
}

// Thresholds is an ordered alert configuration, lowest level first.
type Thresholds []Threshold

// DefaultThresholds alerts at 50%, 80%, 100% and 120% of the limit.
var DefaultThresholds = Thresholds{
	{Level: 1, Percent: 50},
	{Level: 2, Percent: 80},
	{Level: 3, Percent: 100},
	{Level: 4, Percent: 120},
}

// ParseThresholds reads a comma separated list of percentages such as
// "50,80,100,120". Levels are assigned by position, starting at 1.
func ParseThresholds(s string) (Thresholds, error) {
	parts := strings.Split(s, ",")
	out := make(Thresholds, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(p), "%"))
		pct, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a percentage", ErrInvalidThresholds, p)
		}
		out = append(out, Threshold{Level: Level(i + 1), Percent: pct})
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate requires a non-empty list whose levels and percentages are both
// positive and strictly ascending.
func (ts Thresholds) Validate() error {
	if len(ts) == 0 {
		return fmt.Errorf("%w: no thresholds configured", ErrInvalidThresholds)
	}
	for i, t := range ts {
		if t.Level <= 0 {
			return fmt.Errorf("%w: level %d must be positive", ErrInvalidThresholds, t.Level)
		}
		if t.Percent <= 0 {
			return fmt.Errorf("%w: percentage %d must be positive", ErrInvalidThresholds, t.Percent)
		}
		if i == 0 {
			continue
		}
		prev := ts[i-1]
		if t.Level <= prev.Level {
			return fmt.Errorf("%w: level %d follows level %d", ErrInvalidThresholds, t.Level, prev.Level)
		}
		if t.Percent <= prev.Percent {
			return fmt.Errorf("%w: %d%% follows %d%%", ErrInvalidThresholds, t.Percent, prev.Percent)
		}
	}
	return nil
}

// String renders the percentages in the form accepted by ParseThresholds.
func (ts Thresholds) String() string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = strconv.FormatInt(t.Percent, 10)
	}
	return strings.Join(parts, ",")
}

// Evaluator decides which alert levels a monthly spend has newly crossed.
// It holds no state besides its configuration and is safe for concurrent use.
type Evaluator struct {
	thresholds Thresholds
	percent    map[Level]int64
}

// NewEvaluator validates ts and returns an evaluator over a copy of it.
func NewEvaluator(ts Thresholds) (*Evaluator, error) {
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	cp := append(Thresholds(nil), ts...)
	percent := make(map[Level]int64, len(cp))
	for _, t := range cp {
		percent[t.Level] = t.Percent
	}
	return &Evaluator{thresholds: cp, percent: percent}, nil
}

// Thresholds returns a copy of the configuration.
func (e *Evaluator) Thresholds() Thresholds {
	return append(Thresholds(nil), e.thresholds...)
}

// Percent returns the percentage configured for level.
func (e *Evaluator) Percent(level Level) (int64, bool) {
	p, ok := e.percent[level]
	return p, ok
}

// Evaluate returns, in ascending order, every level whose threshold spend has
// reached and that is not in fired. A level is reached when
// spend*100 >= percent*limit. Jumping past several thresholds at once returns
// all of them so none is skipped. A limit <= 0 never alerts.
func (e *Evaluator) Evaluate(spend, limit Money, fired []Level) []Level {
	if limit.Minor <= 0 || spend.Minor <= 0 {
		return nil
	}
	already := make(map[Level]struct{}, len(fired))
	for _, l := range fired {
		already[l] = struct{}{}
	}

	var out []Level
	for _, t := range e.thresholds {
		if !reached(spend.Minor, limit.Minor, t.Percent) {
			// percentages ascend, nothing further up can be reached
			break
		}
		if _, ok := already[t.Level]; ok {
			continue
		}
		out = append(out, t.Level)
	}
	return out
}

// reached reports spend*100 >= percent*limit using 128-bit products.
// All arguments are positive.
func reached(spend, limit, percent int64) bool {
	lh, ll := bits.Mul64(uint64(spend), 100)
	rh, rl := bits.Mul64(uint64(percent), uint64(limit))
	if lh != rh {
		return lh > rh
	}
	return ll >= rl
}
