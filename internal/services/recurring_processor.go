package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"spendcraft/internal/core"
	"spendcraft/internal/store"
)

// maxCatchUp bounds the occurrences one rule may materialise in a single run.
const maxCatchUp = 366

// occurrenceNamespace derives stable transaction ids from (rule, occurrence),
// so re-running an interrupted pass overwrites instead of duplicating.
var occurrenceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("spendcraft:recurring"))

// RecurringProcessor turns due recurring rules into transactions. Every
// transaction goes through the ledger, so it invalidates cached spend and
// reaches the budget watcher like any other write.
type RecurringProcessor struct {
	rules  store.RecurringStore
	ledger *LedgerService
	clock  Clock
}

// NewRecurringProcessor records through ledger. A nil clock means time.Now.
func NewRecurringProcessor(rules store.RecurringStore, ledger *LedgerService, clock Clock) *RecurringProcessor {
	return &RecurringProcessor{rules: rules, ledger: ledger, clock: clock}
}

// ProcessDue materialises every pending occurrence of every due rule and
// returns how many transactions it recorded. A failing rule keeps its failed
// occurrence pending and does not stop the others.
func (p *RecurringProcessor) ProcessDue(ctx context.Context) (int, error) {
	if p.rules == nil || p.ledger == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	now := p.clock.now()

	rules, err := p.rules.DueRecurringRules(ctx, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("list due recurring rules: %w", err)
	}
	if len(rules) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing recurring rules", "due", len(rules), "now", now)

	created := 0
	var errs []error
	for _, r := range rules {
		n, err := p.processRule(ctx, r, now)
		created += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring rule", "rule_id", r.ID, "error", err)
			errs = append(errs, fmt.Errorf("rule %s: %w", r.ID, err))
		}
	}

	slog.InfoContext(ctx, "Recurring rule processing complete",
		"created", created,
		"rules", len(rules))
	return created, errors.Join(errs...)
}

func (p *RecurringProcessor) processRule(ctx context.Context, r core.RecurringRule, now time.Time) (int, error) {
	due, next, err := Occurrences(r, now, maxCatchUp)
	if err != nil {
		return 0, err
	}

	created := 0
	last := r.LastRunUTCMillis
	for _, at := range due {
		tx := r.Transaction(at)
		tx.ID = OccurrenceID(r.ID, at)
		if _, err := p.ledger.record(ctx, tx, false); err != nil {
			if aerr := p.rules.AdvanceRecurringRule(ctx, r.ID, last, at, true); aerr != nil {
				return created, errors.Join(err, aerr)
			}
			return created, err
		}
		created++
		last = at
	}

	active := !r.Ended(next)
	if err := p.rules.AdvanceRecurringRule(ctx, r.ID, last, next, active); err != nil {
		return created, fmt.Errorf("advance: %w", err)
	}
	if created > 0 {
		slog.InfoContext(ctx, "Created transactions from recurring rule",
			"rule_id", r.ID,
			"name", r.Name,
			"count", created,
			"amount_minor", r.Amount.Minor,
			"frequency", r.Frequency)
	}
	if !active {
		slog.InfoContext(ctx, "Recurring rule reached its end date", "rule_id", r.ID)
	}
	return created, nil
}

// OccurrenceID is the transaction id of rule's occurrence at millis.
func OccurrenceID(ruleID string, millis int64) string {
	return uuid.NewSHA1(occurrenceNamespace, []byte(ruleID+"@"+strconv.FormatInt(millis, 10))).String()
}

// AddRule stores a new active rule. A missing id gets a uuid, a zero interval
// becomes 1 and a zero start means now. The first occurrence is the start
// itself, so a start in the past is caught up on the next run.
func (p *RecurringProcessor) AddRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Interval == 0 {
		r.Interval = 1
	}
	if r.StartUTCMillis == 0 {
		r.StartUTCMillis = p.clock.now().UnixMilli()
	}
	if r.NextRunUTCMillis == 0 {
		r.NextRunUTCMillis = r.StartUTCMillis
	}
	r.LastRunUTCMillis = 0
	r.Active = true
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if err := p.rules.UpsertRecurringRule(ctx, r); err != nil {
		return core.RecurringRule{}, fmt.Errorf("save recurring rule: %w", err)
	}
	slog.InfoContext(ctx, "Recurring rule added", "rule_id", r.ID, "frequency", r.Frequency, "next_run", r.NextRun())
	return r, nil
}

// SetRuleActive pauses or resumes a rule. A resumed rule skips the
// occurrences it missed while paused.
func (p *RecurringProcessor) SetRuleActive(ctx context.Context, id string, active bool) (core.RecurringRule, error) {
	r, err := p.rules.GetRecurringRule(ctx, id)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("get recurring rule %s: %w", id, err)
	}
	if r.Active == active {
		return r, nil
	}
	if active {
		next, err := FirstOnOrAfter(r, p.clock.now())
		if err != nil {
			return core.RecurringRule{}, err
		}
		r.NextRunUTCMillis = next
	}
	r.Active = active
	if err := p.rules.UpsertRecurringRule(ctx, r); err != nil {
		return core.RecurringRule{}, fmt.Errorf("save recurring rule: %w", err)
	}
	return r, nil
}

func (p *RecurringProcessor) DeleteRule(ctx context.Context, id string) error {
	if err := p.rules.DeleteRecurringRule(ctx, id); err != nil {
		return fmt.Errorf("delete recurring rule %s: %w", id, err)
	}
	return nil
}

func (p *RecurringProcessor) ListRules(ctx context.Context) ([]core.RecurringRule, error) {
	return p.rules.ListRecurringRules(ctx)
}
