package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spendcraft/internal/core"
	"spendcraft/internal/notify"
	"spendcraft/internal/store"
)

// BudgetStores is the slice of the store the budget engine needs.
type BudgetStores interface {
	store.BudgetStore
	store.AlertStore
	store.CategoryStore
}

// BudgetService evaluates budgets against monthly spend and records alerts
// through the dedup gate.
type BudgetService struct {
	store     BudgetStores
	spend     *SpendCalculator
	evaluator *core.Evaluator
	hub       *notify.Hub
	clock     Clock
}

// NewBudgetService wires the budget engine. hub may be nil, and a nil clock
// means time.Now.
func NewBudgetService(s BudgetStores, spend *SpendCalculator, evaluator *core.Evaluator, hub *notify.Hub, clock Clock) *BudgetService {
	return &BudgetService{
		store:     s,
		spend:     spend,
		evaluator: evaluator,
		hub:       hub,
		clock:     clock,
	}
}

// CurrentMonth is the UTC month the service evaluates.
func (s *BudgetService) CurrentMonth() core.MonthKey {
	return core.MonthOfTime(s.clock.now())
}

// EvaluateBudgetsForCategory compares the category's current-month spend with
// its budget and returns the alerts that fired on this call. A category with
// no budget, or a zero budget, never alerts.
func (s *BudgetService) EvaluateBudgetsForCategory(ctx context.Context, categoryID string) ([]AlertEvent, error) {
	if categoryID == "" {
		return nil, core.ErrEmptyID
	}
	budget, found, err := s.store.GetBudget(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("get budget %s: %w", categoryID, err)
	}
	if !found {
		return nil, nil
	}
	return s.evaluate(ctx, budget, s.CurrentMonth())
}

func (s *BudgetService) evaluate(ctx context.Context, budget core.Budget, month core.MonthKey) ([]AlertEvent, error) {
	if !budget.MonthlyLimit.IsPositive() {
		return nil, nil
	}
	spend, err := s.spend.MonthlySpend(ctx, budget.CategoryID, month)
	if err != nil {
		return nil, err
	}
	fired, err := s.store.FiredLevels(ctx, budget.CategoryID, month)
	if err != nil {
		return nil, fmt.Errorf("fired levels %s %s: %w", budget.CategoryID, month, err)
	}

	var events []AlertEvent
	for _, level := range s.evaluator.Evaluate(spend, budget.MonthlyLimit, fired) {
		alert := core.BudgetAlert{CategoryID: budget.CategoryID, Level: level, Month: month}
		ok, err := s.store.RecordIfAbsent(ctx, alert)
		if err != nil {
			return events, fmt.Errorf("record alert %s/%d/%s: %w", budget.CategoryID, level, month, err)
		}
		if !ok {
			// a concurrent evaluation recorded it first
			continue
		}
		percent, _ := s.evaluator.Percent(level)
		events = append(events, AlertEvent{
			CategoryID: budget.CategoryID,
			Level:      level,
			Percent:    percent,
			Month:      month,
			Spend:      spend,
			Limit:      budget.MonthlyLimit,
		})
	}
	if len(events) > 0 {
		s.publish(notify.Change{Table: notify.Alerts, Key: budget.CategoryID})
	}
	return events, nil
}

// Breach is a fired alert with its rendered message.
type Breach struct {
	AlertEvent
	CategoryName string
	Text         string
}

// CheckBudgetBreaches evaluates every budget for the current month. Failures
// on one category do not stop the others; they are joined into the error.
func (s *BudgetService) CheckBudgetBreaches(ctx context.Context) ([]Breach, error) {
	budgets, err := s.store.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	month := s.CurrentMonth()

	var (
		breaches []Breach
		errs     []error
	)
	for _, b := range budgets {
		events, err := s.evaluate(ctx, b, month)
		if err != nil {
			errs = append(errs, err)
		}
		if len(events) == 0 {
			continue
		}
		name := s.CategoryName(ctx, b.CategoryID)
		for _, e := range events {
			breaches = append(breaches, Breach{AlertEvent: e, CategoryName: name, Text: e.Message(name)})
		}
	}
	return breaches, errors.Join(errs...)
}

// CategoryName resolves a display name, falling back to the id for dangling
// references.
func (s *BudgetService) CategoryName(ctx context.Context, id string) string {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "Category lookup failed", "category_id", id, "error", err)
		}
		return id
	}
	return c.Name
}

// UpsertBudget validates and stores b. The new limit applies to evaluations
// made after this call only; alerts already recorded this month stay.
func (s *BudgetService) UpsertBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := s.store.UpsertBudget(ctx, b); err != nil {
		return fmt.Errorf("upsert budget %s: %w", b.CategoryID, err)
	}
	slog.InfoContext(ctx, "Budget saved", "category_id", b.CategoryID, "limit_minor", b.MonthlyLimit.Minor)
	s.publish(notify.Change{Table: notify.Budgets, Key: b.CategoryID})
	return nil
}

func (s *BudgetService) DeleteBudget(ctx context.Context, categoryID string) error {
	if err := s.store.DeleteBudget(ctx, categoryID); err != nil {
		return fmt.Errorf("delete budget %s: %w", categoryID, err)
	}
	s.publish(notify.Change{Table: notify.Budgets, Key: categoryID})
	return nil
}

// MonthlySpend is the expense total of categoryID in month.
func (s *BudgetService) MonthlySpend(ctx context.Context, categoryID string, month core.MonthKey) (core.Money, error) {
	return s.spend.MonthlySpend(ctx, categoryID, month)
}

func (s *BudgetService) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx)
}

// PruneAlerts deletes alerts older than retentionMonths before the current
// month. A pruned alert can fire again if its month is evaluated later.
func (s *BudgetService) PruneAlerts(ctx context.Context, retentionMonths int) (int64, error) {
	if retentionMonths < 1 {
		return 0, fmt.Errorf("retention must be at least one month, got %d", retentionMonths)
	}
	cutoff := s.CurrentMonth().AddMonths(-retentionMonths)
	n, err := s.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune alerts before %s: %w", cutoff, err)
	}
	slog.InfoContext(ctx, "Pruned budget alerts", "cutoff", cutoff.String(), "deleted", n)
	return n, nil
}

func (s *BudgetService) publish(changes ...notify.Change) {
	if s.hub != nil {
		s.hub.Publish(changes...)
	}
}
