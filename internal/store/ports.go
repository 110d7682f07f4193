// Package store declares the narrow persistence ports the budget and streak
// engine consumes. Each entity gets its own interface so callers depend only
// on the capability they use.
package store

import (
	"context"
	"errors"

	"spendcraft/internal/core"
)

// ErrNotFound is returned by single-row reads when no row matches.
var ErrNotFound = errors.New("not found")

// ErrDefaultAccount is returned when deleting the account currently marked
// as default.
var ErrDefaultAccount = errors.New("cannot delete the default account")

type (
	TransactionStore interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		ListTransactionsByCategory(ctx context.Context, categoryID string) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		UpsertTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error
	}

	// CategoryStore deletes categories without touching the transactions that
	// reference them.
	CategoryStore interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		GetCategory(ctx context.Context, id string) (core.Category, error)
		UpsertCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, id string) error
	}

	AccountStore interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
		InsertAccount(ctx context.Context, a core.Account) error
		// DefaultAccount returns ErrNotFound when no default is set.
		DefaultAccount(ctx context.Context) (core.Account, error)
		// SetDefaultAccount clears the previous default and marks id in a
		// single atomic step.
		SetDefaultAccount(ctx context.Context, id string) error
		DeleteAccount(ctx context.Context, id string) error
	}

	BudgetStore interface {
		ListBudgets(ctx context.Context) ([]core.Budget, error)
		// GetBudget reports found=false, with no error, when the category has
		// no budget.
		GetBudget(ctx context.Context, categoryID string) (b core.Budget, found bool, err error)
		UpsertBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, categoryID string) error
	}

	// AlertStore is the dedup gate for budget alerts.
	AlertStore interface {
		// RecordIfAbsent inserts the alert and returns true, or returns false
		// when the same (category, level, month) is already recorded. The
		// check and the insert are one atomic step.
		RecordIfAbsent(ctx context.Context, a core.BudgetAlert) (fired bool, err error)
		FiredLevels(ctx context.Context, categoryID string, month core.MonthKey) ([]core.Level, error)
		// PruneBefore deletes alerts whose month is strictly before oldest.
		PruneBefore(ctx context.Context, oldest core.MonthKey) (deleted int64, err error)
	}

	DailyEntryStore interface {
		// ListDays returns every logged epoch day in ascending order.
		ListDays(ctx context.Context) ([]int, error)
		// InsertDay is idempotent and reports whether a new marker was added.
		InsertDay(ctx context.Context, epochDay int) (inserted bool, err error)
		HasDay(ctx context.Context, epochDay int) (bool, error)
	}

	RecurringStore interface {
		ListRecurringRules(ctx context.Context) ([]core.RecurringRule, error)
		GetRecurringRule(ctx context.Context, id string) (core.RecurringRule, error)
		UpsertRecurringRule(ctx context.Context, r core.RecurringRule) error
		DeleteRecurringRule(ctx context.Context, id string) error
		// DueRecurringRules returns the active rules whose next run is at or
		// before nowMillis, earliest first.
		DueRecurringRules(ctx context.Context, nowMillis int64) ([]core.RecurringRule, error)
		// AdvanceRecurringRule stores the outcome of a processing run.
		AdvanceRecurringRule(ctx context.Context, id string, lastRun, nextRun int64, active bool) error
	}

	// Store bundles every port; both backends implement it.
	Store interface {
		TransactionStore
		CategoryStore
		AccountStore
		BudgetStore
		AlertStore
		DailyEntryStore
		RecurringStore
		Close() error
	}

	// ChangeRecord is one row of a store-maintained change log.
	ChangeRecord struct {
		ID    int64
		Table string
		Key   string
	}

	// ChangeLog is implemented by stores shared between processes. The store
	// writes a record for every change to transactions, budgets and daily
	// entries, whoever made it.
	ChangeLog interface {
		// LatestChangeID returns the newest record id, or 0 when the log is
		// empty.
		LatestChangeID(ctx context.Context) (int64, error)
		// ChangesSince returns up to limit records with id > afterID in id
		// order.
		ChangesSince(ctx context.Context, afterID int64, limit int) ([]ChangeRecord, error)
		// PruneChanges deletes records with id <= throughID.
		PruneChanges(ctx context.Context, throughID int64) (int64, error)
	}
)
