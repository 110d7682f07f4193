package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"spendcraft/internal/core"
	"spendcraft/internal/notify"
	"spendcraft/internal/store"
)

// LedgerStores is the slice of the store the ledger writes.
type LedgerStores interface {
	store.TransactionStore
	store.CategoryStore
	store.AccountStore
}

// LedgerService writes transactions, categories and accounts. Every write
// completes in the store first, then invalidates cached spend, then publishes
// change tokens.
type LedgerService struct {
	store  LedgerStores
	spend  *SpendCalculator
	streak *StreakService
	hub    *notify.Hub
	clock  Clock
}

// NewLedgerService wires the ledger. spend, streak and hub are optional; a
// nil clock means time.Now.
func NewLedgerService(s LedgerStores, spend *SpendCalculator, streak *StreakService, hub *notify.Hub, clock Clock) *LedgerService {
	return &LedgerService{
		store:  s,
		spend:  spend,
		streak: streak,
		hub:    hub,
		clock:  clock,
	}
}

// RecordTransaction adds a new transaction. A missing id gets a uuid, a zero
// timestamp becomes now and a missing account becomes the default account
// when one exists. Today is marked logged for the streak.
func (l *LedgerService) RecordTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	return l.record(ctx, tx, true)
}

// record is RecordTransaction with the streak update optional. Transactions
// generated from recurring rules are not the user logging.
func (l *LedgerService) record(ctx context.Context, tx core.Transaction, markLogged bool) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.TimestampUTCMillis == 0 {
		tx.TimestampUTCMillis = l.clock.now().UnixMilli()
	}
	if tx.AccountID == "" {
		acc, err := l.store.DefaultAccount(ctx)
		switch {
		case err == nil:
			tx.AccountID = acc.ID
		case errors.Is(err, store.ErrNotFound):
		default:
			return core.Transaction{}, fmt.Errorf("default account: %w", err)
		}
	}

	if err := l.UpsertTransaction(ctx, tx); err != nil {
		return core.Transaction{}, err
	}

	if markLogged && l.streak != nil {
		if _, err := l.streak.MarkTodayLogged(ctx); err != nil {
			slog.ErrorContext(ctx, "Failed to mark today logged", "error", err)
		}
	}
	return tx, nil
}

// UpsertTransaction inserts or edits tx. Editing a transaction into another
// category invalidates both categories.
func (l *LedgerService) UpsertTransaction(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	previous, err := l.store.GetTransaction(ctx, tx.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("get transaction %s: %w", tx.ID, err)
	}

	if err := l.store.UpsertTransaction(ctx, tx); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID, "category_id", tx.CategoryID, "amount_minor", tx.Amount.Minor, "income", tx.IsIncome)

	l.touched(tx.CategoryID, previous.CategoryID)
	return nil
}

func (l *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	previous, err := l.store.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", id, err)
	}
	if err := l.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	l.touched(previous.CategoryID)
	return nil
}

func (l *LedgerService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return l.store.ListTransactions(ctx)
}

// touched invalidates spend and publishes one token per distinct category.
func (l *LedgerService) touched(categoryIDs ...string) {
	seen := make(map[string]struct{}, len(categoryIDs))
	var changes []notify.Change
	for _, id := range categoryIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if l.spend != nil {
			l.spend.Invalidate(id)
		}
		changes = append(changes, notify.Change{Table: notify.Transactions, Key: id})
	}
	l.publish(changes...)
}

func (l *LedgerService) UpsertCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := l.store.UpsertCategory(ctx, c); err != nil {
		return fmt.Errorf("save category %s: %w", c.ID, err)
	}
	l.publish(notify.Change{Table: notify.Categories, Key: c.ID})
	return nil
}

// DeleteCategory removes the category and keeps its transactions, which then
// carry a dangling reference.
func (l *LedgerService) DeleteCategory(ctx context.Context, id string) error {
	if err := l.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	l.publish(notify.Change{Table: notify.Categories, Key: id})
	return nil
}

func (l *LedgerService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return l.store.ListCategories(ctx)
}

// AddAccount inserts a. An account added as default takes the flag from the
// previous default in the same store transaction.
func (l *LedgerService) AddAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	if err := l.store.InsertAccount(ctx, a); err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	l.publish(notify.Change{Table: notify.Accounts, Key: a.ID})
	return a, nil
}

func (l *LedgerService) SetDefaultAccount(ctx context.Context, id string) error {
	if err := l.store.SetDefaultAccount(ctx, id); err != nil {
		return fmt.Errorf("set default account %s: %w", id, err)
	}
	l.publish(notify.Change{Table: notify.Accounts, Key: id})
	return nil
}

func (l *LedgerService) DeleteAccount(ctx context.Context, id string) error {
	if err := l.store.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	l.publish(notify.Change{Table: notify.Accounts, Key: id})
	return nil
}

func (l *LedgerService) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return l.store.ListAccounts(ctx)
}

func (l *LedgerService) publish(changes ...notify.Change) {
	if l.hub != nil && len(changes) > 0 {
		l.hub.Publish(changes...)
	}
}
