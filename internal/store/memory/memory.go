package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"spendcraft/internal/core"
	"spendcraft/internal/store"
)

type alertKey struct {
	category string
	level    core.Level
	month    core.MonthKey
}

// Store keeps every entity in maps guarded by a single mutex, which makes the
// alert check-and-insert and the default account switch atomic.
type Store struct {
	mu         sync.Mutex
	txs        map[string]core.Transaction
	categories map[string]core.Category
	accounts   map[string]core.Account
	budgets    map[string]core.Budget
	alerts     map[alertKey]struct{}
	days       map[int]struct{}
	rules      map[string]core.RecurringRule
}

var _ store.Store = (*Store)(nil)

func New(categories ...core.Category) *Store {
	s := &Store{
		txs:        make(map[string]core.Transaction),
		categories: make(map[string]core.Category),
		accounts:   make(map[string]core.Account),
		budgets:    make(map[string]core.Budget),
		alerts:     make(map[alertKey]struct{}),
		days:       make(map[int]struct{}),
		rules:      make(map[string]core.RecurringRule),
	}
	for _, c := range categories {
		s.categories[c.ID] = c
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt. Each line is
// "id" or "id:Name"; blanks and # comments are skipped.
func NewFromFiles(base string) *Store {
	var cats []core.Category
	for _, line := range readLines(filepath.Join(base, "seed_categories.txt")) {
		id, name, ok := strings.Cut(line, ":")
		id = strings.TrimSpace(id)
		if !ok {
			name = id
		}
		cats = append(cats, core.Category{ID: id, Name: strings.TrimSpace(name)})
	}
	if len(cats) == 0 {
		cats = []core.Category{
			{ID: "food", Name: "Food"},
			{ID: "transport", Name: "Transport"},
			{ID: "home", Name: "Home"},
		}
	}
	return New(cats...)
}

func (s *Store) Close() error { return nil }

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		out = append(out, tx)
	}
	sortTransactions(out)
	return out, nil
}

func (s *Store) ListTransactionsByCategory(_ context.Context, categoryID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.CategoryID == categoryID {
			out = append(out, tx)
		}
	}
	sortTransactions(out)
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, store.ErrNotFound
	}
	return tx, nil
}

func (s *Store) UpsertTransaction(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.ID] = tx
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) UpsertCategory(_ context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
	return nil
}

// DeleteCategory leaves transactions pointing at the removed id.
func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// InsertAccount stores a new account. An account inserted as default takes
// the flag away from the previous default.
func (s *Store) InsertAccount(_ context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.IsDefault {
		s.clearDefaultLocked()
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) DefaultAccount(_ context.Context) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.IsDefault {
			return a, nil
		}
	}
	return core.Account{}, store.ErrNotFound
}

func (s *Store) SetDefaultAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	s.clearDefaultLocked()
	a.IsDefault = true
	s.accounts[id] = a
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	if a.IsDefault {
		return store.ErrDefaultAccount
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) clearDefaultLocked() {
	for id, a := range s.accounts {
		if a.IsDefault {
			a.IsDefault = false
			s.accounts[id] = a
		}
	}
}

func (s *Store) ListBudgets(_ context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Budget, 0, len(s.budgets))
	for _, b := range s.budgets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (s *Store) GetBudget(_ context.Context, categoryID string) (core.Budget, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[categoryID]
	return b, ok, nil
}

func (s *Store) UpsertBudget(_ context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[b.CategoryID] = b
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.budgets, categoryID)
	return nil
}

func (s *Store) RecordIfAbsent(_ context.Context, a core.BudgetAlert) (bool, error) {
	if err := a.Validate(); err != nil {
		return false, err
	}
	k := alertKey{category: a.CategoryID, level: a.Level, month: a.Month}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[k]; ok {
		return false, nil
	}
	s.alerts[k] = struct{}{}
	return true, nil
}

func (s *Store) FiredLevels(_ context.Context, categoryID string, month core.MonthKey) ([]core.Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Level
	for k := range s.alerts {
		if k.category == categoryID && k.month == month {
			out = append(out, k.level)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) PruneBefore(_ context.Context, oldest core.MonthKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.alerts {
		if k.month.Before(oldest) {
			delete(s.alerts, k)
			n++
		}
	}
	return n, nil
}

// AlertCount returns the number of recorded alerts.
func (s *Store) AlertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

func (s *Store) ListDays(_ context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.days))
	for d := range s.days {
		out = append(out, d)
	}
	sort.Ints(out)
	return out, nil
}

func (s *Store) InsertDay(_ context.Context, epochDay int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.days[epochDay]; ok {
		return false, nil
	}
	s.days[epochDay] = struct{}{}
	return true, nil
}

func (s *Store) HasDay(_ context.Context, epochDay int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.days[epochDay]
	return ok, nil
}

func (s *Store) ListRecurringRules(_ context.Context) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RecurringRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sortRules(out)
	return out, nil
}

func (s *Store) GetRecurringRule(_ context.Context, id string) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return core.RecurringRule{}, store.ErrNotFound
	}
	return r, nil
}

func (s *Store) UpsertRecurringRule(_ context.Context, r core.RecurringRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r
	return nil
}

func (s *Store) DeleteRecurringRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *Store) DueRecurringRules(_ context.Context, nowMillis int64) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringRule
	for _, r := range s.rules {
		if r.Active && r.NextRunUTCMillis <= nowMillis {
			out = append(out, r)
		}
	}
	sortRules(out)
	return out, nil
}

func (s *Store) AdvanceRecurringRule(_ context.Context, id string, lastRun, nextRun int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return store.ErrNotFound
	}
	r.LastRunUTCMillis = lastRun
	r.NextRunUTCMillis = nextRun
	r.Active = active
	s.rules[id] = r
	return nil
}

func sortRules(rules []core.RecurringRule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].NextRunUTCMillis != rules[j].NextRunUTCMillis {
			return rules[i].NextRunUTCMillis < rules[j].NextRunUTCMillis
		}
		return rules[i].ID < rules[j].ID
	})
}

func sortTransactions(txs []core.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].TimestampUTCMillis != txs[j].TimestampUTCMillis {
			return txs[i].TimestampUTCMillis < txs[j].TimestampUTCMillis
		}
		return txs[i].ID < txs[j].ID
	})
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	seen := map[string]struct{}{}
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
