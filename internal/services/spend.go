package services

import (
	"context"
	"fmt"
	"sync"

	"spendcraft/internal/cache"
	"spendcraft/internal/core"
	"spendcraft/internal/store"
)

// SpendCalculator memoises per-category monthly spend. Writers call
// Invalidate after the store write returns and before change tokens go out,
// so every recomputation triggered by a token sees the write.
type SpendCalculator struct {
	txs   store.TransactionStore
	cache cache.Cache[map[core.MonthKey]core.Money]

	mu  sync.Mutex
	gen map[string]uint64
}

// NewSpendCalculator wraps txs. A nil cache disables memoisation.
func NewSpendCalculator(txs store.TransactionStore, c cache.Cache[map[core.MonthKey]core.Money]) *SpendCalculator {
	return &SpendCalculator{
		txs:   txs,
		cache: c,
		gen:   make(map[string]uint64),
	}
}

// MonthlySpend returns the expense total of categoryID in month.
func (s *SpendCalculator) MonthlySpend(ctx context.Context, categoryID string, month core.MonthKey) (core.Money, error) {
	byMonth, err := s.byMonth(ctx, categoryID)
	if err != nil {
		return core.Money{}, err
	}
	return byMonth[month], nil
}

// Invalidate drops the memoised aggregates of the given categories.
func (s *SpendCalculator) Invalidate(categoryIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range categoryIDs {
		s.gen[id]++
		if s.cache != nil {
			s.cache.Delete(id)
		}
	}
}

func (s *SpendCalculator) byMonth(ctx context.Context, categoryID string) (map[core.MonthKey]core.Money, error) {
	s.mu.Lock()
	if s.cache != nil {
		if v, ok := s.cache.Get(categoryID); ok {
			s.mu.Unlock()
			return v, nil
		}
	}
	gen := s.gen[categoryID]
	s.mu.Unlock()

	txs, err := s.txs.ListTransactionsByCategory(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", categoryID, err)
	}
	byMonth := core.SpendByMonth(txs, categoryID)

	s.mu.Lock()
	// an invalidation that raced the read means byMonth may be stale
	if s.cache != nil && s.gen[categoryID] == gen {
		s.cache.Set(categoryID, byMonth)
	}
	s.mu.Unlock()
	return byMonth, nil
}
