// Package notify carries change tokens from the writer to the recomputation
// loops. A token names the table that changed and, where relevant, the key
// of the affected row group (the category id for transactions and budgets).
//
// Tokens are coalesced per subscriber: a slow subscriber never blocks the
// writer and never loses a pending recomputation, it just sees each distinct
// token once per drain.
package notify

import (
	"context"
	"sync"
)

type Table string

const (
	Transactions Table = "transactions"
	Budgets      Table = "budgets"
	DailyEntries Table = "daily_entries"
	Categories   Table = "categories"
	Accounts     Table = "accounts"
	Alerts       Table = "budget_alerts"
)

// Change is one change token.
type Change struct {
	Table Table
	Key   string
}

// Hub fans change tokens out to subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewHub returns an open hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscription receives the tokens for the tables it was created with.
type Subscription struct {
	hub    *Hub
	tables map[Table]struct{}

	mu      sync.Mutex
	pending []Change
	seen    map[Change]struct{}
	ready   chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Subscribe registers interest in the given tables. With no tables the
// subscription receives everything.
func (h *Hub) Subscribe(tables ...Table) *Subscription {
	s := &Subscription{
		hub:    h,
		tables: make(map[Table]struct{}, len(tables)),
		seen:   make(map[Change]struct{}),
		ready:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, t := range tables {
		s.tables[t] = struct{}{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.closeLocal()
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// Publish hands the changes to every interested subscriber. It never blocks.
func (h *Hub) Publish(changes ...Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for s := range h.subs {
		s.offer(changes)
	}
}

// Close ends every subscription; pending Next calls return ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		s.closeLocal()
	}
	h.subs = nil
}

func (s *Subscription) offer(changes []Change) {
	s.mu.Lock()
	added := false
	for _, c := range changes {
		if len(s.tables) > 0 {
			if _, ok := s.tables[c.Table]; !ok {
				continue
			}
		}
		if _, dup := s.seen[c]; dup {
			continue
		}
		s.seen[c] = struct{}{}
		s.pending = append(s.pending, c)
		added = true
	}
	s.mu.Unlock()

	if added {
		select {
		case s.ready <- struct{}{}:
		default:
		}
	}
}

// Next blocks until at least one token is pending and returns all pending
// tokens in publish order.
func (s *Subscription) Next(ctx context.Context) ([]Change, error) {
	for {
		if batch := s.drain(); len(batch) > 0 {
			return batch, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.done:
			if batch := s.drain(); len(batch) > 0 {
				return batch, nil
			}
			return nil, ErrClosed
		case <-s.ready:
		}
	}
}

// Close detaches the subscription from its hub.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
	s.closeLocal()
}

func (s *Subscription) closeLocal() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscription) drain() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	out := s.pending
	s.pending = nil
	s.seen = make(map[Change]struct{})
	return out
}
