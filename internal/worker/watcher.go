// Package worker runs the recomputation loops that react to store changes
// and the scheduled maintenance jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"spendcraft/internal/core"
	"spendcraft/internal/notify"
	"spendcraft/internal/services"
	"spendcraft/internal/trace"
)

// Watcher subscribes to change tokens and re-runs budget evaluation for each
// changed category and the streak computation after each new daily entry.
type Watcher struct {
	hub    *notify.Hub
	budget *services.BudgetService
	streak *services.StreakService
	alerts []AlertSink
	tracks []StreakSink
	tracer *trace.Tracer

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	err     error
}

// NewWatcher returns a stopped watcher with no sinks.
func NewWatcher(hub *notify.Hub, budget *services.BudgetService, streak *services.StreakService) *Watcher {
	return &Watcher{hub: hub, budget: budget, streak: streak, tracer: trace.NewTracer()}
}

// Metrics reports the recomputation runs made so far.
func (w *Watcher) Metrics() trace.Metrics {
	return w.tracer.GetMetrics()
}

// AddAlertSink registers a sink. Call before Start.
func (w *Watcher) AddAlertSink(s AlertSink) {
	w.alerts = append(w.alerts, s)
}

// AddStreakSink registers a sink. Call before Start.
func (w *Watcher) AddStreakSink(s StreakSink) {
	w.tracks = append(w.tracks, s)
}

// Start subscribes and begins both loops. Returns an error if already running.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	w.running = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.doneCh = make(chan struct{})
	w.err = nil
	w.mu.Unlock()

	// subscribe before the catch-up pass so no change slips between them
	budgetSub := w.hub.Subscribe(notify.Transactions, notify.Budgets)
	streakSub := w.hub.Subscribe(notify.DailyEntries)

	if breaches, err := w.budget.CheckBudgetBreaches(ctx); err != nil {
		slog.WarnContext(ctx, "Initial budget check failed", "error", err)
	} else {
		w.deliverAlerts(ctx, breaches)
	}
	if err := w.RefreshStreak(ctx); err != nil {
		slog.WarnContext(ctx, "Initial streak computation failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.budgetLoop(gctx, budgetSub) })
	g.Go(func() error { return w.streakLoop(gctx, streakSub) })

	go func() {
		defer close(w.doneCh)
		err := g.Wait()
		budgetSub.Close()
		streakSub.Close()
		if errors.Is(err, context.Canceled) || errors.Is(err, notify.ErrClosed) {
			err = nil
		}
		w.mu.Lock()
		w.err = err
		w.mu.Unlock()
	}()

	slog.InfoContext(ctx, "Watcher started",
		"alert_sinks", len(w.alerts),
		"streak_sinks", len(w.tracks))
	return nil
}

// Stop cancels both loops and waits for them, or for ctx.
func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel, done := w.cancel, w.doneCh
	w.mu.Unlock()

	cancel()

	select {
	case <-done:
		slog.InfoContext(ctx, "Watcher stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Watcher stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	err := w.err
	w.mu.Unlock()
	return err
}

// IsRunning returns whether the watcher is currently running
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Done is closed when both loops have exited.
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doneCh
}

func (w *Watcher) budgetLoop(ctx context.Context, sub *notify.Subscription) error {
	for {
		changes, err := sub.Next(ctx)
		if err != nil {
			return err
		}
		for _, categoryID := range changedCategories(changes) {
			// failures are logged by the tracer; the loop keeps going
			_ = w.tracer.Run(ctx, "budget", func(ctx context.Context) error {
				return w.evaluateCategory(ctx, categoryID)
			})
		}
	}
}

// evaluateCategory delivers whatever fired even when evaluation stopped
// part way.
func (w *Watcher) evaluateCategory(ctx context.Context, categoryID string) error {
	events, err := w.budget.EvaluateBudgetsForCategory(ctx, categoryID)
	if err != nil {
		err = fmt.Errorf("evaluate %s: %w", categoryID, err)
	}
	if len(events) == 0 {
		return err
	}
	name := w.budget.CategoryName(ctx, categoryID)
	breaches := make([]services.Breach, 0, len(events))
	for _, e := range events {
		breaches = append(breaches, services.Breach{AlertEvent: e, CategoryName: name, Text: e.Message(name)})
	}
	w.deliverAlerts(ctx, breaches)
	return err
}

func (w *Watcher) deliverAlerts(ctx context.Context, breaches []services.Breach) {
	if len(breaches) == 0 {
		return
	}
	for _, s := range w.alerts {
		if err := s.DeliverAlerts(ctx, breaches); err != nil {
			// the alerts are already recorded; a failed sink does not re-fire them
			slog.ErrorContext(ctx, "Alert delivery failed", "sink", fmt.Sprintf("%T", s), "error", err)
		}
	}
}

func (w *Watcher) streakLoop(ctx context.Context, sub *notify.Subscription) error {
	for {
		if _, err := sub.Next(ctx); err != nil {
			return err
		}
		_ = w.tracer.Run(ctx, "streak", w.RefreshStreak)
	}
}

// RefreshStreak recomputes the streak and hands it to every streak sink.
func (w *Watcher) RefreshStreak(ctx context.Context) error {
	streak, err := w.streak.CurrentStreak(ctx)
	if err != nil {
		return err
	}
	w.deliverStreak(ctx, streak, w.streak.Today())
	return nil
}

func (w *Watcher) deliverStreak(ctx context.Context, streak core.Streak, today int) {
	for _, s := range w.tracks {
		if err := s.DeliverStreak(ctx, streak, today); err != nil {
			slog.ErrorContext(ctx, "Streak delivery failed", "sink", fmt.Sprintf("%T", s), "error", err)
		}
	}
}

// changedCategories returns the distinct non-empty keys in first-seen order.
func changedCategories(changes []notify.Change) []string {
	seen := make(map[string]struct{}, len(changes))
	var out []string
	for _, c := range changes {
		if c.Key == "" {
			continue
		}
		if _, ok := seen[c.Key]; ok {
			continue
		}
		seen[c.Key] = struct{}{}
		out = append(out, c.Key)
	}
	return out
}
