package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes budget alerts older than a retention window.
type Pruner interface {
	PruneAlerts(ctx context.Context, retentionMonths int) (int64, error)
}

// StreakRefresher republishes the current streak.
type StreakRefresher interface {
	RefreshStreak(ctx context.Context) error
}

// RecurringRunner materialises due recurring rules.
type RecurringRunner interface {
	ProcessDue(ctx context.Context) (int, error)
}

// SchedulerConfig holds the cron specs of the maintenance jobs. An empty
// RecurringSchedule disables recurring processing.
type SchedulerConfig struct {
	PruneSchedule         string
	StreakRefreshSchedule string
	RecurringSchedule     string
	RetentionMonths       int
}

// Scheduler runs alert pruning, the day-rollover streak refresh and recurring
// rule processing on cron schedules evaluated in UTC.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	stop context.CancelFunc
}

// NewScheduler registers the jobs. Jobs run with ctx, which Stop cancels. A
// nil runner skips the recurring job.
func NewScheduler(ctx context.Context, cfg SchedulerConfig, pruner Pruner, refresher StreakRefresher, runner RecurringRunner) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		ctx:  ctx,
		stop: cancel,
	}

	if _, err := s.cron.AddFunc(cfg.PruneSchedule, func() {
		n, err := pruner.PruneAlerts(s.ctx, cfg.RetentionMonths)
		if err != nil {
			slog.ErrorContext(s.ctx, "Scheduled alert prune failed", "error", err)
			return
		}
		slog.InfoContext(s.ctx, "Scheduled alert prune complete", "deleted", n)
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("schedule prune %q: %w", cfg.PruneSchedule, err)
	}

	if _, err := s.cron.AddFunc(cfg.StreakRefreshSchedule, func() {
		if err := refresher.RefreshStreak(s.ctx); err != nil {
			slog.ErrorContext(s.ctx, "Scheduled streak refresh failed", "error", err)
		}
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("schedule streak refresh %q: %w", cfg.StreakRefreshSchedule, err)
	}

	if runner != nil && cfg.RecurringSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.RecurringSchedule, func() {
			if _, err := runner.ProcessDue(s.ctx); err != nil {
				slog.ErrorContext(s.ctx, "Scheduled recurring processing failed", "error", err)
			}
		}); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule recurring processing %q: %w", cfg.RecurringSchedule, err)
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		slog.Info("Scheduled job", "id", e.ID, "next", e.Next.Format(time.RFC3339))
	}
}

// Stop prevents new runs and waits for running jobs, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries exposes the registered jobs.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// RunAll runs every job once on the calling goroutine.
func (s *Scheduler) RunAll() {
	for _, e := range s.cron.Entries() {
		e.Job.Run()
	}
}
