package main

import (
	"context"
	"fmt"

	"spendcraft/internal/cli"
	"spendcraft/internal/store"
	"spendcraft/internal/worker"
)

func serve(ctx context.Context, a *app) error {
	a.logger.Info("Starting spendcraft",
		"backend", a.cfg.DataBackend,
		"thresholds", a.cfg.AlertThresholds)

	a.caches.StartCleanup(cacheSweepInterval)

	watcher := worker.NewWatcher(a.hub, a.budget, a.streak)
	logSink := worker.NewLogSink(a.logger)
	watcher.AddAlertSink(logSink)
	watcher.AddStreakSink(logSink)
	if client := a.connectAMQP(); client != nil {
		sink := worker.NewAMQPSink(client)
		watcher.AddAlertSink(sink)
		watcher.AddStreakSink(sink)
	}

	var (
		scheduler *worker.Scheduler
		feed      *worker.ChangeFeed
	)
	ctx, done := cli.GracefulShutdown(a.logger.Logger, shutdownTimeout, func(shutdownCtx context.Context) {
		if scheduler != nil {
			if err := scheduler.Stop(shutdownCtx); err != nil {
				a.logger.Warn("Scheduler stop failed", "error", err)
			}
		}
		if feed != nil {
			if err := feed.Stop(shutdownCtx); err != nil {
				a.logger.Warn("Change feed stop failed", "error", err)
			}
		}
		if err := watcher.Stop(shutdownCtx); err != nil {
			a.logger.Warn("Watcher stop failed", "error", err)
		}
	})

	var err error
	feed, err = a.startWatching(ctx, watcher)
	if err != nil {
		return err
	}

	if n, err := a.recurring.ProcessDue(ctx); err != nil {
		a.logger.Warn("Startup recurring pass failed", "error", err, "created", n)
	}

	scheduler, err = worker.NewScheduler(ctx, worker.SchedulerConfig{
		PruneSchedule:         a.cfg.PruneSchedule,
		StreakRefreshSchedule: a.cfg.StreakRefreshSchedule,
		RecurringSchedule:     a.cfg.RecurringSchedule,
		RetentionMonths:       a.cfg.AlertRetentionMonths,
	}, a.budget, watcher, a.recurring)
	if err != nil {
		return err
	}
	scheduler.Start()

	a.logger.Info("spendcraft running")
	cli.WaitForShutdown(ctx, done)
	return nil
}

// startWatching starts the watcher and, when the store keeps a change log, a
// feed that carries writes from other processes to it. The feed seeks past
// old records before the watcher's catch-up pass and polls only after it.
// The returned feed is nil for stores without a change log.
func (a *app) startWatching(ctx context.Context, watcher *worker.Watcher) (*worker.ChangeFeed, error) {
	var feed *worker.ChangeFeed
	if log, ok := a.store.(store.ChangeLog); ok {
		feed = worker.NewChangeFeed(log, a.hub, a.spend, a.cfg.ChangePollInterval)
		if err := feed.Seek(ctx); err != nil {
			return nil, err
		}
	} else {
		a.logger.Info("Store keeps no change log, only this process's writes are watched",
			"backend", a.cfg.DataBackend)
	}

	if err := watcher.Start(ctx); err != nil {
		return nil, fmt.Errorf("start watcher: %w", err)
	}
	if feed != nil {
		if err := feed.Start(ctx); err != nil {
			return nil, fmt.Errorf("start change feed: %w", err)
		}
	}
	return feed, nil
}
