package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"spendcraft/internal/amqp"
	"spendcraft/internal/backend"
	"spendcraft/internal/cache"
	"spendcraft/internal/config"
	"spendcraft/internal/core"
	applog "spendcraft/internal/log"
	"spendcraft/internal/notify"
	"spendcraft/internal/services"
	"spendcraft/internal/store"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *applog.Logger
	store  store.Store
	hub    *notify.Hub
	caches *cache.Manager
	amqp   *amqp.Client

	spend     *services.SpendCalculator
	ledger    *services.LedgerService
	budget    *services.BudgetService
	streak    *services.StreakService
	recurring *services.RecurringProcessor

	cleanup []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*app, error) {
	thresholds, err := cfg.Thresholds()
	if err != nil {
		return nil, err
	}
	evaluator, err := core.NewEvaluator(thresholds)
	if err != nil {
		return nil, err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.Open(ctx, backendCfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   res.Store,
		hub:     notify.NewHub(),
		caches:  cache.NewManager(),
		cleanup: []func() error{res.Cleanup},
	}

	spendCache := cache.NewLRUCache[map[core.MonthKey]core.Money](cfg.SpendCacheSize, cfg.SpendCacheTTL)
	a.caches.Register(spendCache)
	a.spend = services.NewSpendCalculator(a.store, spendCache)

	a.streak = services.NewStreakService(a.store, a.hub, nil)
	a.budget = services.NewBudgetService(a.store, a.spend, evaluator, a.hub, nil)
	a.ledger = services.NewLedgerService(a.store, a.spend, a.streak, a.hub, nil)
	a.recurring = services.NewRecurringProcessor(a.store, a.ledger, nil)

	slog.DebugContext(ctx, "Application wired",
		"backend", cfg.DataBackend,
		"thresholds", thresholds.String())
	return a, nil
}

// connectAMQP dials the broker when AMQP_URL is set. A failed dial is logged
// and the app continues without the broker.
func (a *app) connectAMQP() *amqp.Client {
	if a.cfg.AMQPURL == "" {
		a.logger.Info("AMQP disabled - alerts are only logged")
		return nil
	}
	client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPRoutingKey)
	if err != nil {
		a.logger.Warn("Failed to initialize AMQP client, continuing without broker", "error", err)
		return nil
	}
	a.amqp = client
	a.cleanup = append(a.cleanup, client.Close)
	a.logger.Info("Initialized AMQP client",
		"exchange", a.cfg.AMQPExchange,
		"routing_key", a.cfg.AMQPRoutingKey)
	return client
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() error {
	a.hub.Close()
	a.caches.Stop()
	var errs []error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if a.cleanup[i] == nil {
			continue
		}
		if err := a.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const (
	cacheSweepInterval = time.Minute
	shutdownTimeout    = 30 * time.Second
)
