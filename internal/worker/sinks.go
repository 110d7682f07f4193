package worker

import (
	"context"
	"errors"

	"spendcraft/internal/amqp"
	"spendcraft/internal/core"
	applog "spendcraft/internal/log"
	"spendcraft/internal/services"
)

// AlertSink receives the budget alerts that fired after a change.
type AlertSink interface {
	DeliverAlerts(ctx context.Context, breaches []services.Breach) error
}

// StreakSink receives every recomputed streak.
type StreakSink interface {
	DeliverStreak(ctx context.Context, streak core.Streak, today int) error
}

// LogSink writes alerts and streaks to the structured log.
type LogSink struct {
	log *applog.StructuredLogger
}

func NewLogSink(logger *applog.Logger) *LogSink {
	return &LogSink{log: applog.NewStructuredLogger(logger)}
}

func (s *LogSink) DeliverAlerts(ctx context.Context, breaches []services.Breach) error {
	for _, b := range breaches {
		s.log.LogAlertFired(ctx, b.CategoryID, int(b.Level), b.Percent, b.Month.String(), b.Spend.Minor, b.Limit.Minor)
	}
	return nil
}

func (s *LogSink) DeliverStreak(ctx context.Context, streak core.Streak, _ int) error {
	s.log.LogStreakUpdated(ctx, streak.Current, streak.Longest)
	return nil
}

// EventPublisher is implemented by *amqp.Client.
type EventPublisher interface {
	PublishBudgetAlert(ctx context.Context, alert amqp.BudgetAlertMessage) error
	PublishStreak(ctx context.Context, streak amqp.StreakMessage) error
}

// AMQPSink forwards alerts and streaks to the message broker.
type AMQPSink struct {
	pub EventPublisher
}

func NewAMQPSink(pub EventPublisher) *AMQPSink {
	return &AMQPSink{pub: pub}
}

func (s *AMQPSink) DeliverAlerts(ctx context.Context, breaches []services.Breach) error {
	var errs []error
	for _, b := range breaches {
		err := s.pub.PublishBudgetAlert(ctx, amqp.BudgetAlertMessage{
			CategoryID:   b.CategoryID,
			CategoryName: b.CategoryName,
			Level:        int(b.Level),
			Percent:      b.Percent,
			Month:        b.Month.String(),
			SpendMinor:   b.Spend.Minor,
			LimitMinor:   b.Limit.Minor,
			Text:         b.Text,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *AMQPSink) DeliverStreak(ctx context.Context, streak core.Streak, today int) error {
	return s.pub.PublishStreak(ctx, amqp.StreakMessage{
		Current:  streak.Current,
		Longest:  streak.Longest,
		EpochDay: today,
	})
}
