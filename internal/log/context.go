package log

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts the logger stored by NewContext, falling back to the
// process default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger emits the domain events every process logs the same way.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogAlertFired logs a budget alert that passed the dedup gate.
func (sl *StructuredLogger) LogAlertFired(ctx context.Context, categoryID string, level int, percent int64, month string, spendMinor, limitMinor int64) {
	fields := NewFields().
		WithAlert(categoryID, level, percent, month).
		WithSpend(spendMinor, limitMinor).
		WithOperation(OpRecord)

	sl.logger.WithComponent(ComponentBudget).InfoContext(ctx, "Budget alert fired", fields.ToSlice()...)
}

// LogStreakUpdated logs a recomputed streak.
func (sl *StructuredLogger) LogStreakUpdated(ctx context.Context, current, longest int) {
	fields := NewFields().
		WithStreak(current, longest).
		WithOperation(OpEvaluate)

	sl.logger.WithComponent(ComponentStreak).InfoContext(ctx, "Streak updated", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation)

	sl.logger.WithComponent(component).ErrorContext(ctx, msg, allFields.ToSlice()...)
}
