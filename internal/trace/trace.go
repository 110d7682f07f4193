// Package trace tags each recomputation run with an id and logs its outcome
// and duration.
package trace

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RunIDKey is the context key for the run ID
	RunIDKey ContextKey = "run_id"
)

// Tracer wraps recomputation runs.
type Tracer struct {
	metrics *Metrics
}

// Metrics tracks run counts and the latest duration.
type Metrics struct {
	TotalRuns      int64
	FailedRuns     int64
	LastDurationUs int64
}

func NewTracer() *Tracer {
	return &Tracer{metrics: &Metrics{}}
}

// Run executes fn with a fresh run id in its context. The outcome is logged
// at debug on success and at error otherwise.
func (t *Tracer) Run(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	runID := GenerateRunID()
	ctx = context.WithValue(ctx, RunIDKey, runID)

	err := fn(ctx)

	duration := time.Since(start)
	atomic.AddInt64(&t.metrics.TotalRuns, 1)
	atomic.StoreInt64(&t.metrics.LastDurationUs, duration.Microseconds())

	logLevel := slog.LevelDebug
	attrs := []any{
		"run_id", runID,
		"run", name,
		"duration_ms", duration.Milliseconds(),
		"success", err == nil,
	}
	if err != nil {
		atomic.AddInt64(&t.metrics.FailedRuns, 1)
		logLevel = slog.LevelError
		attrs = append(attrs, "error", err)
	}
	slog.Log(ctx, logLevel, "Run completed", attrs...)
	return err
}

// GenerateRunID creates a unique run ID for tracing
func GenerateRunID() string {
	return "run_" + uuid.NewString()
}

// GetRunID extracts the run ID from context
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (t *Tracer) GetMetrics() Metrics {
	return Metrics{
		TotalRuns:      atomic.LoadInt64(&t.metrics.TotalRuns),
		FailedRuns:     atomic.LoadInt64(&t.metrics.FailedRuns),
		LastDurationUs: atomic.LoadInt64(&t.metrics.LastDurationUs),
	}
}
