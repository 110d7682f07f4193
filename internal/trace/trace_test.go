package trace

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRunAttachesIDAndCounts(t *testing.T) {
	tr := NewTracer()

	var seen string
	err := tr.Run(context.Background(), "budget", func(ctx context.Context) error {
		seen = GetRunID(ctx)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(seen, "run_") {
		t.Errorf("run id = %q", seen)
	}

	boom := errors.New("boom")
	if err := tr.Run(context.Background(), "streak", func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want boom", err)
	}

	m := tr.GetMetrics()
	if m.TotalRuns != 2 || m.FailedRuns != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestGetRunIDWithoutRun(t *testing.T) {
	if id := GetRunID(context.Background()); id != "" {
		t.Errorf("GetRunID() = %q, want empty", id)
	}
}

func TestGenerateRunIDUnique(t *testing.T) {
	if GenerateRunID() == GenerateRunID() {
		t.Error("run ids collide")
	}
}
