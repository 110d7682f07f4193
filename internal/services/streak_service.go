package services

import (
	"context"
	"fmt"
	"log/slog"

	"spendcraft/internal/core"
	"spendcraft/internal/notify"
	"spendcraft/internal/store"
)

// StreakService tracks daily logging.
type StreakService struct {
	days  store.DailyEntryStore
	hub   *notify.Hub
	clock Clock
}

// NewStreakService reads and writes daily markers through days. hub may be
// nil, and a nil clock means time.Now.
func NewStreakService(days store.DailyEntryStore, hub *notify.Hub, clock Clock) *StreakService {
	return &StreakService{days: days, hub: hub, clock: clock}
}

// Today is the current UTC epoch day.
func (s *StreakService) Today() int {
	return core.EpochDayOf(s.clock.now())
}

// CurrentStreak computes the streak as of today from every logged day.
func (s *StreakService) CurrentStreak(ctx context.Context) (core.Streak, error) {
	days, err := s.days.ListDays(ctx)
	if err != nil {
		return core.Streak{}, fmt.Errorf("list daily entries: %w", err)
	}
	return core.ComputeStreak(days, s.Today()), nil
}

// MarkTodayLogged records today. It reports false, and publishes nothing,
// when today was already logged.
func (s *StreakService) MarkTodayLogged(ctx context.Context) (bool, error) {
	return s.MarkLogged(ctx, s.Today())
}

// MarkLogged records epochDay.
func (s *StreakService) MarkLogged(ctx context.Context, epochDay int) (bool, error) {
	inserted, err := s.days.InsertDay(ctx, epochDay)
	if err != nil {
		return false, fmt.Errorf("insert daily entry %d: %w", epochDay, err)
	}
	if inserted {
		slog.DebugContext(ctx, "Day logged", "epoch_day", epochDay)
		if s.hub != nil {
			s.hub.Publish(notify.Change{Table: notify.DailyEntries, Key: fmt.Sprint(epochDay)})
		}
	}
	return inserted, nil
}

// IsTodayLogged reports whether today already has a marker.
func (s *StreakService) IsTodayLogged(ctx context.Context) (bool, error) {
	return s.days.HasDay(ctx, s.Today())
}
