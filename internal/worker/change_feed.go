package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spendcraft/internal/notify"
	"spendcraft/internal/store"
)

// changeBatch is the page size of one change log read.
const changeBatch = 500

// SpendInvalidator drops cached spend for categories.
type SpendInvalidator interface {
	Invalidate(categoryIDs ...string)
}

// ChangeFeed polls a store's change log and republishes each record on the
// hub. It carries writes made by other processes on the same database (CLI
// commands, a second daemon) to the local watcher. Cached spend for a changed
// category is dropped before its token is published.
type ChangeFeed struct {
	log      store.ChangeLog
	hub      *notify.Hub
	spend    SpendInvalidator
	interval time.Duration

	mu      sync.Mutex
	cursor  int64
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewChangeFeed returns a stopped feed positioned at the start of the log.
// spend may be nil.
func NewChangeFeed(log store.ChangeLog, hub *notify.Hub, spend SpendInvalidator, interval time.Duration) *ChangeFeed {
	if interval <= 0 {
		interval = time.Second
	}
	return &ChangeFeed{log: log, hub: hub, spend: spend, interval: interval}
}

// Seek positions the feed after the newest record and drops older records.
// Call it before the watcher's catch-up pass, which covers everything the
// skipped records describe.
func (f *ChangeFeed) Seek(ctx context.Context) error {
	latest, err := f.log.LatestChangeID(ctx)
	if err != nil {
		return fmt.Errorf("seek change log: %w", err)
	}
	f.mu.Lock()
	f.cursor = latest
	f.mu.Unlock()

	if n, err := f.log.PruneChanges(ctx, latest); err != nil {
		slog.WarnContext(ctx, "Failed to prune change log", "error", err)
	} else if n > 0 {
		slog.DebugContext(ctx, "Pruned change log", "deleted", n)
	}
	return nil
}

// Cursor returns the id of the last record published.
func (f *ChangeFeed) Cursor() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}

// Poll publishes every record after the cursor and returns how many it read.
func (f *ChangeFeed) Poll(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	read := 0
	for {
		records, err := f.log.ChangesSince(ctx, f.cursor, changeBatch)
		if err != nil {
			return read, fmt.Errorf("read change log: %w", err)
		}
		if len(records) == 0 {
			break
		}
		f.publish(records)
		f.cursor = records[len(records)-1].ID
		read += len(records)
		if len(records) < changeBatch {
			break
		}
	}

	if read > 0 {
		if _, err := f.log.PruneChanges(ctx, f.cursor); err != nil {
			slog.WarnContext(ctx, "Failed to prune change log", "error", err)
		}
		slog.DebugContext(ctx, "Change log polled", "records", read, "cursor", f.cursor)
	}
	return read, nil
}

func (f *ChangeFeed) publish(records []store.ChangeRecord) {
	changes := make([]notify.Change, 0, len(records))
	for _, r := range records {
		table := notify.Table(r.Table)
		if f.spend != nil && table == notify.Transactions && r.Key != "" {
			f.spend.Invalidate(r.Key)
		}
		changes = append(changes, notify.Change{Table: table, Key: r.Key})
	}
	f.hub.Publish(changes...)
}

// Start polls every interval until Stop or ctx ends.
func (f *ChangeFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return fmt.Errorf("change feed is already running")
	}
	f.running = true
	ctx, f.cancel = context.WithCancel(ctx)
	f.doneCh = make(chan struct{})
	done := f.doneCh
	f.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := f.Poll(ctx); err != nil && ctx.Err() == nil {
					slog.ErrorContext(ctx, "Change log poll failed", "error", err)
				}
			}
		}
	}()

	slog.InfoContext(ctx, "Change feed started", "interval", f.interval, "cursor", f.Cursor())
	return nil
}

// Stop ends polling and waits for the loop, or for ctx.
func (f *ChangeFeed) Stop(ctx context.Context) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	cancel, done := f.cancel, f.doneCh
	f.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	return nil
}
