package backend

import (
	"context"
	"log/slog"

	"spendcraft/internal/storage"
	"spendcraft/internal/store"
	"spendcraft/internal/store/memory"
)

// Result is an open store and the function that releases it.
type Result struct {
	Store   store.Store
	Cleanup func() error
}

// Open builds the store described by cfg.
func Open(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Type == Memory {
		dir := cfg.SeedDir
		if dir == "" {
			dir = "."
		}
		st := memory.NewFromFiles(dir)
		slog.InfoContext(ctx, "Initialized memory backend", "seed_dir", dir)
		return &Result{Store: st, Cleanup: st.Close}, nil
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Initialized SQLite backend", "db_path", cfg.SQLitePath)
	return &Result{Store: repo, Cleanup: repo.Close}, nil
}
