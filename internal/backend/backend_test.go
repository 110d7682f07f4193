package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"spendcraft/internal/config"
	"spendcraft/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "memory", DataDir: "/tmp/x"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != Memory || cfg.SeedDir != "/tmp/x" {
		t.Errorf("FromAppConfig() = %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: Memory}, false},
		{"sqlite", Config{Type: SQLite, SQLitePath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLite}, true},
		{"unknown", Config{Type: "postgres"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenMemory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte("food:Food\nrent\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Open(context.Background(), Config{Type: Memory, SeedDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Cleanup()

	cats, err := res.Store.ListCategories(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 {
		t.Errorf("categories = %+v, want 2 seeded", cats)
	}
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "spendcraft.db")

	res, err := Open(ctx, Config{Type: SQLite, SQLitePath: path})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Cleanup()

	inserted, err := res.Store.InsertDay(ctx, 19797)
	if err != nil || !inserted {
		t.Fatalf("InsertDay() = %v, %v", inserted, err)
	}
	fired, err := res.Store.RecordIfAbsent(ctx, core.BudgetAlert{CategoryID: "food", Level: 1, Month: core.MonthKey{Year: 2024, Month: 3}})
	if err != nil || !fired {
		t.Fatalf("RecordIfAbsent() = %v, %v", fired, err)
	}
}
