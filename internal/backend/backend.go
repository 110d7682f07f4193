// Package backend selects and opens the store implementation named in the
// configuration.
package backend

import (
	"fmt"

	"spendcraft/internal/config"
)

// Type names a store implementation.
type Type string

const (
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

// Types lists every supported backend.
func Types() []Type {
	return []Type{SQLite, Memory}
}

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SQLite, Memory:
		return true
	default:
		return false
	}
}

// Config selects and parameterises a backend.
type Config struct {
	Type Type

	// SQLitePath is the database file for SQLite.
	SQLitePath string
	// SeedDir holds seed_categories.txt for Memory. Defaults to ".".
	SeedDir string
}

// FromAppConfig extracts the backend settings from the application config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	bc := Config{
		Type:       Type(cfg.DataBackend),
		SQLitePath: cfg.SQLiteDBPath,
		SeedDir:    cfg.DataDir,
	}
	if err := bc.Validate(); err != nil {
		return Config{}, err
	}
	return bc, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type %q: must be one of %v", c.Type, Types())
	}
	if c.Type == SQLite && c.SQLitePath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	return nil
}
