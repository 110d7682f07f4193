package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/robfig/cron/v3"

	"spendcraft/internal/core"
	applog "spendcraft/internal/log"
)

type Config struct {
	// Storage
	DataBackend  string `env:"DATA_BACKEND" envDefault:"sqlite"`
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/spendcraft.db"`
	DataDir      string `env:"DATA_DIR" envDefault:"."`

	// Budget alerts
	AlertThresholds      string `env:"ALERT_THRESHOLDS" envDefault:"50,80,100,120"`
	AlertRetentionMonths int    `env:"ALERT_RETENTION_MONTHS" envDefault:"12"`

	// Scheduler, standard five-field cron specs evaluated in UTC
	PruneSchedule         string `env:"PRUNE_SCHEDULE" envDefault:"0 3 1 * *"`
	StreakRefreshSchedule string `env:"STREAK_REFRESH_SCHEDULE" envDefault:"0 0 * * *"`
	RecurringSchedule     string `env:"RECURRING_SCHEDULE" envDefault:"*/15 * * * *"`

	// How often serve reads the SQLite change log for writes made by other
	// processes
	ChangePollInterval time.Duration `env:"CHANGE_POLL_INTERVAL" envDefault:"2s"`

	// Spend cache
	SpendCacheSize int           `env:"SPEND_CACHE_SIZE" envDefault:"256"`
	SpendCacheTTL  time.Duration `env:"SPEND_CACHE_TTL" envDefault:"5m"`

	// AMQP, optional
	AMQPURL        string `env:"AMQP_URL"`
	AMQPExchange   string `env:"AMQP_EXCHANGE" envDefault:"spendcraft"`
	AMQPRoutingKey string `env:"AMQP_ROUTING_KEY" envDefault:"budget_alerts"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Thresholds parses AlertThresholds. Validate reports the same error.
func (c *Config) Thresholds() (core.Thresholds, error) {
	return core.ParseThresholds(c.AlertThresholds)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if _, err := c.Thresholds(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid alert thresholds '%s': %v", c.AlertThresholds, err))
	}

	if c.AlertRetentionMonths < 1 || c.AlertRetentionMonths > 120 {
		errors = append(errors, fmt.Sprintf("invalid alert retention %d: must be between 1 and 120 months", c.AlertRetentionMonths))
	}

	if _, err := cron.ParseStandard(c.PruneSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid prune schedule '%s': %v", c.PruneSchedule, err))
	}
	if _, err := cron.ParseStandard(c.StreakRefreshSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid streak refresh schedule '%s': %v", c.StreakRefreshSchedule, err))
	}
	if c.RecurringSchedule != "" {
		if _, err := cron.ParseStandard(c.RecurringSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid recurring schedule '%s': %v", c.RecurringSchedule, err))
		}
	}
	if c.ChangePollInterval < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid change poll interval %v: must be at least 100ms", c.ChangePollInterval))
	}

	if c.SpendCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid spend cache size %d: must be at least 1", c.SpendCacheSize))
	}
	if c.SpendCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid spend cache TTL %v: must be at least 1 second", c.SpendCacheTTL))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
