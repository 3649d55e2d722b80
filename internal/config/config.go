// Package config defines service configuration and how it is loaded.
package config

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects memory, sqlite or postgres.
	StoreDriver      string `koanf:"store_driver"`
	SQLitePath       string `koanf:"sqlite_path"`
	PostgresURL      string `koanf:"postgres_url"`
	PostgresMaxConns int    `koanf:"postgres_max_conns"`
	// StoreTimeoutMS bounds every store call.
	StoreTimeoutMS int `koanf:"store_timeout_ms"`

	// Monthly caps per employee and skill.
	MonthlyConfidenceCap float64 `koanf:"monthly_confidence_cap"`
	MonthlyPointsCap     int     `koanf:"monthly_points_cap"`
	// SkillRarity maps skill names to a points multiplier. Unlisted skills use 1.0.
	SkillRarity map[string]float64 `koanf:"skill_rarity"`

	// Background processing.
	TriggerQueueSize  int  `koanf:"trigger_queue_size"`
	TriggerDedupeSize int  `koanf:"trigger_dedupe_size"`
	SweepIntervalS    int  `koanf:"sweep_interval_s"`
	AutoRunOnValidate bool `koanf:"auto_run_on_validate"`

	// ShutdownTimeoutS bounds graceful shutdown.
	ShutdownTimeoutS int `koanf:"shutdown_timeout_s"`
}

// New creates a Config with defaults. Context is accepted first to follow
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		StoreDriver:          DriverMemory,
		SQLitePath:           "helix.db",
		PostgresMaxConns:     25,
		StoreTimeoutMS:       5000,
		MonthlyConfidenceCap: 15,
		MonthlyPointsCap:     200,
		SkillRarity:          map[string]float64{},
		TriggerQueueSize:     1024,
		TriggerDedupeSize:    10000,
		SweepIntervalS:       0,
		AutoRunOnValidate:    true,
		ShutdownTimeoutS:     10,
	}
}

// StoreTimeout returns StoreTimeoutMS as a duration.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

// SweepInterval returns SweepIntervalS as a duration. Zero disables sweeps.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalS) * time.Second
}

// ShutdownTimeout returns ShutdownTimeoutS as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case !slices.Contains([]string{DriverMemory, DriverSQLite, DriverPostgres}, c.StoreDriver):
		return invalid("store_driver must be memory, sqlite or postgres, got %q", c.StoreDriver)
	case c.StoreDriver == DriverSQLite && c.SQLitePath == "":
		return invalid("sqlite_path is required for the sqlite driver")
	case c.StoreDriver == DriverPostgres && c.PostgresURL == "":
		return invalid("postgres_url is required for the postgres driver")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	case c.StoreTimeoutMS <= 0:
		return invalid("store_timeout_ms must be positive")
	case c.PostgresMaxConns <= 0:
		return invalid("postgres_max_conns must be positive")
	case c.ShutdownTimeoutS <= 0:
		return invalid("shutdown_timeout_s must be positive")
	case c.MonthlyConfidenceCap <= 0:
		return invalid("monthly_confidence_cap must be positive")
	case c.MonthlyPointsCap <= 0:
		return invalid("monthly_points_cap must be positive")
	case c.SweepIntervalS < 0:
		return invalid("sweep_interval_s must not be negative")
	case c.TriggerQueueSize <= 0:
		return invalid("trigger_queue_size must be positive")
	}
	for skill, m := range c.SkillRarity {
		if m <= 0 {
			return invalid("skill_rarity for %q must be positive", skill)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
