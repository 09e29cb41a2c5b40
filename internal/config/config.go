// Package config loads seqgate settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/seqgate/internal/dispatch"
)

// Config holds the settings shared by the CLI commands.
type Config struct {
	// DBPath is the SQLite journal. ":memory:" keeps it in process.
	DBPath string `env:"SEQGATE_DB" envDefault:":memory:"`

	Shards int `env:"SEQGATE_SHARDS" envDefault:"32"`

	// MaxPending bounds each source's reorder buffer. 0 means unbounded.
	MaxPending int `env:"SEQGATE_MAX_PENDING" envDefault:"0"`

	Async bool `env:"SEQGATE_ASYNC" envDefault:"false"`

	LogLevel string `env:"SEQGATE_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("SEQGATE_DB must not be empty"))
	}
	if c.Shards <= 0 {
		errs = append(errs, fmt.Errorf("SEQGATE_SHARDS must be positive, got %d", c.Shards))
	}
	if c.MaxPending < 0 {
		errs = append(errs, fmt.Errorf("SEQGATE_MAX_PENDING must not be negative, got %d", c.MaxPending))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level returns the slog level for LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// DispatchOptions converts the settings into dispatcher options.
func (c Config) DispatchOptions() []dispatch.Option {
	opts := []dispatch.Option{dispatch.WithShards(c.Shards)}
	if c.MaxPending > 0 {
		opts = append(opts, dispatch.WithMaxPending(c.MaxPending))
	}
	if c.Async {
		opts = append(opts, dispatch.WithAsyncDelivery())
	}
	return opts
}

// ParseLevel maps debug, info, warn and error (any case) to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("SEQGATE_LOG_LEVEL: unknown level %q (want debug, info, warn or error)", s)
}
