package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/uplink-foundation/uplink/scheduler"
)

// Config holds the daemon configuration.
type Config struct {
	// Log controls the slog handler.
	Log LogConfig `yaml:"log"`

	// TaskLimit is the initial concurrency ceiling: "normal",
	// "reduced", or "off".
	TaskLimit string `yaml:"task_limit"`

	// EnqueuePerSecond throttles job admission. Zero disables the
	// limiter.
	EnqueuePerSecond float64 `yaml:"enqueue_per_second"`

	// EnqueueBurst is the limiter's burst size.
	EnqueueBurst int `yaml:"enqueue_burst"`

	// KeyUpdatePeriod is the periodic encryption-key refresh
	// interval. Zero disables periodic refresh.
	KeyUpdatePeriod time.Duration `yaml:"key_update_period"`

	// Uploads are cron-scheduled upload jobs.
	Uploads []UploadConfig `yaml:"uploads"`
}

// LogConfig selects the slog handler and level.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// UploadConfig describes one scheduled upload job.
type UploadConfig struct {
	// Name labels the job in logs and metrics.
	Name string `yaml:"name"`

	// Schedule is a cron expression, e.g. "@every 5m".
	Schedule string `yaml:"schedule"`

	// Reason is "manual", "periodic", or "immediate_flush".
	Reason string `yaml:"reason"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Log:             LogConfig{Level: "info", Format: "text"},
		TaskLimit:       "normal",
		KeyUpdatePeriod: time.Hour,
		Uploads: []UploadConfig{
			{Name: "periodic upload", Schedule: "@every 5m", Reason: "periodic"},
		},
	}
}

// LoadConfig reads a YAML config file over the defaults. An empty
// path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c Config) Validate() error {
	if _, err := parseTaskLimit(c.TaskLimit); err != nil {
		return err
	}
	for _, u := range c.Uploads {
		if u.Name == "" {
			return fmt.Errorf("upload with schedule %q: name required", u.Schedule)
		}
		if u.Schedule == "" {
			return fmt.Errorf("upload %q: schedule required", u.Name)
		}
		if _, err := parseUploadReason(u.Reason); err != nil {
			return fmt.Errorf("upload %q: %w", u.Name, err)
		}
	}
	if c.EnqueuePerSecond < 0 {
		return fmt.Errorf("enqueue_per_second must not be negative")
	}
	return nil
}

func parseTaskLimit(s string) (scheduler.TaskLimit, error) {
	switch s {
	case "", "normal":
		return scheduler.TaskLimitNormal, nil
	case "reduced":
		return scheduler.TaskLimitReduced, nil
	case "off":
		return scheduler.TaskLimitOff, nil
	default:
		return 0, fmt.Errorf("unknown task_limit %q", s)
	}
}
