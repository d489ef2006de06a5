package config

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sdejongh/dirmirror/pkg/models"
)

// Config represents the application configuration
type Config struct {
	Sync        SyncConfig        `yaml:"sync" mapstructure:"sync"`
	Performance PerformanceConfig `yaml:"performance" mapstructure:"performance"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Exclude     []string          `yaml:"exclude" mapstructure:"exclude"`
}

// SyncConfig holds the mirrored trees and the cycle cadence
type SyncConfig struct {
	Source         string `yaml:"source" mapstructure:"source"`
	Replica        string `yaml:"replica" mapstructure:"replica"`
	Interval       int    `yaml:"interval" mapstructure:"interval"` // seconds
	PruneEmptyDirs bool   `yaml:"prune_empty_dirs" mapstructure:"prune_empty_dirs"`
}

// PerformanceConfig holds performance-related settings
type PerformanceConfig struct {
	MaxWorkers int    `yaml:"max_workers" mapstructure:"max_workers"`
	BufferSize int    `yaml:"buffer_size" mapstructure:"buffer_size"`
	Bandwidth  string `yaml:"bandwidth" mapstructure:"bandwidth"` // e.g. "10MB", empty = unlimited
}

// LogConfig holds the event log settings
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file"`
	Format     string `yaml:"format" mapstructure:"format"` // "text" or "json"
	Level      string `yaml:"level" mapstructure:"level"`   // "debug", "info", "warn", "error"
	MaxSize    int64  `yaml:"max_size" mapstructure:"max_size"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
}

// Default returns the default configuration. The required settings
// (source, replica, interval, log file) have no default.
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			PruneEmptyDirs: false,
		},
		Performance: PerformanceConfig{
			MaxWorkers: 4,
			BufferSize: 65536,
		},
		Log: LogConfig{
			Format:     "text",
			Level:      "info",
			MaxSize:    10 * 1024 * 1024, // 10 MB
			MaxBackups: 5,
		},
		Exclude: []string{},
	}
}

// IntervalDuration returns the cycle interval
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Sync.Interval) * time.Second
}

// BandwidthBytes parses the bandwidth limit, 0 meaning unlimited
func (c *Config) BandwidthBytes() (int64, error) {
	if c.Performance.Bandwidth == "" || c.Performance.Bandwidth == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.Performance.Bandwidth)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// Validate checks the configuration of the mirror daemon
func (c *Config) Validate() error {
	if err := c.ValidateCycle(); err != nil {
		return err
	}
	if c.Sync.Interval <= 0 {
		return &models.ConfigError{
			Field:   "sync.interval",
			Message: fmt.Sprintf("must be a positive number of seconds, got %d", c.Sync.Interval),
		}
	}
	return nil
}

// ValidateCycle checks everything a single cycle needs, i.e. all but the
// interval
func (c *Config) ValidateCycle() error {
	if c.Sync.Source == "" {
		return &models.ConfigError{Field: "sync.source", Message: "is required"}
	}
	if c.Sync.Replica == "" {
		return &models.ConfigError{Field: "sync.replica", Message: "is required"}
	}
	if c.Log.File == "" {
		return &models.ConfigError{Field: "log.file", Message: "is required"}
	}

	return c.validateOptional()
}

// validateOptional checks the settings that have defaults
func (c *Config) validateOptional() error {
	if c.Performance.MaxWorkers < 1 {
		return &models.ConfigError{
			Field:   "performance.max_workers",
			Message: "must be at least 1",
		}
	}

	if c.Performance.BufferSize < 1024 {
		return &models.ConfigError{
			Field:   "performance.buffer_size",
			Message: "must be at least 1024 bytes",
		}
	}

	if _, err := c.BandwidthBytes(); err != nil {
		return &models.ConfigError{
			Field:   "performance.bandwidth",
			Message: err.Error(),
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Log.Format] {
		return &models.ConfigError{
			Field:   "log.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Log.Level] {
		return &models.ConfigError{
			Field:   "log.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	if c.Log.MaxSize < 0 || c.Log.MaxBackups < 0 {
		return &models.ConfigError{
			Field:   "log.max_size",
			Message: "rotation settings cannot be negative",
		}
	}

	return nil
}
