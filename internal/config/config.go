// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

// Package config provides layered configuration for the monitoring daemon:
// built-in defaults, an optional YAML file, then environment variables, each
// layer overriding the previous (Koanf v2). Struct validation runs after
// unmarshaling via go-playground/validator.
package config

import (
	"path/filepath"
	"time"
)

// Config is the root configuration for the daemon.
type Config struct {
	Data    DataConfig    `koanf:"data" validate:"required"`
	Capture CaptureConfig `koanf:"capture"`
	Buffer  BufferConfig  `koanf:"buffer"`
	Flush   FlushConfig   `koanf:"flush"`
	Privacy PrivacyConfig `koanf:"privacy"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// DataConfig locates the on-disk state.
type DataConfig struct {
	// Dir is the directory holding the database and any derived files.
	Dir string `koanf:"dir" validate:"required"`

	// DatabaseFile is the SQLite file name inside Dir.
	DatabaseFile string `koanf:"database_file" validate:"required"`
}

// DatabasePath returns the full SQLite database path.
func (d DataConfig) DatabasePath() string {
	return filepath.Join(d.Dir, d.DatabaseFile)
}

// CaptureConfig tunes how the engine accepts events from capture sources.
type CaptureConfig struct {
	// MoveSampleRate caps accepted pointer-move events per second. Moves
	// beyond the rate are dropped with a counted metric; clicks and
	// scrolls are never throttled. Zero disables move capture entirely.
	MoveSampleRate float64 `koanf:"move_sample_rate" validate:"gte=0"`
}

// BufferConfig sets the in-memory occupancy thresholds.
type BufferConfig struct {
	// SoftCap is the buffered item count that triggers an early flush.
	SoftCap int `koanf:"soft_cap" validate:"gt=0"`

	// HardCap is the item count above which new events are dropped while
	// the store is unavailable. Must be at least SoftCap.
	HardCap int `koanf:"hard_cap" validate:"gtefield=SoftCap"`
}

// FlushConfig controls the flush coordinator.
type FlushConfig struct {
	// Interval is the time-driven flush period.
	Interval time.Duration `koanf:"interval" validate:"gt=0"`

	// MaxRetries bounds transaction attempts per snapshot; after the last
	// failure the snapshot is logged and discarded (at-most-once).
	MaxRetries int `koanf:"max_retries" validate:"gte=1"`

	// RetryBackoff is the initial backoff between attempts; it doubles per
	// retry up to MaxBackoff.
	RetryBackoff time.Duration `koanf:"retry_backoff" validate:"gt=0"`

	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration `koanf:"max_backoff" validate:"gtefield=RetryBackoff"`

	// TxTimeout bounds each store transaction attempt; exceeding it counts
	// as a failed attempt.
	TxTimeout time.Duration `koanf:"tx_timeout" validate:"gt=0"`
}

// PrivacyConfig controls payload protection.
type PrivacyConfig struct {
	// EncryptKeystrokes enables keystroke payload encryption. When set,
	// Passphrase must be non-empty.
	EncryptKeystrokes bool `koanf:"encrypt_keystrokes"`

	// Passphrase is the encryption key material, normally supplied via
	// INTROSPECT_PRIVACY_PASSPHRASE. Never persisted.
	Passphrase string `koanf:"passphrase"`

	// ExcludedApps lists process names whose keystrokes and pointer events
	// are never recorded. Window observations are still kept.
	ExcludedApps []string `koanf:"excluded_apps"`
}

// ServerConfig configures the local read-only HTTP surface.
type ServerConfig struct {
	Enabled bool          `koanf:"enabled"`
	Host    string        `koanf:"host" validate:"required"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// defaultConfig returns a Config with all default values. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir:          "data",
			DatabaseFile: "introspect.db",
		},
		Capture: CaptureConfig{
			MoveSampleRate: 5,
		},
		Buffer: BufferConfig{
			SoftCap: 2048,
			HardCap: 65536,
		},
		Flush: FlushConfig{
			Interval:     5 * time.Second,
			MaxRetries:   5,
			RetryBackoff: 250 * time.Millisecond,
			MaxBackoff:   5 * time.Second,
			TxTimeout:    10 * time.Second,
		},
		Privacy: PrivacyConfig{
			EncryptKeystrokes: false,
		},
		Server: ServerConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    7600,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
