// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Buffer.SoftCap != 2048 {
		t.Errorf("Buffer.SoftCap = %d, want 2048", cfg.Buffer.SoftCap)
	}
	if cfg.Buffer.HardCap != 65536 {
		t.Errorf("Buffer.HardCap = %d, want 65536", cfg.Buffer.HardCap)
	}
	if cfg.Flush.Interval != 5*time.Second {
		t.Errorf("Flush.Interval = %v, want 5s", cfg.Flush.Interval)
	}
	if cfg.Flush.MaxRetries != 5 {
		t.Errorf("Flush.MaxRetries = %d, want 5", cfg.Flush.MaxRetries)
	}
	if cfg.Privacy.EncryptKeystrokes {
		t.Error("Privacy.EncryptKeystrokes defaults to true, want false")
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want loopback", cfg.Server.Host)
	}
	if got := cfg.Data.DatabasePath(); got != filepath.Join("data", "introspect.db") {
		t.Errorf("DatabasePath() = %q, want data/introspect.db", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("INTROSPECT_BUFFER_SOFT_CAP", "100")
	t.Setenv("INTROSPECT_BUFFER_HARD_CAP", "200")
	t.Setenv("INTROSPECT_FLUSH_MAX_RETRIES", "9")
	t.Setenv("INTROSPECT_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Buffer.SoftCap != 100 || cfg.Buffer.HardCap != 200 {
		t.Errorf("buffer caps = %d/%d, want 100/200", cfg.Buffer.SoftCap, cfg.Buffer.HardCap)
	}
	if cfg.Flush.MaxRetries != 9 {
		t.Errorf("Flush.MaxRetries = %d, want 9", cfg.Flush.MaxRetries)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
buffer:
  soft_cap: 512
privacy:
  excluded_apps:
    - keepassxc
    - bitwarden
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Buffer.SoftCap != 512 {
		t.Errorf("Buffer.SoftCap = %d, want 512 from file", cfg.Buffer.SoftCap)
	}
	// Untouched keys keep their defaults.
	if cfg.Buffer.HardCap != 65536 {
		t.Errorf("Buffer.HardCap = %d, want default 65536", cfg.Buffer.HardCap)
	}
	if len(cfg.Privacy.ExcludedApps) != 2 {
		t.Errorf("ExcludedApps = %v, want 2 entries", cfg.Privacy.ExcludedApps)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("buffer:\n  soft_cap: 512\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("INTROSPECT_BUFFER_SOFT_CAP", "1024")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Buffer.SoftCap != 1024 {
		t.Errorf("Buffer.SoftCap = %d, want env value 1024", cfg.Buffer.SoftCap)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "hard cap below soft cap",
			mutate:  func(c *Config) { c.Buffer.SoftCap = 100; c.Buffer.HardCap = 50 },
			wantErr: "HardCap",
		},
		{
			name:    "zero soft cap",
			mutate:  func(c *Config) { c.Buffer.SoftCap = 0 },
			wantErr: "SoftCap",
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.Flush.MaxRetries = 0 },
			wantErr: "MaxRetries",
		},
		{
			name:    "max backoff below initial",
			mutate:  func(c *Config) { c.Flush.MaxBackoff = c.Flush.RetryBackoff / 2 },
			wantErr: "MaxBackoff",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "Port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "Level",
		},
		{
			name:    "negative move sample rate",
			mutate:  func(c *Config) { c.Capture.MoveSampleRate = -1 },
			wantErr: "MoveSampleRate",
		},
		{
			name:    "encryption without passphrase",
			mutate:  func(c *Config) { c.Privacy.EncryptKeystrokes = true },
			wantErr: "passphrase",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() failed: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestEncryptionWithPassphraseValidates(t *testing.T) {
	cfg := defaultConfig()
	cfg.Privacy.EncryptKeystrokes = true
	cfg.Privacy.Passphrase = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"INTROSPECT_BUFFER_SOFT_CAP", "buffer.soft_cap"},
		{"INTROSPECT_FLUSH_MAX_RETRIES", "flush.max_retries"},
		{"INTROSPECT_LOGGING_LEVEL", "logging.level"},
		{"INTROSPECT_PRIVACY_PASSPHRASE", "privacy.passphrase"},
		{"INTROSPECT_DATA_DIR", "data.dir"},
	}

	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
