// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

// Package store persists captured activity in a local SQLite database.
//
// The store is the single durability boundary of the engine: the flush
// coordinator is the only writer, and every flush is one transaction that
// upserts processes, then windows, then inserts the records referencing
// them. Readers (stats, export) only ever see committed flushes.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/introspect-app/introspect/internal/logging"
)

// defaultQueryTimeout bounds read queries that arrive without a deadline.
const defaultQueryTimeout = 30 * time.Second

//nolint:gochecknoinits // registers the bindvar type for the modernc driver name
func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Config holds store configuration.
type Config struct {
	// Path is the SQLite database file path.
	Path string

	// BusyTimeout is how long SQLite waits on a locked database before
	// failing, surfaced to the flush retry loop as a failed attempt.
	BusyTimeout time.Duration
}

// Store wraps the SQLite connection and provides data access methods.
type Store struct {
	db  *sqlx.DB
	cfg Config
}

// Open creates the database file (and parent directory) if needed,
// applies pragmas, and initializes the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	// WAL keeps readers (stats, export) from blocking the flush writer.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection sidesteps lock
	// contention between the flush transaction and itself.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, cfg: cfg}
	if err := s.createTables(); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Activity store opened")
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ensureContext attaches the default timeout to contexts without a deadline.
func ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// closeQuietly closes a resource in error paths where Close errors are not
// actionable.
func closeQuietly(db *sqlx.DB) {
	if db != nil {
		_ = db.Close()
	}
}
