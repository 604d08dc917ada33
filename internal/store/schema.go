// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package store

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// createTables creates the core tables and indexes.
func (s *Store) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// tableCreationQueries returns the table and index creation statements.
//
// Schema notes:
//   - processes are unique by (name, bundle_id); both halves of the key are
//     NOT NULL so the uniqueness constraint actually holds in SQLite.
//   - keystroke payloads are BLOBs; the encrypted flag records which codec
//     path the payload took and is never inferred.
//   - window_id references are nullable: capture sources may emit events
//     before any window observation exists.
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS processes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			bundle_id TEXT NOT NULL DEFAULT '',
			first_seen TIMESTAMP NOT NULL,
			last_seen TIMESTAMP NOT NULL,
			UNIQUE (name, bundle_id)
		)`,

		`CREATE TABLE IF NOT EXISTS windows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			process_id INTEGER NOT NULL REFERENCES processes(id),
			x INTEGER NOT NULL DEFAULT 0,
			y INTEGER NOT NULL DEFAULT 0,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			first_seen TIMESTAMP NOT NULL,
			last_seen TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS keystroke_batches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			window_id INTEGER REFERENCES windows(id),
			payload BLOB NOT NULL,
			encrypted BOOLEAN NOT NULL DEFAULT 0,
			modifiers TEXT NOT NULL DEFAULT '',
			count INTEGER NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS pointer_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			window_id INTEGER REFERENCES windows(id),
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			button TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_processes_name ON processes(name)`,
		`CREATE INDEX IF NOT EXISTS idx_windows_process ON windows(process_id)`,
		`CREATE INDEX IF NOT EXISTS idx_windows_first_seen ON windows(first_seen)`,
		`CREATE INDEX IF NOT EXISTS idx_keystrokes_recorded ON keystroke_batches(recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_pointer_recorded ON pointer_events(recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions(start_time)`,
	}
}
