// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/introspect-app/introspect/internal/event"
	"github.com/introspect-app/introspect/internal/logging"
	"github.com/introspect-app/introspect/internal/metrics"
)

// procKey identifies a process row for lazy upserts within one flush.
type procKey struct {
	name     string
	bundleID string
}

// PersistSnapshot writes one drained snapshot inside a single transaction,
// in referential order: processes first, then windows, then the keystroke
// batches and pointer events that reference them. An empty snapshot is a
// no-op. On any error the transaction rolls back completely, so a retry of
// the same snapshot can never produce duplicate rows.
func (s *Store) PersistSnapshot(ctx context.Context, snap *event.Snapshot) error {
	if snap == nil || snap.Empty() {
		return nil
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer metrics.RecordStoreQuery("persist", time.Now())

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin flush transaction: %w", err)
	}

	if err := persistTx(ctx, tx, snap); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logging.Warn().Err(rbErr).Msg("Failed to roll back flush transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flush: %w", err)
	}
	return nil
}

func persistTx(ctx context.Context, tx *sqlx.Tx, snap *event.Snapshot) error {
	// Processes before windows before records: referential integrity
	// without foreign-key deferral.
	procIDs := make(map[procKey]int64, len(snap.Windows))
	for i := range snap.Windows {
		w := &snap.Windows[i]
		key := procKey{name: w.Key.ProcessName, bundleID: w.BundleID}
		if _, ok := procIDs[key]; ok {
			continue
		}
		var id int64
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO processes (name, bundle_id, first_seen, last_seen)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (name, bundle_id) DO UPDATE SET last_seen = excluded.last_seen
			 RETURNING id`,
			w.Key.ProcessName, w.BundleID, w.FirstSeen.UTC(), w.LastSeen.UTC()).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to upsert process %q: %w", w.Key.ProcessName, err)
		}
		procIDs[key] = id
	}

	windowIDs := make(map[event.WindowKey]int64, len(snap.Windows))
	for i := range snap.Windows {
		w := &snap.Windows[i]
		processID := procIDs[procKey{name: w.Key.ProcessName, bundleID: w.BundleID}]
		var id int64
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO windows (title, process_id, x, y, width, height, first_seen, last_seen)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 RETURNING id`,
			w.Key.Title, processID, w.X, w.Y, w.Width, w.Height,
			w.FirstSeen.UTC(), w.LastSeen.UTC()).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to insert window %q: %w", w.Key.Title, err)
		}
		windowIDs[w.Key] = id
	}

	for i := range snap.Keystrokes {
		k := &snap.Keystrokes[i]
		windowID := resolveWindow(ctx, tx, windowIDs, k.Window)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO keystroke_batches (window_id, payload, encrypted, modifiers, count, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			windowID, k.Payload, k.Encrypted, k.Modifiers, k.Count, k.RecordedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert keystroke batch: %w", err)
		}
	}

	for i := range snap.Pointers {
		p := &snap.Pointers[i]
		windowID := resolveWindow(ctx, tx, windowIDs, p.Window)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pointer_events (window_id, x, y, button, event_type, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			windowID, p.X, p.Y, p.Button, string(p.Type), p.RecordedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert pointer event: %w", err)
		}
	}

	return nil
}

// resolveWindow maps a record's window key to a window row ID. Keys outside
// the current snapshot fall back to the most recent matching row from an
// earlier flush; a window the store has never seen yields NULL.
func resolveWindow(ctx context.Context, tx *sqlx.Tx, windowIDs map[event.WindowKey]int64, key *event.WindowKey) interface{} {
	if key == nil {
		return nil
	}
	if id, ok := windowIDs[*key]; ok {
		return id
	}

	var id int64
	err := tx.QueryRowxContext(ctx,
		`SELECT w.id FROM windows w
		 JOIN processes p ON p.id = w.process_id
		 WHERE w.title = ? AND p.name = ?
		 ORDER BY w.last_seen DESC, w.id DESC
		 LIMIT 1`,
		key.Title, key.ProcessName).Scan(&id)
	if err != nil {
		// Unknown window: the reference is nullable by design.
		return nil
	}
	return id
}
