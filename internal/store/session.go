// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/introspect-app/introspect/internal/metrics"
)

// BeginSession records the start of one monitoring run and returns its ID.
func (s *Store) BeginSession(ctx context.Context) (string, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer metrics.RecordStoreQuery("session", time.Now())

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, start_time) VALUES (?, ?)`,
		id, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// EndSession closes a monitoring run. Ending an unknown or already-closed
// session is an error so lifecycle bugs surface instead of passing silently.
func (s *Store) EndSession(ctx context.Context, id string) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer metrics.RecordStoreQuery("session", time.Now())

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET end_time = ? WHERE id = ? AND end_time IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s not found or already closed", id)
	}
	return nil
}
