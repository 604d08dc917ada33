// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAlreadyRunning is returned by Start when a session is active.
	ErrAlreadyRunning = errors.New("monitoring already running")

	// ErrNotRunning is returned by Stop when no session is active.
	ErrNotRunning = errors.New("monitoring not running")

	// ErrStoreUnavailable is returned by Flush while the store circuit
	// breaker is open; the buffer keeps accumulating instead of draining.
	ErrStoreUnavailable = errors.New("store unavailable, buffering until recovery")
)

// StoreUnavailableError wraps a store failure that prevented the session
// lifecycle from proceeding.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %v", e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// FlushError reports a snapshot discarded after all persistence attempts
// failed. It carries enough detail to audit exactly what was lost.
type FlushError struct {
	Attempts   int
	Items      int
	RangeStart time.Time
	RangeEnd   time.Time
	Err        error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("discarded %d records (%s to %s) after %d failed flush attempts: %v",
		e.Items, e.RangeStart.Format(time.RFC3339), e.RangeEnd.Format(time.RFC3339), e.Attempts, e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }
