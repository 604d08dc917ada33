// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package buffer

import (
	"github.com/introspect-app/introspect/internal/event"
)

// windowIndex collapses repeated observations of the same foreground window
// into a single open record. A window moves Unseen -> Open on first
// observation and Open -> Closed when the buffer drains; it is never
// re-opened automatically, only by the next incoming observation.
//
// Not safe for concurrent use; the owning Buffer serializes access.
type windowIndex struct {
	open  map[event.WindowKey]*event.WindowRecord
	order []event.WindowKey

	current    event.WindowKey
	hasCurrent bool
}

func newWindowIndex() *windowIndex {
	return &windowIndex{
		open: make(map[event.WindowKey]*event.WindowRecord),
	}
}

// observe applies one window event and reports whether a new open record
// was created. Repeated observations of an open window update last-seen and
// geometry in place instead of inserting a duplicate.
//
// The most recently received observation always wins as "current", which
// resolves identical-timestamp ties from capture jitter in arrival order.
func (w *windowIndex) observe(e *event.WindowEvent) bool {
	key := e.Key()
	w.current = key
	w.hasCurrent = true

	if rec, ok := w.open[key]; ok {
		if !e.Timestamp.Before(rec.LastSeen) {
			rec.LastSeen = e.Timestamp
		}
		rec.X, rec.Y, rec.Width, rec.Height = e.X, e.Y, e.Width, e.Height
		if e.BundleID != "" {
			rec.BundleID = e.BundleID
		}
		return false
	}

	w.open[key] = &event.WindowRecord{
		Key:       key,
		BundleID:  e.BundleID,
		X:         e.X,
		Y:         e.Y,
		Width:     e.Width,
		Height:    e.Height,
		FirstSeen: e.Timestamp,
		LastSeen:  e.Timestamp,
	}
	w.order = append(w.order, key)
	return true
}

// closeAll finalizes every open record in observation order and resets the
// index. The currently active window is not re-opened here; the next
// incoming observation recreates it lazily.
func (w *windowIndex) closeAll() []event.WindowRecord {
	if len(w.order) == 0 {
		return nil
	}

	closed := make([]event.WindowRecord, 0, len(w.order))
	for _, key := range w.order {
		closed = append(closed, *w.open[key])
	}
	w.open = make(map[event.WindowKey]*event.WindowRecord)
	w.order = w.order[:0]
	return closed
}

// len returns the number of open records.
func (w *windowIndex) len() int {
	return len(w.order)
}

// currentKey returns the key of the most recently observed window.
func (w *windowIndex) currentKey() (event.WindowKey, bool) {
	return w.current, w.hasCurrent
}
