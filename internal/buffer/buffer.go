// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

// Package buffer implements the thread-safe in-memory accumulation structure
// between the concurrent capture producers and the single flush consumer.
//
// Design: N independent producers, one serialized drainer, coordinated by a
// single mutex around an O(1) storage swap. Producers are never blocked for
// the duration of a store write because the flush path drains first and
// writes after releasing the lock.
package buffer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/introspect-app/introspect/internal/event"
	"github.com/introspect-app/introspect/internal/metrics"
)

// Default occupancy thresholds. The soft cap requests an early flush; the
// hard cap bounds memory growth under sustained store unavailability by
// dropping new events with a counted metric.
const (
	DefaultSoftCap = 2048
	DefaultHardCap = 65536
)

// Config holds buffer occupancy thresholds.
type Config struct {
	// SoftCap is the item count at which a flush is requested.
	SoftCap int

	// HardCap is the item count above which new events are dropped.
	HardCap int
}

// LiveCounters are session-level counters maintained on every accepted
// event, so status reporting never needs a store read.
type LiveCounters struct {
	Keystrokes    uint64    `json:"keystrokes"`
	Clicks        uint64    `json:"clicks"`
	WindowChanges uint64    `json:"window_changes"`
	LastActivity  time.Time `json:"last_activity"`
}

// Buffer accumulates pending keystroke batches, pointer records, and
// deduplicated window records until a flush claims them atomically.
type Buffer struct {
	mu         sync.Mutex
	keystrokes []event.KeystrokeBatch
	pointers   []event.PointerRecord
	windows    *windowIndex
	size       int

	softCap int
	hardCap int

	// flushHint carries at most one pending soft-cap signal.
	flushHint chan struct{}

	keystrokeCount atomic.Uint64
	clickCount     atomic.Uint64
	windowCount    atomic.Uint64
	droppedCount   atomic.Uint64
	lastActivity   atomic.Int64 // unix nanoseconds
}

// New creates a Buffer with the given thresholds, applying defaults for
// zero values.
func New(cfg Config) *Buffer {
	if cfg.SoftCap <= 0 {
		cfg.SoftCap = DefaultSoftCap
	}
	if cfg.HardCap <= 0 {
		cfg.HardCap = DefaultHardCap
	}
	if cfg.HardCap < cfg.SoftCap {
		cfg.HardCap = cfg.SoftCap
	}

	return &Buffer{
		windows:   newWindowIndex(),
		softCap:   cfg.SoftCap,
		hardCap:   cfg.HardCap,
		flushHint: make(chan struct{}, 1),
	}
}

// AddKeystroke buffers one keystroke batch. It reports false when the hard
// cap forced the record to be dropped.
func (b *Buffer) AddKeystroke(rec event.KeystrokeBatch) bool {
	b.mu.Lock()
	if b.size >= b.hardCap {
		b.mu.Unlock()
		b.droppedCount.Add(1)
		metrics.EventsDropped.WithLabelValues("hard_cap").Inc()
		return false
	}
	b.keystrokes = append(b.keystrokes, rec)
	b.size++
	size := b.size
	b.mu.Unlock()

	b.keystrokeCount.Add(uint64(rec.Count))
	b.touch(rec.RecordedAt)
	metrics.EventsCaptured.WithLabelValues("keystroke").Inc()
	b.afterAdd(size)
	return true
}

// AddPointer buffers one pointer record. It reports false when the hard cap
// forced the record to be dropped.
func (b *Buffer) AddPointer(rec event.PointerRecord) bool {
	b.mu.Lock()
	if b.size >= b.hardCap {
		b.mu.Unlock()
		b.droppedCount.Add(1)
		metrics.EventsDropped.WithLabelValues("hard_cap").Inc()
		return false
	}
	b.pointers = append(b.pointers, rec)
	b.size++
	size := b.size
	b.mu.Unlock()

	if rec.Type == event.PointerClick {
		b.clickCount.Add(1)
	}
	b.touch(rec.RecordedAt)
	metrics.EventsCaptured.WithLabelValues("pointer").Inc()
	b.afterAdd(size)
	return true
}

// AddWindow applies one window observation through the deduplicator. An
// observation of an already-open window updates it in place and never
// counts against the caps.
func (b *Buffer) AddWindow(e event.WindowEvent) bool {
	b.mu.Lock()
	if _, open := b.windows.open[e.Key()]; !open && b.size >= b.hardCap {
		b.mu.Unlock()
		b.droppedCount.Add(1)
		metrics.EventsDropped.WithLabelValues("hard_cap").Inc()
		return false
	}
	created := b.windows.observe(&e)
	if created {
		b.size++
	}
	size := b.size
	b.mu.Unlock()

	if created {
		b.windowCount.Add(1)
	}
	b.touch(e.Timestamp)
	metrics.EventsCaptured.WithLabelValues("window").Inc()
	b.afterAdd(size)
	return true
}

// Drain atomically swaps the internal storage for empty storage and returns
// the previous contents as an immutable snapshot. All open window records
// are closed. Callers never observe a partially-drained buffer, and a
// second Drain with no intervening adds returns an empty snapshot.
func (b *Buffer) Drain() *event.Snapshot {
	b.mu.Lock()
	snap := &event.Snapshot{
		Keystrokes: b.keystrokes,
		Pointers:   b.pointers,
		Windows:    b.windows.closeAll(),
		DrainedAt:  time.Now().UTC(),
	}
	b.keystrokes = nil
	b.pointers = nil
	b.size = 0
	b.mu.Unlock()

	metrics.BufferSize.Set(0)
	return snap
}

// Size returns the current number of buffered records.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// CurrentWindow returns the key of the most recently observed window.
func (b *Buffer) CurrentWindow() (event.WindowKey, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.windows.currentKey()
}

// Counters returns the session-level live counters.
func (b *Buffer) Counters() LiveCounters {
	c := LiveCounters{
		Keystrokes:    b.keystrokeCount.Load(),
		Clicks:        b.clickCount.Load(),
		WindowChanges: b.windowCount.Load(),
	}
	if ns := b.lastActivity.Load(); ns != 0 {
		c.LastActivity = time.Unix(0, ns).UTC()
	}
	return c
}

// Dropped returns the number of events dropped at the hard cap.
func (b *Buffer) Dropped() uint64 {
	return b.droppedCount.Load()
}

// FlushHint returns a channel that receives a value when occupancy crosses
// the soft cap. The channel holds at most one pending signal.
func (b *Buffer) FlushHint() <-chan struct{} {
	return b.flushHint
}

// afterAdd publishes occupancy and requests a flush past the soft cap.
func (b *Buffer) afterAdd(size int) {
	metrics.BufferSize.Set(float64(size))
	if size >= b.softCap {
		select {
		case b.flushHint <- struct{}{}:
		default:
		}
	}
}

// touch advances the last-activity timestamp, never moving it backwards.
func (b *Buffer) touch(ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	ns := ts.UnixNano()
	for {
		prev := b.lastActivity.Load()
		if ns <= prev || b.lastActivity.CompareAndSwap(prev, ns) {
			return
		}
	}
}
