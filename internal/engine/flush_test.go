// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/introspect-app/introspect/internal/event"
)

func TestFlushEmptyBufferIsNoop(t *testing.T) {
	st := &fakeStore{}
	e := startedEngine(t, st, testConfig())

	if err := e.Flush(context.Background(), TriggerInterval); err != nil {
		t.Fatalf("Flush() of empty buffer failed: %v", err)
	}
	if st.calls() != 0 {
		t.Errorf("store called %d times for empty buffer, want 0", st.calls())
	}
}

func TestFlushPersistsDrainedSnapshot(t *testing.T) {
	st := &fakeStore{}
	e := startedEngine(t, st, testConfig())

	e.OnKeystroke("one", nil, testWindow(), time.Now())
	e.OnKeystroke("two", nil, testWindow(), time.Now())
	e.OnWindowChange("shell", "term", 11, "", 0, 0, 0, 0, time.Now())

	if err := e.Flush(context.Background(), TriggerInterval); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	snaps := st.persisted()
	if len(snaps) != 1 {
		t.Fatalf("persisted %d snapshots, want 1", len(snaps))
	}
	if len(snaps[0].Keystrokes) != 2 || len(snaps[0].Windows) != 1 {
		t.Errorf("snapshot has %d keystrokes / %d windows, want 2 / 1",
			len(snaps[0].Keystrokes), len(snaps[0].Windows))
	}
	if got := e.Buffer().Size(); got != 0 {
		t.Errorf("buffer size after flush = %d, want 0", got)
	}
}

// TestFlushRetriesSameSnapshot checks the at-most-once retry contract: a
// transient failure retries the identical snapshot, and exactly one copy
// is persisted.
func TestFlushRetriesSameSnapshot(t *testing.T) {
	st := &fakeStore{failures: 1}
	e := startedEngine(t, st, testConfig())

	e.OnKeystroke("retry me", nil, testWindow(), time.Now())

	if err := e.Flush(context.Background(), TriggerInterval); err != nil {
		t.Fatalf("Flush() failed despite retry budget: %v", err)
	}

	if got := st.calls(); got != 2 {
		t.Errorf("store called %d times, want 2 (one failure, one success)", got)
	}
	snaps := st.persisted()
	if len(snaps) != 1 {
		t.Fatalf("persisted %d snapshots, want exactly 1", len(snaps))
	}
	if len(snaps[0].Keystrokes) != 1 || string(snaps[0].Keystrokes[0].Payload) != "retry me" {
		t.Error("retried snapshot does not match original contents")
	}
}

func TestFlushExhaustionDiscardsSnapshot(t *testing.T) {
	st := &fakeStore{failures: 1 << 30}
	cfg := testConfig()
	cfg.MaxRetries = 2
	e := startedEngine(t, st, cfg)

	e.OnKeystroke("doomed", nil, testWindow(), time.Now())

	err := e.Flush(context.Background(), TriggerInterval)
	var flushErr *FlushError
	if !errors.As(err, &flushErr) {
		t.Fatalf("Flush() error = %v, want *FlushError", err)
	}
	if flushErr.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", flushErr.Attempts)
	}
	if flushErr.Items != 1 {
		t.Errorf("Items = %d, want 1", flushErr.Items)
	}
	if flushErr.RangeStart.IsZero() || flushErr.RangeEnd.IsZero() {
		t.Error("FlushError missing the discarded time range")
	}

	// The snapshot is gone: nothing left to re-deliver.
	prevCalls := st.calls()
	if err := e.Flush(context.Background(), TriggerStop); err != nil {
		t.Fatalf("follow-up Flush() failed: %v", err)
	}
	if st.calls() != prevCalls {
		t.Error("discarded snapshot was retried on a later flush")
	}
}

// TestBreakerOpenKeepsBuffering checks that once the store breaker trips,
// interval flushes stop draining and events accumulate instead of being
// discarded.
func TestBreakerOpenKeepsBuffering(t *testing.T) {
	st := &fakeStore{failures: 1 << 30}
	cfg := testConfig()
	cfg.MaxRetries = 2
	e := startedEngine(t, st, cfg)
	ctx := context.Background()

	// Two exhausted flushes produce four consecutive failures, past the
	// breaker's trip threshold.
	for i := 0; i < 2; i++ {
		e.OnKeystroke("x", nil, testWindow(), time.Now())
		if err := e.Flush(ctx, TriggerInterval); err == nil {
			t.Fatalf("flush %d succeeded against a failing store", i)
		}
	}

	e.OnKeystroke("survivor", nil, testWindow(), time.Now())
	prevCalls := st.calls()

	err := e.Flush(ctx, TriggerInterval)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Flush() with open breaker error = %v, want ErrStoreUnavailable", err)
	}
	if st.calls() != prevCalls {
		t.Error("store was called while the breaker was open")
	}
	if got := e.Buffer().Size(); got != 1 {
		t.Errorf("buffer size = %d, want 1 (event must survive the open breaker)", got)
	}
}

// TestStopFlushBypassesOpenBreaker checks that the shutdown flush reaches
// the store even while the breaker is open: retries that never leave the
// engine are not attempts, and the final snapshot must not be discarded
// when the store has recovered.
func TestStopFlushBypassesOpenBreaker(t *testing.T) {
	st := &fakeStore{failures: 4}
	cfg := testConfig()
	cfg.MaxRetries = 2
	e := startedEngine(t, st, cfg)
	ctx := context.Background()

	// Two exhausted flushes produce four consecutive failures, past the
	// breaker's trip threshold. The store is healthy again afterwards.
	for i := 0; i < 2; i++ {
		e.OnKeystroke("x", nil, testWindow(), time.Now())
		if err := e.Flush(ctx, TriggerInterval); err == nil {
			t.Fatalf("flush %d succeeded against a failing store", i)
		}
	}

	e.OnKeystroke("last words", nil, testWindow(), time.Now())

	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed with a recovered store: %v", err)
	}

	snaps := st.persisted()
	if len(snaps) != 1 {
		t.Fatalf("persisted %d snapshots, want 1 (stop flush must reach the store past the open breaker)", len(snaps))
	}
	if len(snaps[0].Keystrokes) != 1 || string(snaps[0].Keystrokes[0].Payload) != "last words" {
		t.Error("stop-flush snapshot does not match the buffered contents")
	}
}

func TestFlushContextCancellationDiscardsOnce(t *testing.T) {
	st := &fakeStore{failures: 1 << 30}
	e := startedEngine(t, st, testConfig())

	e.OnKeystroke("cancelled", nil, testWindow(), time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Flush(ctx, TriggerInterval)
	var flushErr *FlushError
	if !errors.As(err, &flushErr) {
		t.Fatalf("Flush() error = %v, want *FlushError", err)
	}
	if got := e.Buffer().Size(); got != 0 {
		t.Errorf("buffer size = %d, want 0 (cancelled flush still consumed the snapshot)", got)
	}
}

func TestRunFlushesOnInterval(t *testing.T) {
	st := &fakeStore{}
	cfg := testConfig()
	cfg.FlushInterval = 10 * time.Millisecond
	e := startedEngine(t, st, cfg)

	e.OnKeystroke("tick", nil, testWindow(), time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for st.calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("interval flush never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() returned %v, want context.Canceled", err)
	}

	if len(st.persisted()) == 0 {
		t.Error("no snapshot persisted by the interval flush")
	}
}

func TestRunFlushesOnSoftCap(t *testing.T) {
	st := &fakeStore{}
	cfg := testConfig()
	cfg.Buffer.SoftCap = 3
	cfg.Buffer.HardCap = 100
	cfg.FlushInterval = time.Hour // only the soft-cap hint can trigger
	e := startedEngine(t, st, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	for i := 0; i < 3; i++ {
		e.OnKeystroke("k", nil, testWindow(), time.Now())
	}

	deadline := time.After(2 * time.Second)
	for st.calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("soft-cap flush never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	snaps := st.persisted()
	total := 0
	for _, s := range snaps {
		total += len(s.Keystrokes)
	}
	if total != 3 {
		t.Errorf("persisted %d keystrokes, want 3", total)
	}
}

// TestEndToEndCaptureFlow walks the canonical scenario: typing in one
// window, switching to a second, clicking once, then flushing and reading
// the persisted shape back through the fake store.
func TestEndToEndCaptureFlow(t *testing.T) {
	st := &fakeStore{}
	e := startedEngine(t, st, testConfig())
	base := time.Now().UTC()

	w1 := &event.WindowKey{Title: "draft.md", ProcessName: "editor", ProcessID: 21}
	w2 := &event.WindowKey{Title: "inbox", ProcessName: "mail", ProcessID: 22}

	e.OnWindowChange("draft.md", "editor", 21, "", 0, 0, 800, 600, base)
	e.OnKeystroke("a", nil, w1, base.Add(1*time.Second))
	e.OnKeystroke("b", nil, w1, base.Add(2*time.Second))
	e.OnKeystroke("c", nil, w1, base.Add(3*time.Second))
	// Re-observation of the same window extends it in place.
	e.OnWindowChange("draft.md", "editor", 21, "", 0, 0, 800, 600, base.Add(60*time.Second))

	e.OnWindowChange("inbox", "mail", 22, "", 0, 0, 800, 600, base.Add(61*time.Second))
	e.OnPointerEvent(400, 300, "left", event.PointerClick, w2, base.Add(62*time.Second))

	if err := e.Flush(context.Background(), TriggerInterval); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	snaps := st.persisted()
	if len(snaps) != 1 {
		t.Fatalf("persisted %d snapshots, want 1", len(snaps))
	}
	snap := snaps[0]

	if len(snap.Keystrokes) != 3 {
		t.Errorf("persisted %d keystroke batches, want 3", len(snap.Keystrokes))
	}
	if len(snap.Pointers) != 1 || snap.Pointers[0].Type != event.PointerClick {
		t.Errorf("persisted pointers = %+v, want one click", snap.Pointers)
	}
	if len(snap.Windows) != 2 {
		t.Fatalf("persisted %d window records, want 2 (dedup must collapse re-observations)", len(snap.Windows))
	}

	// The first window accrued 60s of presence from its two observations.
	editor := snap.Windows[0]
	if editor.Key.Title != "draft.md" {
		t.Fatalf("first window = %q, want draft.md (observation order)", editor.Key.Title)
	}
	if got := editor.LastSeen.Sub(editor.FirstSeen); got != 60*time.Second {
		t.Errorf("editor window span = %v, want 60s", got)
	}
}
