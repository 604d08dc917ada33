// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package engine

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Status is a point-in-time snapshot of the engine for diagnostics. The
// live counters are approximate under concurrency; they answer "is it
// capturing right now", not accounting questions.
type Status struct {
	MonitoringActive bool      `json:"monitoring_active"`
	SessionID        string    `json:"session_id,omitempty"`
	StartedAt        time.Time `json:"started_at,omitempty"`

	BufferedCount int    `json:"buffered_count"`
	DroppedCount  uint64 `json:"dropped_count"`

	Keystrokes    uint64    `json:"keystrokes"`
	Clicks        uint64    `json:"clicks"`
	WindowChanges uint64    `json:"window_changes"`
	LastActivity  time.Time `json:"last_activity,omitempty"`
	LastFlush     time.Time `json:"last_flush,omitempty"`

	StoreBreaker string `json:"store_breaker"`
	RSSBytes     uint64 `json:"rss_bytes,omitempty"`
}

// Status reports the current engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	running := e.running
	sessionID := e.sessionID
	startedAt := e.startedAt
	e.mu.Unlock()

	counters := e.buf.Counters()

	st := Status{
		MonitoringActive: running,
		BufferedCount:    e.buf.Size(),
		DroppedCount:     e.buf.Dropped(),
		Keystrokes:       counters.Keystrokes,
		Clicks:           counters.Clicks,
		WindowChanges:    counters.WindowChanges,
		LastActivity:     counters.LastActivity,
		StoreBreaker:     e.breaker.State().String(),
		RSSBytes:         selfRSS(),
	}

	if running {
		st.SessionID = sessionID
		st.StartedAt = startedAt
	}
	if ns := e.lastFlush.Load(); ns > 0 {
		st.LastFlush = time.Unix(0, ns).UTC()
	}

	return st
}

// selfRSS returns the daemon's resident set size, or zero when the
// platform query fails. Best effort only.
func selfRSS() uint64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	mem, err := proc.MemoryInfo()
	if err != nil || mem == nil {
		return 0
	}
	return mem.RSS
}
