// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package event

import "time"

// ActivityStats is the derived, read-only aggregate over a day-count window.
// It is computed from the store on demand and never persisted; stats lag the
// live buffer by at most one flush interval.
type ActivityStats struct {
	Keystrokes    uint64     `json:"keystrokes"`
	Clicks        uint64     `json:"clicks"`
	PointerEvents uint64     `json:"pointer_events"`
	WindowChanges uint64     `json:"window_changes"`
	ActiveSeconds uint64     `json:"active_seconds"`
	TopApps       []AppUsage `json:"top_apps"`
	RangeStart    time.Time  `json:"range_start"`
	RangeEnd      time.Time  `json:"range_end"`
}

// AppUsage ranks one application within an ActivityStats window.
// Percentage is relative to the total tracked window duration and rounded to
// one decimal for display; DurationSeconds and Events remain exact.
type AppUsage struct {
	Name            string  `json:"name"`
	Percentage      float64 `json:"percentage"`
	DurationSeconds uint64  `json:"duration_seconds"`
	Events          uint64  `json:"events"`
	Windows         uint64  `json:"windows"`
}

// ExportFormat selects the serialization used by range exports.
type ExportFormat string

// Supported export formats.
const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
	ExportSQL  ExportFormat = "sql"
)

// Valid reports whether f is a supported export format.
func (f ExportFormat) Valid() bool {
	switch f {
	case ExportJSON, ExportCSV, ExportSQL:
		return true
	}
	return false
}
