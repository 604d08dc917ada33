// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package event

import (
	"testing"
	"time"
)

func TestPointerTypeValid(t *testing.T) {
	tests := []struct {
		typ  PointerType
		want bool
	}{
		{PointerClick, true},
		{PointerMove, true},
		{PointerScroll, true},
		{PointerType("hover"), false},
		{PointerType(""), false},
	}
	for _, tt := range tests {
		if got := tt.typ.Valid(); got != tt.want {
			t.Errorf("PointerType(%q).Valid() = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestExportFormatValid(t *testing.T) {
	tests := []struct {
		format ExportFormat
		want   bool
	}{
		{ExportJSON, true},
		{ExportCSV, true},
		{ExportSQL, true},
		{ExportFormat("xml"), false},
		{ExportFormat(""), false},
	}
	for _, tt := range tests {
		if got := tt.format.Valid(); got != tt.want {
			t.Errorf("ExportFormat(%q).Valid() = %v, want %v", tt.format, got, tt.want)
		}
	}
}

func TestWindowEventKey(t *testing.T) {
	e := WindowEvent{
		Title:       "shell",
		ProcessName: "term",
		ProcessID:   42,
		BundleID:    "org.example.term",
		X:           10,
		Timestamp:   time.Now(),
	}
	key := e.Key()
	if key.Title != "shell" || key.ProcessName != "term" || key.ProcessID != 42 {
		t.Errorf("Key() = %+v, want identity fields only", key)
	}
}

func TestJoinModifiers(t *testing.T) {
	tests := []struct {
		name string
		mods []string
		want string
	}{
		{"none", nil, ""},
		{"empty slice", []string{}, ""},
		{"single", []string{"ctrl"}, "ctrl"},
		{"multiple keep order", []string{"ctrl", "shift", "alt"}, "ctrl+shift+alt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinModifiers(tt.mods); got != tt.want {
				t.Errorf("JoinModifiers(%v) = %q, want %q", tt.mods, got, tt.want)
			}
		})
	}
}

func TestSnapshotEmptyAndLen(t *testing.T) {
	s := &Snapshot{}
	if !s.Empty() || s.Len() != 0 {
		t.Errorf("zero snapshot Empty()=%v Len()=%d, want true/0", s.Empty(), s.Len())
	}

	s.Keystrokes = append(s.Keystrokes, KeystrokeBatch{Count: 1})
	s.Windows = append(s.Windows, WindowRecord{})
	if s.Empty() {
		t.Error("Empty() = true with records present")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestSnapshotTimeRange(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		start, end := (&Snapshot{}).TimeRange()
		if !start.IsZero() || !end.IsZero() {
			t.Errorf("TimeRange() = %v/%v, want zero/zero", start, end)
		}
	})

	t.Run("spans all record kinds", func(t *testing.T) {
		s := &Snapshot{
			Keystrokes: []KeystrokeBatch{{RecordedAt: base.Add(time.Minute)}},
			Pointers:   []PointerRecord{{RecordedAt: base.Add(2 * time.Minute)}},
			Windows: []WindowRecord{{
				FirstSeen: base,
				LastSeen:  base.Add(3 * time.Minute),
			}},
		}
		start, end := s.TimeRange()
		if !start.Equal(base) {
			t.Errorf("start = %v, want %v (window first-seen)", start, base)
		}
		if !end.Equal(base.Add(3 * time.Minute)) {
			t.Errorf("end = %v, want %v (window last-seen)", end, base.Add(3*time.Minute))
		}
	})

	t.Run("ignores zero timestamps", func(t *testing.T) {
		s := &Snapshot{
			Keystrokes: []KeystrokeBatch{{RecordedAt: base}, {}},
		}
		start, end := s.TimeRange()
		if !start.Equal(base) || !end.Equal(base) {
			t.Errorf("TimeRange() = %v/%v, want %v for both", start, end, base)
		}
	})
}
