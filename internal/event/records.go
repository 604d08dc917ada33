// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package event

import (
	"strings"
	"time"
)

// KeystrokeBatch is a buffered keystroke record awaiting persistence.
// Payload holds ciphertext when Encrypted is true, raw UTF-8 otherwise;
// the flag always reflects which path the record actually took.
type KeystrokeBatch struct {
	Payload    []byte     `json:"payload"`
	Encrypted  bool       `json:"encrypted"`
	Modifiers  string     `json:"modifiers,omitempty"`
	Count      int        `json:"count"`
	Window     *WindowKey `json:"window,omitempty"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// PointerRecord is a buffered pointer event awaiting persistence.
type PointerRecord struct {
	X          int         `json:"x"`
	Y          int         `json:"y"`
	Button     string      `json:"button"`
	Type       PointerType `json:"type"`
	Window     *WindowKey  `json:"window,omitempty"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// WindowRecord is a deduplicated window observation. While buffered it is
// "open": repeated observations of the same key update LastSeen and geometry
// in place. Draining the buffer closes it.
type WindowRecord struct {
	Key       WindowKey `json:"key"`
	BundleID  string    `json:"bundle_id,omitempty"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Snapshot is the immutable result of an atomic buffer drain. Ownership of
// the contained records transfers to the flush path; the buffer keeps no
// references to them.
type Snapshot struct {
	Keystrokes []KeystrokeBatch `json:"keystrokes"`
	Pointers   []PointerRecord  `json:"pointers"`
	Windows    []WindowRecord   `json:"windows"`
	DrainedAt  time.Time        `json:"drained_at"`
}

// Empty reports whether the snapshot holds no records at all.
func (s *Snapshot) Empty() bool {
	return len(s.Keystrokes) == 0 && len(s.Pointers) == 0 && len(s.Windows) == 0
}

// Len returns the total number of records in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.Keystrokes) + len(s.Pointers) + len(s.Windows)
}

// TimeRange returns the earliest and latest record timestamps in the
// snapshot. Both are zero for an empty snapshot. Used to make discarded
// flushes auditable.
func (s *Snapshot) TimeRange() (start, end time.Time) {
	observe := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if start.IsZero() || t.Before(start) {
			start = t
		}
		if end.IsZero() || t.After(end) {
			end = t
		}
	}
	for i := range s.Keystrokes {
		observe(s.Keystrokes[i].RecordedAt)
	}
	for i := range s.Pointers {
		observe(s.Pointers[i].RecordedAt)
	}
	for i := range s.Windows {
		observe(s.Windows[i].FirstSeen)
		observe(s.Windows[i].LastSeen)
	}
	return start, end
}

// JoinModifiers canonicalizes a modifier set for storage ("ctrl+shift").
// Order is preserved as reported by the capture source.
func JoinModifiers(mods []string) string {
	if len(mods) == 0 {
		return ""
	}
	return strings.Join(mods, "+")
}
