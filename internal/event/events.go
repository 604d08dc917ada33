// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

// Package event defines the canonical event and record types shared by the
// capture, buffering, and persistence layers.
//
// The event surface is a deliberately closed set of exactly three kinds:
// keystrokes, pointer events, and window changes. Adding a new kind is a
// schema change, not an open dictionary.
package event

import (
	"time"
)

// PointerType classifies a pointer event.
type PointerType string

// The three pointer event types emitted by capture sources.
const (
	PointerClick  PointerType = "click"
	PointerMove   PointerType = "move"
	PointerScroll PointerType = "scroll"
)

// Valid reports whether t is one of the known pointer types.
func (t PointerType) Valid() bool {
	switch t {
	case PointerClick, PointerMove, PointerScroll:
		return true
	}
	return false
}

// WindowKey identifies a logical foreground window for deduplication.
// Two observations with the same key describe the same window.
type WindowKey struct {
	Title       string `json:"title"`
	ProcessName string `json:"process_name"`
	ProcessID   int    `json:"process_id"`
}

// KeyEvent is a normalized keystroke observation from a capture source.
// Text is plaintext here; encryption happens before the record enters the
// buffer, never after.
type KeyEvent struct {
	Text      string     `json:"text"`
	Modifiers []string   `json:"modifiers,omitempty"`
	Window    *WindowKey `json:"window,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// PointerEvent is a normalized mouse observation from a capture source.
type PointerEvent struct {
	X         int         `json:"x"`
	Y         int         `json:"y"`
	Button    string      `json:"button"`
	Type      PointerType `json:"type"`
	Window    *WindowKey  `json:"window,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// WindowEvent is a normalized foreground-window observation.
type WindowEvent struct {
	Title       string    `json:"title"`
	ProcessName string    `json:"process_name"`
	ProcessID   int       `json:"process_id"`
	BundleID    string    `json:"bundle_id,omitempty"`
	X           int       `json:"x"`
	Y           int       `json:"y"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Timestamp   time.Time `json:"timestamp"`
}

// Key returns the deduplication key for the observed window.
func (e *WindowEvent) Key() WindowKey {
	return WindowKey{Title: e.Title, ProcessName: e.ProcessName, ProcessID: e.ProcessID}
}
