// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package engine

import (
	"context"
	"time"

	"github.com/introspect-app/introspect/internal/event"
)

// Sink receives normalized events from capture sources. *Engine is the
// production implementation; none of the methods return errors, so capture
// threads can fire-and-forget.
type Sink interface {
	OnKeystroke(text string, modifiers []string, win *event.WindowKey, ts time.Time)
	OnPointerEvent(x, y int, button string, typ event.PointerType, win *event.WindowKey, ts time.Time)
	OnWindowChange(title, processName string, processID int, bundleID string, x, y, width, height int, ts time.Time)
}

// Source is a platform capture collaborator (keyboard hook, pointer hook,
// window watcher). Run blocks pushing events into the sink until ctx is
// cancelled or the source fails.
type Source interface {
	Run(ctx context.Context, sink Sink) error
	Name() string
}

// SourceService adapts a Source to the supervision tree so a crashed
// capture hook is restarted without taking the engine down.
type SourceService struct {
	source Source
	sink   Sink
}

// NewSourceService wires a capture source to its event sink.
func NewSourceService(source Source, sink Sink) *SourceService {
	return &SourceService{source: source, sink: sink}
}

// Serve implements suture.Service.
func (s *SourceService) Serve(ctx context.Context) error {
	return s.source.Run(ctx, s.sink)
}

func (s *SourceService) String() string {
	return "capture-source-" + s.source.Name()
}

// FlushService adapts the engine's flush coordinator loop to the
// supervision tree.
type FlushService struct {
	engine *Engine
}

// NewFlushService wraps the engine for supervision.
func NewFlushService(e *Engine) *FlushService {
	return &FlushService{engine: e}
}

// Serve implements suture.Service.
func (f *FlushService) Serve(ctx context.Context) error {
	return f.engine.Run(ctx)
}

func (f *FlushService) String() string {
	return "flush-coordinator"
}
