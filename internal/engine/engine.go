// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

// Package engine owns the capture-to-persistence pipeline: it accepts
// normalized events from concurrent capture sources, routes keystroke
// payloads through the codec exactly once, accumulates everything in the
// shared buffer, and coordinates threshold/time/stop-driven flushes into
// the store.
//
// There is no ambient global monitor state: one Engine instance is built in
// main and passed explicitly to sources and services.
package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/introspect-app/introspect/internal/buffer"
	"github.com/introspect-app/introspect/internal/codec"
	"github.com/introspect-app/introspect/internal/event"
	"github.com/introspect-app/introspect/internal/logging"
	"github.com/introspect-app/introspect/internal/metrics"

	"github.com/rs/zerolog"
)

// Store is the durable sink the engine flushes into. Satisfied by
// *store.Store; narrowed to an interface so flush failure semantics are
// testable with fakes.
type Store interface {
	// BeginSession records the start of a monitoring run.
	BeginSession(ctx context.Context) (string, error)

	// EndSession closes a monitoring run.
	EndSession(ctx context.Context, id string) error

	// PersistSnapshot writes one drained snapshot in a single transaction.
	PersistSnapshot(ctx context.Context, snap *event.Snapshot) error
}

// Config tunes one Engine instance.
type Config struct {
	// Buffer holds the occupancy thresholds.
	Buffer buffer.Config

	// FlushInterval is the time-driven flush period.
	FlushInterval time.Duration

	// MaxRetries bounds store transaction attempts per snapshot.
	MaxRetries int

	// RetryBackoff is the initial retry backoff, doubling up to MaxBackoff.
	RetryBackoff time.Duration

	// MaxBackoff caps the retry backoff.
	MaxBackoff time.Duration

	// TxTimeout bounds each store transaction attempt.
	TxTimeout time.Duration

	// MoveSampleRate caps accepted pointer-move events per second; zero
	// disables move capture.
	MoveSampleRate float64

	// ExcludedApps lists process names whose keystrokes and pointer
	// events are dropped before buffering.
	ExcludedApps []string

	// Codec encrypts keystroke payloads before they enter the buffer.
	// Nil disables encryption; records then carry Encrypted=false.
	Codec *codec.Codec
}

// Engine coordinates concurrent capture producers against the single
// serialized flush consumer.
type Engine struct {
	cfg   Config
	store Store
	buf   *buffer.Buffer
	log   zerolog.Logger

	excluded    map[string]struct{}
	moveLimiter *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[any]

	mu        sync.Mutex
	running   bool
	sessionID string
	startedAt time.Time

	// flushMu serializes flush cycles; the buffer lock is never held
	// across store I/O.
	flushMu   sync.Mutex
	lastFlush atomic.Int64
}

// New creates an Engine. Defaults are applied for zero config values so a
// zero Config is usable in tests.
func New(st Store, cfg Config) *Engine {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.RetryBackoff {
		cfg.MaxBackoff = max(5*time.Second, cfg.RetryBackoff)
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 10 * time.Second
	}

	excluded := make(map[string]struct{}, len(cfg.ExcludedApps))
	for _, name := range cfg.ExcludedApps {
		excluded[strings.ToLower(name)] = struct{}{}
	}

	var limiter *rate.Limiter
	if cfg.MoveSampleRate > 0 {
		burst := int(cfg.MoveSampleRate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.MoveSampleRate), burst)
	}

	e := &Engine{
		cfg:         cfg,
		store:       st,
		buf:         buffer.New(cfg.Buffer),
		log:         logging.With().Str("component", "engine").Logger(),
		excluded:    excluded,
		moveLimiter: limiter,
	}
	e.breaker = newStoreBreaker(e.log)
	return e
}

// newStoreBreaker builds the circuit breaker guarding store writes. While
// open, flushes are skipped and events keep accumulating up to the
// buffer's hard cap instead of being drained into a doomed transaction.
func newStoreBreaker(log zerolog.Logger) *gobreaker.CircuitBreaker[any] {
	settings := gobreaker.Settings{
		Name:        "activity-store",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.StoreBreakerState.Set(float64(to))
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Store circuit breaker state changed")
		},
	}
	return gobreaker.NewCircuitBreaker[any](settings)
}

// Start opens a new monitoring session. Store errors surface here, before
// any buffering begins.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}

	id, err := e.store.BeginSession(ctx)
	if err != nil {
		return &StoreUnavailableError{Err: err}
	}

	e.sessionID = id
	e.startedAt = time.Now().UTC()
	e.running = true
	e.log.Info().Str("session", id).Msg("Monitoring started")
	return nil
}

// Stop performs the final forced flush, closes the session, and stops
// accepting events. The flush error, if any, is returned after the session
// is closed; buffered data already handed to a discarded snapshot is gone
// (at-most-once).
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.running = false
	sessionID := e.sessionID
	e.mu.Unlock()

	flushErr := e.Flush(ctx, TriggerStop)

	if err := e.store.EndSession(ctx, sessionID); err != nil {
		e.log.Error().Err(err).Str("session", sessionID).Msg("Failed to close session")
		if flushErr == nil {
			flushErr = err
		}
	}

	e.log.Info().Str("session", sessionID).Msg("Monitoring stopped")
	return flushErr
}

// Running reports whether the engine is accepting events.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// SessionID returns the active session ID, or "" when stopped.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return ""
	}
	return e.sessionID
}

// OnKeystroke accepts one keystroke observation. Errors never propagate
// into the capture thread: a record that cannot be encrypted is dropped
// and counted, everything else buffers.
func (e *Engine) OnKeystroke(text string, modifiers []string, win *event.WindowKey, ts time.Time) {
	if text == "" {
		return
	}
	if !e.Running() {
		metrics.EventsDropped.WithLabelValues("stopped").Inc()
		return
	}
	if e.isExcluded(win) {
		metrics.EventsDropped.WithLabelValues("excluded_app").Inc()
		return
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	rec := event.KeystrokeBatch{
		Modifiers:  event.JoinModifiers(modifiers),
		Count:      utf8.RuneCountInString(text),
		Window:     win,
		RecordedAt: ts,
	}

	if e.cfg.Codec != nil {
		payload, err := e.cfg.Codec.Encrypt(text)
		if err != nil {
			// Encryption failure fails this record only, never the flush.
			e.log.Error().Err(err).Msg("Failed to encrypt keystroke payload, dropping record")
			metrics.EventsDropped.WithLabelValues("encryption").Inc()
			return
		}
		rec.Payload = payload
		rec.Encrypted = true
	} else {
		rec.Payload = []byte(text)
	}

	e.buf.AddKeystroke(rec)
}

// OnPointerEvent accepts one pointer observation. Move events are sampled
// through the rate limiter; clicks and scrolls always pass.
func (e *Engine) OnPointerEvent(x, y int, button string, typ event.PointerType, win *event.WindowKey, ts time.Time) {
	if !typ.Valid() {
		e.log.Warn().Str("type", string(typ)).Msg("Dropping pointer event of unknown type")
		return
	}
	if !e.Running() {
		metrics.EventsDropped.WithLabelValues("stopped").Inc()
		return
	}
	if e.isExcluded(win) {
		metrics.EventsDropped.WithLabelValues("excluded_app").Inc()
		return
	}
	if typ == event.PointerMove {
		if e.moveLimiter == nil || !e.moveLimiter.Allow() {
			metrics.EventsDropped.WithLabelValues("throttled").Inc()
			return
		}
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	e.buf.AddPointer(event.PointerRecord{
		X:          x,
		Y:          y,
		Button:     button,
		Type:       typ,
		Window:     win,
		RecordedAt: ts,
	})
}

// OnWindowChange accepts one foreground-window observation. Window
// observations are kept even for excluded applications; only their content
// events are suppressed.
func (e *Engine) OnWindowChange(title, processName string, processID int, bundleID string, x, y, width, height int, ts time.Time) {
	if !e.Running() {
		metrics.EventsDropped.WithLabelValues("stopped").Inc()
		return
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	e.buf.AddWindow(event.WindowEvent{
		Title:       title,
		ProcessName: processName,
		ProcessID:   processID,
		BundleID:    bundleID,
		X:           x,
		Y:           y,
		Width:       width,
		Height:      height,
		Timestamp:   ts,
	})
}

// Buffer exposes the underlying buffer for status reporting and tests.
func (e *Engine) Buffer() *buffer.Buffer {
	return e.buf
}

func (e *Engine) isExcluded(win *event.WindowKey) bool {
	if win == nil || len(e.excluded) == 0 {
		return false
	}
	_, ok := e.excluded[strings.ToLower(win.ProcessName)]
	return ok
}
