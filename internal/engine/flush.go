// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package engine

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/introspect-app/introspect/internal/event"
	"github.com/introspect-app/introspect/internal/metrics"
)

// Trigger identifies what initiated a flush cycle.
type Trigger string

const (
	// TriggerInterval is the periodic time-driven flush.
	TriggerInterval Trigger = "interval"

	// TriggerSize is the soft-cap threshold flush.
	TriggerSize Trigger = "size"

	// TriggerStop is the final forced flush during shutdown.
	TriggerStop Trigger = "stop"
)

// Flush drains the buffer and persists the snapshot with bounded retries.
//
// The drain happens under the buffer lock only; store I/O runs after the
// lock is released, so capture sources are never blocked by a slow or
// failing store. Once drained, a snapshot either commits in one
// transaction or, after MaxRetries failed attempts, is logged and
// discarded. It is never merged back into the buffer and never split
// across transactions.
//
// While the store circuit breaker is open, interval and size flushes skip
// the drain entirely so events keep accumulating (up to the hard cap)
// instead of being handed to a doomed transaction. The stop flush always
// attempts the write.
func (e *Engine) Flush(ctx context.Context, trigger Trigger) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	if trigger != TriggerStop && e.breaker.State() == gobreaker.StateOpen {
		e.log.Debug().Str("trigger", string(trigger)).Msg("Skipping flush while store breaker is open")
		return ErrStoreUnavailable
	}

	snap := e.buf.Drain()
	if snap.Empty() {
		return nil
	}

	start := time.Now()
	err := e.persistWithRetry(ctx, snap, trigger)
	metrics.RecordFlush(string(trigger), time.Since(start), err)
	if err == nil {
		e.lastFlush.Store(time.Now().UnixNano())
		e.log.Debug().
			Str("trigger", string(trigger)).
			Int("items", snap.Len()).
			Dur("duration", time.Since(start)).
			Msg("Flushed snapshot")
	}
	return err
}

// persistWithRetry attempts to commit the snapshot up to MaxRetries times
// with exponential backoff, then discards it. The stop flush writes to the
// store directly rather than through the breaker: an open breaker rejects
// executions without touching the store, which would burn the whole retry
// budget and discard the final snapshot even after the store recovered.
func (e *Engine) persistWithRetry(ctx context.Context, snap *event.Snapshot, trigger Trigger) error {
	backoff := e.cfg.RetryBackoff
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			metrics.FlushRetries.Inc()
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				return e.discard(snap, attempt-1, lastErr)
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > e.cfg.MaxBackoff {
				backoff = e.cfg.MaxBackoff
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.TxTimeout)
		var err error
		if trigger == TriggerStop {
			err = e.store.PersistSnapshot(attemptCtx, snap)
		} else {
			_, err = e.breaker.Execute(func() (any, error) {
				return nil, e.store.PersistSnapshot(attemptCtx, snap)
			})
		}
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err
		e.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_retries", e.cfg.MaxRetries).
			Int("items", snap.Len()).
			Msg("Flush attempt failed")

		if ctx.Err() != nil {
			return e.discard(snap, attempt, ctx.Err())
		}
	}

	return e.discard(snap, e.cfg.MaxRetries, lastErr)
}

// discard gives up on a snapshot after retries are exhausted. The loss is
// audited with the item count and covered time range before the data is
// dropped.
func (e *Engine) discard(snap *event.Snapshot, attempts int, cause error) error {
	rangeStart, rangeEnd := snap.TimeRange()
	e.log.Error().
		Err(cause).
		Int("attempts", attempts).
		Int("items", snap.Len()).
		Time("range_start", rangeStart).
		Time("range_end", rangeEnd).
		Msg("Discarding snapshot after exhausted flush retries")

	metrics.SnapshotsDiscarded.Inc()
	metrics.RecordsLost.Add(float64(snap.Len()))

	return &FlushError{
		Attempts:   attempts,
		Items:      snap.Len(),
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		Err:        cause,
	}
}

// Run is the flush coordinator loop: periodic flushes on the configured
// interval, plus early flushes whenever the buffer signals the soft cap.
// It exits when ctx is cancelled; the final stop flush is driven by Stop,
// not by this loop.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()

	e.log.Info().Dur("interval", e.cfg.FlushInterval).Msg("Flush coordinator started")

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("Flush coordinator stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := e.Flush(ctx, TriggerInterval); err != nil {
				e.log.Debug().Err(err).Msg("Interval flush did not complete")
			}
		case <-e.buf.FlushHint():
			if err := e.Flush(ctx, TriggerSize); err != nil {
				e.log.Debug().Err(err).Msg("Threshold flush did not complete")
			}
		}
	}
}
