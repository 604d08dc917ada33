// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the capture and persistence engine:
// - Buffer occupancy and overflow drops
// - Captured events per kind
// - Flush duration, outcome, and retry counts
// - Discarded snapshots (the audited at-most-once loss path)
// - Store circuit breaker state

var (
	// Buffer metrics

	BufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "introspect_buffer_items",
			Help: "Current number of records held in the event buffer",
		},
	)

	EventsCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "introspect_events_captured_total",
			Help: "Total number of events accepted into the buffer",
		},
		[]string{"kind"}, // "keystroke", "pointer", "window"
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "introspect_events_dropped_total",
			Help: "Total number of events dropped before buffering",
		},
		[]string{"reason"}, // "hard_cap", "excluded_app", "throttled", "encryption", "stopped"
	)

	// Flush metrics

	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "introspect_flush_duration_seconds",
			Help:    "Duration of store flush transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "introspect_flushes_total",
			Help: "Total number of flushes grouped by trigger and outcome",
		},
		[]string{"trigger", "outcome"}, // trigger: "interval", "size", "stop"; outcome: "ok", "error"
	)

	FlushRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "introspect_flush_retries_total",
			Help: "Total number of flush transaction retries",
		},
	)

	SnapshotsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "introspect_snapshots_discarded_total",
			Help: "Total number of snapshots discarded after exhausting flush retries",
		},
	)

	RecordsLost = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "introspect_records_lost_total",
			Help: "Total number of records lost with discarded snapshots",
		},
	)

	// Store metrics

	StoreBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "introspect_store_breaker_state",
			Help: "Store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "introspect_store_query_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "persist", "stats", "export", "session"
	)
)

// RecordFlush observes one completed flush cycle.
func RecordFlush(trigger string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	FlushesTotal.WithLabelValues(trigger, outcome).Inc()
	if err == nil {
		FlushDuration.Observe(duration.Seconds())
	}
}

// RecordStoreQuery observes the duration of one store operation.
func RecordStoreQuery(operation string, start time.Time) {
	StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
