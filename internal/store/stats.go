// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/introspect-app/introspect/internal/event"
	"github.com/introspect-app/introspect/internal/metrics"
)

// topAppsLimit caps the ranked application list in stats results.
const topAppsLimit = 10

// GetStats computes rolling activity statistics over the last `days` days,
// reading committed flushes only. A non-positive day count or a window with
// zero recorded activity yields all-zero counts and an empty TopApps list,
// never an error. Percentages are rounded to one decimal for display; the
// underlying sums stay exact.
func (s *Store) GetStats(ctx context.Context, days int) (*event.ActivityStats, error) {
	now := time.Now().UTC()
	stats := &event.ActivityStats{
		TopApps:    []event.AppUsage{},
		RangeStart: now,
		RangeEnd:   now,
	}
	if days <= 0 {
		return stats, nil
	}
	since := now.AddDate(0, 0, -days)
	stats.RangeStart = since

	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer metrics.RecordStoreQuery("stats", time.Now())

	if err := s.db.GetContext(ctx, &stats.Keystrokes,
		`SELECT COALESCE(SUM(count), 0) FROM keystroke_batches WHERE recorded_at >= ?`, since); err != nil {
		return nil, fmt.Errorf("failed to count keystrokes: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.PointerEvents,
		`SELECT COUNT(*) FROM pointer_events WHERE recorded_at >= ?`, since); err != nil {
		return nil, fmt.Errorf("failed to count pointer events: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.Clicks,
		`SELECT COUNT(*) FROM pointer_events WHERE recorded_at >= ? AND event_type = ?`,
		since, string(event.PointerClick)); err != nil {
		return nil, fmt.Errorf("failed to count clicks: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.WindowChanges,
		`SELECT COUNT(*) FROM windows WHERE first_seen >= ?`, since); err != nil {
		return nil, fmt.Errorf("failed to count window changes: %w", err)
	}

	active, err := s.activeSeconds(ctx, since, now)
	if err != nil {
		return nil, err
	}
	stats.ActiveSeconds = active

	top, err := s.topApps(ctx, since)
	if err != nil {
		return nil, err
	}
	stats.TopApps = top

	return stats, nil
}

// activeSeconds sums session durations clipped to the [since, now] window.
func (s *Store) activeSeconds(ctx context.Context, since, now time.Time) (uint64, error) {
	type sessionRow struct {
		StartTime time.Time    `db:"start_time"`
		EndTime   sql.NullTime `db:"end_time"`
	}

	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT start_time, end_time FROM sessions
		 WHERE start_time < ? AND COALESCE(end_time, ?) > ?`,
		now, now, since)
	if err != nil {
		return 0, fmt.Errorf("failed to query sessions: %w", err)
	}

	var total time.Duration
	for _, r := range rows {
		start := r.StartTime
		end := now
		if r.EndTime.Valid {
			end = r.EndTime.Time
		}
		if start.Before(since) {
			start = since
		}
		if end.After(now) {
			end = now
		}
		if end.After(start) {
			total += end.Sub(start)
		}
	}
	return uint64(total / time.Second), nil
}

// appAgg accumulates per-application usage before ranking.
type appAgg struct {
	windows  uint64
	events   uint64
	duration time.Duration
}

// topApps ranks applications by a composite of aggregate window duration and
// window count, with percentages relative to the total tracked duration.
func (s *Store) topApps(ctx context.Context, since time.Time) ([]event.AppUsage, error) {
	apps := make(map[string]*appAgg)
	get := func(name string) *appAgg {
		a, ok := apps[name]
		if !ok {
			a = &appAgg{}
			apps[name] = a
		}
		return a
	}

	type windowRow struct {
		Name      string    `db:"name"`
		FirstSeen time.Time `db:"first_seen"`
		LastSeen  time.Time `db:"last_seen"`
	}
	var windows []windowRow
	err := s.db.SelectContext(ctx, &windows,
		`SELECT p.name AS name, w.first_seen, w.last_seen
		 FROM windows w JOIN processes p ON p.id = w.process_id
		 WHERE w.last_seen >= ?`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query window usage: %w", err)
	}
	for _, w := range windows {
		a := get(w.Name)
		a.windows++
		if w.LastSeen.After(w.FirstSeen) {
			a.duration += w.LastSeen.Sub(w.FirstSeen)
		}
	}

	type countRow struct {
		Name   string `db:"name"`
		Events uint64 `db:"events"`
	}
	var keyCounts []countRow
	err = s.db.SelectContext(ctx, &keyCounts,
		`SELECT p.name AS name, COALESCE(SUM(k.count), 0) AS events
		 FROM keystroke_batches k
		 JOIN windows w ON w.id = k.window_id
		 JOIN processes p ON p.id = w.process_id
		 WHERE k.recorded_at >= ?
		 GROUP BY p.name`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query keystroke usage: %w", err)
	}
	for _, c := range keyCounts {
		get(c.Name).events += c.Events
	}

	var pointerCounts []countRow
	err = s.db.SelectContext(ctx, &pointerCounts,
		`SELECT p.name AS name, COUNT(*) AS events
		 FROM pointer_events e
		 JOIN windows w ON w.id = e.window_id
		 JOIN processes p ON p.id = w.process_id
		 WHERE e.recorded_at >= ?
		 GROUP BY p.name`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query pointer usage: %w", err)
	}
	for _, c := range pointerCounts {
		get(c.Name).events += c.Events
	}

	var totalDuration time.Duration
	for _, a := range apps {
		totalDuration += a.duration
	}

	usage := make([]event.AppUsage, 0, len(apps))
	for name, a := range apps {
		pct := 0.0
		if totalDuration > 0 {
			pct = roundToOneDecimal(float64(a.duration) / float64(totalDuration) * 100)
		}
		usage = append(usage, event.AppUsage{
			Name:            name,
			Percentage:      pct,
			DurationSeconds: uint64(a.duration / time.Second),
			Events:          a.events,
			Windows:         a.windows,
		})
	}

	sort.Slice(usage, func(i, j int) bool {
		if usage[i].DurationSeconds != usage[j].DurationSeconds {
			return usage[i].DurationSeconds > usage[j].DurationSeconds
		}
		if usage[i].Windows != usage[j].Windows {
			return usage[i].Windows > usage[j].Windows
		}
		return usage[i].Name < usage[j].Name
	})

	if len(usage) > topAppsLimit {
		usage = usage[:topAppsLimit]
	}
	return usage, nil
}

func roundToOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
