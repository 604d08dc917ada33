// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/introspect-app/introspect/internal/event"
	"github.com/introspect-app/introspect/internal/metrics"
)

// Export row shapes. Nullable references use pointers so JSON output stays
// clean (null instead of a wrapper object).

// ProcessRow mirrors one processes table row.
type ProcessRow struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	BundleID  string    `db:"bundle_id" json:"bundle_id,omitempty"`
	FirstSeen time.Time `db:"first_seen" json:"first_seen"`
	LastSeen  time.Time `db:"last_seen" json:"last_seen"`
}

// WindowRow mirrors one windows table row.
type WindowRow struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	ProcessID int64     `db:"process_id" json:"process_id"`
	X         int       `db:"x" json:"x"`
	Y         int       `db:"y" json:"y"`
	Width     int       `db:"width" json:"width"`
	Height    int       `db:"height" json:"height"`
	FirstSeen time.Time `db:"first_seen" json:"first_seen"`
	LastSeen  time.Time `db:"last_seen" json:"last_seen"`
}

// KeystrokeRow mirrors one keystroke_batches table row. Payload stays in
// whatever form it was persisted: ciphertext is exported as ciphertext.
type KeystrokeRow struct {
	ID         int64     `db:"id" json:"id"`
	WindowID   *int64    `db:"window_id" json:"window_id"`
	Payload    []byte    `db:"payload" json:"payload"`
	Encrypted  bool      `db:"encrypted" json:"encrypted"`
	Modifiers  string    `db:"modifiers" json:"modifiers,omitempty"`
	Count      int       `db:"count" json:"count"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// PointerRow mirrors one pointer_events table row.
type PointerRow struct {
	ID         int64     `db:"id" json:"id"`
	WindowID   *int64    `db:"window_id" json:"window_id"`
	X          int       `db:"x" json:"x"`
	Y          int       `db:"y" json:"y"`
	Button     string    `db:"button" json:"button,omitempty"`
	EventType  string    `db:"event_type" json:"event_type"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// SessionRow mirrors one sessions table row.
type SessionRow struct {
	ID        string       `db:"id" json:"id"`
	StartTime time.Time    `db:"start_time" json:"start_time"`
	EndTime   sql.NullTime `db:"end_time" json:"-"`
	EndedAt   *time.Time   `db:"-" json:"end_time"`
}

// exportData is the full result of one range export.
type exportData struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Days        int            `json:"days"`
	Processes   []ProcessRow   `json:"processes"`
	Windows     []WindowRow    `json:"windows"`
	Keystrokes  []KeystrokeRow `json:"keystroke_batches"`
	Pointers    []PointerRow   `json:"pointer_events"`
	Sessions    []SessionRow   `json:"sessions"`
}

// ExportRange serializes all activity recorded in the last `days` days.
// It is a pure read-then-serialize operation: no buffer interaction, and
// store errors surface directly rather than producing empty output.
func (s *Store) ExportRange(ctx context.Context, days int, format event.ExportFormat) ([]byte, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	if days <= 0 {
		return nil, fmt.Errorf("export range must cover at least one day, got %d", days)
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer metrics.RecordStoreQuery("export", time.Now())

	now := time.Now().UTC()
	since := now.AddDate(0, 0, -days)

	data := exportData{GeneratedAt: now, Days: days}

	err := s.db.SelectContext(ctx, &data.Processes,
		`SELECT * FROM processes WHERE last_seen >= ? ORDER BY id`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to export processes: %w", err)
	}
	err = s.db.SelectContext(ctx, &data.Windows,
		`SELECT * FROM windows WHERE last_seen >= ? ORDER BY id`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to export windows: %w", err)
	}
	err = s.db.SelectContext(ctx, &data.Keystrokes,
		`SELECT * FROM keystroke_batches WHERE recorded_at >= ? ORDER BY id`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to export keystroke batches: %w", err)
	}
	err = s.db.SelectContext(ctx, &data.Pointers,
		`SELECT * FROM pointer_events WHERE recorded_at >= ? ORDER BY id`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to export pointer events: %w", err)
	}
	err = s.db.SelectContext(ctx, &data.Sessions,
		`SELECT id, start_time, end_time FROM sessions WHERE COALESCE(end_time, ?) >= ? ORDER BY start_time`, now, since)
	if err != nil {
		return nil, fmt.Errorf("failed to export sessions: %w", err)
	}
	for i := range data.Sessions {
		if data.Sessions[i].EndTime.Valid {
			t := data.Sessions[i].EndTime.Time
			data.Sessions[i].EndedAt = &t
		}
	}

	switch format {
	case event.ExportJSON:
		return json.MarshalIndent(data, "", "  ")
	case event.ExportCSV:
		return exportCSV(&data)
	case event.ExportSQL:
		return exportSQL(&data)
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

// exportCSV writes one header+rows block per table, separated by blank
// lines, with a leading comment line naming the table.
func exportCSV(data *exportData) ([]byte, error) {
	var buf bytes.Buffer

	writeBlock := func(name string, header []string, rows [][]string) error {
		fmt.Fprintf(&buf, "# %s\n", name)
		w := csv.NewWriter(&buf)
		if err := w.Write(header); err != nil {
			return err
		}
		if err := w.WriteAll(rows); err != nil {
			return err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
		buf.WriteByte('\n')
		return nil
	}

	procRows := make([][]string, 0, len(data.Processes))
	for _, p := range data.Processes {
		procRows = append(procRows, []string{
			strconv.FormatInt(p.ID, 10), p.Name, p.BundleID,
			p.FirstSeen.Format(time.RFC3339), p.LastSeen.Format(time.RFC3339),
		})
	}
	if err := writeBlock("processes", []string{"id", "name", "bundle_id", "first_seen", "last_seen"}, procRows); err != nil {
		return nil, err
	}

	winRows := make([][]string, 0, len(data.Windows))
	for _, w := range data.Windows {
		winRows = append(winRows, []string{
			strconv.FormatInt(w.ID, 10), w.Title, strconv.FormatInt(w.ProcessID, 10),
			strconv.Itoa(w.X), strconv.Itoa(w.Y), strconv.Itoa(w.Width), strconv.Itoa(w.Height),
			w.FirstSeen.Format(time.RFC3339), w.LastSeen.Format(time.RFC3339),
		})
	}
	if err := writeBlock("windows", []string{"id", "title", "process_id", "x", "y", "width", "height", "first_seen", "last_seen"}, winRows); err != nil {
		return nil, err
	}

	keyRows := make([][]string, 0, len(data.Keystrokes))
	for _, k := range data.Keystrokes {
		keyRows = append(keyRows, []string{
			strconv.FormatInt(k.ID, 10), formatNullableID(k.WindowID),
			hex.EncodeToString(k.Payload), strconv.FormatBool(k.Encrypted),
			k.Modifiers, strconv.Itoa(k.Count), k.RecordedAt.Format(time.RFC3339),
		})
	}
	if err := writeBlock("keystroke_batches", []string{"id", "window_id", "payload_hex", "encrypted", "modifiers", "count", "recorded_at"}, keyRows); err != nil {
		return nil, err
	}

	ptrRows := make([][]string, 0, len(data.Pointers))
	for _, p := range data.Pointers {
		ptrRows = append(ptrRows, []string{
			strconv.FormatInt(p.ID, 10), formatNullableID(p.WindowID),
			strconv.Itoa(p.X), strconv.Itoa(p.Y), p.Button, p.EventType,
			p.RecordedAt.Format(time.RFC3339),
		})
	}
	if err := writeBlock("pointer_events", []string{"id", "window_id", "x", "y", "button", "event_type", "recorded_at"}, ptrRows); err != nil {
		return nil, err
	}

	sessRows := make([][]string, 0, len(data.Sessions))
	for _, s := range data.Sessions {
		end := ""
		if s.EndedAt != nil {
			end = s.EndedAt.Format(time.RFC3339)
		}
		sessRows = append(sessRows, []string{s.ID, s.StartTime.Format(time.RFC3339), end})
	}
	if err := writeBlock("sessions", []string{"id", "start_time", "end_time"}, sessRows); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// exportSQL emits INSERT statements replayable against a database with the
// same schema.
func exportSQL(data *exportData) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "-- introspect export, generated %s, last %d day(s)\n",
		data.GeneratedAt.Format(time.RFC3339), data.Days)

	for _, p := range data.Processes {
		fmt.Fprintf(&buf, "INSERT INTO processes (id, name, bundle_id, first_seen, last_seen) VALUES (%d, %s, %s, %s, %s);\n",
			p.ID, quoteSQL(p.Name), quoteSQL(p.BundleID),
			quoteSQL(p.FirstSeen.Format(time.RFC3339)), quoteSQL(p.LastSeen.Format(time.RFC3339)))
	}
	for _, w := range data.Windows {
		fmt.Fprintf(&buf, "INSERT INTO windows (id, title, process_id, x, y, width, height, first_seen, last_seen) VALUES (%d, %s, %d, %d, %d, %d, %d, %s, %s);\n",
			w.ID, quoteSQL(w.Title), w.ProcessID, w.X, w.Y, w.Width, w.Height,
			quoteSQL(w.FirstSeen.Format(time.RFC3339)), quoteSQL(w.LastSeen.Format(time.RFC3339)))
	}
	for _, k := range data.Keystrokes {
		fmt.Fprintf(&buf, "INSERT INTO keystroke_batches (id, window_id, payload, encrypted, modifiers, count, recorded_at) VALUES (%d, %s, X'%s', %d, %s, %d, %s);\n",
			k.ID, sqlNullableID(k.WindowID), hex.EncodeToString(k.Payload),
			boolToInt(k.Encrypted), quoteSQL(k.Modifiers), k.Count,
			quoteSQL(k.RecordedAt.Format(time.RFC3339)))
	}
	for _, p := range data.Pointers {
		fmt.Fprintf(&buf, "INSERT INTO pointer_events (id, window_id, x, y, button, event_type, recorded_at) VALUES (%d, %s, %d, %d, %s, %s, %s);\n",
			p.ID, sqlNullableID(p.WindowID), p.X, p.Y,
			quoteSQL(p.Button), quoteSQL(p.EventType),
			quoteSQL(p.RecordedAt.Format(time.RFC3339)))
	}
	for _, s := range data.Sessions {
		end := "NULL"
		if s.EndedAt != nil {
			end = quoteSQL(s.EndedAt.Format(time.RFC3339))
		}
		fmt.Fprintf(&buf, "INSERT INTO sessions (id, start_time, end_time) VALUES (%s, %s, %s);\n",
			quoteSQL(s.ID), quoteSQL(s.StartTime.Format(time.RFC3339)), end)
	}

	return buf.Bytes(), nil
}

func formatNullableID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func sqlNullableID(id *int64) string {
	if id == nil {
		return "NULL"
	}
	return strconv.FormatInt(*id, 10)
}

func quoteSQL(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
