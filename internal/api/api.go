// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

// Package api exposes the local read-only HTTP surface: daemon status,
// rolling activity statistics, and range exports. It binds to loopback by
// default and never mutates captured data.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/introspect-app/introspect/internal/engine"
	"github.com/introspect-app/introspect/internal/event"
	"github.com/introspect-app/introspect/internal/logging"
)

// maxRangeDays bounds the days query parameter for stats and exports.
const maxRangeDays = 3650

// Reader is the query side of the store consumed by the API.
type Reader interface {
	GetStats(ctx context.Context, days int) (*event.ActivityStats, error)
	ExportRange(ctx context.Context, days int, format event.ExportFormat) ([]byte, error)
	Ping(ctx context.Context) error
}

// Handler serves the read-only endpoints.
type Handler struct {
	engine *engine.Engine
	reader Reader
	log    zerolog.Logger
}

// NewHandler builds a Handler over the engine and store reader.
func NewHandler(eng *engine.Engine, reader Reader) *Handler {
	return &Handler{
		engine: eng,
		reader: reader,
		log:    logging.With().Str("component", "api").Logger(),
	}
}

// Router assembles the chi router with shared middleware.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Get("/stats", h.Stats)
		r.Get("/export", h.Export)
	})

	return r
}

// Health reports liveness plus store reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.reader.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]string{"status": status})
}

// Status returns the engine's live state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Status())
}

// Stats returns rolling activity statistics for the last N days.
// GET /api/v1/stats?days=7
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r, 7)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	stats, err := h.reader.GetStats(r.Context(), days)
	if err != nil {
		h.log.Error().Err(err).Int("days", days).Msg("Stats query failed")
		h.writeError(w, http.StatusInternalServerError, errors.New("stats query failed"))
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// Export streams captured data for the last N days in the requested format.
// GET /api/v1/export?days=30&format=json
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r, 30)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if days < 1 {
		h.writeError(w, http.StatusBadRequest, errors.New("export requires days of at least 1"))
		return
	}

	format := event.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = event.ExportJSON
	}
	if !format.Valid() {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported export format %q", format))
		return
	}

	data, err := h.reader.ExportRange(r.Context(), days, format)
	if err != nil {
		h.log.Error().Err(err).Int("days", days).Str("format", string(format)).Msg("Export failed")
		h.writeError(w, http.StatusInternalServerError, errors.New("export failed"))
		return
	}

	filename := fmt.Sprintf("introspect-export-%dd.%s", days, format)
	w.Header().Set("Content-Type", exportContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Warn().Err(err).Msg("Failed to write export response")
	}
}

func exportContentType(format event.ExportFormat) string {
	switch format {
	case event.ExportCSV:
		return "text/csv; charset=utf-8"
	case event.ExportSQL:
		return "application/sql; charset=utf-8"
	default:
		return "application/json; charset=utf-8"
	}
}

// parseDays reads the days query parameter, falling back to def.
func parseDays(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return def, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid days parameter %q", raw)
	}
	if days < 0 || days > maxRangeDays {
		return 0, fmt.Errorf("days must be between 0 and %d", maxRangeDays)
	}
	return days, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code int, err error) {
	h.writeJSON(w, code, map[string]string{"error": err.Error()})
}

// requestLogger logs each request at debug with method, path, status, and
// duration.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
