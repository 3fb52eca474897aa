// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/Lullabot/mpx-sync/internal/config"
	"github.com/Lullabot/mpx-sync/internal/logging"
	"github.com/Lullabot/mpx-sync/internal/media"
	"github.com/Lullabot/mpx-sync/internal/notify"
	"github.com/Lullabot/mpx-sync/internal/queue"
)

// RecordReader is the read-only slice of media.Storage the admin
// handlers use.
type RecordReader interface {
	FindByRemoteID(ctx context.Context, collectionKey, remoteID string) (*media.Record, error)
	ListByCollection(ctx context.Context, collectionKey string) ([]media.Record, error)
	CountByStatus(ctx context.Context, collectionKey string) (map[string]int, error)
}

// RecordCache is the read-through entity cache for single-record
// lookups. Implemented by *media.EntityCache; the importer invalidates
// entries it touches, so a hit is as fresh as the last import.
type RecordCache interface {
	Get(key string) (*media.Record, bool)
	Put(key string, record *media.Record)
}

// TaskQueuer enqueues import tasks on the durable queue. Implemented by
// *queue.BatchQueuer.
type TaskQueuer interface {
	EnqueueTasks(ctx context.Context, collectionKey string, tasks []queue.ImportTask) (int, error)
}

// HealthChecker reports one subsystem's availability.
type HealthChecker func(ctx context.Context) bool

// Handler implements the admin endpoints.
type Handler struct {
	cfg      *config.Config
	cursors  notify.CursorStore
	records  RecordReader
	entities RecordCache
	queuer   TaskQueuer
	checks   map[string]HealthChecker
}

// NewHandler wires the admin handlers. checks maps subsystem name to its
// health probe; entities and checks may be nil.
func NewHandler(cfg *config.Config, cursors notify.CursorStore, records RecordReader, entities RecordCache, queuer TaskQueuer, checks map[string]HealthChecker) *Handler {
	return &Handler{
		cfg:      cfg,
		cursors:  cursors,
		records:  records,
		entities: entities,
		queuer:   queuer,
		checks:   checks,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Health reports overall process health. Any failing subsystem makes the
// endpoint return 503 so orchestrators restart or route around us.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status     string            `json:"status"`
		Subsystems map[string]string `json:"subsystems,omitempty"`
		Time       time.Time         `json:"time"`
	}

	resp := health{Status: "ok", Time: time.Now().UTC()}
	status := http.StatusOK

	if len(h.checks) > 0 {
		resp.Subsystems = make(map[string]string, len(h.checks))
		for name, check := range h.checks {
			if check(r.Context()) {
				resp.Subsystems[name] = "ok"
				continue
			}
			resp.Subsystems[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}

// collectionStatus is the per-collection inspection payload.
type collectionStatus struct {
	Key        string         `json:"key"`
	ServiceURL string         `json:"serviceUrl"`
	ObjectType string         `json:"objectType"`
	Bundle     string         `json:"bundle"`
	Cursor     int64          `json:"cursor"`
	Records    map[string]int `json:"records"`
}

// Collections lists configured collections with their cursor position
// and record counts.
func (h *Handler) Collections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := make([]collectionStatus, 0, len(h.cfg.Sync.Collections))

	for _, col := range h.cfg.Sync.Collections {
		cursor, err := h.cursors.Get(ctx, col.Key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		counts, err := h.records.CountByStatus(ctx, col.Key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		out = append(out, collectionStatus{
			Key:        col.Key,
			ServiceURL: col.ServiceURL,
			ObjectType: col.ObjectType,
			Bundle:     col.Bundle,
			Cursor:     cursor,
			Records:    counts,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"collections": out})
}

// CollectionRecords lists the local records of one collection.
func (h *Handler) CollectionRecords(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "collection")
	if _, ok := h.cfg.Collection(key); !ok {
		writeError(w, http.StatusNotFound, "unknown collection: "+key)
		return
	}

	records, err := h.records.ListByCollection(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"collection": key,
		"count":      len(records),
		"records":    records,
	})
}

// CollectionRecord returns one record by its remote id, passed as the
// remote_id query parameter since remote ids are URIs. Lookups read
// through the entity cache and populate it on a miss.
func (h *Handler) CollectionRecord(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "collection")
	if _, ok := h.cfg.Collection(key); !ok {
		writeError(w, http.StatusNotFound, "unknown collection: "+key)
		return
	}

	remoteID := r.URL.Query().Get("remote_id")
	if remoteID == "" {
		writeError(w, http.StatusBadRequest, "remote_id query parameter required")
		return
	}

	cacheKey := media.CacheKey(key, remoteID)
	if h.entities != nil {
		if record, ok := h.entities.Get(cacheKey); ok {
			writeJSON(w, http.StatusOK, map[string]any{"record": record, "cached": true})
			return
		}
	}

	record, err := h.records.FindByRemoteID(r.Context(), key, remoteID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "no record for remote id: "+remoteID)
		return
	}

	if h.entities != nil {
		h.entities.Put(cacheKey, record)
	}
	writeJSON(w, http.StatusOK, map[string]any{"record": record, "cached": false})
}

// Resync re-queues every known record of the collection for a fresh
// cache-bypassing import. The cursor is left alone: resetting it would
// silently skip notifications pending between its position and the
// current head of the sequence.
func (h *Handler) Resync(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "collection")
	if _, ok := h.cfg.Collection(key); !ok {
		writeError(w, http.StatusNotFound, "unknown collection: "+key)
		return
	}

	records, err := h.records.ListByCollection(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tasks := make([]queue.ImportTask, 0, len(records))
	for _, rec := range records {
		tasks = append(tasks, queue.ImportTask{
			ObjectURI:     rec.RemoteID,
			CollectionKey: key,
		})
	}

	chunks, err := h.queuer.EnqueueTasks(r.Context(), key, tasks)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logging.Info().
		Str("collection", key).
		Int("records", len(tasks)).
		Int("chunks", chunks).
		Msg("Resync queued via admin API")

	writeJSON(w, http.StatusAccepted, map[string]any{
		"collection": key,
		"records":    len(tasks),
		"chunks":     chunks,
		"status":     "resync queued",
	})
}
