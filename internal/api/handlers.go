// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package api

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/apezdr/streamsync/internal/logging"
	"github.com/apezdr/streamsync/internal/models"
	syncengine "github.com/apezdr/streamsync/internal/sync"
)

// SyncService is the part of the sync manager the HTTP surface needs.
type SyncService interface {
	TriggerSync(ctx context.Context) (*models.SyncResult, error)
	Status(ctx context.Context) (syncengine.Status, error)
}

// Pinger reports whether the document store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the sync trigger and health endpoints.
type Handler struct {
	service SyncService
	db      Pinger
}

// NewHandler creates the handler set.
func NewHandler(service SyncService, db Pinger) *Handler {
	return &Handler{service: service, db: db}
}

// TriggerSync starts a sync run, or joins one already in flight, and
// returns the run's result. Concurrent callers receive the same result.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.TriggerSync(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away; nothing useful to write.
			return
		}
		logging.Error().Err(err).Msg("Sync trigger failed")
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SyncStatus reports whether a run is in flight and when the last one
// completed.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Status lookup failed")
		writeError(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady reports readiness: the document store must answer.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
