// Package http exposes administrative endpoints: the retention cleanup
// trigger and device record statistics.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	v1 "github.com/devtrackhq/devtrack-auth/api/types/v1"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/flow"
)

type Handler struct {
	flow   *flow.Service
	logger zerolog.Logger
}

func NewHandler(flowSvc *flow.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		flow:   flowSvc,
		logger: logger.With().Str("component", "admin-http").Logger(),
	}
}

// Router returns a router pre-configured with all admin endpoints mounted at
// the API root
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts all admin endpoints on the provided router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/device-auth/cleanup", h.handleCleanup)
	r.Get("/device-auth/stats", h.handleStats)
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.flow.Cleanup(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("cleanup failed")
		h.respondError(w)
		return
	}

	h.logger.Info().Int64("deleted", deleted).Msg("cleanup completed")
	h.respondJSON(w, http.StatusOK, v1.CleanupResponse{Deleted: deleted})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.flow.Stats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("stats query failed")
		h.respondError(w)
		return
	}

	stats := make(map[string]int64, len(counts))
	for status, count := range counts {
		stats[string(status)] = count
	}

	h.respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func (h *Handler) respondError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(`{"error":"internal error"}`))
}
