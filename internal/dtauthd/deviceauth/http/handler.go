// Package http exposes the device authorization flow over REST and
// WebSocket endpoints.
package http

import (
	"log/slog"
	"net/http"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/flow"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/ratelimit"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/session"
)

// Handler encapsulates the HTTP API for the device authorization flow.
type Handler struct {
	flow    *flow.Service
	codec   *session.Codec
	limiter *ratelimit.Service
	hub     *Hub
	logger  *slog.Logger
}

// NewHandler creates the device authorization HTTP handler. The hub may be
// nil when WebSocket event delivery is not wired.
func NewHandler(
	flowSvc *flow.Service,
	codec *session.Codec,
	limiter *ratelimit.Service,
	hub *Hub,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		flow:    flowSvc,
		codec:   codec,
		limiter: limiter,
		hub:     hub,
		logger:  logger,
	}
}

// handleHealth returns basic health check status
func (h *Handler) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// handleReady checks if the server is ready to accept requests
func (h *Handler) handleReady() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}
