package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/ratelimit"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/session"
)

// Router builds the HTTP router for the device authorization API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Common middleware for all routes
	r.Use(middleware.RequestID)
	r.Use(requestIDHeaderMiddleware)
	r.Use(middleware.RealIP)
	r.Use(recoverMiddleware(h.logger))
	r.Use(logMiddleware(h.logger))

	// Health check endpoints (no rate limiting)
	r.Get("/healthz", h.handleHealth())
	r.Get("/readyz", h.handleReady())

	r.Route("/api/v1/auth/device", func(r chi.Router) {
		// Public device flow routes, keyed by client IP.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(10 * time.Second))
			r.Use(ratelimit.Middleware(h.limiter, h.logger, ratelimit.Options{}))

			r.Post("/", h.InitiateDeviceAuth)
			r.Post("/token", h.PollForToken)
			r.Get("/status/{deviceCode}", h.GetDeviceStatus)
		})

		// Protected routes requiring an authenticated principal.
		// Rate limit keys switch to the principal once authenticated.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Use(session.Authenticator(h.codec, h.logger))
			r.Use(ratelimit.Middleware(h.limiter, h.logger, ratelimit.Options{
				Subject: principalSubject,
			}))

			r.Post("/confirm", h.ConfirmDeviceAuth)
			r.Get("/devices", h.ListDevices)
			r.Get("/status/has-devices", h.HasDevices)
			r.Delete("/{deviceID}", h.RevokeDevice)
			r.Get("/ws", h.ServeWebSocket)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		})
	})

	return r
}

// principalSubject keys rate limit buckets by the authenticated principal,
// falling back to the client IP when no principal is attached.
func principalSubject(r *http.Request) string {
	if principal, ok := session.FromContext(r.Context()); ok {
		return "user:" + principal.ID.String()
	}
	return ""
}
