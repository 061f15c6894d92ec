package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/metrics"
)

// Options configures the rate limit middleware.
type Options struct {
	// Subject extracts the bucket subject from the request. When nil, the
	// client IP is used.
	Subject func(r *http.Request) string

	// ClassOverride pins every request through this middleware to one
	// class instead of classifying by path and method.
	ClassOverride Class

	// Skip bypasses rate limiting for matching requests.
	Skip func(r *http.Request) bool
}

// Middleware creates HTTP middleware enforcing per-subject, per-class token
// bucket limits. Successful responses carry RateLimit-Limit and
// RateLimit-Remaining headers; throttled responses return 429 with a
// Retry-After header in seconds.
func Middleware(service *Service, logger *slog.Logger, options Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())
			reqLogger := logger.With("requestId", reqID)

			if options.Skip != nil && options.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := buildKey(r, options)
			decision := service.Allow(key)

			// Kill switch or unconfigured class: admit without headers,
			// no bucket state was touched.
			if decision.Bypassed {
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, decision)

			if !decision.Allowed {
				metrics.RateLimitDenials.WithLabelValues(string(key.Class)).Inc()
				handleLimitExceeded(w, r, key, decision, reqLogger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// buildKey derives the bucket key from the request.
func buildKey(r *http.Request, options Options) Key {
	subject := ""
	if options.Subject != nil {
		subject = options.Subject(r)
	}
	if subject == "" {
		subject = "ip:" + RealIP(r)
	}

	class := options.ClassOverride
	if class == "" {
		class = Classify(r.Method, r.URL.Path)
	}

	return Key{Subject: subject, Class: class}
}

// setRateLimitHeaders adds standard rate limit headers to the response.
func setRateLimitHeaders(w http.ResponseWriter, decision Decision) {
	w.Header().Set("RateLimit-Limit", strconv.Itoa(decision.Limit.Capacity))
	w.Header().Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
}

// handleLimitExceeded sends a 429 Too Many Requests response with a
// Retry-After header and a helpful error message.
func handleLimitExceeded(w http.ResponseWriter, r *http.Request, key Key, decision Decision, logger *slog.Logger) {
	retryAfter := int(decision.RetryAfter / time.Second)
	if decision.RetryAfter%time.Second != 0 {
		retryAfter++
	}
	if retryAfter < 1 {
		retryAfter = 1
	}

	logger.Warn("rate limit exceeded",
		"path", r.URL.Path,
		"method", r.Method,
		"class", key.Class,
		"subject", key.Subject,
		"retryAfter", retryAfter,
	)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	fmt.Fprintf(w, `{"error":"rate_limit_exceeded","message":"Too many requests, please retry after %d seconds"}`, retryAfter)
}

// RealIP extracts the real client IP address using standard proxy headers.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if parts := strings.Split(xff, ","); len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}

	return host
}
