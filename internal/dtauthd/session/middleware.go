package session

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Authenticator returns middleware that validates the Authorization bearer
// token and attaches the resolved principal to the request context. Requests
// without a valid token are rejected with 401.
func Authenticator(codec *Codec, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())

			token := bearerToken(r)
			if token == "" {
				logger.Warn("missing bearer token",
					"requestId", reqID,
					"path", r.URL.Path,
				)
				unauthorized(w, "missing bearer token")
				return
			}

			principal, err := codec.Validate(token)
			if err != nil {
				logger.Warn("session token rejected",
					"requestId", reqID,
					"path", r.URL.Path,
					"error", err,
				)
				unauthorized(w, "invalid or expired session token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// bearerToken extracts the bearer token from the Authorization header,
// returning "" when absent.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return auth[7:]
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="devtrack"`)
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"` + message + `"}`))
}
