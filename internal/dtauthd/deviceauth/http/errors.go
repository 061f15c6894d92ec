package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	v1 "github.com/devtrackhq/devtrack-auth/api/types/v1"
	werrors "github.com/devtrackhq/devtrack-auth/internal/dtauthd/errors"
)

// OAuth 2.0 device flow error codes used on the wire.
const (
	oauthErrAuthorizationPending = "authorization_pending"
	oauthErrExpiredToken         = "expired_token"
	oauthErrInvalidGrant         = "invalid_grant"
	oauthErrInvalidRequest       = "invalid_request"
	oauthErrAccessDenied         = "access_denied"
	oauthErrConflict             = "conflict"
	oauthErrServerError          = "server_error"
)

// writeError maps a service error onto the wire taxonomy and writes it.
func writeError(w http.ResponseWriter, err error, logger *slog.Logger) {
	code, status := classifyError(err)

	message := err.Error()
	var werr *werrors.Error
	if errors.As(err, &werr) {
		message = werr.Message
	}

	if status >= 500 {
		logger.Error("request failed",
			"error", err,
			"status", status,
		)
		message = "internal server error"
	}

	writeErrorResponse(w, status, code, message, logger)
}

// classifyError maps the service error taxonomy onto OAuth-style codes and
// HTTP statuses.
func classifyError(err error) (string, int) {
	switch {
	case werrors.IsNotFound(err):
		return oauthErrInvalidGrant, http.StatusNotFound
	case werrors.IsExpired(err):
		return oauthErrExpiredToken, http.StatusBadRequest
	case werrors.IsConflict(err):
		return oauthErrConflict, http.StatusConflict
	case werrors.IsForbidden(err):
		return oauthErrAccessDenied, http.StatusForbidden
	case werrors.IsInvalidInput(err):
		return oauthErrInvalidRequest, http.StatusBadRequest
	case werrors.IsUnauthorized(err), werrors.IsTokenInvalid(err):
		return oauthErrAccessDenied, http.StatusUnauthorized
	default:
		return oauthErrServerError, http.StatusInternalServerError
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	response := v1.ErrorResponse{
		Error:   code,
		Message: message,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to write error response",
			"error", err,
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to write response",
			"error", err,
		)
	}
}
