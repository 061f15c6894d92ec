package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	v1 "github.com/devtrackhq/devtrack-auth/api/types/v1"
	werrors "github.com/devtrackhq/devtrack-auth/internal/dtauthd/errors"
)

// InitiateDeviceAuth starts a new device authorization flow.
func (h *Handler) InitiateDeviceAuth(w http.ResponseWriter, r *http.Request) {
	const op = "http.InitiateDeviceAuth"

	var req v1.DeviceAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, werrors.NewError("INVALID_BODY", "invalid request body", op, werrors.ErrInvalidInput), h.logger)
		return
	}

	if strings.TrimSpace(req.DeviceName) == "" {
		writeError(w, werrors.NewError("MISSING_DEVICE_NAME", "device_name is required", op, werrors.ErrInvalidInput), h.logger)
		return
	}

	result, err := h.flow.Initiate(r.Context(), req.DeviceName, req.DeviceType, req.DeviceID)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, v1.DeviceAuthResponse{
		DeviceCode:      result.DeviceCode,
		UserCode:        result.UserCode,
		VerificationURI: result.VerificationURL,
		ExpiresIn:       result.ExpiresIn,
		PollInterval:    result.PollInterval,
	}, h.logger)
}

// PollForToken reports the flow outcome for a device code. The poll that
// wins the claim receives the session token; later polls see the claimed
// status only.
func (h *Handler) PollForToken(w http.ResponseWriter, r *http.Request) {
	const op = "http.PollForToken"

	var req v1.DeviceTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, werrors.NewError("INVALID_BODY", "invalid request body", op, werrors.ErrInvalidInput), h.logger)
		return
	}

	if req.DeviceCode == "" {
		writeError(w, werrors.NewError("MISSING_DEVICE_CODE", "device_code is required", op, werrors.ErrInvalidInput), h.logger)
		return
	}

	result, err := h.flow.PollForToken(r.Context(), req.DeviceCode)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	switch {
	case result.Pending:
		writeJSON(w, http.StatusOK, v1.DeviceTokenResponse{
			Status: oauthErrAuthorizationPending,
		}, h.logger)

	case result.Claimed:
		writeJSON(w, http.StatusOK, v1.DeviceTokenResponse{
			Status: "claimed",
		}, h.logger)

	default:
		writeJSON(w, http.StatusOK, v1.DeviceTokenResponse{
			Status:      "approved",
			AccessToken: result.SessionToken,
			TokenType:   result.TokenType,
			ExpiresIn:   result.ExpiresIn,
		}, h.logger)
	}
}

// GetDeviceStatus reports the lifecycle status of a device code.
func (h *Handler) GetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	deviceCode := chi.URLParam(r, "deviceCode")

	status, err := h.flow.Status(r.Context(), deviceCode)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, v1.DeviceStatusResponse{
		Status: string(status),
	}, h.logger)
}
