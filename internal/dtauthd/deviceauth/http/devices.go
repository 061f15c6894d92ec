package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	v1 "github.com/devtrackhq/devtrack-auth/api/types/v1"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth"
	werrors "github.com/devtrackhq/devtrack-auth/internal/dtauthd/errors"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/session"
)

// ConfirmDeviceAuth approves a pending device on behalf of the
// authenticated user. The device receives its session on its next poll.
func (h *Handler) ConfirmDeviceAuth(w http.ResponseWriter, r *http.Request) {
	const op = "http.ConfirmDeviceAuth"

	principal, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, werrors.NewError("NO_PRINCIPAL", "authentication required", op, werrors.ErrUnauthorized), h.logger)
		return
	}

	var req v1.DeviceConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, werrors.NewError("INVALID_BODY", "invalid request body", op, werrors.ErrInvalidInput), h.logger)
		return
	}

	if req.DeviceCode == "" {
		writeError(w, werrors.NewError("MISSING_DEVICE_CODE", "device_code is required", op, werrors.ErrInvalidInput), h.logger)
		return
	}

	auth, err := h.flow.Confirm(r.Context(), req.DeviceCode, principal)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, toDevice(*auth), h.logger)
}

// ListDevices returns the authenticated user's approved devices.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	const op = "http.ListDevices"

	principal, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, werrors.NewError("NO_PRINCIPAL", "authentication required", op, werrors.ErrUnauthorized), h.logger)
		return
	}

	devices, err := h.flow.ListDevices(r.Context(), principal.ID)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	response := v1.DeviceListResponse{Devices: []v1.Device{}}
	for _, auth := range devices {
		response.Devices = append(response.Devices, toDevice(auth))
	}

	writeJSON(w, http.StatusOK, response, h.logger)
}

// HasDevices reports whether the authenticated user has any approved
// device, without loading the full listing.
func (h *Handler) HasDevices(w http.ResponseWriter, r *http.Request) {
	const op = "http.HasDevices"

	principal, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, werrors.NewError("NO_PRINCIPAL", "authentication required", op, werrors.ErrUnauthorized), h.logger)
		return
	}

	has, err := h.flow.HasActiveDevices(r.Context(), principal.ID)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, v1.HasDevicesResponse{HasDevices: has}, h.logger)
}

// RevokeDevice withdraws one of the authenticated user's devices.
func (h *Handler) RevokeDevice(w http.ResponseWriter, r *http.Request) {
	const op = "http.RevokeDevice"

	principal, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, werrors.NewError("NO_PRINCIPAL", "authentication required", op, werrors.ErrUnauthorized), h.logger)
		return
	}

	deviceID, err := uuid.Parse(chi.URLParam(r, "deviceID"))
	if err != nil {
		writeError(w, werrors.NewError("INVALID_DEVICE_ID", "invalid device id", op, werrors.ErrInvalidInput), h.logger)
		return
	}

	if err := h.flow.Revoke(r.Context(), deviceID, principal.ID); err != nil {
		writeError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toDevice(auth deviceauth.DeviceAuthorization) v1.Device {
	return v1.Device{
		ID:         auth.ID,
		DeviceName: auth.DeviceName,
		DeviceType: auth.DeviceType,
		DeviceID:   auth.DeviceIdentifier,
		CreatedAt:  auth.CreatedAt,
		LastSeenAt: auth.LastSeenAt,
	}
}
