// Package v1 defines the wire types for the device authorization API.
package v1

import (
	"time"

	"github.com/google/uuid"
)

// DeviceAuthRequest starts a new device authorization flow.
type DeviceAuthRequest struct {
	// DeviceName is a human-friendly label, e.g. "Neovim on work laptop"
	DeviceName string `json:"device_name"`
	// DeviceType describes the client kind, e.g. "editor-plugin"
	DeviceType string `json:"device_type"`
	// DeviceID is a client-chosen stable identifier; not trusted
	DeviceID string `json:"device_id"`
}

// DeviceAuthResponse is the server's response to a device auth request
type DeviceAuthResponse struct {
	// DeviceCode is the opaque code the client polls with
	DeviceCode string `json:"device_code"`
	// UserCode is the code shown to the user (e.g., "WDJC-XYZK")
	UserCode string `json:"user_code"`
	// VerificationURI is where users go to approve the device
	VerificationURI string `json:"verification_uri"`
	// ExpiresIn is seconds until the codes expire
	ExpiresIn int `json:"expires_in"`
	// PollInterval is how often the device should poll for approval
	PollInterval int `json:"interval"`
}

// DeviceTokenRequest polls for the outcome of a device authorization.
type DeviceTokenRequest struct {
	DeviceCode string `json:"device_code"`
}

// DeviceTokenResponse reports the flow outcome to a polling client. While
// the flow is pending only Status is set; the poll that wins the claim
// additionally carries the session token.
type DeviceTokenResponse struct {
	Status      string `json:"status"`
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

// DeviceConfirmRequest approves a pending device on behalf of the
// authenticated user.
type DeviceConfirmRequest struct {
	DeviceCode string `json:"device_code"`
}

// DeviceStatusResponse reports a device code's lifecycle status.
type DeviceStatusResponse struct {
	Status string `json:"status"`
}

// Device describes one approved device in a user's listing.
type Device struct {
	ID         uuid.UUID  `json:"id"`
	DeviceName string     `json:"device_name"`
	DeviceType string     `json:"device_type"`
	DeviceID   string     `json:"device_id"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// DeviceListResponse wraps a user's approved devices.
type DeviceListResponse struct {
	Devices []Device `json:"devices"`
}

// HasDevicesResponse reports whether the user has any approved device.
type HasDevicesResponse struct {
	HasDevices bool `json:"has_devices"`
}

// CleanupResponse reports how many expired records a sweep removed.
type CleanupResponse struct {
	Deleted int64 `json:"deleted"`
}

// ErrorResponse is the common error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
