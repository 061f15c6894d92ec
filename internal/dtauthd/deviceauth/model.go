// Package deviceauth implements the device authorization registry: the
// lifecycle of device-code records from initiation through approval,
// expiry, revocation, and retention cleanup.
package deviceauth

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status tracks where a device authorization sits in its lifecycle.
type Status string

const (
	// StatusPending means the device is waiting for a human to approve it.
	StatusPending Status = "pending"
	// StatusApproved means an authenticated principal confirmed the device.
	StatusApproved Status = "approved"
	// StatusExpired means the pending window closed before approval.
	StatusExpired Status = "expired"
	// StatusRevoked means the owner withdrew the device's authorization.
	StatusRevoked Status = "revoked"
)

// DeviceAuthorization is a single device-code record. The registry is the
// sole mutator; state transitions go through conditional updates in the
// repository so concurrent writers cannot both win.
type DeviceAuthorization struct {
	ID               uuid.UUID  `json:"id"`
	DeviceCode       string     `json:"-"`
	UserCode         string     `json:"userCode"`
	DeviceName       string     `json:"deviceName"`
	DeviceType       string     `json:"deviceType"`
	DeviceIdentifier string     `json:"deviceIdentifier"`
	OwnerID          *uuid.UUID `json:"ownerId,omitempty"`
	OwnerEmail       string     `json:"-"`
	Status           Status     `json:"status"`
	Active           bool       `json:"active"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	TokenClaimedAt   *time.Time `json:"-"`
	LastSeenAt       *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// NewDeviceAuthorization creates a fresh pending record with generated codes
// and an expiry deadline of now + ttl.
func NewDeviceAuthorization(deviceName, deviceType, deviceIdentifier string, ttl time.Duration) (*DeviceAuthorization, error) {
	deviceCode, err := generateDeviceCode()
	if err != nil {
		return nil, err
	}

	userCode, err := generateUserCode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &DeviceAuthorization{
		ID:               uuid.New(),
		DeviceCode:       deviceCode,
		UserCode:         userCode,
		DeviceName:       deviceName,
		DeviceType:       deviceType,
		DeviceIdentifier: deviceIdentifier,
		Status:           StatusPending,
		Active:           false,
		ExpiresAt:        now.Add(ttl),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// generateDeviceCode returns a 128-bit random hex string. The device code is
// the polling secret and is never shown to a human.
func generateDeviceCode() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// generateUserCode returns an 8-character code like "WDJC-XYZK" for
// out-of-band display during approval. It carries no security weight.
func generateUserCode() (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := strings.ToUpper(base32.StdEncoding.EncodeToString(buf)[:8])
	return code[:4] + "-" + code[4:], nil
}

// IsExpired reports whether the pending deadline has passed at the given
// instant. Only pending records expire; approved devices outlive their
// initiation window.
func (d *DeviceAuthorization) IsExpired(now time.Time) bool {
	return d.Status == StatusPending && !now.Before(d.ExpiresAt)
}

// IsOwnedBy reports whether principalID is the record's owner.
func (d *DeviceAuthorization) IsOwnedBy(principalID uuid.UUID) bool {
	return d.OwnerID != nil && *d.OwnerID == principalID
}
