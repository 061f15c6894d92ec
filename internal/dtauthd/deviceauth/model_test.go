package deviceauth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeviceAuthorization(t *testing.T) {
	auth, err := NewDeviceAuthorization("Neovim", "editor-plugin", "host-1234", 10*time.Minute)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, auth.ID)
	assert.Equal(t, StatusPending, auth.Status)
	assert.False(t, auth.Active)
	assert.Nil(t, auth.OwnerID)
	assert.Nil(t, auth.TokenClaimedAt)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), auth.ExpiresAt, time.Second)

	// 128 bits of entropy, hex encoded.
	assert.Len(t, auth.DeviceCode, 32)

	// Display code like "WDJC-XYZK".
	assert.Len(t, auth.UserCode, 9)
	assert.Equal(t, "-", string(auth.UserCode[4]))
	assert.Equal(t, strings.ToUpper(auth.UserCode), auth.UserCode)
}

func TestDeviceCodesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		auth, err := NewDeviceAuthorization("dev", "cli", "id", time.Minute)
		require.NoError(t, err)
		require.False(t, seen[auth.DeviceCode], "duplicate device code")
		seen[auth.DeviceCode] = true
	}
}

func TestIsExpired(t *testing.T) {
	auth, err := NewDeviceAuthorization("dev", "cli", "id", 10*time.Minute)
	require.NoError(t, err)

	now := time.Now()
	assert.False(t, auth.IsExpired(now))
	assert.True(t, auth.IsExpired(auth.ExpiresAt))
	assert.True(t, auth.IsExpired(auth.ExpiresAt.Add(time.Hour)))

	// Approved devices outlive the pending window.
	auth.Status = StatusApproved
	assert.False(t, auth.IsExpired(auth.ExpiresAt.Add(time.Hour)))
}

func TestIsOwnedBy(t *testing.T) {
	auth, err := NewDeviceAuthorization("dev", "cli", "id", time.Minute)
	require.NoError(t, err)

	owner := uuid.New()
	assert.False(t, auth.IsOwnedBy(owner))

	auth.OwnerID = &owner
	assert.True(t, auth.IsOwnedBy(owner))
	assert.False(t, auth.IsOwnedBy(uuid.New()))
}
