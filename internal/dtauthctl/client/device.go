package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	v1 "github.com/devtrackhq/devtrack-auth/api/types/v1"
)

const deviceAuthPath = "/api/v1/auth/device"

// InitiateDeviceAuth starts a device authorization flow for this client.
func (c *Client) InitiateDeviceAuth(ctx context.Context, deviceName, deviceType, deviceID string) (*v1.DeviceAuthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, deviceAuthPath, v1.DeviceAuthRequest{
		DeviceName: deviceName,
		DeviceType: deviceType,
		DeviceID:   deviceID,
	})
	if err != nil {
		return nil, err
	}

	var out v1.DeviceAuthResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PollDeviceToken performs a single poll for the flow outcome.
func (c *Client) PollDeviceToken(ctx context.Context, deviceCode string) (*v1.DeviceTokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, deviceAuthPath+"/token", v1.DeviceTokenRequest{
		DeviceCode: deviceCode,
	})
	if err != nil {
		return nil, err
	}

	var out v1.DeviceTokenResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForApproval polls until the flow resolves, honoring the poll interval
// the server returned at initiation. It returns the session token once the
// device is approved.
func (c *Client) WaitForApproval(ctx context.Context, deviceCode string, pollInterval int) (string, error) {
	interval := time.Duration(pollInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			resp, err := c.PollDeviceToken(ctx, deviceCode)
			if err != nil {
				return "", err
			}

			switch resp.Status {
			case "approved":
				return resp.AccessToken, nil
			case "claimed":
				return "", fmt.Errorf("approval was already claimed by another poller")
			default:
				// authorization_pending: keep waiting
			}
		}
	}
}

// ConfirmDevice approves a pending device on behalf of the authenticated user.
func (c *Client) ConfirmDevice(ctx context.Context, deviceCode string) (*v1.Device, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, deviceAuthPath+"/confirm", v1.DeviceConfirmRequest{
		DeviceCode: deviceCode,
	})
	if err != nil {
		return nil, err
	}

	var out v1.Device
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDevices returns the authenticated user's approved devices.
func (c *Client) ListDevices(ctx context.Context) ([]v1.Device, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, deviceAuthPath+"/devices", nil)
	if err != nil {
		return nil, err
	}

	var out v1.DeviceListResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

// RevokeDevice withdraws one of the authenticated user's devices.
func (c *Client) RevokeDevice(ctx context.Context, deviceID string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, deviceAuthPath+"/"+deviceID, nil)
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

// Cleanup triggers the administrative retention sweep.
func (c *Client) Cleanup(ctx context.Context) (int64, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/v1/admin/device-auth/cleanup", nil)
	if err != nil {
		return 0, err
	}

	var out v1.CleanupResponse
	if err := decode(resp, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}
