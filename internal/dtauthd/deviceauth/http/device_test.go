package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/devtrackhq/devtrack-auth/api/types/v1"
	testhttp "github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth/http/testing"
)

func TestInitiateDeviceAuth(t *testing.T) {
	th := testhttp.NewTestHandler(t)

	req := th.JSONRequest(http.MethodPost, "/api/v1/auth/device", v1.DeviceAuthRequest{
		DeviceName: "Neovim",
		DeviceType: "editor-plugin",
		DeviceID:   "host-1",
	})
	rec := httptest.NewRecorder()

	th.Handler.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp v1.DeviceAuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.DeviceCode, 32)
	assert.Len(t, resp.UserCode, 9)
	assert.Contains(t, resp.VerificationURI, resp.DeviceCode)
	assert.InDelta(t, 600, resp.ExpiresIn, 2)
	assert.Equal(t, 5, resp.PollInterval)

	// Rate limit headers accompany the decision.
	assert.Equal(t, "5", rec.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("RateLimit-Remaining"))
}

func TestInitiateDeviceAuthValidation(t *testing.T) {
	th := testhttp.NewTestHandler(t)

	req := th.JSONRequest(http.MethodPost, "/api/v1/auth/device", v1.DeviceAuthRequest{
		DeviceType: "editor-plugin",
	})
	rec := httptest.NewRecorder()

	th.Handler.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestInitiateDeviceAuthRateLimited(t *testing.T) {
	th := testhttp.NewTestHandler(t)

	body := v1.DeviceAuthRequest{DeviceName: "dev", DeviceType: "cli", DeviceID: "id"}

	// device-init allows 5 per minute per client.
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		th.Handler.Router().ServeHTTP(rec, th.JSONRequest(http.MethodPost, "/api/v1/auth/device", body))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	th.Handler.Router().ServeHTTP(rec, th.JSONRequest(http.MethodPost, "/api/v1/auth/device", body))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestPollForToken(t *testing.T) {
	th := testhttp.NewTestHandler(t)
	ctx := testContext()
	principal := th.NewPrincipal()

	initiated, err := th.Flow.Initiate(ctx, "dev", "cli", "id")
	require.NoError(t, err)

	poll := func() (*httptest.ResponseRecorder, v1.DeviceTokenResponse) {
		rec := httptest.NewRecorder()
		req := th.JSONRequest(http.MethodPost, "/api/v1/auth/device/token", v1.DeviceTokenRequest{
			DeviceCode: initiated.DeviceCode,
		})
		th.Handler.Router().ServeHTTP(rec, req)

		var resp v1.DeviceTokenResponse
		if rec.Code == http.StatusOK {
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		}
		return rec, resp
	}

	// Pending before approval.
	rec, resp := poll()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "authorization_pending", resp.Status)
	assert.Empty(t, resp.AccessToken)

	// Approve out of band.
	_, err = th.Flow.Confirm(ctx, initiated.DeviceCode, principal)
	require.NoError(t, err)

	// First poll after approval carries the session.
	rec, resp = poll()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", resp.Status)
	require.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)

	got, err := th.Codec.Validate(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, principal.ID, got.ID)

	// Second poll reports the claim without a fresh session.
	rec, resp = poll()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "claimed", resp.Status)
	assert.Empty(t, resp.AccessToken)
}

func TestPollForTokenUnknownCode(t *testing.T) {
	th := testhttp.NewTestHandler(t)

	rec := httptest.NewRecorder()
	req := th.JSONRequest(http.MethodPost, "/api/v1/auth/device/token", v1.DeviceTokenRequest{
		DeviceCode: "no-such-code",
	})
	th.Handler.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_grant")
}

func TestPollForTokenExpiredCode(t *testing.T) {
	th := testhttp.NewTestHandler(t)
	ctx := testContext()

	initiated, err := th.Flow.Initiate(ctx, "dev", "cli", "id")
	require.NoError(t, err)
	th.Repo.Expire(initiated.DeviceCode)

	rec := httptest.NewRecorder()
	req := th.JSONRequest(http.MethodPost, "/api/v1/auth/device/token", v1.DeviceTokenRequest{
		DeviceCode: initiated.DeviceCode,
	})
	th.Handler.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired_token")
}

func TestGetDeviceStatus(t *testing.T) {
	th := testhttp.NewTestHandler(t)
	ctx := testContext()

	initiated, err := th.Flow.Initiate(ctx, "dev", "cli", "id")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := th.JSONRequest(http.MethodGet, "/api/v1/auth/device/status/"+initiated.DeviceCode, nil)
	th.Handler.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp v1.DeviceStatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "pending", resp.Status)
}

func TestHealthEndpoints(t *testing.T) {
	th := testhttp.NewTestHandler(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		req := th.JSONRequest(http.MethodGet, path, nil)
		th.Handler.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "ok")
	}
}
