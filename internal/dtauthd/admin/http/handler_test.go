package http

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/cache"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/config"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth/devicetest"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/flow"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/session"
)

func newTestHandler(t *testing.T) (*Handler, *devicetest.Repository, *flow.Service) {
	t.Helper()

	logger := slog.Default()
	repo := devicetest.NewRepository()
	registry := deviceauth.NewService(repo, nil, logger, 10*time.Minute, time.Hour)

	codec, err := session.NewCodec([]byte("0123456789abcdef0123456789abcdef"), time.Hour, "devtrack-auth")
	require.NoError(t, err)

	flowSvc := flow.NewService(registry, codec, cache.NewDeviceListCache(nil, time.Minute, logger), logger, config.DeviceAuthConfig{
		FrontendURL:  "http://localhost:3000",
		PollInterval: 5 * time.Second,
	})

	return NewHandler(flowSvc, zerolog.New(os.Stderr)), repo, flowSvc
}

func TestHandleCleanup(t *testing.T) {
	handler, repo, flowSvc := newTestHandler(t)

	initiated, err := flowSvc.Initiate(testRequest().Context(), "dev", "cli", "id")
	require.NoError(t, err)
	repo.ExpireBefore(initiated.DeviceCode, time.Now().Add(-2*time.Hour))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/device-auth/cleanup", nil)
	handler.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":1}`, rec.Body.String())
}

func TestHandleStats(t *testing.T) {
	handler, _, flowSvc := newTestHandler(t)

	_, err := flowSvc.Initiate(testRequest().Context(), "dev", "cli", "id")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/device-auth/stats", nil)
	handler.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pending":1}`, rec.Body.String())
}

func testRequest() *http.Request {
	return httptest.NewRequest(http.MethodGet, "/", nil)
}
