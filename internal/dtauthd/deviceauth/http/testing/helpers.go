// Package testing provides shared test infrastructure for device auth HTTP
// handler tests. Handlers run against the in-memory repository so tests
// exercise real flow semantics end to end.
package testing

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/cache"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/config"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth/devicetest"
	authhttp "github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth/http"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/flow"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/ratelimit"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/session"
)

// TestHandler bundles a fully wired handler with the pieces tests poke at.
type TestHandler struct {
	Handler *authhttp.Handler
	Repo    *devicetest.Repository
	Flow    *flow.Service
	Codec   *session.Codec
	Limiter *ratelimit.Service

	t *testing.T
}

// NewTestHandler creates a handler over in-memory stores. Rate limiting is
// enabled with the default limits; tests that need headroom can re-register
// larger limits on Limiter.
func NewTestHandler(t *testing.T) *TestHandler {
	t.Helper()

	logger := slog.Default()
	repo := devicetest.NewRepository()
	registry := deviceauth.NewService(repo, nil, logger, 10*time.Minute, time.Hour)

	codec, err := session.NewCodec([]byte("0123456789abcdef0123456789abcdef"), time.Hour, "devtrack-auth")
	require.NoError(t, err)

	devices := cache.NewDeviceListCache(nil, time.Minute, logger)
	flowSvc := flow.NewService(registry, codec, devices, logger, config.DeviceAuthConfig{
		FrontendURL:  "http://localhost:3000",
		PollInterval: 5 * time.Second,
	})

	limiter := ratelimit.NewService(ratelimit.NewMemoryStore(), logger, true)
	limiter.RegisterDefaultLimits()

	handler := authhttp.NewHandler(flowSvc, codec, limiter, nil, logger)

	return &TestHandler{
		Handler: handler,
		Repo:    repo,
		Flow:    flowSvc,
		Codec:   codec,
		Limiter: limiter,
		t:       t,
	}
}

// JSONRequest builds a request with a JSON body and a stable client IP so
// rate limit buckets do not collide across requests in one test.
func (th *TestHandler) JSONRequest(method, target string, body interface{}) *http.Request {
	th.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(th.t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, target, &buf)
	require.NoError(th.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:40000"
	return req
}

// AuthRequest builds a JSON request bearing a valid session for principal.
func (th *TestHandler) AuthRequest(method, target string, body interface{}, principal session.Principal) *http.Request {
	th.t.Helper()

	req := th.JSONRequest(method, target, body)
	token, err := th.Codec.Issue(principal.ID, principal.Email)
	require.NoError(th.t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// NewPrincipal returns a fresh principal identity.
func (th *TestHandler) NewPrincipal() session.Principal {
	return session.Principal{ID: uuid.New(), Email: "user@example.com"}
}
