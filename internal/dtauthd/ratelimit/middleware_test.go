package ratelimit

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareSetsHeaders(t *testing.T) {
	svc := newTestService(t, true)
	handler := Middleware(svc, slog.Default(), Options{})(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/device", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("RateLimit-Remaining"))
}

func TestMiddlewareReturns429WhenExhausted(t *testing.T) {
	svc := newTestService(t, true)
	handler := Middleware(svc, slog.Default(), Options{})(okHandler())

	limit, _ := svc.GetLimit(ClassDeviceInit)
	for i := 0; i < limit.Capacity; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/device", nil)
		req.RemoteAddr = "192.0.2.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/device", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestMiddlewareSubjectOverride(t *testing.T) {
	svc := newTestService(t, true)
	handler := Middleware(svc, slog.Default(), Options{
		Subject: func(r *http.Request) string { return "user:fixed" },
	})(okHandler())

	limit, _ := svc.GetLimit(ClassDeviceInit)

	// Requests from different IPs share one bucket under the fixed subject.
	for i := 0; i < limit.Capacity; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/device", nil)
		req.RemoteAddr = "10.0.0." + string(rune('1'+i)) + ":1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/device", nil)
	req.RemoteAddr = "10.0.0.99:1000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestMiddlewareClassOverride(t *testing.T) {
	svc := newTestService(t, true)
	handler := Middleware(svc, slog.Default(), Options{
		ClassOverride: ClassDeviceConfirm,
	})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/some/other/path", nil)
	req.RemoteAddr = "192.0.2.5:1000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	limit, _ := svc.GetLimit(ClassDeviceConfirm)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("RateLimit-Limit"))
	require.Equal(t, 5, limit.Capacity)
}

func TestMiddlewareSkip(t *testing.T) {
	svc := newTestService(t, true)
	handler := Middleware(svc, slog.Default(), Options{
		Skip: func(r *http.Request) bool { return r.URL.Path == "/healthz" },
	})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("RateLimit-Limit"))
	assert.Equal(t, 0, svc.store.Len())
}

func TestMiddlewareDisabledOmitsHeaders(t *testing.T) {
	svc := newTestService(t, false)
	handler := Middleware(svc, slog.Default(), Options{})(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/device", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("RateLimit-Limit"))
	assert.Empty(t, rec.Header().Get("RateLimit-Remaining"))
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.0.2.1:4242",
			want:       "192.0.2.1",
		},
		{
			name:       "x-real-ip wins",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "203.0.113.7"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for leftmost",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.2, 10.0.0.5"},
			want:       "198.51.100.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, RealIP(req))
		})
	}
}
