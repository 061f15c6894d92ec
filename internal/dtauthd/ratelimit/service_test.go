package ratelimit

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/config"
)

func newTestService(t *testing.T, enabled bool) *Service {
	t.Helper()
	svc := NewService(NewMemoryStore(), slog.Default(), enabled)
	svc.RegisterDefaultLimits()
	return svc
}

func TestServiceConsumesUpToCapacity(t *testing.T) {
	svc := newTestService(t, true)
	key := Key{Subject: "user:alice", Class: ClassDeviceInit}

	limit, ok := svc.GetLimit(ClassDeviceInit)
	require.True(t, ok)
	require.Equal(t, 5, limit.Capacity)

	for i := 0; i < limit.Capacity; i++ {
		decision := svc.Allow(key)
		assert.True(t, decision.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, limit.Capacity-i-1, decision.Remaining)
	}

	decision := svc.Allow(key)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, decision.RetryAfter, time.Minute)
}

func TestServiceRefillsAfterPeriod(t *testing.T) {
	svc := newTestService(t, true)

	now := time.Now()
	svc.now = func() time.Time { return now }

	key := Key{Subject: "user:bob", Class: ClassSingleWrite}
	limit, ok := svc.GetLimit(ClassSingleWrite)
	require.True(t, ok)

	for i := 0; i < limit.Capacity; i++ {
		require.True(t, svc.Allow(key).Allowed)
	}
	require.False(t, svc.Allow(key).Allowed)

	// One refill period later the bucket is full again.
	now = now.Add(limit.RefillPeriod)

	decision := svc.Allow(key)
	assert.True(t, decision.Allowed)
	assert.Equal(t, limit.Capacity-1, decision.Remaining)
}

func TestServicePartialRefill(t *testing.T) {
	svc := newTestService(t, true)

	now := time.Now()
	svc.now = func() time.Time { return now }

	svc.RegisterLimit(ClassDefault, Limit{
		Capacity:     10,
		RefillAmount: 2,
		RefillPeriod: time.Second,
	})

	key := Key{Subject: "ip:10.0.0.1", Class: ClassDefault}

	for i := 0; i < 10; i++ {
		require.True(t, svc.Allow(key).Allowed)
	}
	require.False(t, svc.Allow(key).Allowed)

	// Three elapsed periods credit six tokens.
	now = now.Add(3 * time.Second)

	for i := 0; i < 6; i++ {
		assert.True(t, svc.Allow(key).Allowed, "request %d after refill", i+1)
	}
	assert.False(t, svc.Allow(key).Allowed)
}

func TestServiceDisabledBypassesAll(t *testing.T) {
	svc := newTestService(t, false)
	key := Key{Subject: "user:carol", Class: ClassDeviceConfirm}

	for i := 0; i < 100; i++ {
		decision := svc.Allow(key)
		assert.True(t, decision.Allowed)
		assert.True(t, decision.Bypassed)
	}

	// No buckets were created.
	assert.Equal(t, 0, svc.store.Len())
}

func TestServiceUnknownClassFallsBack(t *testing.T) {
	svc := newTestService(t, true)

	limit, ok := svc.GetLimit(Class("no-such-class"))
	require.True(t, ok)
	fallback, ok := svc.GetLimit(ClassDefault)
	require.True(t, ok)
	assert.Equal(t, fallback, limit)
}

func TestServiceIsolatesSubjects(t *testing.T) {
	svc := newTestService(t, true)

	keyA := Key{Subject: "user:a", Class: ClassDeviceInit}
	keyB := Key{Subject: "user:b", Class: ClassDeviceInit}

	limit, _ := svc.GetLimit(ClassDeviceInit)
	for i := 0; i < limit.Capacity; i++ {
		require.True(t, svc.Allow(keyA).Allowed)
	}
	require.False(t, svc.Allow(keyA).Allowed)

	// Other subjects are unaffected.
	assert.True(t, svc.Allow(keyB).Allowed)
}

func TestServiceIsolatesClasses(t *testing.T) {
	svc := newTestService(t, true)

	initKey := Key{Subject: "user:d", Class: ClassDeviceInit}
	readKey := Key{Subject: "user:d", Class: ClassRead}

	limit, _ := svc.GetLimit(ClassDeviceInit)
	for i := 0; i < limit.Capacity; i++ {
		require.True(t, svc.Allow(initKey).Allowed)
	}
	require.False(t, svc.Allow(initKey).Allowed)

	assert.True(t, svc.Allow(readKey).Allowed)
}

func TestServiceConcurrentRequestsShareOneBucket(t *testing.T) {
	svc := newTestService(t, true)
	svc.RegisterLimit(ClassDefault, Limit{
		Capacity:     50,
		RefillAmount: 50,
		RefillPeriod: time.Minute,
	})

	key := Key{Subject: "user:parallel", Class: ClassDefault}

	const workers = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.Allow(key).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
	assert.Equal(t, 1, svc.store.Len())
}

func TestServiceReset(t *testing.T) {
	svc := newTestService(t, true)
	key := Key{Subject: "user:reset", Class: ClassDeviceInit}

	limit, _ := svc.GetLimit(ClassDeviceInit)
	for i := 0; i < limit.Capacity; i++ {
		require.True(t, svc.Allow(key).Allowed)
	}
	require.False(t, svc.Allow(key).Allowed)

	svc.Reset(key)

	decision := svc.Allow(key)
	assert.True(t, decision.Allowed)
	assert.Equal(t, limit.Capacity-1, decision.Remaining)
}

func TestRegisterLimitRejectsInvalid(t *testing.T) {
	svc := newTestService(t, true)

	tests := []struct {
		name  string
		limit Limit
	}{
		{"zero capacity", Limit{Capacity: 0, RefillAmount: 1, RefillPeriod: time.Second}},
		{"zero refill amount", Limit{Capacity: 1, RefillAmount: 0, RefillPeriod: time.Second}},
		{"zero refill period", Limit{Capacity: 1, RefillAmount: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.RegisterLimit(ClassDefault, tt.limit)
			assert.Error(t, err)
		})
	}
}

func TestRegisterConfiguredLimitsIncludesDefaults(t *testing.T) {
	svc := NewService(NewMemoryStore(), slog.Default(), true)

	svc.RegisterConfiguredLimits(config.RateLimitConfig{
		Enabled: true,
		Classes: map[string]config.ClassLimit{
			string(ClassRead): {Capacity: 100, RefillAmount: 100, RefillPeriod: time.Minute},
		},
	})

	// The configured class overrides its default.
	limit, ok := svc.GetLimit(ClassRead)
	require.True(t, ok)
	assert.Equal(t, 100, limit.Capacity)

	// Unconfigured classes keep their defaults.
	limit, ok = svc.GetLimit(ClassDeviceInit)
	require.True(t, ok)
	assert.Equal(t, 5, limit.Capacity)

	limit, ok = svc.GetLimit(ClassDefault)
	require.True(t, ok)
	assert.Equal(t, 30, limit.Capacity)
}
