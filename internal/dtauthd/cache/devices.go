// Package cache provides Redis-backed read caching for frequently polled
// resources. All cache operations degrade gracefully: a Redis failure is
// logged and the caller falls through to the authoritative store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth"
)

// DeviceListCache caches per-owner device listings. The key for an owner is
// invalidated synchronously whenever a device of that owner is confirmed or
// revoked, so readers never observe a stale entry past a mutation.
type DeviceListCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewDeviceListCache creates a device list cache. A nil client disables
// caching entirely; every lookup misses and every store is a no-op.
func NewDeviceListCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *DeviceListCache {
	return &DeviceListCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// keyStr converts an owner ID to a Redis key.
func (c *DeviceListCache) keyStr(ownerID uuid.UUID) string {
	return fmt.Sprintf("devices:%s", ownerID)
}

// Get returns the cached device list for an owner. The second return value
// reports whether the entry was present.
func (c *DeviceListCache) Get(ctx context.Context, ownerID uuid.UUID) ([]deviceauth.DeviceAuthorization, bool) {
	if c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, c.keyStr(ownerID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("device list cache read failed",
				"ownerId", ownerID,
				"error", err,
			)
		}
		return nil, false
	}

	var devices []deviceauth.DeviceAuthorization
	if err := json.Unmarshal(data, &devices); err != nil {
		c.logger.Warn("device list cache entry corrupt, dropping",
			"ownerId", ownerID,
			"error", err,
		)
		c.Invalidate(ctx, ownerID)
		return nil, false
	}

	return devices, true
}

// Set stores the device list for an owner with the configured TTL.
func (c *DeviceListCache) Set(ctx context.Context, ownerID uuid.UUID, devices []deviceauth.DeviceAuthorization) {
	if c.client == nil {
		return
	}

	data, err := json.Marshal(devices)
	if err != nil {
		c.logger.Warn("device list cache encode failed",
			"ownerId", ownerID,
			"error", err,
		)
		return
	}

	if err := c.client.Set(ctx, c.keyStr(ownerID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("device list cache write failed",
			"ownerId", ownerID,
			"error", err,
		)
	}
}

// Invalidate removes the cached device list for an owner. Called
// synchronously from confirm and revoke before their responses are sent.
func (c *DeviceListCache) Invalidate(ctx context.Context, ownerID uuid.UUID) {
	if c.client == nil {
		return
	}

	if err := c.client.Del(ctx, c.keyStr(ownerID)).Err(); err != nil {
		c.logger.Warn("device list cache invalidate failed",
			"ownerId", ownerID,
			"error", err,
		)
	}
}
