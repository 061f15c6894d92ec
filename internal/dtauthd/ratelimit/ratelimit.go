// Package ratelimit provides token-bucket admission control keyed by
// principal (or client IP) and endpoint class.
package ratelimit

import (
	"sync"
	"time"
)

// Class identifies a group of endpoints that share one rate limit
// configuration.
type Class string

// Endpoint classes in match order. Requests that fit no specific class fall
// into ClassDefault.
const (
	ClassBatchWrite    Class = "batch-write"
	ClassSingleWrite   Class = "single-write"
	ClassRead          Class = "read"
	ClassProjectRead   Class = "project-read"
	ClassOverviewRead  Class = "overview-read"
	ClassDeviceInit    Class = "device-init"
	ClassDeviceConfirm Class = "device-confirm"
	ClassDefault       Class = "default"
)

// Limit defines the token bucket configuration for one endpoint class.
type Limit struct {
	// Capacity is the maximum number of tokens the bucket holds
	Capacity int

	// RefillAmount is the number of tokens added per refill period
	RefillAmount int

	// RefillPeriod is the interval between refills
	RefillPeriod time.Duration
}

// Key identifies a single bucket: one subject on one endpoint class.
type Key struct {
	// Subject is "user:<id>" for authenticated requests, "ip:<addr>" otherwise
	Subject string

	// Class is the endpoint class the request was classified into
	Class Class
}

// Decision is the outcome of a consume attempt.
type Decision struct {
	// Allowed reports whether the unit of work was admitted
	Allowed bool

	// Bypassed reports that admission control is disabled and no bucket
	// state was touched
	Bypassed bool

	// Remaining is the token count left in the bucket after the attempt
	Remaining int

	// RetryAfter is how long until enough tokens accrue, zero when allowed
	RetryAfter time.Duration

	// Limit is the configuration the decision was made against
	Limit Limit
}

// Store holds the bucket map. Implementations must guarantee that bucket
// creation is exactly-once per key even under concurrent first requests.
type Store interface {
	// Resolve returns the bucket for key, creating it via create if absent
	Resolve(key Key, create func() *Bucket) *Bucket

	// Reset removes the bucket for key, restoring a full bucket on next use
	Reset(key Key)

	// Len reports the number of live buckets
	Len() int
}

// Bucket holds the mutable token-bucket state for one key. Token mutation is
// synchronized per bucket; contention is expected only within one key.
type Bucket struct {
	mu           sync.Mutex
	limit        Limit
	tokens       int
	lastRefillAt time.Time
}

// NewBucket creates a full bucket with the given limit.
func NewBucket(limit Limit, now time.Time) *Bucket {
	return &Bucket{
		limit:        limit,
		tokens:       limit.Capacity,
		lastRefillAt: now,
	}
}

// TryConsume attempts to take cost tokens from the bucket, refilling lazily
// from elapsed time first.
func (b *Bucket) TryConsume(cost int, now time.Time) Decision {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)

	if b.tokens >= cost {
		b.tokens -= cost
		return Decision{
			Allowed:   true,
			Remaining: b.tokens,
			Limit:     b.limit,
		}
	}

	// Compute how long until enough refill intervals have passed to
	// cover the deficit.
	deficit := cost - b.tokens
	intervals := (deficit + b.limit.RefillAmount - 1) / b.limit.RefillAmount
	readyAt := b.lastRefillAt.Add(time.Duration(intervals) * b.limit.RefillPeriod)

	retryAfter := readyAt.Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}

	return Decision{
		Allowed:    false,
		Remaining:  b.tokens,
		RetryAfter: retryAfter,
		Limit:      b.limit,
	}
}

// refill credits whole elapsed refill intervals, capped at capacity. The
// interval remainder stays accounted in lastRefillAt so slow pollers are not
// shortchanged.
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefillAt)
	if elapsed < b.limit.RefillPeriod {
		return
	}

	intervals := int(elapsed / b.limit.RefillPeriod)
	b.tokens += intervals * b.limit.RefillAmount
	if b.tokens > b.limit.Capacity {
		b.tokens = b.limit.Capacity
	}
	b.lastRefillAt = b.lastRefillAt.Add(time.Duration(intervals) * b.limit.RefillPeriod)
}
