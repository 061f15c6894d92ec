// Package devicetest provides an in-memory device authorization repository
// with the same conditional-update semantics as the PostgreSQL one, for use
// in tests.
package devicetest

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/database"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth"
	werrors "github.com/devtrackhq/devtrack-auth/internal/dtauthd/errors"
)

// Repository is a thread-safe in-memory deviceauth.Repository.
type Repository struct {
	mu      sync.Mutex
	byCode  map[string]*deviceauth.DeviceAuthorization
	Created int
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		byCode: make(map[string]*deviceauth.DeviceAuthorization),
	}
}

func (r *Repository) Create(_ context.Context, auth *deviceauth.DeviceAuthorization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCode[auth.DeviceCode]; exists {
		return werrors.NewError("CONFLICT", "device code already exists", "devicetest.Create", werrors.ErrConflict)
	}

	clone := *auth
	r.byCode[auth.DeviceCode] = &clone
	r.Created++
	return nil
}

func (r *Repository) FindByDeviceCode(_ context.Context, deviceCode string) (*deviceauth.DeviceAuthorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auth, ok := r.byCode[deviceCode]
	if !ok {
		return nil, database.MapError(sql.ErrNoRows, "devicetest.FindByDeviceCode")
	}
	clone := *auth
	return &clone, nil
}

func (r *Repository) FindByID(_ context.Context, id uuid.UUID) (*deviceauth.DeviceAuthorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, auth := range r.byCode {
		if auth.ID == id {
			clone := *auth
			return &clone, nil
		}
	}
	return nil, database.MapError(sql.ErrNoRows, "devicetest.FindByID")
}

func (r *Repository) ListActiveByOwner(_ context.Context, ownerID uuid.UUID) ([]deviceauth.DeviceAuthorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var devices []deviceauth.DeviceAuthorization
	for _, auth := range r.byCode {
		if auth.Status == deviceauth.StatusApproved && auth.IsOwnedBy(ownerID) {
			devices = append(devices, *auth)
		}
	}
	return devices, nil
}

func (r *Repository) HasActiveByOwner(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	devices, err := r.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return len(devices) > 0, nil
}

func (r *Repository) Approve(_ context.Context, deviceCode string, ownerID uuid.UUID, ownerEmail string) (*deviceauth.DeviceAuthorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auth, ok := r.byCode[deviceCode]
	if !ok || auth.Status != deviceauth.StatusPending {
		return nil, database.MapError(sql.ErrNoRows, "devicetest.Approve")
	}

	owner := ownerID
	auth.OwnerID = &owner
	auth.OwnerEmail = ownerEmail
	auth.Status = deviceauth.StatusApproved
	auth.Active = true
	auth.UpdatedAt = time.Now()

	clone := *auth
	return &clone, nil
}

func (r *Repository) ClaimToken(_ context.Context, deviceCode string, claimedAt time.Time) (*deviceauth.DeviceAuthorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auth, ok := r.byCode[deviceCode]
	if !ok || auth.Status != deviceauth.StatusApproved || auth.TokenClaimedAt != nil {
		return nil, database.MapError(sql.ErrNoRows, "devicetest.ClaimToken")
	}

	claimed := claimedAt
	auth.TokenClaimedAt = &claimed
	auth.UpdatedAt = time.Now()

	clone := *auth
	return &clone, nil
}

func (r *Repository) MarkExpired(_ context.Context, deviceCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	auth, ok := r.byCode[deviceCode]
	if ok && auth.Status == deviceauth.StatusPending {
		auth.Status = deviceauth.StatusExpired
		auth.Active = false
		auth.UpdatedAt = time.Now()
	}
	return nil
}

func (r *Repository) Revoke(_ context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, auth := range r.byCode {
		if auth.ID == id && auth.IsOwnedBy(ownerID) && auth.Status == deviceauth.StatusApproved {
			auth.Status = deviceauth.StatusRevoked
			auth.Active = false
			auth.UpdatedAt = time.Now()
			return nil
		}
	}
	return database.MapError(sql.ErrNoRows, "devicetest.Revoke")
}

func (r *Repository) TouchLastSeen(_ context.Context, ownerID uuid.UUID, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, auth := range r.byCode {
		if auth.Status == deviceauth.StatusApproved && auth.IsOwnedBy(ownerID) {
			seen := seenAt
			auth.LastSeenAt = &seen
		}
	}
	return nil
}

func (r *Repository) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for code, auth := range r.byCode {
		if auth.ExpiresAt.Before(cutoff) {
			delete(r.byCode, code)
			count++
		}
	}
	return count, nil
}

func (r *Repository) CountByStatus(_ context.Context) (map[deviceauth.Status]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[deviceauth.Status]int64)
	for _, auth := range r.byCode {
		counts[auth.Status]++
	}
	return counts, nil
}

// Expire force-moves a record's deadline into the past so tests can exercise
// lazy expiry without sleeping.
func (r *Repository) Expire(deviceCode string) {
	r.ExpireBefore(deviceCode, time.Now().Add(-time.Minute))
}

// ExpireBefore pins a record's deadline to a specific past instant.
func (r *Repository) ExpireBefore(deviceCode string, deadline time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if auth, ok := r.byCode[deviceCode]; ok {
		auth.ExpiresAt = deadline
	}
}
