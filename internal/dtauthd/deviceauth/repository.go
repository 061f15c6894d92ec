package deviceauth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines storage operations for device authorization records.
// All state transitions are conditional updates: each mutation names the
// status it expects to move from, and the store applies it to at most one
// row still in that state. Callers distinguish "lost the race" from "no such
// record" through the returned errors.
type Repository interface {
	// Create persists a new pending record. The device code is unique; a
	// collision surfaces as a conflict error.
	Create(ctx context.Context, auth *DeviceAuthorization) error

	// FindByDeviceCode loads a record by its polling secret.
	FindByDeviceCode(ctx context.Context, deviceCode string) (*DeviceAuthorization, error)

	// FindByID loads a record by primary id.
	FindByID(ctx context.Context, id uuid.UUID) (*DeviceAuthorization, error)

	// ListActiveByOwner returns the owner's approved devices, newest first.
	ListActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]DeviceAuthorization, error)

	// HasActiveByOwner reports whether the owner has at least one approved
	// device without loading the full list.
	HasActiveByOwner(ctx context.Context, ownerID uuid.UUID) (bool, error)

	// Approve transitions pending → approved, setting the owner, only if the
	// record is still pending. Returns the updated record, or ErrNotFound
	// when no pending row matched the device code.
	Approve(ctx context.Context, deviceCode string, ownerID uuid.UUID, ownerEmail string) (*DeviceAuthorization, error)

	// ClaimToken stamps token_claimed_at on an approved record whose claim
	// is still unset. At most one caller ever succeeds per approval; losers
	// get ErrNotFound and must re-read to learn why.
	ClaimToken(ctx context.Context, deviceCode string, claimedAt time.Time) (*DeviceAuthorization, error)

	// MarkExpired transitions pending → expired. A no-op result is not an
	// error; lazy expiry races with sweeps and with itself.
	MarkExpired(ctx context.Context, deviceCode string) error

	// Revoke transitions approved → revoked for the given id, only when
	// ownerID matches the stored owner. Returns ErrNotFound when no such
	// approved row exists for that owner.
	Revoke(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error

	// TouchLastSeen updates last_seen_at on the owner's approved devices.
	TouchLastSeen(ctx context.Context, ownerID uuid.UUID, seenAt time.Time) error

	// DeleteExpiredBefore removes records whose expiry deadline predates the
	// cutoff, regardless of status, and returns how many were deleted.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// CountByStatus returns record counts grouped by lifecycle status.
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
