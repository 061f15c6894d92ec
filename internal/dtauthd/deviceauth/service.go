package deviceauth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	werrors "github.com/devtrackhq/devtrack-auth/internal/dtauthd/errors"
)

// PollOutcome classifies what a poll observed.
type PollOutcome int

const (
	// PollPending means the device is still waiting for approval.
	PollPending PollOutcome = iota
	// PollApproved means the approval is unclaimed; the caller issues a
	// session and then calls Claim to settle the one-time handout.
	PollApproved
	// PollClaimed means approval was already reported to an earlier poll.
	PollClaimed
)

// Service is the device authorization registry. It owns all state
// transitions on device records; lazy expiry is applied on every read so a
// record past its deadline is reported expired even before a sweep runs.
type Service struct {
	repo      Repository
	publisher Publisher
	logger    *slog.Logger

	codeTTL         time.Duration
	retentionMargin time.Duration
	now             func() time.Time
}

// NewService creates a device authorization registry.
func NewService(repo Repository, publisher Publisher, logger *slog.Logger, codeTTL, retentionMargin time.Duration) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Service{
		repo:            repo,
		publisher:       publisher,
		logger:          logger,
		codeTTL:         codeTTL,
		retentionMargin: retentionMargin,
		now:             time.Now,
	}
}

// Initiate creates a new pending device authorization.
func (s *Service) Initiate(ctx context.Context, deviceName, deviceType, deviceIdentifier string) (*DeviceAuthorization, error) {
	const op = "deviceauth.Initiate"

	auth, err := NewDeviceAuthorization(deviceName, deviceType, deviceIdentifier, s.codeTTL)
	if err != nil {
		return nil, werrors.NewError("CODE_GENERATION_FAILED", "failed to generate device codes", op, err)
	}

	if err := s.repo.Create(ctx, auth); err != nil {
		return nil, err
	}

	s.logger.Info("device authorization initiated",
		"deviceId", auth.ID,
		"deviceName", auth.DeviceName,
		"expiresAt", auth.ExpiresAt,
	)

	return auth, nil
}

// Poll reports the current state of a device code without side effects.
// An approved record stays PollApproved until a Claim settles it; once
// claimed, every later poll gets PollClaimed so a leaked device code
// cannot mint sessions indefinitely.
func (s *Service) Poll(ctx context.Context, deviceCode string) (*DeviceAuthorization, PollOutcome, error) {
	const op = "deviceauth.Poll"

	auth, err := s.loadWithExpiry(ctx, op, deviceCode)
	if err != nil {
		return nil, 0, err
	}

	switch auth.Status {
	case StatusPending:
		return auth, PollPending, nil

	case StatusApproved:
		if auth.TokenClaimedAt != nil {
			return auth, PollClaimed, nil
		}
		return auth, PollApproved, nil

	case StatusRevoked:
		return nil, 0, werrors.NewError("DEVICE_REVOKED", "device authorization was revoked", op, werrors.ErrNotFound)

	default:
		return nil, 0, werrors.NewError("DEVICE_EXPIRED", "device code has expired", op, werrors.ErrExpired)
	}
}

// Claim settles the one-time session handout for an approved device code.
// The conditional update guarantees exactly one caller ever wins; losers
// of a concurrent race get a NotFound from the repository, surfaced for
// the caller to report the claimed outcome instead. Callers claim only
// after the session token is in hand so a failed issuance never burns
// the approval.
func (s *Service) Claim(ctx context.Context, deviceCode string) (*DeviceAuthorization, error) {
	claimed, err := s.repo.ClaimToken(ctx, deviceCode, s.now())
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Confirm approves a pending device on behalf of an authenticated principal.
// Exactly one confirm ever succeeds per device code; losers of a concurrent
// race get a conflict.
func (s *Service) Confirm(ctx context.Context, deviceCode string, ownerID uuid.UUID, ownerEmail string) (*DeviceAuthorization, error) {
	const op = "deviceauth.Confirm"

	auth, err := s.loadWithExpiry(ctx, op, deviceCode)
	if err != nil {
		return nil, err
	}

	switch auth.Status {
	case StatusPending:
	case StatusExpired:
		return nil, werrors.NewError("DEVICE_EXPIRED", "device code has expired", op, werrors.ErrExpired)
	default:
		return nil, werrors.NewError("ALREADY_PROCESSED", "device authorization is not pending", op, werrors.ErrConflict)
	}

	approved, err := s.repo.Approve(ctx, deviceCode, ownerID, ownerEmail)
	if err != nil {
		if werrors.IsNotFound(err) {
			// The pending row vanished between read and update: a
			// concurrent confirm won, or expiry swept it.
			return nil, werrors.NewError("ALREADY_PROCESSED", "device authorization already processed", op, werrors.ErrConflict)
		}
		return nil, err
	}

	s.logger.Info("device authorization confirmed",
		"deviceId", approved.ID,
		"ownerId", ownerID,
	)

	s.publisher.Publish(Event{
		Type:      EventConfirmed,
		OwnerID:   ownerID,
		DeviceID:  approved.ID,
		Name:      approved.DeviceName,
		Timestamp: s.now(),
	})

	return approved, nil
}

// Status returns the current lifecycle status for a device code.
func (s *Service) Status(ctx context.Context, deviceCode string) (Status, error) {
	const op = "deviceauth.Status"

	auth, err := s.loadWithExpiry(ctx, op, deviceCode)
	if err != nil {
		if werrors.IsExpired(err) {
			return StatusExpired, nil
		}
		return "", err
	}

	return auth.Status, nil
}

// ListActive returns the owner's approved devices.
func (s *Service) ListActive(ctx context.Context, ownerID uuid.UUID) ([]DeviceAuthorization, error) {
	return s.repo.ListActiveByOwner(ctx, ownerID)
}

// HasActive reports whether the owner has any approved device.
func (s *Service) HasActive(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	return s.repo.HasActiveByOwner(ctx, ownerID)
}

// TouchLastSeen records listing activity on the owner's approved devices.
// Failures are logged, not returned; last-seen is advisory.
func (s *Service) TouchLastSeen(ctx context.Context, ownerID uuid.UUID) {
	if err := s.repo.TouchLastSeen(ctx, ownerID, s.now()); err != nil {
		s.logger.Warn("failed to update device last seen",
			"ownerId", ownerID,
			"error", err,
		)
	}
}

// Revoke withdraws an approved device. Only the owning principal may revoke;
// anyone else gets a forbidden error and the record is left untouched.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) error {
	const op = "deviceauth.Revoke"

	err := s.repo.Revoke(ctx, id, requesterID)
	if err == nil {
		s.logger.Info("device authorization revoked",
			"deviceId", id,
			"ownerId", requesterID,
		)
		s.publisher.Publish(Event{
			Type:      EventRevoked,
			OwnerID:   requesterID,
			DeviceID:  id,
			Timestamp: s.now(),
		})
		return nil
	}
	if !werrors.IsNotFound(err) {
		return err
	}

	// The conditional update matched nothing. Re-read to tell the caller
	// why: unknown id, someone else's device, or a non-approved state.
	auth, findErr := s.repo.FindByID(ctx, id)
	if findErr != nil {
		return findErr
	}
	if !auth.IsOwnedBy(requesterID) {
		return werrors.NewError("NOT_OWNER", "device belongs to another user", op, werrors.ErrForbidden)
	}
	return werrors.NewError("NOT_ACTIVE", "device authorization is not active", op, werrors.ErrConflict)
}

// CleanupExpired deletes records whose deadline passed more than the
// retention margin ago. Safe to run concurrently with request traffic; it is
// a storage-level delete by predicate.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retentionMargin)

	count, err := s.repo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.logger.Info("expired device authorizations removed",
			"count", count,
			"cutoff", cutoff,
		)
	}

	return count, nil
}

// CountByStatus returns record counts per lifecycle status.
func (s *Service) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	return s.repo.CountByStatus(ctx)
}

// CodeTTL returns the configured pending lifetime for new device codes.
func (s *Service) CodeTTL() time.Duration {
	return s.codeTTL
}

// loadWithExpiry fetches a record and applies the lazy expiry check: a
// pending record past its deadline is flipped to expired in storage and
// reported as expired to the caller.
func (s *Service) loadWithExpiry(ctx context.Context, op, deviceCode string) (*DeviceAuthorization, error) {
	auth, err := s.repo.FindByDeviceCode(ctx, deviceCode)
	if err != nil {
		return nil, err
	}

	if auth.IsExpired(s.now()) {
		if markErr := s.repo.MarkExpired(ctx, deviceCode); markErr != nil {
			s.logger.Warn("failed to mark device authorization expired",
				"deviceId", auth.ID,
				"error", markErr,
			)
		}
		return nil, werrors.NewError("DEVICE_EXPIRED", "device code has expired", op, werrors.ErrExpired)
	}

	return auth, nil
}
