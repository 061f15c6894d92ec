// Package flow orchestrates the device authorization flow: it composes the
// device registry with the session codec so a confirmed device receives a
// session token exactly once, and fronts the owner-facing device listing
// with its cache.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/cache"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/config"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth"
	werrors "github.com/devtrackhq/devtrack-auth/internal/dtauthd/errors"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/metrics"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/session"
)

// InitiateResult is returned to the unattended client starting the flow.
type InitiateResult struct {
	DeviceCode      string
	UserCode        string
	VerificationURL string
	ExpiresIn       int
	PollInterval    int
}

// PollResult is returned to a polling client. Exactly one of Pending,
// Claimed, or a non-empty SessionToken describes the outcome.
type PollResult struct {
	Pending      bool
	Claimed      bool
	SessionToken string
	TokenType    string
	ExpiresIn    int
}

// TokenIssuer mints signed session tokens for an approved principal.
// *session.Codec satisfies it.
type TokenIssuer interface {
	Issue(principalID uuid.UUID, email string) (string, error)
	TTL() time.Duration
}

// Service wires the device registry, session codec, and device list cache
// behind the externally visible flow operations.
type Service struct {
	registry *deviceauth.Service
	codec    TokenIssuer
	devices  *cache.DeviceListCache
	logger   *slog.Logger

	frontendURL  string
	pollInterval time.Duration
}

// NewService creates the flow orchestrator.
func NewService(registry *deviceauth.Service, codec TokenIssuer, devices *cache.DeviceListCache, logger *slog.Logger, cfg config.DeviceAuthConfig) *Service {
	return &Service{
		registry:     registry,
		codec:        codec,
		devices:      devices,
		logger:       logger,
		frontendURL:  cfg.FrontendURL,
		pollInterval: cfg.PollInterval,
	}
}

// Initiate starts a new device authorization and returns everything the
// client needs to drive the flow: the polling secret, the display code, and
// where to send the human.
func (s *Service) Initiate(ctx context.Context, deviceName, deviceType, deviceIdentifier string) (*InitiateResult, error) {
	auth, err := s.registry.Initiate(ctx, deviceName, deviceType, deviceIdentifier)
	if err != nil {
		return nil, err
	}

	metrics.DeviceFlowsInitiated.Inc()

	return &InitiateResult{
		DeviceCode:      auth.DeviceCode,
		UserCode:        auth.UserCode,
		VerificationURL: fmt.Sprintf("%s/auth/device/confirm?code=%s", s.frontendURL, auth.DeviceCode),
		ExpiresIn:       int(time.Until(auth.ExpiresAt) / time.Second),
		PollInterval:    int(s.pollInterval / time.Second),
	}, nil
}

// PollForToken reports the flow state for a device code. The first poll
// after approval carries the session token; every later poll reports the
// claim without re-issuing.
func (s *Service) PollForToken(ctx context.Context, deviceCode string) (*PollResult, error) {
	auth, outcome, err := s.registry.Poll(ctx, deviceCode)
	if err != nil {
		metrics.DevicePollResults.WithLabelValues(pollErrorLabel(err)).Inc()
		return nil, err
	}

	switch outcome {
	case deviceauth.PollPending:
		metrics.DevicePollResults.WithLabelValues("pending").Inc()
		return &PollResult{Pending: true}, nil

	case deviceauth.PollClaimed:
		metrics.DevicePollResults.WithLabelValues("claimed").Inc()
		return &PollResult{Claimed: true}, nil

	default:
		// Mint the session before claiming so a failed issuance leaves
		// the approval intact for the next poll.
		token, err := s.codec.Issue(*auth.OwnerID, auth.OwnerEmail)
		if err != nil {
			return nil, err
		}

		if _, err := s.registry.Claim(ctx, deviceCode); err != nil {
			if werrors.IsNotFound(err) {
				// A concurrent poll settled the claim first; its token
				// was delivered, ours is discarded.
				metrics.DevicePollResults.WithLabelValues("claimed").Inc()
				return &PollResult{Claimed: true}, nil
			}
			return nil, err
		}

		metrics.DevicePollResults.WithLabelValues("approved").Inc()
		metrics.SessionsIssued.Inc()

		s.logger.Info("session issued to device",
			"deviceId", auth.ID,
			"ownerId", *auth.OwnerID,
		)

		return &PollResult{
			SessionToken: token,
			TokenType:    "Bearer",
			ExpiresIn:    int(s.codec.TTL() / time.Second),
		}, nil
	}
}

// Confirm approves a pending device on behalf of the authenticated
// principal. The session is not issued here; the device's next poll
// performs the one-time issuance.
func (s *Service) Confirm(ctx context.Context, deviceCode string, principal session.Principal) (*deviceauth.DeviceAuthorization, error) {
	auth, err := s.registry.Confirm(ctx, deviceCode, principal.ID, principal.Email)
	if err != nil {
		return nil, err
	}

	metrics.DeviceFlowsConfirmed.Inc()
	s.devices.Invalidate(ctx, principal.ID)

	return auth, nil
}

// Status returns the lifecycle status for a device code.
func (s *Service) Status(ctx context.Context, deviceCode string) (deviceauth.Status, error) {
	return s.registry.Status(ctx, deviceCode)
}

// ListDevices returns the principal's approved devices, serving from the
// cache when possible and recording listing activity on a miss.
func (s *Service) ListDevices(ctx context.Context, principalID uuid.UUID) ([]deviceauth.DeviceAuthorization, error) {
	if devices, ok := s.devices.Get(ctx, principalID); ok {
		return devices, nil
	}

	devices, err := s.registry.ListActive(ctx, principalID)
	if err != nil {
		return nil, err
	}

	s.registry.TouchLastSeen(ctx, principalID)
	s.devices.Set(ctx, principalID, devices)

	return devices, nil
}

// HasActiveDevices reports whether the principal has any approved device.
func (s *Service) HasActiveDevices(ctx context.Context, principalID uuid.UUID) (bool, error) {
	return s.registry.HasActive(ctx, principalID)
}

// Revoke withdraws one of the principal's devices and drops the cached
// listing before returning.
func (s *Service) Revoke(ctx context.Context, deviceID uuid.UUID, principalID uuid.UUID) error {
	if err := s.registry.Revoke(ctx, deviceID, principalID); err != nil {
		return err
	}

	metrics.DevicesRevoked.Inc()
	s.devices.Invalidate(ctx, principalID)

	return nil
}

// Cleanup deletes device records past the retention window.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	return s.registry.CleanupExpired(ctx)
}

// Stats returns record counts per lifecycle status.
func (s *Service) Stats(ctx context.Context) (map[deviceauth.Status]int64, error) {
	return s.registry.CountByStatus(ctx)
}

func pollErrorLabel(err error) string {
	if werrors.IsExpired(err) {
		return "expired"
	}
	return "not_found"
}
