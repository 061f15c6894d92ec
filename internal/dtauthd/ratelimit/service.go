package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/config"
	werrors "github.com/devtrackhq/devtrack-auth/internal/dtauthd/errors"
)

// Service manages admission control for the application. The bucket store is
// injected so tests can swap or reset it.
type Service struct {
	store   Store
	logger  *slog.Logger
	enabled bool
	now     func() time.Time

	limits  map[Class]Limit
	limitsM sync.RWMutex
}

// NewService creates a new rate limiting service. When enabled is false every
// consume attempt is admitted without touching bucket state.
func NewService(store Store, logger *slog.Logger, enabled bool) *Service {
	return &Service{
		store:   store,
		logger:  logger,
		enabled: enabled,
		now:     time.Now,
		limits:  make(map[Class]Limit),
	}
}

// RegisterLimit adds or updates the limit configuration for a class.
func (s *Service) RegisterLimit(class Class, limit Limit) error {
	if limit.Capacity <= 0 || limit.RefillAmount <= 0 || limit.RefillPeriod <= 0 {
		return werrors.NewError("INVALID_LIMIT", "invalid rate limit configuration", "ratelimit.RegisterLimit", werrors.ErrInvalidInput)
	}

	s.limitsM.Lock()
	defer s.limitsM.Unlock()

	s.limits[class] = limit
	return nil
}

// GetLimit returns the configured limit for a class, falling back to the
// default class when the specific class has none.
func (s *Service) GetLimit(class Class) (Limit, bool) {
	s.limitsM.RLock()
	defer s.limitsM.RUnlock()

	if limit, ok := s.limits[class]; ok {
		return limit, true
	}
	limit, ok := s.limits[ClassDefault]
	return limit, ok
}

// Allow attempts to consume one token for key.
func (s *Service) Allow(key Key) Decision {
	return s.TryConsume(key, 1)
}

// TryConsume attempts to consume cost tokens for key, refilling the bucket
// lazily from elapsed time.
func (s *Service) TryConsume(key Key, cost int) Decision {
	if !s.enabled {
		return Decision{Allowed: true, Bypassed: true}
	}

	limit, ok := s.GetLimit(key.Class)
	if !ok {
		s.logger.Warn("no rate limit configured for class",
			"class", key.Class,
		)
		return Decision{Allowed: true, Bypassed: true}
	}

	bucket := s.store.Resolve(key, func() *Bucket {
		return NewBucket(limit, s.now())
	})

	return bucket.TryConsume(cost, s.now())
}

// Reset clears the bucket for key, restoring full capacity on next use.
func (s *Service) Reset(key Key) {
	s.store.Reset(key)
}

// RegisterDefaultLimits configures the standard per-class limits.
func (s *Service) RegisterDefaultLimits() {
	minute := time.Minute

	s.RegisterLimit(ClassBatchWrite, Limit{Capacity: 10, RefillAmount: 10, RefillPeriod: minute})
	s.RegisterLimit(ClassSingleWrite, Limit{Capacity: 20, RefillAmount: 20, RefillPeriod: minute})
	s.RegisterLimit(ClassRead, Limit{Capacity: 30, RefillAmount: 30, RefillPeriod: minute})
	s.RegisterLimit(ClassProjectRead, Limit{Capacity: 60, RefillAmount: 60, RefillPeriod: minute})
	s.RegisterLimit(ClassOverviewRead, Limit{Capacity: 60, RefillAmount: 60, RefillPeriod: minute})
	s.RegisterLimit(ClassDeviceInit, Limit{Capacity: 5, RefillAmount: 5, RefillPeriod: minute})
	s.RegisterLimit(ClassDeviceConfirm, Limit{Capacity: 5, RefillAmount: 5, RefillPeriod: minute})
	s.RegisterLimit(ClassDefault, Limit{Capacity: 30, RefillAmount: 30, RefillPeriod: minute})
}

// RegisterConfiguredLimits overlays limits from configuration on top of the
// defaults.
func (s *Service) RegisterConfiguredLimits(cfg config.RateLimitConfig) {
	s.RegisterDefaultLimits()

	for class, limit := range cfg.Classes {
		if err := s.RegisterLimit(Class(class), Limit{
			Capacity:     limit.Capacity,
			RefillAmount: limit.RefillAmount,
			RefillPeriod: limit.RefillPeriod,
		}); err != nil {
			s.logger.Warn("skipping invalid configured rate limit",
				"class", class,
				"error", err,
			)
		}
	}
}
