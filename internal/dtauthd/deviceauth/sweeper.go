package deviceauth

import (
	"context"
	"log/slog"
	"time"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/metrics"
)

// Sweeper runs the retention cleanup on a fixed interval, independent of
// request traffic. Lazy expiry on reads keeps results correct either way;
// the sweep just bounds storage growth.
type Sweeper struct {
	service  *Service
	logger   *slog.Logger
	interval time.Duration
}

// NewSweeper creates a periodic cleanup runner.
func NewSweeper(service *Service, logger *slog.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		service:  service,
		logger:   logger,
		interval: interval,
	}
}

// Run executes the sweep loop until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.service.CleanupExpired(ctx)
			if err != nil {
				s.logger.Error("device authorization sweep failed",
					"error", err,
				)
				continue
			}
			metrics.ExpiredRecordsSwept.Add(float64(count))
		}
	}
}
