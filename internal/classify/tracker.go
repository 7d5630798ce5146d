package classify

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically expires tracked requests that never got a result.
type Sweeper struct {
	tracker  Tracker
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewSweeper(tracker Tracker, ttl, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		tracker:  tracker,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Sweep expires pending requests dispatched more than ttl ago.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.tracker.ExpireBefore(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.logger.Info("expired abandoned match requests", "count", n)
	}

	return n, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweeping match requests", "error", err)
			}
		}
	}
}
