package rates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/grouper/internal/money"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=rates
type Repository interface {
	LatestRates(ctx context.Context) ([]money.Rate, error)
	UpsertRates(ctx context.Context, rates []money.Rate) error
}

// Service hands out exchange-rate snapshots. A snapshot is reused until it
// is older than the configured TTL.
type Service struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	snapshot *money.Snapshot
	loadedAt time.Time
}

func NewService(repo Repository, ttl time.Duration) *Service {
	return &Service{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Snapshot returns the cached snapshot or loads a fresh one.
func (s *Service) Snapshot(ctx context.Context) (*money.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.snapshot != nil && now.Sub(s.loadedAt) < s.ttl {
		return s.snapshot, nil
	}

	rates, err := s.repo.LatestRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rates: %w", err)
	}

	s.snapshot = money.NewSnapshot(now, rates)
	s.loadedAt = now

	return s.snapshot, nil
}

// Update stores new rates and drops the cached snapshot.
func (s *Service) Update(ctx context.Context, rates []money.Rate) error {
	if err := s.repo.UpsertRates(ctx, rates); err != nil {
		return err
	}

	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()

	return nil
}
