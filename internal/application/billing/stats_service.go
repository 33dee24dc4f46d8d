package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainbilling "github.com/gestloc/backend/internal/domain/billing"
	"github.com/gestloc/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatsCache stores serialized statistics snapshots. Implementations
// must treat a miss and a backend failure identically: return ok=false
// and let the caller recompute.
type StatsCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// StatsService aggregates per-period billing figures. Results are cached
// with a short TTL and invalidated whenever generation or payment
// activity changes the period's bills.
type StatsService struct {
	billRepo domainbilling.BillRepository
	cache    StatsCache
	cacheTTL time.Duration
	clock    Clock
	logger   *zap.Logger
}

// NewStatsService creates a new StatsService. cache may be nil, in which
// case every call recomputes from the store.
func NewStatsService(
	billRepo domainbilling.BillRepository,
	cache StatsCache,
	cacheTTL time.Duration,
	clock Clock,
	logger *zap.Logger,
) *StatsService {
	if clock == nil {
		clock = SystemClock{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &StatsService{
		billRepo: billRepo,
		cache:    cache,
		cacheTTL: cacheTTL,
		clock:    clock,
		logger:   logger,
	}
}

// GetPeriodStatistics returns bill counts and totals for a period, broken
// down by status and by owner. An empty period defaults to the current
// month. ownerID narrows the figures to one owner; nil means all owners.
func (s *StatsService) GetPeriodStatistics(ctx context.Context, periodStr string, ownerID *uuid.UUID) (*PeriodStatistics, error) {
	var period valueobject.BillingPeriod
	var err error
	if periodStr == "" {
		period = valueobject.BillingPeriodOf(s.clock.Now())
	} else {
		period, err = valueobject.ParseBillingPeriod(periodStr)
		if err != nil {
			return nil, err
		}
	}

	key := s.cacheKey(period, ownerID)
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var stats PeriodStatistics
			if err := json.Unmarshal(raw, &stats); err == nil {
				return &stats, nil
			}
			// Corrupt entry, drop it and recompute.
			s.cache.Delete(ctx, key)
		}
	}

	stats, err := s.compute(ctx, period, ownerID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			s.cache.Set(ctx, key, raw, s.cacheTTL)
		}
	}

	return stats, nil
}

// InvalidatePeriod drops the cached snapshots for a period. Owner-scoped
// entries share the unscoped prefix only when keys collide exactly, so
// the unscoped snapshot is dropped here and scoped entries simply age out
// through their TTL.
func (s *StatsService) InvalidatePeriod(ctx context.Context, period valueobject.BillingPeriod) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(ctx, s.cacheKey(period, nil))
}

func (s *StatsService) compute(ctx context.Context, period valueobject.BillingPeriod, ownerID *uuid.UUID) (*PeriodStatistics, error) {
	count, err := s.billRepo.CountForPeriod(ctx, period, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count bills: %w", err)
	}

	total, err := s.billRepo.SumTotalForPeriod(ctx, period, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum bill totals: %w", err)
	}

	byStatus, err := s.billRepo.CountByStatusForPeriod(ctx, period, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by status: %w", err)
	}

	byOwner, err := s.billRepo.CountByOwnerForPeriod(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by owner: %w", err)
	}

	return &PeriodStatistics{
		Period:      period.String(),
		BillCount:   count,
		TotalAmount: total,
		ByStatus:    byStatus,
		ByOwner:     byOwner,
	}, nil
}

func (s *StatsService) cacheKey(period valueobject.BillingPeriod, ownerID *uuid.UUID) string {
	key := "billing:stats:" + period.String()
	if ownerID != nil {
		key += ":" + ownerID.String()
	}
	return key
}
