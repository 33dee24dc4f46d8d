package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainbilling "github.com/gestloc/backend/internal/domain/billing"
	"github.com/gestloc/backend/internal/domain/leasing"
	"github.com/gestloc/backend/internal/domain/shared"
	"github.com/gestloc/backend/internal/domain/shared/valueobject"
	"github.com/gestloc/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Clock abstracts time for deterministic testing
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// GenerationConfig tunes the generation engine
type GenerationConfig struct {
	// PerLeaseTimeout bounds each per-lease read/write so a stuck store
	// call cannot hold a generation run forever
	PerLeaseTimeout time.Duration
}

// DefaultGenerationConfig returns default generation settings
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		PerLeaseTimeout: 10 * time.Second,
	}
}

// GenerationService computes which bills should exist for a target period
// across the active leases and creates the missing ones. Repeated
// invocation with the same period is always safe: the (tenant, period)
// lookup plus the store's uniqueness constraint make the run convergent.
type GenerationService struct {
	leaseRepo   leasing.LeaseRepository
	billRepo    domainbilling.BillRepository
	clock       Clock
	config      GenerationConfig
	logger      *zap.Logger
	invalidator StatsInvalidator
}

// StatsInvalidator drops cached statistics for a period after new bills
// are created for it. Optional; a nil invalidator is a no-op.
type StatsInvalidator interface {
	InvalidatePeriod(ctx context.Context, period valueobject.BillingPeriod)
}

// NewGenerationService creates a new GenerationService
func NewGenerationService(
	leaseRepo leasing.LeaseRepository,
	billRepo domainbilling.BillRepository,
	clock Clock,
	config GenerationConfig,
	logger *zap.Logger,
) *GenerationService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &GenerationService{
		leaseRepo: leaseRepo,
		billRepo:  billRepo,
		clock:     clock,
		config:    config,
		logger:    logger,
	}
}

// WithStatsInvalidator wires a cache invalidator into the service
func (s *GenerationService) WithStatsInvalidator(inv StatsInvalidator) *GenerationService {
	s.invalidator = inv
	return s
}

// GenerateForPeriod generates the missing bills for the given period. An
// empty period defaults to the current calendar month. ownerID scopes the
// run to one owner's leases; nil means all owners.
//
// The batch is deliberately not transactional across leases: each lease
// is processed independently, failures are recorded and the run
// continues, and a re-run is safe because of the idempotency check.
func (s *GenerationService) GenerateForPeriod(ctx context.Context, periodStr string, ownerID *uuid.UUID) (*BatchResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing_generation", "generate_for_period")
	defer span.End()

	period, err := s.resolvePeriod(periodStr)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, "period", period.String())

	result := &BatchResult{
		Period:    period.String(),
		StartedAt: s.clock.Now(),
	}

	leases, err := s.leaseRepo.FindActive(ctx, leasing.ActiveLeaseFilter{OwnerID: ownerID})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load active leases: %w", err)
	}
	result.TotalLeases = len(leases)

	s.logger.Info("Starting bill generation",
		zap.String("period", period.String()),
		zap.Int("active_leases", len(leases)),
		zap.Bool("owner_scoped", ownerID != nil),
	)

	for i := range leases {
		lease := &leases[i]
		if err := s.generateForLease(ctx, lease, period, result); err != nil {
			// One lease's failure never aborts the batch.
			result.Errors++
			result.ErrorDetails = append(result.ErrorDetails, GenerationError{
				LeaseID:  lease.ID,
				TenantID: lease.TenantID,
				OwnerID:  lease.OwnerID,
				Reason:   err.Error(),
			})
			s.logger.Warn("Bill generation failed for lease",
				zap.String("lease_id", lease.ID.String()),
				zap.String("tenant_id", lease.TenantID.String()),
				zap.String("period", period.String()),
				zap.Error(err),
			)
		}
	}

	result.CompletedAt = s.clock.Now()

	if result.BillsGenerated > 0 && s.invalidator != nil {
		s.invalidator.InvalidatePeriod(ctx, period)
	}

	telemetry.SetAttributes(span,
		"bills_generated", result.BillsGenerated,
		"bills_skipped", result.BillsSkipped,
		"errors", result.Errors,
	)

	s.logger.Info("Bill generation completed",
		zap.String("period", period.String()),
		zap.Int("total_leases", result.TotalLeases),
		zap.Int("bills_generated", result.BillsGenerated),
		zap.Int("bills_skipped", result.BillsSkipped),
		zap.Int("errors", result.Errors),
	)

	return result, nil
}

// generateForLease processes a single lease under a bounded timeout
func (s *GenerationService) generateForLease(
	ctx context.Context,
	lease *leasing.Lease,
	period valueobject.BillingPeriod,
	result *BatchResult,
) error {
	leaseCtx := ctx
	if s.config.PerLeaseTimeout > 0 {
		var cancel context.CancelFunc
		leaseCtx, cancel = context.WithTimeout(ctx, s.config.PerLeaseTimeout)
		defer cancel()
	}

	exists, err := s.billRepo.ExistsByTenantAndPeriod(leaseCtx, lease.TenantID, period)
	if err != nil {
		return fmt.Errorf("idempotency lookup failed: %w", err)
	}
	if exists {
		result.BillsSkipped++
		return nil
	}

	bill, err := domainbilling.NewBill(
		lease.OwnerID, lease.TenantID, lease.PropertyID, lease.ID,
		period, lease.MonthlyRent, lease.Charges,
	)
	if err != nil {
		return err
	}

	if err := s.billRepo.Create(leaseCtx, bill); err != nil {
		// A concurrent run won the check-then-create race; the uniqueness
		// constraint held, so this lease's bill exists. Skip, not error.
		if errors.Is(err, shared.ErrAlreadyExists) {
			result.BillsSkipped++
			return nil
		}
		return fmt.Errorf("bill creation failed: %w", err)
	}

	result.BillsGenerated++
	return nil
}

// MissingBillCount reports how many active leases have no bill for the
// period. The backup sweep uses it to decide whether a corrective full
// generation run is needed.
func (s *GenerationService) MissingBillCount(ctx context.Context, period valueobject.BillingPeriod) (int, error) {
	active, err := s.leaseRepo.CountActive(ctx, leasing.ActiveLeaseFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to count active leases: %w", err)
	}
	if active == 0 {
		return 0, nil
	}

	leases, err := s.leaseRepo.FindActive(ctx, leasing.ActiveLeaseFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to load active leases: %w", err)
	}

	billed, err := s.billRepo.TenantsWithBillForPeriod(ctx, period)
	if err != nil {
		return 0, fmt.Errorf("failed to load billed tenants: %w", err)
	}

	missing := 0
	for i := range leases {
		if _, ok := billed[leases[i].TenantID]; !ok {
			missing++
		}
	}
	return missing, nil
}

// CurrentPeriod returns the period containing the injected clock's now
func (s *GenerationService) CurrentPeriod() valueobject.BillingPeriod {
	return valueobject.BillingPeriodOf(s.clock.Now())
}

// resolvePeriod parses the period string, defaulting to the current month
func (s *GenerationService) resolvePeriod(periodStr string) (valueobject.BillingPeriod, error) {
	if periodStr == "" {
		return s.CurrentPeriod(), nil
	}
	return valueobject.ParseBillingPeriod(periodStr)
}
