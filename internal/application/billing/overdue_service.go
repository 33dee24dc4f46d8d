package billing

import (
	"context"
	"fmt"

	domainbilling "github.com/gestloc/backend/internal/domain/billing"
	"github.com/gestloc/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// OverdueService flags pending bills whose due date has passed
type OverdueService struct {
	billRepo domainbilling.BillRepository
	clock    Clock
	logger   *zap.Logger
}

// NewOverdueService creates a new OverdueService
func NewOverdueService(billRepo domainbilling.BillRepository, clock Clock, logger *zap.Logger) *OverdueService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &OverdueService{
		billRepo: billRepo,
		clock:    clock,
		logger:   logger,
	}
}

// SweepOverdue finds every PENDING bill whose due date is strictly in the
// past and transitions it to OVERDUE. Bills due exactly now stay pending.
// Failures on individual bills are counted and the sweep continues.
func (s *OverdueService) SweepOverdue(ctx context.Context) (*SweepResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing_overdue", "sweep")
	defer span.End()

	asOf := s.clock.Now()
	result := &SweepResult{SweptAt: asOf}

	bills, err := s.billRepo.FindOverduePending(ctx, asOf)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load overdue candidates: %w", err)
	}
	result.Checked = len(bills)

	for i := range bills {
		bill := &bills[i]
		if err := bill.MarkOverdue(asOf); err != nil {
			// The query already filtered on due date, so this only fires
			// when a concurrent payment moved the bill out of PENDING.
			result.Errors++
			continue
		}
		if err := s.billRepo.Save(ctx, bill); err != nil {
			result.Errors++
			s.logger.Warn("Failed to persist overdue transition",
				zap.String("bill_id", bill.ID.String()),
				zap.Error(err),
			)
			continue
		}
		result.MarkedCount++
	}

	telemetry.SetAttributes(span,
		"checked", result.Checked,
		"marked", result.MarkedCount,
		"errors", result.Errors,
	)

	if result.Checked > 0 {
		s.logger.Info("Overdue sweep completed",
			zap.Int("checked", result.Checked),
			zap.Int("marked", result.MarkedCount),
			zap.Int("errors", result.Errors),
		)
	}

	return result, nil
}
