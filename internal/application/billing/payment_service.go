package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainbilling "github.com/gestloc/backend/internal/domain/billing"
	"github.com/gestloc/backend/internal/domain/shared"
	"github.com/gestloc/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService handles bill payment lifecycle transitions and keeps the
// per-owner profit ledger consistent with them. All payment-affecting
// operations for a given owner are serialized through a per-owner lock,
// and each bill transition is paired with its ledger adjustment inside a
// single transaction.
type PaymentService struct {
	billRepo   domainbilling.BillRepository
	ledgerRepo domainbilling.ProfitLedgerRepository
	txManager  shared.TxManager
	clock      Clock
	logger     *zap.Logger

	mu         sync.Mutex
	ownerLocks map[uuid.UUID]*sync.Mutex
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	billRepo domainbilling.BillRepository,
	ledgerRepo domainbilling.ProfitLedgerRepository,
	txManager shared.TxManager,
	clock Clock,
	logger *zap.Logger,
) *PaymentService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &PaymentService{
		billRepo:   billRepo,
		ledgerRepo: ledgerRepo,
		txManager:  txManager,
		clock:      clock,
		logger:     logger,
		ownerLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// ownerLock returns the mutex serializing payment operations for one owner
func (s *PaymentService) ownerLock(ownerID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.ownerLocks[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		s.ownerLocks[ownerID] = lock
	}
	return lock
}

// MarkBillAsPaid transitions a bill to PAID, stamps the payment date and
// credits the owner's profit ledger with the bill's total amount. Paying
// an already paid bill is rejected without touching the ledger.
func (s *PaymentService) MarkBillAsPaid(ctx context.Context, billID uuid.UUID) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing_payment", "mark_paid")
	defer span.End()
	telemetry.SetAttributes(span, "bill_id", billID.String())

	bill, err := s.loadBill(ctx, billID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	lock := s.ownerLock(bill.OwnerID)
	lock.Lock()
	defer lock.Unlock()

	// Reload under the lock so the status check sees the latest state.
	bill, err = s.loadBill(ctx, billID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	paidAt := s.clock.Now()
	if err := bill.MarkPaid(paidAt); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var ledgerTotal decimal.Decimal
	err = s.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.billRepo.Save(txCtx, bill); err != nil {
			return fmt.Errorf("failed to save bill: %w", err)
		}
		total, err := s.ledgerRepo.Increment(txCtx, bill.OwnerID, bill.TotalAmount)
		if err != nil {
			return fmt.Errorf("failed to credit ledger: %w", err)
		}
		ledgerTotal = total
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Bill marked as paid",
		zap.String("bill_id", bill.ID.String()),
		zap.String("owner_id", bill.OwnerID.String()),
		zap.String("period", bill.Period.String()),
		zap.String("amount", bill.TotalAmount.String()),
		zap.String("ledger_total", ledgerTotal.String()),
	)

	return &PaymentResult{
		BillID:      bill.ID,
		Status:      bill.Status,
		PaymentDate: bill.PaymentDate,
		LedgerTotal: ledgerTotal,
	}, nil
}

// UndoBillPayment reverts a PAID bill to PENDING, clears its payment date
// and debits the owner's ledger by the bill's current total amount. The
// debit mirrors the credit, so pay followed by undo leaves the ledger at
// its prior value. Undoing a bill that is not paid is rejected.
func (s *PaymentService) UndoBillPayment(ctx context.Context, billID uuid.UUID) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing_payment", "undo_payment")
	defer span.End()
	telemetry.SetAttributes(span, "bill_id", billID.String())

	bill, err := s.loadBill(ctx, billID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	lock := s.ownerLock(bill.OwnerID)
	lock.Lock()
	defer lock.Unlock()

	bill, err = s.loadBill(ctx, billID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := bill.UndoPayment(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var ledgerTotal decimal.Decimal
	err = s.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.billRepo.Save(txCtx, bill); err != nil {
			return fmt.Errorf("failed to save bill: %w", err)
		}
		total, err := s.ledgerRepo.Increment(txCtx, bill.OwnerID, bill.TotalAmount.Neg())
		if err != nil {
			return fmt.Errorf("failed to debit ledger: %w", err)
		}
		ledgerTotal = total
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Bill payment undone",
		zap.String("bill_id", bill.ID.String()),
		zap.String("owner_id", bill.OwnerID.String()),
		zap.String("period", bill.Period.String()),
		zap.String("amount", bill.TotalAmount.String()),
		zap.String("ledger_total", ledgerTotal.String()),
	)

	return &PaymentResult{
		BillID:      bill.ID,
		Status:      bill.Status,
		PaymentDate: nil,
		LedgerTotal: ledgerTotal,
	}, nil
}

// MarkReceiptSent records that the payment receipt for a bill went out.
// The ledger is untouched; this transition is bookkeeping only.
func (s *PaymentService) MarkReceiptSent(ctx context.Context, billID uuid.UUID) (*domainbilling.Bill, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing_payment", "mark_receipt_sent")
	defer span.End()
	telemetry.SetAttributes(span, "bill_id", billID.String())

	bill, err := s.loadBill(ctx, billID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := bill.MarkReceiptSent(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.billRepo.Save(ctx, bill); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save bill: %w", err)
	}

	s.logger.Info("Receipt marked as sent",
		zap.String("bill_id", bill.ID.String()),
		zap.String("owner_id", bill.OwnerID.String()),
	)

	return bill, nil
}

// GetBill returns a single bill by ID
func (s *PaymentService) GetBill(ctx context.Context, billID uuid.UUID) (*domainbilling.Bill, error) {
	return s.loadBill(ctx, billID)
}

// ListBills returns the bills matching the filter
func (s *PaymentService) ListBills(ctx context.Context, filter domainbilling.BillFilter) ([]domainbilling.Bill, error) {
	bills, err := s.billRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	return bills, nil
}

// GetOwnerProfit returns the accumulated profit total for an owner. An
// owner with no ledger row yet reports zero.
func (s *PaymentService) GetOwnerProfit(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, time.Time, error) {
	ledger, err := s.ledgerRepo.FindByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return decimal.Zero, time.Time{}, nil
		}
		return decimal.Zero, time.Time{}, fmt.Errorf("failed to load ledger: %w", err)
	}
	return ledger.TotalProfit, ledger.LastUpdated, nil
}

func (s *PaymentService) loadBill(ctx context.Context, billID uuid.UUID) (*domainbilling.Bill, error) {
	bill, err := s.billRepo.FindByID(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bill: %w", err)
	}
	if bill == nil {
		return nil, shared.NewDomainError("BILL_NOT_FOUND", "Bill not found")
	}
	return bill, nil
}
