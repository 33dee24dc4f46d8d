package billing

import (
	"context"
	"time"

	"github.com/gestloc/backend/internal/domain/shared"
	"github.com/gestloc/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillFilter defines filtering options for bill queries
type BillFilter struct {
	shared.Filter
	OwnerID  *uuid.UUID
	TenantID *uuid.UUID
	Period   *valueobject.BillingPeriod
	Status   *BillStatus
}

// StatusCount is one row of a by-status breakdown
type StatusCount struct {
	Status BillStatus      `json:"status"`
	Count  int64           `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// OwnerCount is one row of a by-owner breakdown
type OwnerCount struct {
	OwnerID uuid.UUID       `json:"owner_id"`
	Count   int64           `json:"count"`
	Total   decimal.Decimal `json:"total"`
}

// BillRepository defines persistence for the Bill aggregate. Bills are
// created only by the generation engine and mutated only through the
// lifecycle state machine; the core never deletes them.
type BillRepository interface {
	// FindByID finds a bill by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Bill, error)

	// FindByIDForOwner finds a bill by ID scoped to an owner
	FindByIDForOwner(ctx context.Context, ownerID, id uuid.UUID) (*Bill, error)

	// FindByTenantAndPeriod finds the unique bill for a tenant and period.
	// Returns shared.ErrNotFound when no bill exists.
	FindByTenantAndPeriod(ctx context.Context, tenantID uuid.UUID, period valueobject.BillingPeriod) (*Bill, error)

	// ExistsByTenantAndPeriod reports whether a bill exists for the
	// (tenant, period) idempotency key
	ExistsByTenantAndPeriod(ctx context.Context, tenantID uuid.UUID, period valueobject.BillingPeriod) (bool, error)

	// FindAll finds bills matching the filter
	FindAll(ctx context.Context, filter BillFilter) ([]Bill, error)

	// FindOverduePending returns all PENDING bills whose due date is before asOf
	FindOverduePending(ctx context.Context, asOf time.Time) ([]Bill, error)

	// Create inserts a new bill. A uniqueness violation on (tenant, period)
	// is reported as shared.ErrAlreadyExists.
	Create(ctx context.Context, bill *Bill) error

	// Save updates an existing bill with optimistic locking
	Save(ctx context.Context, bill *Bill) error

	// CountForPeriod counts bills for a period, optionally scoped to an owner
	CountForPeriod(ctx context.Context, period valueobject.BillingPeriod, ownerID *uuid.UUID) (int64, error)

	// SumTotalForPeriod sums total_amount over a period, optionally scoped to an owner
	SumTotalForPeriod(ctx context.Context, period valueobject.BillingPeriod, ownerID *uuid.UUID) (decimal.Decimal, error)

	// CountByStatusForPeriod breaks a period's bills down by status
	CountByStatusForPeriod(ctx context.Context, period valueobject.BillingPeriod, ownerID *uuid.UUID) ([]StatusCount, error)

	// CountByOwnerForPeriod breaks a period's bills down by owner
	CountByOwnerForPeriod(ctx context.Context, period valueobject.BillingPeriod) ([]OwnerCount, error)

	// TenantsWithBillForPeriod returns the set of tenant IDs that already
	// have a bill for the period (used by the missed-bill backup sweep)
	TenantsWithBillForPeriod(ctx context.Context, period valueobject.BillingPeriod) (map[uuid.UUID]struct{}, error)
}

// ProfitLedgerRepository defines persistence for per-owner profit totals.
type ProfitLedgerRepository interface {
	// Increment atomically adds delta to the owner's running total and
	// returns the resulting total, creating the entry when it does not
	// exist yet. delta may be negative. The addition must be issued as a
	// single arithmetic statement at the store so concurrent increments
	// for the same owner cannot lose writes.
	Increment(ctx context.Context, ownerID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)

	// GetTotal returns the owner's running total, zero when no entry exists
	GetTotal(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error)

	// FindByOwner returns the full ledger entry, shared.ErrNotFound when absent
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*ProfitLedger, error)
}
