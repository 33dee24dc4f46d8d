package billing

import (
	"time"

	domainbilling "github.com/gestloc/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerationError records one lease's failure inside an otherwise
// continuing batch
type GenerationError struct {
	LeaseID  uuid.UUID `json:"lease_id"`
	TenantID uuid.UUID `json:"tenant_id"`
	OwnerID  uuid.UUID `json:"owner_id"`
	Reason   string    `json:"reason"`
}

// BatchResult is the audit surface of one generation run. It is returned
// to the scheduler and to manual callers and never silently swallowed.
type BatchResult struct {
	Period         string            `json:"period"`
	TotalLeases    int               `json:"total_leases"`
	BillsGenerated int               `json:"bills_generated"`
	BillsSkipped   int               `json:"bills_skipped"`
	Errors         int               `json:"errors"`
	ErrorDetails   []GenerationError `json:"error_details,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    time.Time         `json:"completed_at"`
}

// HasErrors returns true when at least one lease failed
func (r *BatchResult) HasErrors() bool {
	return r.Errors > 0
}

// PaymentResult is returned by payment transitions: the bill's new status
// plus the owner's ledger total after the paired ledger mutation
type PaymentResult struct {
	BillID      uuid.UUID                `json:"bill_id"`
	Status      domainbilling.BillStatus `json:"status"`
	PaymentDate *time.Time               `json:"payment_date,omitempty"`
	LedgerTotal decimal.Decimal          `json:"ledger_total"`
}

// SweepResult summarizes one overdue sweep
type SweepResult struct {
	Checked     int       `json:"checked"`
	MarkedCount int       `json:"marked_overdue"`
	Errors      int       `json:"errors"`
	SweptAt     time.Time `json:"swept_at"`
}

// PeriodStatistics aggregates a period's bills for reporting
type PeriodStatistics struct {
	Period      string                      `json:"period"`
	BillCount   int64                       `json:"bill_count"`
	TotalAmount decimal.Decimal             `json:"total_amount"`
	ByStatus    []domainbilling.StatusCount `json:"by_status"`
	ByOwner     []domainbilling.OwnerCount  `json:"by_owner,omitempty"`
}
