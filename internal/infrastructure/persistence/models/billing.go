package models

import (
	"time"

	"github.com/gestloc/backend/internal/domain/billing"
	"github.com/gestloc/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillModel is the persistence model for the Bill aggregate root. The
// composite unique index on (tenant_id, period) is the storage-level
// idempotency anchor for bill generation.
type BillModel struct {
	OwnerAggregateModel
	TenantID    uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_bills_tenant_period,priority:1"`
	PropertyID  uuid.UUID                 `gorm:"type:uuid;not null;index"`
	LeaseID     uuid.UUID                 `gorm:"type:uuid;not null;index"`
	Period      valueobject.BillingPeriod `gorm:"type:varchar(7);not null;uniqueIndex:idx_bills_tenant_period,priority:2;index"`
	RentAmount  decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	Charges     decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	TotalAmount decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	Amount      decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	BillDate    time.Time                 `gorm:"not null"`
	DueDate     time.Time                 `gorm:"not null;index"`
	PaymentDate *time.Time
	Status      billing.BillStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
}

// TableName returns the table name for GORM
func (BillModel) TableName() string {
	return "bills"
}

// ToDomain converts the persistence model to a domain Bill
func (m *BillModel) ToDomain() *billing.Bill {
	bill := &billing.Bill{
		TenantID:    m.TenantID,
		PropertyID:  m.PropertyID,
		LeaseID:     m.LeaseID,
		Period:      m.Period,
		RentAmount:  m.RentAmount,
		Charges:     m.Charges,
		TotalAmount: m.TotalAmount,
		Amount:      m.Amount,
		BillDate:    m.BillDate,
		DueDate:     m.DueDate,
		PaymentDate: m.PaymentDate,
		Status:      m.Status,
	}
	m.PopulateOwnerAggregateRoot(&bill.OwnerAggregateRoot)
	return bill
}

// BillModelFromDomain converts a domain Bill to the persistence model
func BillModelFromDomain(bill *billing.Bill) *BillModel {
	model := &BillModel{
		TenantID:    bill.TenantID,
		PropertyID:  bill.PropertyID,
		LeaseID:     bill.LeaseID,
		Period:      bill.Period,
		RentAmount:  bill.RentAmount,
		Charges:     bill.Charges,
		TotalAmount: bill.TotalAmount,
		Amount:      bill.Amount,
		BillDate:    bill.BillDate,
		DueDate:     bill.DueDate,
		PaymentDate: bill.PaymentDate,
		Status:      bill.Status,
	}
	model.FromDomainOwnerAggregateRoot(bill.OwnerAggregateRoot)
	return model
}

// ProfitLedgerModel is the persistence model for per-owner profit totals.
// One row per owner, enforced by the unique index on owner_id.
type ProfitLedgerModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	OwnerID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	TotalProfit decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LastUpdated time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProfitLedgerModel) TableName() string {
	return "profit_ledgers"
}

// ToDomain converts the persistence model to a domain ProfitLedger
func (m *ProfitLedgerModel) ToDomain() *billing.ProfitLedger {
	return &billing.ProfitLedger{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		TotalProfit: m.TotalProfit,
		LastUpdated: m.LastUpdated,
	}
}

// BillingJobRecordModel is the audit record persisted for each scheduler
// run, manual or automatic.
type BillingJobRecordModel struct {
	BaseModel
	JobType        string     `gorm:"type:varchar(40);not null;index"`
	Period         string     `gorm:"type:varchar(7);not null;index"`
	Trigger        string     `gorm:"type:varchar(20);not null"`
	Status         string     `gorm:"type:varchar(20);not null;index"`
	StartedAt      time.Time  `gorm:"not null"`
	CompletedAt    *time.Time
	BillsGenerated int    `gorm:"not null;default:0"`
	BillsSkipped   int    `gorm:"not null;default:0"`
	ErrorCount     int    `gorm:"not null;default:0"`
	Detail         string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (BillingJobRecordModel) TableName() string {
	return "billing_job_records"
}
