package models

import (
	"time"

	"github.com/gestloc/backend/internal/domain/leasing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LeaseModel is the persistence model for the Lease aggregate root
type LeaseModel struct {
	OwnerAggregateModel
	TenantID    uuid.UUID           `gorm:"type:uuid;not null;index"`
	PropertyID  uuid.UUID           `gorm:"type:uuid;not null;index"`
	MonthlyRent decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	Charges     decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	Status      leasing.LeaseStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	StartDate   time.Time           `gorm:"not null"`
	EndDate     *time.Time
}

// TableName returns the table name for GORM
func (LeaseModel) TableName() string {
	return "leases"
}

// ToDomain converts the persistence model to a domain Lease
func (m *LeaseModel) ToDomain() *leasing.Lease {
	lease := &leasing.Lease{
		TenantID:    m.TenantID,
		PropertyID:  m.PropertyID,
		MonthlyRent: m.MonthlyRent,
		Charges:     m.Charges,
		Status:      m.Status,
		StartDate:   m.StartDate,
		EndDate:     m.EndDate,
	}
	m.PopulateOwnerAggregateRoot(&lease.OwnerAggregateRoot)
	return lease
}

// LeaseModelFromDomain converts a domain Lease to the persistence model
func LeaseModelFromDomain(lease *leasing.Lease) *LeaseModel {
	model := &LeaseModel{
		TenantID:    lease.TenantID,
		PropertyID:  lease.PropertyID,
		MonthlyRent: lease.MonthlyRent,
		Charges:     lease.Charges,
		Status:      lease.Status,
		StartDate:   lease.StartDate,
		EndDate:     lease.EndDate,
	}
	model.FromDomainOwnerAggregateRoot(lease.OwnerAggregateRoot)
	return model
}
