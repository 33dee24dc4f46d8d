package leasing

import (
	"time"

	"github.com/gestloc/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LeaseStatus represents the status of a lease
type LeaseStatus string

const (
	LeaseStatusActive   LeaseStatus = "ACTIVE"
	LeaseStatusInactive LeaseStatus = "INACTIVE"
	LeaseStatusExpired  LeaseStatus = "EXPIRED"
)

// IsValid checks if the status is a valid LeaseStatus
func (s LeaseStatus) IsValid() bool {
	switch s {
	case LeaseStatusActive, LeaseStatusInactive, LeaseStatusExpired:
		return true
	}
	return false
}

// String returns the string representation of LeaseStatus
func (s LeaseStatus) String() string {
	return string(s)
}

// Lease assigns a tenant to a property managed by an owner. The billing
// core reads leases to decide what bills should exist; it never writes
// them (lease CRUD lives outside this subsystem).
type Lease struct {
	shared.OwnerAggregateRoot
	TenantID    uuid.UUID       `json:"tenant_id"`
	PropertyID  uuid.UUID       `json:"property_id"`
	MonthlyRent decimal.Decimal `json:"monthly_rent"`
	Charges     decimal.Decimal `json:"charges"`
	Status      LeaseStatus     `json:"status"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
}

// NewLease creates a lease in ACTIVE status
func NewLease(ownerID, tenantID, propertyID uuid.UUID, monthlyRent decimal.Decimal, startDate time.Time) (*Lease, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if propertyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROPERTY", "Property ID cannot be empty")
	}
	if monthlyRent.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_RENT", "Monthly rent must be positive")
	}

	return &Lease{
		OwnerAggregateRoot: shared.NewOwnerAggregateRoot(ownerID),
		TenantID:           tenantID,
		PropertyID:         propertyID,
		MonthlyRent:        monthlyRent,
		Charges:            decimal.Zero,
		Status:             LeaseStatusActive,
		StartDate:          startDate,
	}, nil
}

// IsActive returns true if the lease participates in bill generation
func (l *Lease) IsActive() bool {
	return l.Status == LeaseStatusActive
}

// SetCharges sets the recurring additional charges billed on top of rent
func (l *Lease) SetCharges(charges decimal.Decimal) error {
	if charges.IsNegative() {
		return shared.NewDomainError("INVALID_CHARGES", "Charges cannot be negative")
	}
	l.Charges = charges
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}
