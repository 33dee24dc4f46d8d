package billing

import (
	"fmt"
	"time"

	"github.com/gestloc/backend/internal/domain/shared"
	"github.com/gestloc/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillStatus represents the lifecycle status of a bill
type BillStatus string

const (
	BillStatusPending     BillStatus = "PENDING"      // Generated, awaiting payment
	BillStatusOverdue     BillStatus = "OVERDUE"      // Past due date, still unpaid
	BillStatusPaid        BillStatus = "PAID"         // Payment recorded by the owner
	BillStatusReceiptSent BillStatus = "RECEIPT_SENT" // Receipt dispatched to the tenant
)

// IsValid checks if the status is a valid BillStatus
func (s BillStatus) IsValid() bool {
	switch s {
	case BillStatusPending, BillStatusOverdue, BillStatusPaid, BillStatusReceiptSent:
		return true
	}
	return false
}

// String returns the string representation of BillStatus
func (s BillStatus) String() string {
	return string(s)
}

// billTransitions is the closed set of legal status transitions.
// RECEIPT_SENT is tracked for audit and does not block later payment
// transitions; the payment guards additionally key off PaymentDate,
// which survives the receipt transition, so an already-settled bill
// cannot be paid twice through RECEIPT_SENT.
var billTransitions = map[BillStatus][]BillStatus{
	BillStatusPending:     {BillStatusOverdue, BillStatusPaid, BillStatusReceiptSent},
	BillStatusOverdue:     {BillStatusPaid},
	BillStatusPaid:        {BillStatusPending, BillStatusReceiptSent},
	BillStatusReceiptSent: {BillStatusPaid, BillStatusPending},
}

// CanTransitionTo returns true if the transition from the receiver to the
// target status is legal
func (s BillStatus) CanTransitionTo(target BillStatus) bool {
	for _, allowed := range billTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Bill is the central aggregate of the billing core: one rent bill for one
// tenant, one property and one billing period. At most one bill may exist
// per (tenant, period); that uniqueness is the idempotency anchor for the
// whole generation engine.
type Bill struct {
	shared.OwnerAggregateRoot
	TenantID    uuid.UUID                 `json:"tenant_id"`
	PropertyID  uuid.UUID                 `json:"property_id"`
	LeaseID     uuid.UUID                 `json:"lease_id"`
	Period      valueobject.BillingPeriod `json:"period"`
	RentAmount  decimal.Decimal           `json:"rent_amount"`
	Charges     decimal.Decimal           `json:"charges"`
	TotalAmount decimal.Decimal           `json:"total_amount"`
	// Amount mirrors TotalAmount for older API consumers.
	Amount      decimal.Decimal `json:"amount"`
	BillDate    time.Time       `json:"bill_date"`
	DueDate     time.Time       `json:"due_date"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`
	Status      BillStatus      `json:"status"`
}

// NewBill creates a bill in PENDING status for the given lease and period.
// bill_date is the first day of the period and due_date its 15th.
func NewBill(
	ownerID, tenantID, propertyID, leaseID uuid.UUID,
	period valueobject.BillingPeriod,
	rentAmount, charges decimal.Decimal,
) (*Bill, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if propertyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROPERTY", "Property ID cannot be empty")
	}
	if period.IsZero() {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Billing period cannot be empty")
	}
	if rentAmount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Rent amount must be positive")
	}
	if charges.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Charges cannot be negative")
	}

	total := rentAmount.Add(charges)

	b := &Bill{
		OwnerAggregateRoot: shared.NewOwnerAggregateRoot(ownerID),
		TenantID:           tenantID,
		PropertyID:         propertyID,
		LeaseID:            leaseID,
		Period:             period,
		RentAmount:         rentAmount,
		Charges:            charges,
		TotalAmount:        total,
		Amount:             total,
		BillDate:           period.Start(),
		DueDate:            period.DueDate(),
		Status:             BillStatusPending,
	}

	b.AddDomainEvent(NewBillCreatedEvent(b))

	return b, nil
}

// MarkOverdue transitions the bill from PENDING to OVERDUE. The transition
// is time-driven (daily sweep) and never reverted automatically.
func (b *Bill) MarkOverdue(asOf time.Time) error {
	if b.Status != BillStatusPending {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot mark bill in %s status as overdue", b.Status))
	}
	if !b.DueDate.Before(asOf) {
		return shared.NewDomainError("NOT_DUE", "Bill is not past its due date")
	}

	b.Status = BillStatusOverdue
	b.UpdatedAt = time.Now()
	b.IncrementVersion()

	b.AddDomainEvent(NewBillOverdueEvent(b))

	return nil
}

// MarkPaid records payment of the bill. Legal from PENDING and OVERDUE;
// paying an already-paid bill is rejected, including when the receipt
// transition has since overwritten the PAID status. The caller is
// responsible for crediting the owner's ledger by TotalAmount in the same
// logical operation.
func (b *Bill) MarkPaid(paidAt time.Time) error {
	if b.Status == BillStatusPaid || b.PaymentDate != nil {
		return ErrBillAlreadyPaid
	}
	if !b.Status.CanTransitionTo(BillStatusPaid) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot mark bill in %s status as paid", b.Status))
	}

	b.Status = BillStatusPaid
	b.PaymentDate = &paidAt
	b.UpdatedAt = time.Now()
	b.IncrementVersion()

	b.AddDomainEvent(NewBillPaidEvent(b))

	return nil
}

// UndoPayment reverts an erroneously recorded payment, returning the bill
// to PENDING. Legal while the bill carries a payment date, which covers
// both PAID and a paid bill whose receipt went out afterwards. The caller
// must debit the owner's ledger by TotalAmount as part of the same
// logical operation.
func (b *Bill) UndoPayment() error {
	if b.PaymentDate == nil {
		return ErrBillNotPaid
	}

	b.Status = BillStatusPending
	b.PaymentDate = nil
	b.UpdatedAt = time.Now()
	b.IncrementVersion()

	b.AddDomainEvent(NewBillPaymentUndoneEvent(b))

	return nil
}

// MarkReceiptSent records that a receipt was dispatched for this bill.
// Legal from PENDING and PAID; never touches the ledger.
func (b *Bill) MarkReceiptSent() error {
	if !b.Status.CanTransitionTo(BillStatusReceiptSent) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot mark receipt sent for bill in %s status", b.Status))
	}

	b.Status = BillStatusReceiptSent
	b.UpdatedAt = time.Now()
	b.IncrementVersion()

	b.AddDomainEvent(NewBillReceiptSentEvent(b))

	return nil
}

// IsPaid returns true if the bill is in PAID status
func (b *Bill) IsPaid() bool {
	return b.Status == BillStatusPaid
}

// IsOverdue returns true if the bill is unpaid and past its due date
func (b *Bill) IsOverdue(asOf time.Time) bool {
	return b.Status == BillStatusPending && b.DueDate.Before(asOf)
}

// GetTotalAmountMoney returns the total amount as Money
func (b *Bill) GetTotalAmountMoney() valueobject.Money {
	return valueobject.NewMoneyEUR(b.TotalAmount)
}
