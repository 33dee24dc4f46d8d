package billing

import (
	"github.com/gestloc/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types for the Bill aggregate
const (
	EventTypeBillCreated       = "billing.bill.created"
	EventTypeBillOverdue       = "billing.bill.overdue"
	EventTypeBillPaid          = "billing.bill.paid"
	EventTypeBillPaymentUndone = "billing.bill.payment_undone"
	EventTypeBillReceiptSent   = "billing.bill.receipt_sent"
)

const billAggregateType = "Bill"

// BillCreatedEvent is raised when the generation engine creates a bill
type BillCreatedEvent struct {
	shared.BaseDomainEvent
	TenantID    uuid.UUID       `json:"tenant_id"`
	Period      string          `json:"period"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewBillCreatedEvent creates a BillCreatedEvent
func NewBillCreatedEvent(b *Bill) *BillCreatedEvent {
	return &BillCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBillCreated, billAggregateType, b.ID, b.OwnerID),
		TenantID:        b.TenantID,
		Period:          b.Period.String(),
		TotalAmount:     b.TotalAmount,
	}
}

// BillOverdueEvent is raised when the daily sweep marks a bill overdue
type BillOverdueEvent struct {
	shared.BaseDomainEvent
	TenantID uuid.UUID `json:"tenant_id"`
	Period   string    `json:"period"`
}

// NewBillOverdueEvent creates a BillOverdueEvent
func NewBillOverdueEvent(b *Bill) *BillOverdueEvent {
	return &BillOverdueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBillOverdue, billAggregateType, b.ID, b.OwnerID),
		TenantID:        b.TenantID,
		Period:          b.Period.String(),
	}
}

// BillPaidEvent is raised when a payment is recorded
type BillPaidEvent struct {
	shared.BaseDomainEvent
	TenantID    uuid.UUID       `json:"tenant_id"`
	Period      string          `json:"period"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewBillPaidEvent creates a BillPaidEvent
func NewBillPaidEvent(b *Bill) *BillPaidEvent {
	return &BillPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBillPaid, billAggregateType, b.ID, b.OwnerID),
		TenantID:        b.TenantID,
		Period:          b.Period.String(),
		TotalAmount:     b.TotalAmount,
	}
}

// BillPaymentUndoneEvent is raised when a recorded payment is reverted
type BillPaymentUndoneEvent struct {
	shared.BaseDomainEvent
	TenantID    uuid.UUID       `json:"tenant_id"`
	Period      string          `json:"period"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewBillPaymentUndoneEvent creates a BillPaymentUndoneEvent
func NewBillPaymentUndoneEvent(b *Bill) *BillPaymentUndoneEvent {
	return &BillPaymentUndoneEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBillPaymentUndone, billAggregateType, b.ID, b.OwnerID),
		TenantID:        b.TenantID,
		Period:          b.Period.String(),
		TotalAmount:     b.TotalAmount,
	}
}

// BillReceiptSentEvent is raised when a receipt is dispatched
type BillReceiptSentEvent struct {
	shared.BaseDomainEvent
	TenantID uuid.UUID `json:"tenant_id"`
	Period   string    `json:"period"`
}

// NewBillReceiptSentEvent creates a BillReceiptSentEvent
func NewBillReceiptSentEvent(b *Bill) *BillReceiptSentEvent {
	return &BillReceiptSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBillReceiptSent, billAggregateType, b.ID, b.OwnerID),
		TenantID:        b.TenantID,
		Period:          b.Period.String(),
	}
}
