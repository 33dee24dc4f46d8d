package billing

import "github.com/gestloc/backend/internal/domain/shared"

// Transition-guard errors returned by the bill state machine
var (
	ErrBillAlreadyPaid = shared.NewDomainError("BILL_ALREADY_PAID", "Bill is already marked as paid")
	ErrBillNotPaid     = shared.NewDomainError("BILL_NOT_PAID", "Bill is not marked as paid")
)
