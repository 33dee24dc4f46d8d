package billing

import (
	"time"

	"github.com/gestloc/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProfitLedger holds the running profit total for one owner. Exactly one
// entry exists per owner at any time; it is created lazily by the first
// payment event and mutated only through ledger increments, never set
// directly. The ledger keeps a running total only, not a transaction log.
type ProfitLedger struct {
	ID          uuid.UUID       `json:"id"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	LastUpdated time.Time       `json:"last_updated"`
}

// NewProfitLedger creates a ledger entry seeded with an initial amount
func NewProfitLedger(ownerID uuid.UUID, initial decimal.Decimal) (*ProfitLedger, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	return &ProfitLedger{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		TotalProfit: initial,
		LastUpdated: time.Now(),
	}, nil
}
