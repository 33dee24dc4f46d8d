package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/gestloc/backend/internal/domain/billing"
	"github.com/gestloc/backend/internal/domain/shared"
	"github.com/gestloc/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProfitLedgerRepository implements billing.ProfitLedgerRepository
// using GORM
type GormProfitLedgerRepository struct {
	db *gorm.DB
}

// NewGormProfitLedgerRepository creates a new GormProfitLedgerRepository
func NewGormProfitLedgerRepository(db *gorm.DB) *GormProfitLedgerRepository {
	return &GormProfitLedgerRepository{db: db}
}

func (r *GormProfitLedgerRepository) conn(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db).WithContext(ctx)
}

// Increment atomically adds delta to the owner's running total and
// returns the new total. The write is a single INSERT ... ON CONFLICT
// whose update arm computes total_profit + delta at the store, so two
// concurrent increments for the same owner both land regardless of
// interleaving. The row is created on first use.
func (r *GormProfitLedgerRepository) Increment(ctx context.Context, ownerID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	db := r.conn(ctx)

	model := &models.ProfitLedgerModel{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		TotalProfit: delta,
		LastUpdated: time.Now(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_profit": gorm.Expr("profit_ledgers.total_profit + excluded.total_profit"),
			"last_updated": gorm.Expr("excluded.last_updated"),
		}),
	}).Create(model).Error; err != nil {
		return decimal.Zero, err
	}

	return r.GetTotal(ctx, ownerID)
}

// GetTotal returns the owner's running total, zero when no entry exists
func (r *GormProfitLedgerRepository) GetTotal(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	var model models.ProfitLedgerModel
	if err := r.conn(ctx).First(&model, "owner_id = ?", ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return model.TotalProfit, nil
}

// FindByOwner returns the full ledger entry, shared.ErrNotFound when absent
func (r *GormProfitLedgerRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) (*billing.ProfitLedger, error) {
	var model models.ProfitLedgerModel
	if err := r.conn(ctx).First(&model, "owner_id = ?", ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
