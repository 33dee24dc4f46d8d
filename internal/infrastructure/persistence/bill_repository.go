package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/gestloc/backend/internal/domain/billing"
	"github.com/gestloc/backend/internal/domain/shared"
	"github.com/gestloc/backend/internal/domain/shared/valueobject"
	"github.com/gestloc/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormBillRepository implements billing.BillRepository using GORM
type GormBillRepository struct {
	db *gorm.DB
}

// NewGormBillRepository creates a new GormBillRepository
func NewGormBillRepository(db *gorm.DB) *GormBillRepository {
	return &GormBillRepository{db: db}
}

func (r *GormBillRepository) conn(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db).WithContext(ctx)
}

// FindByID finds a bill by ID
func (r *GormBillRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Bill, error) {
	var model models.BillModel
	if err := r.conn(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForOwner finds a bill by ID scoped to an owner
func (r *GormBillRepository) FindByIDForOwner(ctx context.Context, ownerID, id uuid.UUID) (*billing.Bill, error) {
	var model models.BillModel
	if err := r.conn(ctx).First(&model, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTenantAndPeriod finds the unique bill for a tenant and period
func (r *GormBillRepository) FindByTenantAndPeriod(ctx context.Context, tenantID uuid.UUID, period valueobject.BillingPeriod) (*billing.Bill, error) {
	var model models.BillModel
	if err := r.conn(ctx).First(&model, "tenant_id = ? AND period = ?", tenantID, period).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByTenantAndPeriod reports whether a bill exists for the (tenant, period) key
func (r *GormBillRepository) ExistsByTenantAndPeriod(ctx context.Context, tenantID uuid.UUID, period valueobject.BillingPeriod) (bool, error) {
	var count int64
	if err := r.conn(ctx).
		Model(&models.BillModel{}).
		Where("tenant_id = ? AND period = ?", tenantID, period).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll finds bills matching the filter
func (r *GormBillRepository) FindAll(ctx context.Context, filter billing.BillFilter) ([]billing.Bill, error) {
	query := r.conn(ctx).Model(&models.BillModel{})

	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Period != nil {
		query = query.Where("period = ?", *filter.Period)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	var billModels []models.BillModel
	if err := query.Order("due_date, tenant_id").Find(&billModels).Error; err != nil {
		return nil, err
	}
	bills := make([]billing.Bill, len(billModels))
	for i := range billModels {
		bills[i] = *billModels[i].ToDomain()
	}
	return bills, nil
}

// FindOverduePending returns all PENDING bills whose due date is before asOf
func (r *GormBillRepository) FindOverduePending(ctx context.Context, asOf time.Time) ([]billing.Bill, error) {
	var billModels []models.BillModel
	if err := r.conn(ctx).
		Where("status = ? AND due_date < ?", billing.BillStatusPending, asOf).
		Find(&billModels).Error; err != nil {
		return nil, err
	}
	bills := make([]billing.Bill, len(billModels))
	for i := range billModels {
		bills[i] = *billModels[i].ToDomain()
	}
	return bills, nil
}

// Create inserts a new bill. A uniqueness violation on (tenant_id, period)
// is reported as shared.ErrAlreadyExists so callers can treat the race
// loser as an idempotent skip.
func (r *GormBillRepository) Create(ctx context.Context, bill *billing.Bill) error {
	model := models.BillModelFromDomain(bill)
	if err := r.conn(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Save updates an existing bill with optimistic locking on the version column
func (r *GormBillRepository) Save(ctx context.Context, bill *billing.Bill) error {
	model := models.BillModelFromDomain(bill)
	previousVersion := model.Version - 1

	result := r.conn(ctx).
		Model(&models.BillModel{}).
		Where("id = ? AND version = ?", bill.ID, previousVersion).
		Select("*").Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// CountForPeriod counts bills for a period, optionally scoped to an owner
func (r *GormBillRepository) CountForPeriod(ctx context.Context, period valueobject.BillingPeriod, ownerID *uuid.UUID) (int64, error) {
	query := r.conn(ctx).Model(&models.BillModel{}).Where("period = ?", period)
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumTotalForPeriod sums total_amount over a period, optionally scoped to an owner
func (r *GormBillRepository) SumTotalForPeriod(ctx context.Context, period valueobject.BillingPeriod, ownerID *uuid.UUID) (decimal.Decimal, error) {
	query := r.conn(ctx).Model(&models.BillModel{}).Where("period = ?", period)
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}
	var total decimal.NullDecimal
	if err := query.Select("SUM(total_amount)").Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// CountByStatusForPeriod breaks a period's bills down by status
func (r *GormBillRepository) CountByStatusForPeriod(ctx context.Context, period valueobject.BillingPeriod, ownerID *uuid.UUID) ([]billing.StatusCount, error) {
	query := r.conn(ctx).Model(&models.BillModel{}).Where("period = ?", period)
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}
	var rows []billing.StatusCount
	if err := query.
		Select("status, COUNT(*) AS count, SUM(total_amount) AS total").
		Group("status").
		Order("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByOwnerForPeriod breaks a period's bills down by owner
func (r *GormBillRepository) CountByOwnerForPeriod(ctx context.Context, period valueobject.BillingPeriod) ([]billing.OwnerCount, error) {
	var rows []billing.OwnerCount
	if err := r.conn(ctx).
		Model(&models.BillModel{}).
		Where("period = ?", period).
		Select("owner_id, COUNT(*) AS count, SUM(total_amount) AS total").
		Group("owner_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TenantsWithBillForPeriod returns the set of tenant IDs that already
// have a bill for the period
func (r *GormBillRepository) TenantsWithBillForPeriod(ctx context.Context, period valueobject.BillingPeriod) (map[uuid.UUID]struct{}, error) {
	var tenantIDs []uuid.UUID
	if err := r.conn(ctx).
		Model(&models.BillModel{}).
		Where("period = ?", period).
		Pluck("tenant_id", &tenantIDs).Error; err != nil {
		return nil, err
	}
	set := make(map[uuid.UUID]struct{}, len(tenantIDs))
	for _, id := range tenantIDs {
		set[id] = struct{}{}
	}
	return set, nil
}
