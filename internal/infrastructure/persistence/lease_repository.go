package persistence

import (
	"context"
	"errors"

	"github.com/gestloc/backend/internal/domain/leasing"
	"github.com/gestloc/backend/internal/domain/shared"
	"github.com/gestloc/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLeaseRepository implements leasing.LeaseRepository using GORM
type GormLeaseRepository struct {
	db *gorm.DB
}

// NewGormLeaseRepository creates a new GormLeaseRepository
func NewGormLeaseRepository(db *gorm.DB) *GormLeaseRepository {
	return &GormLeaseRepository{db: db}
}

func (r *GormLeaseRepository) conn(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db).WithContext(ctx)
}

// FindByID finds a lease by ID
func (r *GormLeaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*leasing.Lease, error) {
	var model models.LeaseModel
	if err := r.conn(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive returns all ACTIVE leases, optionally scoped to one owner
func (r *GormLeaseRepository) FindActive(ctx context.Context, filter leasing.ActiveLeaseFilter) ([]leasing.Lease, error) {
	query := r.conn(ctx).Where("status = ?", leasing.LeaseStatusActive)
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}

	var leaseModels []models.LeaseModel
	if err := query.Order("created_at").Find(&leaseModels).Error; err != nil {
		return nil, err
	}
	leases := make([]leasing.Lease, len(leaseModels))
	for i := range leaseModels {
		leases[i] = *leaseModels[i].ToDomain()
	}
	return leases, nil
}

// CountActive counts ACTIVE leases, optionally scoped to one owner
func (r *GormLeaseRepository) CountActive(ctx context.Context, filter leasing.ActiveLeaseFilter) (int64, error) {
	query := r.conn(ctx).Model(&models.LeaseModel{}).Where("status = ?", leasing.LeaseStatusActive)
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
