package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/gestloc/backend/internal/infrastructure/persistence/models"
	"github.com/gestloc/backend/internal/infrastructure/scheduler"
)

// GormJobRecorder persists billing job audit records
type GormJobRecorder struct {
	db *gorm.DB
}

// NewGormJobRecorder creates a new GormJobRecorder
func NewGormJobRecorder(db *gorm.DB) *GormJobRecorder {
	return &GormJobRecorder{db: db}
}

// Record inserts one completed job record
func (r *GormJobRecorder) Record(ctx context.Context, record *scheduler.JobRecord) error {
	model := &models.BillingJobRecordModel{
		BaseModel: models.BaseModel{
			ID:        record.ID,
			CreatedAt: record.StartedAt,
			UpdatedAt: record.StartedAt,
		},
		JobType:        string(record.JobType),
		Period:         record.Period,
		Trigger:        string(record.Trigger),
		Status:         string(record.Status),
		StartedAt:      record.StartedAt,
		CompletedAt:    record.CompletedAt,
		BillsGenerated: record.BillsGenerated,
		BillsSkipped:   record.BillsSkipped,
		ErrorCount:     record.ErrorCount,
		Detail:         record.Detail,
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// FindRecent returns the most recent job records, newest first
func (r *GormJobRecorder) FindRecent(ctx context.Context, limit int) ([]scheduler.JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.BillingJobRecordModel
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]scheduler.JobRecord, len(rows))
	for i, row := range rows {
		records[i] = scheduler.JobRecord{
			ID:             row.ID,
			JobType:        scheduler.JobType(row.JobType),
			Period:         row.Period,
			Trigger:        scheduler.JobTrigger(row.Trigger),
			Status:         scheduler.JobStatus(row.Status),
			StartedAt:      row.StartedAt,
			CompletedAt:    row.CompletedAt,
			BillsGenerated: row.BillsGenerated,
			BillsSkipped:   row.BillsSkipped,
			ErrorCount:     row.ErrorCount,
			Detail:         row.Detail,
		}
	}
	return records, nil
}
