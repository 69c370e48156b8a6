package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/platform/logger"
)

type JobRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.IngestJob) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.IngestJob, error)

	// IncrementProcessed bumps the processed counter atomically; failed marks
	// the item as failed as well and records the error.
	IncrementProcessed(ctx context.Context, tx *gorm.DB, id uuid.UUID, failed bool, lastError string) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.IngestJobStatus) error
	DeleteCompletedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{db: db, log: baseLog.With("repo", "IngestJobRepo")}
}

func (r *jobRepo) Create(ctx context.Context, tx *gorm.DB, row *types.IngestJob) error {
	t := tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(ctx).Create(row).Error
}

func (r *jobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.IngestJob, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out types.IngestJob
	err := t.WithContext(ctx).Where("id = ?", id).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *jobRepo) IncrementProcessed(ctx context.Context, tx *gorm.DB, id uuid.UUID, failed bool, lastError string) error {
	t := tx
	if t == nil {
		t = r.db
	}
	updates := map[string]interface{}{
		"processed_items": gorm.Expr("processed_items + 1"),
	}
	if failed {
		updates["failed_items"] = gorm.Expr("failed_items + 1")
		if lastError != "" {
			updates["last_error"] = lastError
		}
	}
	return t.WithContext(ctx).
		Model(&types.IngestJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *jobRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.IngestJobStatus) error {
	t := tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(ctx).
		Model(&types.IngestJob{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *jobRepo) DeleteCompletedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(ctx).
		Where("status = ? AND updated_at < ?", types.IngestJobCompleted, cutoff).
		Delete(&types.IngestJob{})
	return res.RowsAffected, res.Error
}
