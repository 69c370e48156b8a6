package sweeps

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/platform/logger"
)

type SweepResultRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.SweepResult) error
	ListByRun(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.SweepResult, error)
	CountByRun(ctx context.Context, tx *gorm.DB, runID uuid.UUID) (int64, error)
	DeleteCreatedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type sweepResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSweepResultRepo(db *gorm.DB, baseLog *logger.Logger) SweepResultRepo {
	return &sweepResultRepo{db: db, log: baseLog.With("repo", "SweepResultRepo")}
}

func (r *sweepResultRepo) Create(ctx context.Context, tx *gorm.DB, row *types.SweepResult) error {
	t := tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(ctx).Create(row).Error
}

func (r *sweepResultRepo) ListByRun(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.SweepResult, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.SweepResult
	if err := t.WithContext(ctx).
		Where("sweep_run_id = ?", runID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sweepResultRepo) CountByRun(ctx context.Context, tx *gorm.DB, runID uuid.UUID) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var count int64
	err := t.WithContext(ctx).
		Model(&types.SweepResult{}).
		Where("sweep_run_id = ?", runID).
		Count(&count).Error
	return count, err
}

func (r *sweepResultRepo) DeleteCreatedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&types.SweepResult{})
	return res.RowsAffected, res.Error
}
