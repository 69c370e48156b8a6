package content

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/platform/logger"
)

type BaseItemRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.BaseItem) ([]*types.BaseItem, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.BaseItem, error)
	ListByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) ([]*types.BaseItem, error)
	ListByStatus(ctx context.Context, tx *gorm.DB, status types.BaseItemStatus, limit int) ([]*types.BaseItem, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.BaseItemStatus) error
}

type baseItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBaseItemRepo(db *gorm.DB, baseLog *logger.Logger) BaseItemRepo {
	return &baseItemRepo{db: db, log: baseLog.With("repo", "BaseItemRepo")}
}

func (r *baseItemRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.BaseItem) ([]*types.BaseItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.BaseItem{}, nil
	}
	if err := t.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *baseItemRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.BaseItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.BaseItem
	err := t.WithContext(ctx).Where("id = ?", id).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *baseItemRepo) ListByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) ([]*types.BaseItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.BaseItem
	if err := t.WithContext(ctx).
		Where("ingest_job_id = ?", jobID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *baseItemRepo) ListByStatus(ctx context.Context, tx *gorm.DB, status types.BaseItemStatus, limit int) ([]*types.BaseItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.BaseItem
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *baseItemRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.BaseItemStatus) error {
	t := tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(ctx).
		Model(&types.BaseItem{}).
		Where("id = ?", id).
		Update("status", status).Error
}
