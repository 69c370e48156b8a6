package content

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/platform/logger"
)

// TargetFilter selects the visible variations a sweep run should process.
// IDs wins over the other criteria when set.
type TargetFilter struct {
	IDs           []uuid.UUID
	Specialty     string
	Topic         string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	MaxConfidence *float64
	OnlyUnscored  bool
	Limit         int
}

type VariationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Variation) ([]*types.Variation, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Variation, error)
	ListByBaseItem(ctx context.Context, tx *gorm.DB, baseItemID uuid.UUID) ([]*types.Variation, error)
	VisibleByLineage(ctx context.Context, tx *gorm.DB, parentVersionID uuid.UUID) ([]*types.Variation, error)
	SelectTargets(ctx context.Context, tx *gorm.DB, filter TargetFilter) ([]*types.Variation, error)

	// Supersede appends the next version and hides the prior one. Both writes
	// happen inside the given tx; callers wrap it in a transaction so the
	// visibility flip is all-or-nothing.
	Supersede(ctx context.Context, tx *gorm.DB, priorID uuid.UUID, next *types.Variation) error
}

type variationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVariationRepo(db *gorm.DB, baseLog *logger.Logger) VariationRepo {
	return &variationRepo{db: db, log: baseLog.With("repo", "VariationRepo")}
}

func (r *variationRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Variation) ([]*types.Variation, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Variation{}, nil
	}
	if err := t.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *variationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Variation, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Variation
	err := t.WithContext(ctx).
		Preload("Alternatives", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *variationRepo) ListByBaseItem(ctx context.Context, tx *gorm.DB, baseItemID uuid.UUID) ([]*types.Variation, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Variation
	if err := t.WithContext(ctx).
		Preload("Alternatives", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("base_item_id = ?", baseItemID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *variationRepo) VisibleByLineage(ctx context.Context, tx *gorm.DB, parentVersionID uuid.UUID) ([]*types.Variation, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Variation
	if err := t.WithContext(ctx).
		Where("parent_version_id = ? AND is_visible = ?", parentVersionID, true).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *variationRepo) SelectTargets(ctx context.Context, tx *gorm.DB, filter TargetFilter) ([]*types.Variation, error) {
	t := tx
	if t == nil {
		t = r.db
	}

	q := t.WithContext(ctx).
		Model(&types.Variation{}).
		Preload("Alternatives", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("variation.is_visible = ?", true)

	if len(filter.IDs) > 0 {
		q = q.Where("variation.id IN ?", filter.IDs)
	} else {
		if filter.Specialty != "" || filter.Topic != "" {
			q = q.Joins("JOIN classification ON classification.base_item_id = variation.base_item_id")
			if filter.Specialty != "" {
				q = q.Where("classification.specialty = ?", filter.Specialty)
			}
			if filter.Topic != "" {
				q = q.Where("classification.topic = ?", filter.Topic)
			}
		}
		if filter.CreatedFrom != nil {
			q = q.Where("variation.created_at >= ?", *filter.CreatedFrom)
		}
		if filter.CreatedTo != nil {
			q = q.Where("variation.created_at <= ?", *filter.CreatedTo)
		}
		if filter.OnlyUnscored {
			q = q.Where("NOT EXISTS (SELECT 1 FROM sweep_result WHERE sweep_result.variation_id = variation.id)")
		}
		if filter.MaxConfidence != nil {
			q = q.Where(`(SELECT sweep_result.confidence FROM sweep_result
				WHERE sweep_result.variation_id = variation.id
				ORDER BY sweep_result.created_at DESC LIMIT 1) <= ?`, *filter.MaxConfidence)
		}
	}

	q = q.Order("variation.created_at ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var out []*types.Variation
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *variationRepo) Supersede(ctx context.Context, tx *gorm.DB, priorID uuid.UUID, next *types.Variation) error {
	t := tx
	if t == nil {
		t = r.db
	}
	// New row first, then the flip: a reader never observes a lineage with no
	// version rows, and the surrounding transaction makes the pair atomic.
	if err := t.WithContext(ctx).Create(next).Error; err != nil {
		return err
	}
	return t.WithContext(ctx).
		Model(&types.Variation{}).
		Where("id = ?", priorID).
		Update("is_visible", false).Error
}
