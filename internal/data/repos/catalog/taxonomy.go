package catalog

import (
	"context"

	"gorm.io/gorm"

	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/platform/logger"
)

type TaxonomyRepo interface {
	// ListSpecialtiesWithTopics returns the full catalog in display order.
	ListSpecialtiesWithTopics(ctx context.Context, tx *gorm.DB) ([]*types.Specialty, error)
}

type taxonomyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaxonomyRepo(db *gorm.DB, baseLog *logger.Logger) TaxonomyRepo {
	return &taxonomyRepo{db: db, log: baseLog.With("repo", "TaxonomyRepo")}
}

func (r *taxonomyRepo) ListSpecialtiesWithTopics(ctx context.Context, tx *gorm.DB) ([]*types.Specialty, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Specialty
	if err := t.WithContext(ctx).
		Preload("Topics", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, name ASC") }).
		Order("position ASC, name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
