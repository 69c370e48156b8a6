package content

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/platform/logger"
)

type ClassificationRepo interface {
	// Upsert keys on base_item_id: one classification per item.
	Upsert(ctx context.Context, tx *gorm.DB, row *types.Classification) error
	GetByBaseItemID(ctx context.Context, tx *gorm.DB, baseItemID uuid.UUID) (*types.Classification, error)
	UpdateTaxonomy(ctx context.Context, tx *gorm.DB, baseItemID uuid.UUID, specialty, topic string) error
}

type classificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClassificationRepo(db *gorm.DB, baseLog *logger.Logger) ClassificationRepo {
	return &classificationRepo{db: db, log: baseLog.With("repo", "ClassificationRepo")}
}

func (r *classificationRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.Classification) error {
	t := tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "base_item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"specialty", "topic", "subtopic", "difficulty", "confidence",
				"keywords", "learning_objectives", "question_type", "review_notes",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *classificationRepo) GetByBaseItemID(ctx context.Context, tx *gorm.DB, baseItemID uuid.UUID) (*types.Classification, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out types.Classification
	err := t.WithContext(ctx).Where("base_item_id = ?", baseItemID).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *classificationRepo) UpdateTaxonomy(ctx context.Context, tx *gorm.DB, baseItemID uuid.UUID, specialty, topic string) error {
	t := tx
	if t == nil {
		t = r.db
	}
	updates := map[string]interface{}{"specialty": specialty}
	if topic != "" {
		updates["topic"] = topic
	}
	return t.WithContext(ctx).
		Model(&types.Classification{}).
		Where("base_item_id = ?", baseItemID).
		Updates(updates).Error
}
