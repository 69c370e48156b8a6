package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BaseItemStatus string

const (
	BaseItemPending              BaseItemStatus = "PENDING"
	BaseItemAnalyzing            BaseItemStatus = "ANALYZING"
	BaseItemGeneratingVariations BaseItemStatus = "GENERATING_VARIATIONS"
	BaseItemReviewRequired       BaseItemStatus = "REVIEW_REQUIRED"
)

// BaseItem is a raw submitted question. The factory orchestrator owns its
// lifecycle; the pipeline never deletes one.
type BaseItem struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SourceText  string         `gorm:"column:source_text;type:text;not null" json:"source_text"`
	IngestJobID uuid.UUID      `gorm:"type:uuid;not null;index" json:"ingest_job_id"`
	Status      BaseItemStatus `gorm:"column:status;not null;index;default:PENDING" json:"status"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (BaseItem) TableName() string { return "base_item" }

func (b *BaseItem) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
