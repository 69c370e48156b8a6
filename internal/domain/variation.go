package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Variation is a generated or corrected rendering of a BaseItem. Rows are
// append-only: a correction creates version N+1 in the same lineage and flips
// the prior row's visibility, never its content.
type Variation struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	BaseItemID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"base_item_id"`
	ParentVersionID uuid.UUID     `gorm:"type:uuid;not null;index" json:"parent_version_id"`
	Version         int           `gorm:"column:version;not null;default:1" json:"version"`
	IsVisible       bool          `gorm:"column:is_visible;not null;default:true;index" json:"is_visible"`
	Text            string        `gorm:"column:text;type:text;not null" json:"text"`
	Explanation     string        `gorm:"column:explanation;type:text" json:"explanation,omitempty"`
	Difficulty      Difficulty    `gorm:"column:difficulty;not null;default:MEDIUM" json:"difficulty"`
	Alternatives    []Alternative `gorm:"foreignKey:VariationID;references:ID" json:"alternatives,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null" json:"updated_at"`
}

func (Variation) TableName() string { return "variation" }

func (v *Variation) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	// Version 1 rows root their own lineage.
	if v.ParentVersionID == uuid.Nil {
		v.ParentVersionID = v.ID
	}
	return nil
}

// Alternative is one of the exactly-four answer options of a Variation.
type Alternative struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VariationID uuid.UUID `gorm:"type:uuid;not null;index" json:"variation_id"`
	Text        string    `gorm:"column:text;type:text;not null" json:"text"`
	IsCorrect   bool      `gorm:"column:is_correct;not null;default:false" json:"is_correct"`
	Explanation string    `gorm:"column:explanation;type:text" json:"explanation,omitempty"`
	Position    int       `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Alternative) TableName() string { return "alternative" }

func (a *Alternative) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
