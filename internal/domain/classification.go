package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Classification is the taxonomy assignment of a BaseItem. One row per item,
// upserted by the classification service and only changed afterwards through
// explicit reclassification.
type Classification struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	BaseItemID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"base_item_id"`
	Specialty          string         `gorm:"column:specialty;not null;index" json:"specialty"`
	Topic              string         `gorm:"column:topic;not null;index" json:"topic"`
	Subtopic           string         `gorm:"column:subtopic" json:"subtopic,omitempty"`
	Difficulty         Difficulty     `gorm:"column:difficulty;not null;default:MEDIUM" json:"difficulty"`
	Confidence         float64        `gorm:"column:confidence;not null;default:0" json:"confidence"`
	Keywords           datatypes.JSON `gorm:"column:keywords;type:jsonb" json:"keywords,omitempty"`
	LearningObjectives datatypes.JSON `gorm:"column:learning_objectives;type:jsonb" json:"learning_objectives,omitempty"`
	QuestionType       string         `gorm:"column:question_type" json:"question_type,omitempty"`
	ReviewNotes        string         `gorm:"column:review_notes;type:text" json:"review_notes,omitempty"`
	CreatedAt          time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updated_at"`
}

func (Classification) TableName() string { return "classification" }

func (c *Classification) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
