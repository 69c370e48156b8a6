package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Specialty and Topic form the controlled taxonomy. The pipeline only reads
// them; editing is an external admin concern.
type Specialty struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Position  int       `gorm:"column:position;not null;default:0" json:"position"`
	Topics    []Topic   `gorm:"foreignKey:SpecialtyID;references:ID" json:"topics,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Specialty) TableName() string { return "specialty" }

func (s *Specialty) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type Topic struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SpecialtyID uuid.UUID `gorm:"type:uuid;not null;index:idx_topic_specialty_name,unique,priority:1" json:"specialty_id"`
	Name        string    `gorm:"column:name;not null;index:idx_topic_specialty_name,unique,priority:2" json:"name"`
	Position    int       `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Topic) TableName() string { return "topic" }

func (t *Topic) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
