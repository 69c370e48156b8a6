package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IngestJobStatus string

const (
	IngestJobPending   IngestJobStatus = "PENDING"
	IngestJobRunning   IngestJobStatus = "RUNNING"
	IngestJobCompleted IngestJobStatus = "COMPLETED"
)

// IngestJob tracks one batch upload of raw question texts.
type IngestJob struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Label          string          `gorm:"column:label" json:"label,omitempty"`
	SubmittedBy    string          `gorm:"column:submitted_by" json:"submitted_by,omitempty"`
	TotalItems     int             `gorm:"column:total_items;not null;default:0" json:"total_items"`
	ProcessedItems int             `gorm:"column:processed_items;not null;default:0" json:"processed_items"`
	FailedItems    int             `gorm:"column:failed_items;not null;default:0" json:"failed_items"`
	Status         IngestJobStatus `gorm:"column:status;not null;index;default:PENDING" json:"status"`
	LastError      string          `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

func (IngestJob) TableName() string { return "ingest_job" }

func (j *IngestJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
