package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SweepRunStatus string

const (
	SweepRunPending   SweepRunStatus = "PENDING"
	SweepRunRunning   SweepRunStatus = "RUNNING"
	SweepRunCompleted SweepRunStatus = "COMPLETED"
	SweepRunFailed    SweepRunStatus = "FAILED"
)

type SweepResultStatus string

const (
	SweepResultAnalyzed  SweepResultStatus = "ANALYZED"
	SweepResultCorrected SweepResultStatus = "CORRECTED"
	SweepResultApplied   SweepResultStatus = "APPLIED"
)

// SweepRun is a batch re-evaluation job: filter criteria, limits, model
// selection, progress and the cached report.
type SweepRun struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"column:name;not null" json:"name"`

	// Target selection. VariationIDs, when set, wins over the filters.
	VariationIDs  datatypes.JSON `gorm:"column:variation_ids;type:jsonb" json:"variation_ids,omitempty"`
	Specialty     string         `gorm:"column:specialty" json:"specialty,omitempty"`
	Topic         string         `gorm:"column:topic" json:"topic,omitempty"`
	CreatedFrom   *time.Time     `gorm:"column:created_from" json:"created_from,omitempty"`
	CreatedTo     *time.Time     `gorm:"column:created_to" json:"created_to,omitempty"`
	MaxConfidence *float64       `gorm:"column:max_confidence" json:"max_confidence,omitempty"`
	OnlyUnscored  bool           `gorm:"column:only_unscored;not null;default:false" json:"only_unscored"`

	BatchSize   int    `gorm:"column:batch_size;not null;default:50" json:"batch_size"`
	Concurrency int    `gorm:"column:concurrency;not null;default:4" json:"concurrency"`
	EvalModel   string `gorm:"column:eval_model" json:"eval_model,omitempty"`
	FixModel    string `gorm:"column:fix_model" json:"fix_model,omitempty"`

	Status     SweepRunStatus `gorm:"column:status;not null;index;default:PENDING" json:"status"`
	Error      string         `gorm:"column:error;type:text" json:"error,omitempty"`
	Report     datatypes.JSON `gorm:"column:report;type:jsonb" json:"report,omitempty"`
	StartedAt  *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (SweepRun) TableName() string { return "sweep_run" }

func (r *SweepRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// SweepResult is the outcome of re-evaluating one Variation within a run.
// Exactly one is persisted per selected Variation, failures included.
type SweepResult struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SweepRunID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"sweep_run_id"`
	VariationID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"variation_id"`
	NewVariationID *uuid.UUID `gorm:"type:uuid" json:"new_variation_id,omitempty"`

	Evaluation datatypes.JSON    `gorm:"column:evaluation;type:jsonb" json:"evaluation,omitempty"`
	Correction datatypes.JSON    `gorm:"column:correction;type:jsonb" json:"correction,omitempty"`
	Confidence float64           `gorm:"column:confidence;not null;default:0" json:"confidence"`
	Status     SweepResultStatus `gorm:"column:status;not null;index" json:"status"`
	Diagnosis  string            `gorm:"column:diagnosis;type:text" json:"diagnosis,omitempty"`

	// Reclassification diff, set only when the sweep moved the item.
	PrevSpecialty string `gorm:"column:prev_specialty" json:"prev_specialty,omitempty"`
	NewSpecialty  string `gorm:"column:new_specialty" json:"new_specialty,omitempty"`
	PrevTopic     string `gorm:"column:prev_topic" json:"prev_topic,omitempty"`
	NewTopic      string `gorm:"column:new_topic" json:"new_topic,omitempty"`

	EvalPromptTokens     int   `gorm:"column:eval_prompt_tokens;not null;default:0" json:"eval_prompt_tokens"`
	EvalCompletionTokens int   `gorm:"column:eval_completion_tokens;not null;default:0" json:"eval_completion_tokens"`
	FixPromptTokens      int   `gorm:"column:fix_prompt_tokens;not null;default:0" json:"fix_prompt_tokens"`
	FixCompletionTokens  int   `gorm:"column:fix_completion_tokens;not null;default:0" json:"fix_completion_tokens"`
	LatencyMS            int64 `gorm:"column:latency_ms;not null;default:0" json:"latency_ms"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SweepResult) TableName() string { return "sweep_result" }

func (r *SweepResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
