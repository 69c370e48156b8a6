package factory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medforge/medforge-backend/internal/data/repos/content"
	"github.com/medforge/medforge-backend/internal/data/repos/ingest"
	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/modules/classify"
	"github.com/medforge/medforge-backend/internal/modules/generate"
	"github.com/medforge/medforge-backend/internal/platform/logger"
)

// variationsPerItem keeps downstream grading comparable: every item gets the
// same count at the same difficulty.
const variationsPerItem = 4

var ErrEmptyBatch = fmt.Errorf("ingest batch contains no non-empty lines")

// Orchestrator drives the per-item state machine:
// PENDING -> ANALYZING -> GENERATING_VARIATIONS -> REVIEW_REQUIRED,
// reverting to PENDING on any analysis failure.
type Orchestrator struct {
	db              *gorm.DB
	log             *logger.Logger
	jobs            ingest.JobRepo
	items           content.BaseItemRepo
	classifications content.ClassificationRepo
	variations      content.VariationRepo
	classifier      *classify.Service
	generator       *generate.Generator
}

func NewOrchestrator(
	db *gorm.DB,
	baseLog *logger.Logger,
	jobs ingest.JobRepo,
	items content.BaseItemRepo,
	classifications content.ClassificationRepo,
	variations content.VariationRepo,
	classifier *classify.Service,
	generator *generate.Generator,
) *Orchestrator {
	return &Orchestrator{
		db:              db,
		log:             baseLog.With("service", "ContentFactory"),
		jobs:            jobs,
		items:           items,
		classifications: classifications,
		variations:      variations,
		classifier:      classifier,
		generator:       generator,
	}
}

// IngestBatch persists one BaseItem per non-empty line and analyzes each in
// turn. One item failing never aborts the batch; the job always ends
// COMPLETED with aggregate counts.
func (o *Orchestrator) IngestBatch(ctx context.Context, texts []string, batchLabel, submittedBy string) (uuid.UUID, error) {
	job, rows, err := o.enqueue(ctx, texts, batchLabel, submittedBy)
	if err != nil {
		return uuid.Nil, err
	}
	return job.ID, o.process(ctx, job, rows)
}

// IngestBatchAsync persists the batch, then analyzes it in the background.
// The returned job ID can be polled while processing continues.
func (o *Orchestrator) IngestBatchAsync(ctx context.Context, texts []string, batchLabel, submittedBy string) (uuid.UUID, error) {
	job, rows, err := o.enqueue(ctx, texts, batchLabel, submittedBy)
	if err != nil {
		return uuid.Nil, err
	}
	go func() {
		if err := o.process(context.Background(), job, rows); err != nil {
			o.log.Error("ingest batch processing failed", "job_id", job.ID, "error", err)
		}
	}()
	return job.ID, nil
}

func (o *Orchestrator) enqueue(ctx context.Context, texts []string, batchLabel, submittedBy string) (*types.IngestJob, []*types.BaseItem, error) {
	kept := make([]string, 0, len(texts))
	for _, line := range texts {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimSpace(line))
		}
	}
	if len(kept) == 0 {
		return nil, nil, ErrEmptyBatch
	}

	job := &types.IngestJob{
		Label:       batchLabel,
		SubmittedBy: submittedBy,
		TotalItems:  len(kept),
		Status:      types.IngestJobPending,
	}
	if err := o.jobs.Create(ctx, nil, job); err != nil {
		return nil, nil, fmt.Errorf("create ingest job: %w", err)
	}

	rows := make([]*types.BaseItem, 0, len(kept))
	for _, text := range kept {
		rows = append(rows, &types.BaseItem{
			SourceText:  text,
			IngestJobID: job.ID,
			Status:      types.BaseItemPending,
		})
	}
	if _, err := o.items.Create(ctx, nil, rows); err != nil {
		return nil, nil, fmt.Errorf("create base items: %w", err)
	}
	return job, rows, nil
}

func (o *Orchestrator) process(ctx context.Context, job *types.IngestJob, rows []*types.BaseItem) error {
	if err := o.jobs.UpdateStatus(ctx, nil, job.ID, types.IngestJobRunning); err != nil {
		return err
	}

	o.log.Info("ingest batch started", "job_id", job.ID, "total_items", len(rows))
	for _, item := range rows {
		analyzeErr := o.Analyze(ctx, item)
		if analyzeErr != nil {
			o.log.Warn("item analysis failed, item stays PENDING",
				"job_id", job.ID, "item_id", item.ID, "error", analyzeErr)
		}
		errMsg := ""
		if analyzeErr != nil {
			errMsg = analyzeErr.Error()
		}
		if err := o.jobs.IncrementProcessed(ctx, nil, job.ID, analyzeErr != nil, errMsg); err != nil {
			return fmt.Errorf("update job progress: %w", err)
		}
	}

	if err := o.jobs.UpdateStatus(ctx, nil, job.ID, types.IngestJobCompleted); err != nil {
		return err
	}
	o.log.Info("ingest batch completed", "job_id", job.ID)
	return nil
}

// Analyze classifies the item and generates its variations. Any failure
// reverts the item to PENDING so it stays eligible for reprocessing.
func (o *Orchestrator) Analyze(ctx context.Context, item *types.BaseItem) (err error) {
	defer func() {
		if err != nil {
			if revertErr := o.items.UpdateStatus(ctx, nil, item.ID, types.BaseItemPending); revertErr != nil {
				o.log.Error("failed to revert item to PENDING", "item_id", item.ID, "error", revertErr)
			}
		}
	}()

	if err = o.items.UpdateStatus(ctx, nil, item.ID, types.BaseItemAnalyzing); err != nil {
		return err
	}

	classification, err := o.classifier.Classify(ctx, item.SourceText)
	if err != nil {
		return fmt.Errorf("classify item: %w", err)
	}
	classification.BaseItemID = item.ID
	if err = o.classifications.Upsert(ctx, nil, classification); err != nil {
		return fmt.Errorf("persist classification: %w", err)
	}

	if err = o.items.UpdateStatus(ctx, nil, item.ID, types.BaseItemGeneratingVariations); err != nil {
		return err
	}

	drafts := make([]*types.Variation, 0, variationsPerItem)
	for i := 0; i < variationsPerItem; i++ {
		draft := o.generator.Generate(ctx, item.SourceText, i)
		draft.BaseItemID = item.ID
		drafts = append(drafts, draft)
	}
	if _, err = o.variations.Create(ctx, nil, drafts); err != nil {
		return fmt.Errorf("persist variations: %w", err)
	}

	return o.items.UpdateStatus(ctx, nil, item.ID, types.BaseItemReviewRequired)
}
