package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/medforge/medforge-backend/internal/data/repos/testutil"
	types "github.com/medforge/medforge-backend/internal/domain"
)

func TestIncrementProcessedCountsFailures(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewJobRepo(db, testutil.Logger(t))

	job := testutil.SeedIngestJob(t, ctx, db, 3)

	if err := repo.IncrementProcessed(ctx, nil, job.ID, false, ""); err != nil {
		t.Fatalf("IncrementProcessed: %v", err)
	}
	if err := repo.IncrementProcessed(ctx, nil, job.ID, true, "classification failed"); err != nil {
		t.Fatalf("IncrementProcessed failed item: %v", err)
	}

	got, err := repo.GetByID(ctx, nil, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ProcessedItems != 2 {
		t.Fatalf("processed_items = %d, want 2", got.ProcessedItems)
	}
	if got.FailedItems != 1 {
		t.Fatalf("failed_items = %d, want 1", got.FailedItems)
	}
	if got.LastError != "classification failed" {
		t.Fatalf("last_error = %q", got.LastError)
	}
}

func TestDeleteCompletedBeforeSkipsActiveJobs(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewJobRepo(db, testutil.Logger(t))

	old := &types.IngestJob{Label: "old", Status: types.IngestJobCompleted}
	if err := repo.Create(ctx, nil, old); err != nil {
		t.Fatalf("Create: %v", err)
	}
	running := &types.IngestJob{Label: "running", Status: types.IngestJobRunning}
	if err := repo.Create(ctx, nil, running); err != nil {
		t.Fatalf("Create: %v", err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := db.Model(&types.IngestJob{}).
		Where("id IN ?", []any{old.ID, running.ID}).
		Update("updated_at", past).Error; err != nil {
		t.Fatalf("backdate jobs: %v", err)
	}

	deleted, err := repo.DeleteCompletedBefore(ctx, nil, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteCompletedBefore: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if got, _ := repo.GetByID(ctx, nil, running.ID); got == nil {
		t.Fatalf("running job was deleted")
	}
	if got, _ := repo.GetByID(ctx, nil, old.ID); got != nil {
		t.Fatalf("completed job survived cleanup")
	}
}
