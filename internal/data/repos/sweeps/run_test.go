package sweeps

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/medforge/medforge-backend/internal/data/repos/testutil"
	types "github.com/medforge/medforge-backend/internal/domain"
)

func TestClaimNextPendingOldestFirst(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewSweepRunRepo(db, testutil.Logger(t))

	older := &types.SweepRun{Name: "older", Status: types.SweepRunPending, CreatedAt: time.Now().Add(-time.Hour)}
	newer := &types.SweepRun{Name: "newer", Status: types.SweepRunPending, CreatedAt: time.Now()}
	for _, r := range []*types.SweepRun{older, newer} {
		if err := repo.Create(ctx, nil, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	claimed, err := repo.ClaimNextPending(ctx, nil)
	if err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	if claimed == nil || claimed.ID != older.ID {
		t.Fatalf("claimed run = %v, want the older run", claimed)
	}
	if claimed.Status != types.SweepRunRunning {
		t.Fatalf("claimed status = %s, want RUNNING", claimed.Status)
	}
	if claimed.StartedAt == nil {
		t.Fatalf("claimed run has no started_at")
	}

	status, err := repo.StatusOf(ctx, nil, older.ID)
	if err != nil {
		t.Fatalf("StatusOf: %v", err)
	}
	if status != types.SweepRunRunning {
		t.Fatalf("persisted status = %s, want RUNNING", status)
	}
}

func TestClaimNextPendingEmptyQueue(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewSweepRunRepo(db, testutil.Logger(t))

	testutil.SeedSweepRun(t, ctx, db, types.SweepRunRunning)
	testutil.SeedSweepRun(t, ctx, db, types.SweepRunCompleted)

	claimed, err := repo.ClaimNextPending(ctx, nil)
	if err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed = %v, want nil with no PENDING runs", claimed)
	}
}

func TestClaimNextPendingClaimsOnce(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewSweepRunRepo(db, testutil.Logger(t))

	testutil.SeedSweepRun(t, ctx, db, types.SweepRunPending)

	first, err := repo.ClaimNextPending(ctx, nil)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if first == nil {
		t.Fatalf("first claim returned nil")
	}
	second, err := repo.ClaimNextPending(ctx, nil)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second != nil {
		t.Fatalf("second claim = %v, want nil", second)
	}
}

func TestMarkCompletedOnlyFromRunning(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewSweepRunRepo(db, testutil.Logger(t))

	pending := testutil.SeedSweepRun(t, ctx, db, types.SweepRunPending)
	if err := repo.MarkCompleted(ctx, nil, pending.ID); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	status, err := repo.StatusOf(ctx, nil, pending.ID)
	if err != nil {
		t.Fatalf("StatusOf: %v", err)
	}
	if status != types.SweepRunPending {
		t.Fatalf("status = %s, PENDING run must not transition to COMPLETED", status)
	}

	running := testutil.SeedSweepRun(t, ctx, db, types.SweepRunRunning)
	if err := repo.MarkCompleted(ctx, nil, running.ID); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	status, err = repo.StatusOf(ctx, nil, running.ID)
	if err != nil {
		t.Fatalf("StatusOf: %v", err)
	}
	if status != types.SweepRunCompleted {
		t.Fatalf("status = %s, want COMPLETED", status)
	}
}

func TestCancelTransitions(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewSweepRunRepo(db, testutil.Logger(t))

	running := testutil.SeedSweepRun(t, ctx, db, types.SweepRunRunning)
	if err := repo.Cancel(ctx, nil, running.ID); err != nil {
		t.Fatalf("Cancel running: %v", err)
	}
	status, err := repo.StatusOf(ctx, nil, running.ID)
	if err != nil {
		t.Fatalf("StatusOf: %v", err)
	}
	if status != types.SweepRunFailed {
		t.Fatalf("status = %s, want FAILED after cancel", status)
	}

	completed := testutil.SeedSweepRun(t, ctx, db, types.SweepRunCompleted)
	if err := repo.Cancel(ctx, nil, completed.ID); err != gorm.ErrRecordNotFound {
		t.Fatalf("Cancel completed = %v, want gorm.ErrRecordNotFound", err)
	}
}

func TestOrdinalByCreationTime(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewSweepRunRepo(db, testutil.Logger(t))

	first := &types.SweepRun{Name: "first", Status: types.SweepRunCompleted, CreatedAt: time.Now().Add(-2 * time.Hour)}
	second := &types.SweepRun{Name: "second", Status: types.SweepRunCompleted, CreatedAt: time.Now().Add(-time.Hour)}
	third := &types.SweepRun{Name: "third", Status: types.SweepRunPending, CreatedAt: time.Now()}
	for _, r := range []*types.SweepRun{first, second, third} {
		if err := repo.Create(ctx, nil, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	for i, r := range []*types.SweepRun{first, second, third} {
		got, err := repo.Ordinal(ctx, nil, r)
		if err != nil {
			t.Fatalf("Ordinal: %v", err)
		}
		if got != i+1 {
			t.Fatalf("Ordinal(%s) = %d, want %d", r.Name, got, i+1)
		}
	}
}

func TestDeleteFinishedBefore(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewSweepRunRepo(db, testutil.Logger(t))

	old := time.Now().Add(-48 * time.Hour)
	finished := &types.SweepRun{Name: "old", Status: types.SweepRunCompleted, FinishedAt: &old}
	if err := repo.Create(ctx, nil, finished); err != nil {
		t.Fatalf("Create: %v", err)
	}
	testutil.SeedSweepRun(t, ctx, db, types.SweepRunRunning)

	deleted, err := repo.DeleteFinishedBefore(ctx, nil, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteFinishedBefore: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	remaining, err := repo.List(ctx, nil, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("remaining runs = %d, want the RUNNING run only", len(remaining))
	}
}
