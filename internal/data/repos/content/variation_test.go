package content

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medforge/medforge-backend/internal/data/repos/testutil"
	types "github.com/medforge/medforge-backend/internal/domain"
)

func TestSupersedeFlipsVisibility(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewVariationRepo(db, testutil.Logger(t))

	job := testutil.SeedIngestJob(t, ctx, db, 1)
	item := testutil.SeedBaseItem(t, ctx, db, job.ID, "base question")
	v1 := testutil.SeedVariation(t, ctx, db, item.ID, "version one")

	next := &types.Variation{
		BaseItemID:      item.ID,
		ParentVersionID: v1.ParentVersionID,
		Version:         2,
		IsVisible:       true,
		Text:            "version two",
		Difficulty:      types.DifficultyMedium,
	}
	if err := repo.Supersede(ctx, nil, v1.ID, next); err != nil {
		t.Fatalf("Supersede: %v", err)
	}

	prior, err := repo.GetByID(ctx, nil, v1.ID)
	if err != nil {
		t.Fatalf("GetByID prior: %v", err)
	}
	if prior.IsVisible {
		t.Fatalf("prior version still visible after supersede")
	}

	visible, err := repo.VisibleByLineage(ctx, nil, v1.ParentVersionID)
	if err != nil {
		t.Fatalf("VisibleByLineage: %v", err)
	}
	if len(visible) != 1 {
		t.Fatalf("visible lineage rows = %d, want 1", len(visible))
	}
	if visible[0].ID != next.ID || visible[0].Version != 2 {
		t.Fatalf("visible row = id %s version %d, want the new version 2", visible[0].ID, visible[0].Version)
	}
}

func TestSupersedeKeepsLineageRoot(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewVariationRepo(db, testutil.Logger(t))

	job := testutil.SeedIngestJob(t, ctx, db, 1)
	item := testutil.SeedBaseItem(t, ctx, db, job.ID, "base question")
	v1 := testutil.SeedVariation(t, ctx, db, item.ID, "version one")

	v2 := &types.Variation{
		BaseItemID:      item.ID,
		ParentVersionID: v1.ParentVersionID,
		Version:         2,
		IsVisible:       true,
		Text:            "version two",
		Difficulty:      types.DifficultyMedium,
	}
	if err := repo.Supersede(ctx, nil, v1.ID, v2); err != nil {
		t.Fatalf("Supersede v2: %v", err)
	}
	v3 := &types.Variation{
		BaseItemID:      item.ID,
		ParentVersionID: v2.ParentVersionID,
		Version:         3,
		IsVisible:       true,
		Text:            "version three",
		Difficulty:      types.DifficultyMedium,
	}
	if err := repo.Supersede(ctx, nil, v2.ID, v3); err != nil {
		t.Fatalf("Supersede v3: %v", err)
	}

	if v3.ParentVersionID != v1.ID {
		t.Fatalf("v3 lineage root = %s, want the original v1 id %s", v3.ParentVersionID, v1.ID)
	}
}

func TestSelectTargetsOnlyVisible(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewVariationRepo(db, testutil.Logger(t))

	job := testutil.SeedIngestJob(t, ctx, db, 2)
	item := testutil.SeedBaseItem(t, ctx, db, job.ID, "base question")
	visible := testutil.SeedVariation(t, ctx, db, item.ID, "visible")
	hidden := testutil.SeedVariation(t, ctx, db, item.ID, "hidden")
	if err := db.Model(&types.Variation{}).Where("id = ?", hidden.ID).Update("is_visible", false).Error; err != nil {
		t.Fatalf("hide variation: %v", err)
	}

	targets, err := repo.SelectTargets(ctx, nil, TargetFilter{})
	if err != nil {
		t.Fatalf("SelectTargets: %v", err)
	}
	if len(targets) != 1 || targets[0].ID != visible.ID {
		t.Fatalf("targets = %d rows, want only the visible variation", len(targets))
	}
}

func TestSelectTargetsExplicitIDsWin(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewVariationRepo(db, testutil.Logger(t))

	job := testutil.SeedIngestJob(t, ctx, db, 2)
	item := testutil.SeedBaseItem(t, ctx, db, job.ID, "base question")
	wanted := testutil.SeedVariation(t, ctx, db, item.ID, "wanted")
	testutil.SeedVariation(t, ctx, db, item.ID, "other")

	targets, err := repo.SelectTargets(ctx, nil, TargetFilter{
		IDs:       []uuid.UUID{wanted.ID},
		Specialty: "Neurología",
	})
	if err != nil {
		t.Fatalf("SelectTargets: %v", err)
	}
	if len(targets) != 1 || targets[0].ID != wanted.ID {
		t.Fatalf("targets = %d rows, want exactly the requested id", len(targets))
	}
}

func TestSelectTargetsBySpecialtyAndTopic(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewVariationRepo(db, testutil.Logger(t))

	job := testutil.SeedIngestJob(t, ctx, db, 2)
	cardio := testutil.SeedBaseItem(t, ctx, db, job.ID, "cardio question")
	neuro := testutil.SeedBaseItem(t, ctx, db, job.ID, "neuro question")
	testutil.SeedClassification(t, ctx, db, cardio.ID, "Cardiología", "Arritmias")
	testutil.SeedClassification(t, ctx, db, neuro.ID, "Neurología", "ACV")
	cardioVar := testutil.SeedVariation(t, ctx, db, cardio.ID, "cardio variation")
	testutil.SeedVariation(t, ctx, db, neuro.ID, "neuro variation")

	targets, err := repo.SelectTargets(ctx, nil, TargetFilter{Specialty: "Cardiología", Topic: "Arritmias"})
	if err != nil {
		t.Fatalf("SelectTargets: %v", err)
	}
	if len(targets) != 1 || targets[0].ID != cardioVar.ID {
		t.Fatalf("targets = %d rows, want only the Cardiología/Arritmias variation", len(targets))
	}
}

func TestSelectTargetsOnlyUnscored(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewVariationRepo(db, testutil.Logger(t))

	job := testutil.SeedIngestJob(t, ctx, db, 2)
	item := testutil.SeedBaseItem(t, ctx, db, job.ID, "base question")
	scored := testutil.SeedVariation(t, ctx, db, item.ID, "scored")
	unscored := testutil.SeedVariation(t, ctx, db, item.ID, "unscored")

	run := testutil.SeedSweepRun(t, ctx, db, types.SweepRunCompleted)
	result := &types.SweepResult{
		ID:          uuid.New(),
		SweepRunID:  run.ID,
		VariationID: scored.ID,
		Confidence:  0.9,
		Status:      types.SweepResultAnalyzed,
	}
	if err := db.Create(result).Error; err != nil {
		t.Fatalf("seed sweep result: %v", err)
	}

	targets, err := repo.SelectTargets(ctx, nil, TargetFilter{OnlyUnscored: true})
	if err != nil {
		t.Fatalf("SelectTargets: %v", err)
	}
	if len(targets) != 1 || targets[0].ID != unscored.ID {
		t.Fatalf("targets = %d rows, want only the unscored variation", len(targets))
	}
}

func TestSelectTargetsMaxConfidenceUsesLatestScore(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewVariationRepo(db, testutil.Logger(t))

	job := testutil.SeedIngestJob(t, ctx, db, 1)
	item := testutil.SeedBaseItem(t, ctx, db, job.ID, "base question")
	variation := testutil.SeedVariation(t, ctx, db, item.ID, "rescored")
	run := testutil.SeedSweepRun(t, ctx, db, types.SweepRunCompleted)

	old := &types.SweepResult{
		ID:          uuid.New(),
		SweepRunID:  run.ID,
		VariationID: variation.ID,
		Confidence:  0.2,
		Status:      types.SweepResultAnalyzed,
		CreatedAt:   time.Now().Add(-time.Hour),
	}
	latest := &types.SweepResult{
		ID:          uuid.New(),
		SweepRunID:  run.ID,
		VariationID: variation.ID,
		Confidence:  0.95,
		Status:      types.SweepResultAnalyzed,
		CreatedAt:   time.Now(),
	}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("seed old result: %v", err)
	}
	if err := db.Create(latest).Error; err != nil {
		t.Fatalf("seed latest result: %v", err)
	}

	threshold := 0.5
	targets, err := repo.SelectTargets(ctx, nil, TargetFilter{MaxConfidence: &threshold})
	if err != nil {
		t.Fatalf("SelectTargets: %v", err)
	}
	// The latest score is 0.95, above the threshold, so the old low score
	// must not requalify the variation.
	if len(targets) != 0 {
		t.Fatalf("targets = %d rows, want 0", len(targets))
	}
}

func TestSelectTargetsLimit(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := NewVariationRepo(db, testutil.Logger(t))

	job := testutil.SeedIngestJob(t, ctx, db, 1)
	item := testutil.SeedBaseItem(t, ctx, db, job.ID, "base question")
	for i := 0; i < 5; i++ {
		testutil.SeedVariation(t, ctx, db, item.ID, "variation")
	}

	targets, err := repo.SelectTargets(ctx, nil, TargetFilter{Limit: 3})
	if err != nil {
		t.Fatalf("SelectTargets: %v", err)
	}
	if len(targets) != 3 {
		t.Fatalf("targets = %d rows, want 3", len(targets))
	}
}
