package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/medforge/medforge-backend/internal/data/repos/catalog"
	"github.com/medforge/medforge-backend/internal/data/repos/content"
	"github.com/medforge/medforge-backend/internal/data/repos/sweeps"
	"github.com/medforge/medforge-backend/internal/data/repos/testutil"
	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/modules/taxonomy"
	"github.com/medforge/medforge-backend/internal/platform/openai"
)

// cleanEvalClient scores every variation as perfect; onEval runs after each
// evaluation call.
type cleanEvalClient struct {
	mu     sync.Mutex
	evals  int
	onEval func(n int)
}

func (c *cleanEvalClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, openai.Usage, error) {
	if schemaName != "variation_evaluation" {
		return nil, openai.Usage{}, errors.New("unexpected schema " + schemaName)
	}
	c.mu.Lock()
	c.evals++
	n := c.evals
	c.mu.Unlock()
	if c.onEval != nil {
		c.onEval(n)
	}
	return evaluationResponse(0, 0, "none"), openai.Usage{}, nil
}

func (c *cleanEvalClient) GenerateText(ctx context.Context, system, user string) (string, openai.Usage, error) {
	return "", openai.Usage{}, errors.New("unused")
}

type runnerHarness struct {
	db      *gorm.DB
	runner  *Runner
	runs    sweeps.SweepRunRepo
	results sweeps.SweepResultRepo
}

func newRunnerHarness(t *testing.T, ai openai.Client, targetCount int) (runnerHarness, *types.SweepRun) {
	t.Helper()
	ctx := context.Background()
	db := testutil.DB(t)
	testutil.SeedCatalog(t, ctx, db)
	log := testutil.Logger(t)

	job := testutil.SeedIngestJob(t, ctx, db, targetCount)
	item := testutil.SeedBaseItem(t, ctx, db, job.ID, "pregunta base")
	testutil.SeedClassification(t, ctx, db, item.ID, "Cardiología", "Arritmias")
	for i := 0; i < targetCount; i++ {
		testutil.SeedVariation(t, ctx, db, item.ID, "variación")
	}
	run := testutil.SeedSweepRun(t, ctx, db, types.SweepRunRunning)

	variations := content.NewVariationRepo(db, log)
	classifications := content.NewClassificationRepo(db, log)
	results := sweeps.NewSweepResultRepo(db, log)
	runs := sweeps.NewSweepRunRepo(db, log)
	cat := taxonomy.NewCatalog(catalog.NewTaxonomyRepo(db, log), log)

	engine := NewEngine(db, log, ai, cat, variations, classifications, results, "eval-model", "fix-model")
	return runnerHarness{
		db:      db,
		runner:  NewRunner(engine, runs, variations, log),
		runs:    runs,
		results: results,
	}, run
}

func TestExecuteRunProcessesEveryTarget(t *testing.T) {
	ctx := context.Background()
	h, run := newRunnerHarness(t, &cleanEvalClient{}, 5)

	if err := h.runner.ExecuteRun(ctx, run); err != nil {
		t.Fatalf("ExecuteRun: %v", err)
	}

	status, err := h.runs.StatusOf(ctx, nil, run.ID)
	if err != nil {
		t.Fatalf("StatusOf: %v", err)
	}
	if status != types.SweepRunCompleted {
		t.Fatalf("run status = %s, want COMPLETED", status)
	}

	count, err := h.results.CountByRun(ctx, nil, run.ID)
	if err != nil {
		t.Fatalf("CountByRun: %v", err)
	}
	if count != 5 {
		t.Fatalf("results = %d, want one per selected variation", count)
	}
}

func TestExecuteRunHonorsBatchSize(t *testing.T) {
	ctx := context.Background()
	h, run := newRunnerHarness(t, &cleanEvalClient{}, 5)
	if err := h.db.Model(&types.SweepRun{}).Where("id = ?", run.ID).Update("batch_size", 2).Error; err != nil {
		t.Fatalf("set batch size: %v", err)
	}
	run.BatchSize = 2

	if err := h.runner.ExecuteRun(ctx, run); err != nil {
		t.Fatalf("ExecuteRun: %v", err)
	}

	count, err := h.results.CountByRun(ctx, nil, run.ID)
	if err != nil {
		t.Fatalf("CountByRun: %v", err)
	}
	if count != 2 {
		t.Fatalf("results = %d, want the batch-size cap of 2", count)
	}
}

func TestExecuteRunStopsAtCancellation(t *testing.T) {
	ctx := context.Background()
	client := &cleanEvalClient{}
	h, run := newRunnerHarness(t, client, 4)
	// Concurrency 1 means one variation per group; cancel after the first
	// evaluation so the next group boundary sees the FAILED status.
	if err := h.db.Model(&types.SweepRun{}).Where("id = ?", run.ID).Update("concurrency", 1).Error; err != nil {
		t.Fatalf("set concurrency: %v", err)
	}
	run.Concurrency = 1
	client.onEval = func(n int) {
		if n == 1 {
			if err := h.runs.Cancel(ctx, nil, run.ID); err != nil {
				t.Errorf("Cancel: %v", err)
			}
		}
	}

	if err := h.runner.ExecuteRun(ctx, run); err != nil {
		t.Fatalf("ExecuteRun: %v", err)
	}

	status, err := h.runs.StatusOf(ctx, nil, run.ID)
	if err != nil {
		t.Fatalf("StatusOf: %v", err)
	}
	if status != types.SweepRunFailed {
		t.Fatalf("run status = %s, want FAILED after cancellation", status)
	}

	count, err := h.results.CountByRun(ctx, nil, run.ID)
	if err != nil {
		t.Fatalf("CountByRun: %v", err)
	}
	// The in-flight group finishes; later groups never start.
	if count != 1 {
		t.Fatalf("results = %d, want only the committed group", count)
	}
}

func TestExecuteRunNoTargets(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	run := testutil.SeedSweepRun(t, ctx, db, types.SweepRunRunning)

	variations := content.NewVariationRepo(db, log)
	classifications := content.NewClassificationRepo(db, log)
	results := sweeps.NewSweepResultRepo(db, log)
	runs := sweeps.NewSweepRunRepo(db, log)
	cat := taxonomy.NewCatalog(catalog.NewTaxonomyRepo(db, log), log)
	engine := NewEngine(db, log, &cleanEvalClient{}, cat, variations, classifications, results, "e", "f")
	runner := NewRunner(engine, runs, variations, log)

	if err := runner.ExecuteRun(ctx, run); err != nil {
		t.Fatalf("ExecuteRun: %v", err)
	}
	status, err := runs.StatusOf(ctx, nil, run.ID)
	if err != nil {
		t.Fatalf("StatusOf: %v", err)
	}
	if status != types.SweepRunCompleted {
		t.Fatalf("run status = %s, an empty selection still completes", status)
	}
}
