package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/medforge/medforge-backend/internal/data/repos/content"
	"github.com/medforge/medforge-backend/internal/data/repos/sweeps"
	"github.com/medforge/medforge-backend/internal/data/repos/testutil"
	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/modules/sweep"
	"github.com/medforge/medforge-backend/internal/platform/openai"
)

type narrativeClient struct {
	calls int
	err   error
}

func (c *narrativeClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, openai.Usage, error) {
	c.calls++
	if c.err != nil {
		return nil, openai.Usage{}, c.err
	}
	return map[string]any{
		"executive_summary": "Resumen ejecutivo del barrido.",
		"recommendations": []any{
			"Revisar los casos severos.",
			"Reentrenar al equipo editorial.",
			"Planificar un barrido de seguimiento.",
		},
		"severe_case_analysis": "Un caso severo de seguridad clínica.",
	}, openai.Usage{PromptTokens: 50, CompletionTokens: 80}, nil
}

func (c *narrativeClient) GenerateText(ctx context.Context, system, user string) (string, openai.Usage, error) {
	return "", openai.Usage{}, errors.New("unused")
}

func testPricing() Pricing {
	return Pricing{
		Tiers: map[string]TierPricing{
			"eval-model": {PromptPerMTok: 1, CompletionPerMTok: 2},
			"fix-model":  {PromptPerMTok: 10, CompletionPerMTok: 20},
		},
		DefaultTier: TierPricing{PromptPerMTok: 1, CompletionPerMTok: 2},
	}
}

type reportHarness struct {
	db        *gorm.DB
	generator *Generator
	runs      sweeps.SweepRunRepo
	run       *types.SweepRun
	variation *types.Variation
}

func newReportHarness(t *testing.T, ai openai.Client) reportHarness {
	t.Helper()
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	job := testutil.SeedIngestJob(t, ctx, db, 1)
	item := testutil.SeedBaseItem(t, ctx, db, job.ID, "pregunta base")
	variation := testutil.SeedVariation(t, ctx, db, item.ID, "enunciado original")
	run := testutil.SeedSweepRun(t, ctx, db, types.SweepRunCompleted)

	runs := sweeps.NewSweepRunRepo(db, log)
	results := sweeps.NewSweepResultRepo(db, log)
	variations := content.NewVariationRepo(db, log)

	run.EvalModel = "eval-model"
	run.FixModel = "fix-model"
	if err := db.Model(&types.SweepRun{}).Where("id = ?", run.ID).
		Updates(map[string]interface{}{"eval_model": "eval-model", "fix_model": "fix-model"}).Error; err != nil {
		t.Fatalf("set models: %v", err)
	}

	return reportHarness{
		db:        db,
		generator: NewGenerator(ai, runs, results, variations, testPricing(), "fix-model", log),
		runs:      runs,
		run:       run,
		variation: variation,
	}
}

func (h reportHarness) seedResult(t *testing.T, confidence float64, status types.SweepResultStatus, severity int, newSpecialty string) *types.SweepResult {
	t.Helper()
	ev := sweep.Evaluation{Severity: severity, Recommendation: "rewrite"}
	ev.Scores.SafetyRisk = severity
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal evaluation: %v", err)
	}
	res := &types.SweepResult{
		ID:                   uuid.New(),
		SweepRunID:           h.run.ID,
		VariationID:          h.variation.ID,
		Evaluation:           datatypes.JSON(raw),
		Confidence:           confidence,
		Status:               status,
		EvalPromptTokens:     1000,
		EvalCompletionTokens: 500,
		FixPromptTokens:      2000,
		FixCompletionTokens:  1000,
	}
	if newSpecialty != "" {
		res.PrevSpecialty = "Cardiología"
		res.NewSpecialty = newSpecialty
		res.PrevTopic = "Arritmias"
		res.NewTopic = "ACV"
	}
	if err := h.db.Create(res).Error; err != nil {
		t.Fatalf("seed result: %v", err)
	}
	return res
}

func TestGenerateAggregatesStats(t *testing.T) {
	ctx := context.Background()
	h := newReportHarness(t, &narrativeClient{})
	h.seedResult(t, 1.0, types.SweepResultAnalyzed, 0, "")
	h.seedResult(t, 0.0, types.SweepResultApplied, 3, "Neurología")

	rep, err := h.generator.Generate(ctx, h.run.ID, false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if rep.Ordinal != 1 {
		t.Fatalf("ordinal = %d, want 1", rep.Ordinal)
	}
	if rep.Stats.TotalVariations != 2 || rep.Stats.CorrectedCount != 1 {
		t.Fatalf("stats = %+v", rep.Stats)
	}
	if rep.Stats.CorrectionRate != 0.5 {
		t.Fatalf("correction rate = %v, want 0.5", rep.Stats.CorrectionRate)
	}
	if rep.Stats.AverageConfidence != 0.5 {
		t.Fatalf("average confidence = %v, want 0.5", rep.Stats.AverageConfidence)
	}
	if rep.Stats.TotalPromptTokens != 6000 || rep.Stats.TotalCompletionTokens != 3000 {
		t.Fatalf("token totals = %d/%d", rep.Stats.TotalPromptTokens, rep.Stats.TotalCompletionTokens)
	}
	// Per result: eval 1000/500 at 1/2 $ per MTok plus fix 2000/1000 at
	// 10/20 $ per MTok = 0.002 + 0.04 = 0.042; two results double it.
	if diff := rep.Stats.EstimatedCostUSD - 0.084; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("estimated cost = %v, want 0.084", rep.Stats.EstimatedCostUSD)
	}

	if len(rep.SevereCases) != 1 {
		t.Fatalf("severe cases = %d, want the severity-3 result only", len(rep.SevereCases))
	}
	if rep.SevereCases[0].OriginalText != "enunciado original" {
		t.Fatalf("severe case original text = %q", rep.SevereCases[0].OriginalText)
	}
	if len(rep.Reclassifications) != 1 || rep.Reclassifications[0].ToSpecialty != "Neurología" {
		t.Fatalf("reclassifications = %+v", rep.Reclassifications)
	}
	if rep.Narrative.Fallback {
		t.Fatalf("narrative fallback flagged despite a working model")
	}
}

func TestGenerateCachesReport(t *testing.T) {
	ctx := context.Background()
	ai := &narrativeClient{}
	h := newReportHarness(t, ai)
	h.seedResult(t, 0.7, types.SweepResultAnalyzed, 0, "")

	first, err := h.generator.Generate(ctx, h.run.ID, false)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := h.generator.Generate(ctx, h.run.ID, false)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}

	if ai.calls != 1 {
		t.Fatalf("narrative calls = %d, the cached report must be served without recomputing", ai.calls)
	}
	if !first.GeneratedAt.Equal(second.GeneratedAt) {
		t.Fatalf("cached report differs from the original")
	}

	third, err := h.generator.Generate(ctx, h.run.ID, true)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if ai.calls != 2 {
		t.Fatalf("narrative calls = %d, regenerate must recompute", ai.calls)
	}
	if third.Stats.TotalVariations != 1 {
		t.Fatalf("regenerated stats = %+v", third.Stats)
	}
}

func TestGenerateNarrativeFallback(t *testing.T) {
	ctx := context.Background()
	h := newReportHarness(t, &narrativeClient{err: errors.New("upstream 500")})
	h.seedResult(t, 0.3, types.SweepResultApplied, 2, "")

	rep, err := h.generator.Generate(ctx, h.run.ID, false)
	if err != nil {
		t.Fatalf("Generate must fall back to the templated narrative, got %v", err)
	}
	if !rep.Narrative.Fallback {
		t.Fatalf("fallback narrative not flagged")
	}
	if rep.Narrative.ExecutiveSummary == "" {
		t.Fatalf("templated narrative must include an executive summary")
	}
	if len(rep.Narrative.Recommendations) < 3 {
		t.Fatalf("templated narrative must include recommendations")
	}
}

func TestGenerateUnknownRun(t *testing.T) {
	ctx := context.Background()
	h := newReportHarness(t, &narrativeClient{})

	if _, err := h.generator.Generate(ctx, uuid.New(), false); err == nil {
		t.Fatalf("unknown run must error")
	}
}

func TestPricingCost(t *testing.T) {
	p := testPricing()
	if got := p.Cost("fix-model", 1_000_000, 0); got != 10 {
		t.Fatalf("Cost = %v, want 10", got)
	}
	if got := p.Cost("unknown-model", 0, 1_000_000); got != 2 {
		t.Fatalf("unknown model must use the default tier, got %v", got)
	}
}
