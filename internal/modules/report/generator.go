package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/medforge/medforge-backend/internal/data/repos/content"
	"github.com/medforge/medforge-backend/internal/data/repos/sweeps"
	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/modules/sweep"
	"github.com/medforge/medforge-backend/internal/platform/logger"
	"github.com/medforge/medforge-backend/internal/platform/openai"
)

const (
	maxSevereCases       = 10
	maxReclassifications = 20
)

type Stats struct {
	TotalVariations       int     `json:"total_variations"`
	CorrectedCount        int     `json:"corrected_count"`
	CorrectionRate        float64 `json:"correction_rate"`
	AverageConfidence     float64 `json:"average_confidence"`
	TotalPromptTokens     int     `json:"total_prompt_tokens"`
	TotalCompletionTokens int     `json:"total_completion_tokens"`
	EstimatedCostUSD      float64 `json:"estimated_cost_usd"`
}

type SevereCase struct {
	VariationID   uuid.UUID `json:"variation_id"`
	Severity      int       `json:"severity"`
	OriginalText  string    `json:"original_text"`
	CorrectedText string    `json:"corrected_text,omitempty"`
}

type Reclassification struct {
	VariationID   uuid.UUID `json:"variation_id"`
	FromSpecialty string    `json:"from_specialty"`
	ToSpecialty   string    `json:"to_specialty"`
	FromTopic     string    `json:"from_topic"`
	ToTopic       string    `json:"to_topic"`
}

type Narrative struct {
	ExecutiveSummary   string   `json:"executive_summary"`
	Recommendations    []string `json:"recommendations"`
	SevereCaseAnalysis string   `json:"severe_case_analysis"`
	Fallback           bool     `json:"fallback"`
}

type Report struct {
	RunID             uuid.UUID          `json:"run_id"`
	RunName           string             `json:"run_name"`
	Ordinal           int                `json:"ordinal"`
	Stats             Stats              `json:"stats"`
	SevereCases       []SevereCase       `json:"severe_cases"`
	Reclassifications []Reclassification `json:"reclassifications"`
	Narrative         Narrative          `json:"narrative"`
	GeneratedAt       time.Time          `json:"generated_at"`
}

// Generator aggregates a completed run into statistics plus a narrative
// summary, caching the result on the run row.
type Generator struct {
	log        *logger.Logger
	ai         openai.Client
	runs       sweeps.SweepRunRepo
	results    sweeps.SweepResultRepo
	variations content.VariationRepo
	pricing    Pricing
	model      string
}

func NewGenerator(
	ai openai.Client,
	runs sweeps.SweepRunRepo,
	results sweeps.SweepResultRepo,
	variations content.VariationRepo,
	pricing Pricing,
	narrativeModel string,
	baseLog *logger.Logger,
) *Generator {
	return &Generator{
		log:        baseLog.With("service", "ReportGenerator"),
		ai:         ai,
		runs:       runs,
		results:    results,
		variations: variations,
		pricing:    pricing,
		model:      narrativeModel,
	}
}

// Generate returns the run's report, computing and caching it when absent or
// when regenerate is set. The cached copy is returned verbatim.
func (g *Generator) Generate(ctx context.Context, runID uuid.UUID, regenerate bool) (*Report, error) {
	run, err := g.runs.GetByID(ctx, nil, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("sweep run %s not found", runID)
	}

	if !regenerate && len(run.Report) > 0 {
		var cached Report
		if err := json.Unmarshal(run.Report, &cached); err == nil {
			return &cached, nil
		}
		g.log.Warn("cached report unparsable, recomputing", "run_id", runID)
	}

	rep, err := g.compute(ctx, run)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	if err := g.runs.SaveReport(ctx, nil, run.ID, datatypes.JSON(raw)); err != nil {
		return nil, fmt.Errorf("cache report: %w", err)
	}
	return rep, nil
}

func (g *Generator) compute(ctx context.Context, run *types.SweepRun) (*Report, error) {
	ordinal, err := g.runs.Ordinal(ctx, nil, run)
	if err != nil {
		return nil, fmt.Errorf("compute run ordinal: %w", err)
	}

	results, err := g.results.ListByRun(ctx, nil, run.ID)
	if err != nil {
		return nil, fmt.Errorf("load sweep results: %w", err)
	}

	rep := &Report{
		RunID:       run.ID,
		RunName:     run.Name,
		Ordinal:     ordinal,
		GeneratedAt: time.Now().UTC(),
	}

	var confidenceSum float64
	for _, res := range results {
		rep.Stats.TotalVariations++
		confidenceSum += res.Confidence
		rep.Stats.TotalPromptTokens += res.EvalPromptTokens + res.FixPromptTokens
		rep.Stats.TotalCompletionTokens += res.EvalCompletionTokens + res.FixCompletionTokens
		rep.Stats.EstimatedCostUSD += g.pricing.Cost(run.EvalModel, res.EvalPromptTokens, res.EvalCompletionTokens)
		rep.Stats.EstimatedCostUSD += g.pricing.Cost(run.FixModel, res.FixPromptTokens, res.FixCompletionTokens)

		if res.Status == types.SweepResultCorrected || res.Status == types.SweepResultApplied {
			rep.Stats.CorrectedCount++
		}

		if len(rep.SevereCases) < maxSevereCases {
			if severe, ok := g.severeCase(ctx, res); ok {
				rep.SevereCases = append(rep.SevereCases, severe)
			}
		}
		if len(rep.Reclassifications) < maxReclassifications && res.NewSpecialty != "" {
			rep.Reclassifications = append(rep.Reclassifications, Reclassification{
				VariationID:   res.VariationID,
				FromSpecialty: res.PrevSpecialty,
				ToSpecialty:   res.NewSpecialty,
				FromTopic:     res.PrevTopic,
				ToTopic:       res.NewTopic,
			})
		}
	}
	if rep.Stats.TotalVariations > 0 {
		rep.Stats.CorrectionRate = float64(rep.Stats.CorrectedCount) / float64(rep.Stats.TotalVariations)
		rep.Stats.AverageConfidence = confidenceSum / float64(rep.Stats.TotalVariations)
	}

	rep.Narrative = g.narrative(ctx, rep)
	return rep, nil
}

func (g *Generator) severeCase(ctx context.Context, res *types.SweepResult) (SevereCase, bool) {
	if len(res.Evaluation) == 0 {
		return SevereCase{}, false
	}
	var ev sweep.Evaluation
	if err := json.Unmarshal(res.Evaluation, &ev); err != nil || ev.Severity < 3 {
		return SevereCase{}, false
	}
	severe := SevereCase{VariationID: res.VariationID, Severity: ev.Severity}
	if original, err := g.variations.GetByID(ctx, nil, res.VariationID); err == nil && original != nil {
		severe.OriginalText = original.Text
	}
	if res.NewVariationID != nil {
		if corrected, err := g.variations.GetByID(ctx, nil, *res.NewVariationID); err == nil && corrected != nil {
			severe.CorrectedText = corrected.Text
		}
	}
	return severe, true
}

// narrative asks the strong model tier for an executive summary over the
// aggregated data; a deterministic template takes over on any failure so the
// report is never left incomplete.
func (g *Generator) narrative(ctx context.Context, rep *Report) Narrative {
	aggregates, err := json.Marshal(map[string]any{
		"ordinal":           rep.Ordinal,
		"stats":             rep.Stats,
		"severe_cases":      rep.SevereCases,
		"reclassifications": rep.Reclassifications,
	})
	if err == nil {
		client := openai.WithModel(g.ai, g.model)
		obj, _, genErr := client.GenerateJSON(ctx,
			"You summarize quality-sweep outcomes for medical exam content. "+
				"Write an executive summary, 3-5 recommendations, and an analysis of the severe cases.",
			string(aggregates), "sweep_report_narrative", narrativeSchema())
		if genErr == nil {
			if n, ok := coerceNarrative(obj); ok {
				return n
			}
			g.log.Warn("narrative response unparsable, using templated fallback", "run_id", rep.RunID)
		} else {
			g.log.Warn("narrative generation failed, using templated fallback",
				"run_id", rep.RunID, "error", genErr)
		}
	}
	return templatedNarrative(rep)
}

func coerceNarrative(obj map[string]any) (Narrative, bool) {
	summary, _ := obj["executive_summary"].(string)
	analysis, _ := obj["severe_case_analysis"].(string)
	var recs []string
	if raw, ok := obj["recommendations"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok && s != "" {
				recs = append(recs, s)
			}
		}
	}
	if summary == "" || len(recs) < 3 {
		return Narrative{}, false
	}
	if len(recs) > 5 {
		recs = recs[:5]
	}
	return Narrative{ExecutiveSummary: summary, Recommendations: recs, SevereCaseAnalysis: analysis}, true
}

func templatedNarrative(rep *Report) Narrative {
	summary := fmt.Sprintf(
		"Sweep run #%d processed %d variations: %d corrected (%.1f%%), average confidence %.2f, "+
			"%d severe cases, %d reclassifications, estimated cost $%.2f.",
		rep.Ordinal,
		rep.Stats.TotalVariations,
		rep.Stats.CorrectedCount,
		rep.Stats.CorrectionRate*100,
		rep.Stats.AverageConfidence,
		len(rep.SevereCases),
		len(rep.Reclassifications),
		rep.Stats.EstimatedCostUSD,
	)
	recs := []string{
		"Review the corrected variations before republishing.",
		"Prioritize manual review of the listed severe cases.",
		"Schedule a follow-up sweep for low-confidence variations.",
	}
	analysis := "Narrative generation was unavailable; see severe_cases for the raw list."
	if len(rep.SevereCases) == 0 {
		analysis = "No severe cases were found in this run."
	}
	return Narrative{
		ExecutiveSummary:   summary,
		Recommendations:    recs,
		SevereCaseAnalysis: analysis,
		Fallback:           true,
	}
}

func narrativeSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"executive_summary", "recommendations", "severe_case_analysis"},
		"properties": map[string]any{
			"executive_summary": map[string]any{"type": "string"},
			"recommendations": map[string]any{
				"type":     "array",
				"minItems": 3,
				"maxItems": 5,
				"items":    map[string]any{"type": "string"},
			},
			"severe_case_analysis": map[string]any{"type": "string"},
		},
	}
}
