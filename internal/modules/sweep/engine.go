package sweep

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/medforge/medforge-backend/internal/data/repos/content"
	"github.com/medforge/medforge-backend/internal/data/repos/sweeps"
	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/modules/taxonomy"
	"github.com/medforge/medforge-backend/internal/platform/logger"
	"github.com/medforge/medforge-backend/internal/platform/openai"
)

// Engine re-evaluates published variations and applies corrective action:
// nothing, a light polish, or a full rewrite promoted as a new version.
type Engine struct {
	db              *gorm.DB
	log             *logger.Logger
	ai              openai.Client
	catalog         *taxonomy.Catalog
	variations      content.VariationRepo
	classifications content.ClassificationRepo
	results         sweeps.SweepResultRepo
	defaultEval     string
	defaultFix      string
}

func NewEngine(
	db *gorm.DB,
	baseLog *logger.Logger,
	ai openai.Client,
	catalog *taxonomy.Catalog,
	variations content.VariationRepo,
	classifications content.ClassificationRepo,
	results sweeps.SweepResultRepo,
	defaultEvalModel, defaultFixModel string,
) *Engine {
	return &Engine{
		db:              db,
		log:             baseLog.With("service", "QualitySweep"),
		ai:              ai,
		catalog:         catalog,
		variations:      variations,
		classifications: classifications,
		results:         results,
		defaultEval:     defaultEvalModel,
		defaultFix:      defaultFixModel,
	}
}

// ProcessVariation evaluates one variation and persists exactly one
// SweepResult. Evaluation, correction, and versioning failures are absorbed
// into the result; only the final persistence error propagates.
func (e *Engine) ProcessVariation(ctx context.Context, run *types.SweepRun, variation *types.Variation) (*types.SweepResult, error) {
	ctx, span := otel.Tracer("sweep").Start(ctx, "sweep.ProcessVariation")
	span.SetAttributes(attribute.String("variation.id", variation.ID.String()))
	defer span.End()

	result := &types.SweepResult{
		SweepRunID:  run.ID,
		VariationID: variation.ID,
		Status:      types.SweepResultAnalyzed,
	}

	e.process(ctx, run, variation, result)

	if err := e.results.Create(ctx, nil, result); err != nil {
		return nil, fmt.Errorf("persist sweep result: %w", err)
	}
	return result, nil
}

func (e *Engine) process(ctx context.Context, run *types.SweepRun, variation *types.Variation, result *types.SweepResult) {
	classification, err := e.classifications.GetByBaseItemID(ctx, nil, variation.BaseItemID)
	if err != nil {
		result.Confidence = 0
		result.Diagnosis = fmt.Sprintf("load classification: %v", err)
		return
	}

	exercise := canonicalExercise(variation, classification)

	evalClient := openai.WithModel(e.ai, firstNonEmpty(run.EvalModel, e.defaultEval))
	evalObj, evalUsage, err := evalClient.GenerateJSON(ctx,
		evaluationSystemPrompt, exercise, "variation_evaluation", evaluationSchema())
	result.EvalPromptTokens = evalUsage.PromptTokens
	result.EvalCompletionTokens = evalUsage.CompletionTokens
	result.LatencyMS = evalUsage.Latency.Milliseconds()
	if err != nil {
		result.Confidence = 0
		result.Diagnosis = fmt.Sprintf("evaluation call failed: %v", err)
		return
	}

	ev := coerceEvaluation(evalObj)
	if raw, mErr := json.Marshal(ev); mErr == nil {
		result.Evaluation = datatypes.JSON(raw)
	}
	result.Confidence = ConfidenceScore(ev)

	action := Decide(ev)
	if action == ActionNoChange {
		return
	}

	fixClient := openai.WithModel(e.ai, firstNonEmpty(run.FixModel, e.defaultFix))
	corrObj, fixUsage, err := fixClient.GenerateJSON(ctx,
		correctionSystemPrompt(action), exercise, "variation_correction", correctionSchema())
	result.FixPromptTokens = fixUsage.PromptTokens
	result.FixCompletionTokens = fixUsage.CompletionTokens
	result.LatencyMS += fixUsage.Latency.Milliseconds()
	if err != nil {
		result.Diagnosis = fmt.Sprintf("%s correction call failed: %v", action, err)
		return
	}

	correction, err := coerceCorrection(corrObj)
	if err != nil {
		result.Diagnosis = fmt.Sprintf("%s correction unparsable: %v", action, err)
		return
	}
	if raw, mErr := json.Marshal(correction); mErr == nil {
		result.Correction = datatypes.JSON(raw)
	}
	result.Status = types.SweepResultCorrected

	next, err := e.promote(ctx, variation, correction)
	if err != nil {
		result.Diagnosis = fmt.Sprintf("version promotion failed: %v", err)
		return
	}
	result.Status = types.SweepResultApplied
	result.NewVariationID = &next.ID

	e.reclassify(ctx, classification, correction, result)
}

// promote creates version N+1 in the lineage and hides version N, atomically.
func (e *Engine) promote(ctx context.Context, prior *types.Variation, correction Correction) (*types.Variation, error) {
	next := &types.Variation{
		BaseItemID:      prior.BaseItemID,
		ParentVersionID: prior.ParentVersionID,
		Version:         prior.Version + 1,
		IsVisible:       true,
		Text:            firstNonEmpty(correction.Statement, prior.Text),
		Explanation:     firstNonEmpty(correction.Explanation, prior.Explanation),
		Difficulty:      prior.Difficulty,
	}

	byLetter := map[string]CorrectionAlternative{}
	for _, alt := range correction.Alternatives {
		byLetter[alt.Letter] = alt
	}
	for _, prev := range prior.Alternatives {
		letter := letterFor(prev.Position)
		alt := types.Alternative{
			Text:        prev.Text,
			Explanation: prev.Explanation,
			Position:    prev.Position,
			// Correctness comes strictly from the stated correct letter.
			IsCorrect: letter == correction.CorrectLetter,
		}
		if corr, ok := byLetter[letter]; ok {
			if corr.Text != "" {
				alt.Text = corr.Text
			}
			if corr.Explanation != "" {
				alt.Explanation = corr.Explanation
			}
		}
		next.Alternatives = append(next.Alternatives, alt)
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return e.variations.Supersede(ctx, tx, prior.ID, next)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// reclassify applies a proposed taxonomy move only when the specialty
// validates against the catalog; the topic is kept unless it validates too.
func (e *Engine) reclassify(ctx context.Context, classification *types.Classification, correction Correction, result *types.SweepResult) {
	if correction.NewSpecialty == "" || classification == nil {
		return
	}
	entry, err := e.catalog.FindSpecialty(ctx, correction.NewSpecialty)
	if err != nil {
		e.log.Warn("reclassification lookup failed", "error", err)
		return
	}
	if entry == nil {
		e.log.Debug("proposed specialty not in catalog, keeping previous",
			"proposed", correction.NewSpecialty)
		return
	}

	newTopic := ""
	if correction.NewTopic != "" {
		newTopic = taxonomy.FindTopicIn(entry.Topics, correction.NewTopic)
	}
	if entry.Name == classification.Specialty && (newTopic == "" || newTopic == classification.Topic) {
		return
	}

	if err := e.classifications.UpdateTaxonomy(ctx, nil, classification.BaseItemID, entry.Name, newTopic); err != nil {
		e.log.Warn("reclassification update failed", "error", err)
		return
	}
	result.PrevSpecialty = classification.Specialty
	result.NewSpecialty = entry.Name
	result.PrevTopic = classification.Topic
	if newTopic != "" {
		result.NewTopic = newTopic
	} else {
		result.NewTopic = classification.Topic
	}
}

const evaluationSystemPrompt = "You audit multiple-choice medical exam questions. " +
	"Score clinical coherence, guideline alignment, safety risk, pedagogical clarity " +
	"and structural quality from 0 (perfect) to 3 (critical), assign a global severity " +
	"0..3 and recommend none, polish or rewrite."

func correctionSystemPrompt(action CorrectionAction) string {
	if action == ActionPolish {
		return "You lightly edit a multiple-choice medical exam question: fix wording, " +
			"clarity and minor clinical imprecision without changing its substance. " +
			"State the correct letter explicitly."
	}
	return "You fully rewrite a defective multiple-choice medical exam question: correct " +
		"the clinical content, the alternatives and the explanations. State the correct " +
		"letter explicitly, and propose a new specialty/topic only if the current one is wrong."
}

// canonicalExercise renders the variation in the shape the evaluator expects:
// taxonomy, statement, lettered alternatives, the correct letter, explanations.
func canonicalExercise(v *types.Variation, c *types.Classification) string {
	var b strings.Builder
	if c != nil {
		fmt.Fprintf(&b, "Specialty: %s\nTopic: %s\n", c.Specialty, c.Topic)
	}
	fmt.Fprintf(&b, "Difficulty: %s\n\nStatement:\n%s\n\nAlternatives:\n", v.Difficulty, v.Text)
	correctLetter := ""
	for _, alt := range v.Alternatives {
		letter := letterFor(alt.Position)
		fmt.Fprintf(&b, "%s) %s\n", letter, alt.Text)
		if alt.IsCorrect {
			correctLetter = letter
		}
	}
	fmt.Fprintf(&b, "\nCorrect answer: %s\n\nPer-alternative explanations:\n", correctLetter)
	for _, alt := range v.Alternatives {
		if alt.Explanation != "" {
			fmt.Fprintf(&b, "%s) %s\n", letterFor(alt.Position), alt.Explanation)
		}
	}
	if v.Explanation != "" {
		fmt.Fprintf(&b, "\nGlobal explanation:\n%s\n", v.Explanation)
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
