package generate

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/platform/logger"
	"github.com/medforge/medforge-backend/internal/platform/openai"
)

const alternativeCount = 4

// Generator produces graded variations of a base question. The 4-alternatives
// / 1-correct contract is enforced here, not trusted from the model.
type Generator struct {
	log *logger.Logger
	ai  openai.Client
}

func NewGenerator(ai openai.Client, baseLog *logger.Logger) *Generator {
	return &Generator{log: baseLog.With("service", "VariationGenerator"), ai: ai}
}

// Generate returns an unsaved Variation draft for the given base text. A
// model failure or contract violation yields the deterministic placeholder
// draft instead of an error; drafts are never silently dropped.
func (g *Generator) Generate(ctx context.Context, baseText string, variationIndex int) *types.Variation {
	draft, err := g.invoke(ctx, baseText, variationIndex)
	if err != nil {
		g.log.Warn("variation generation failed, using placeholder draft",
			"variation_index", variationIndex, "error", err)
		draft = fallbackDraft(baseText)
	}
	shuffleAlternatives(draft)
	return draft
}

func (g *Generator) invoke(ctx context.Context, baseText string, variationIndex int) (*types.Variation, error) {
	system := "You write multiple-choice variations of medical exam questions. " +
		"Produce exactly four alternatives with exactly one correct answer, " +
		"each with its own explanation, plus a global explanation."
	user := fmt.Sprintf("Base question:\n%s\n\nWrite variation #%d at MEDIUM difficulty.",
		baseText, variationIndex+1)

	obj, _, err := g.ai.GenerateJSON(ctx, system, user, "question_variation", variationSchema())
	if err != nil {
		return nil, err
	}
	return coerceVariation(obj)
}

func coerceVariation(obj map[string]any) (*types.Variation, error) {
	text := strings.TrimSpace(stringValue(obj["question_text"]))
	if text == "" {
		return nil, fmt.Errorf("variation output missing question_text")
	}
	rawAlts, ok := obj["alternatives"].([]any)
	if !ok || len(rawAlts) != alternativeCount {
		return nil, fmt.Errorf("variation output has %d alternatives, want %d", len(rawAlts), alternativeCount)
	}

	v := &types.Variation{
		Text:        text,
		Explanation: strings.TrimSpace(stringValue(obj["explanation"])),
		Difficulty:  types.DifficultyMedium,
		IsVisible:   true,
		Version:     1,
	}
	correct := 0
	for i, raw := range rawAlts {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("alternative %d is not an object", i)
		}
		altText := strings.TrimSpace(stringValue(m["text"]))
		if altText == "" {
			return nil, fmt.Errorf("alternative %d has empty text", i)
		}
		isCorrect, _ := m["is_correct"].(bool)
		if isCorrect {
			correct++
		}
		v.Alternatives = append(v.Alternatives, types.Alternative{
			Text:        altText,
			IsCorrect:   isCorrect,
			Explanation: strings.TrimSpace(stringValue(m["explanation"])),
			Position:    i,
		})
	}
	if correct != 1 {
		return nil, fmt.Errorf("variation output has %d correct alternatives, want 1", correct)
	}
	return v, nil
}

// fallbackDraft is the deterministic substitute for a failed generation:
// placeholder alternatives explicitly flagged for manual completion.
func fallbackDraft(baseText string) *types.Variation {
	v := &types.Variation{
		Text:        baseText,
		Explanation: "PENDIENTE: generación automática falló; requiere redacción manual.",
		Difficulty:  types.DifficultyMedium,
		IsVisible:   true,
		Version:     1,
	}
	for i := 0; i < alternativeCount; i++ {
		v.Alternatives = append(v.Alternatives, types.Alternative{
			Text:        fmt.Sprintf("PENDIENTE: completar alternativa %d manualmente", i+1),
			IsCorrect:   i == 0,
			Explanation: "Marcador de posición; requiere revisión manual.",
			Position:    i,
		})
	}
	return v
}

// shuffleAlternatives randomizes display order so the correct answer's
// position is not predictable.
func shuffleAlternatives(v *types.Variation) {
	rand.Shuffle(len(v.Alternatives), func(i, j int) {
		v.Alternatives[i], v.Alternatives[j] = v.Alternatives[j], v.Alternatives[i]
	})
	for i := range v.Alternatives {
		v.Alternatives[i].Position = i
	}
}

func variationSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"question_text", "explanation", "alternatives"},
		"properties": map[string]any{
			"question_text": map[string]any{"type": "string"},
			"explanation":   map[string]any{"type": "string"},
			"alternatives": map[string]any{
				"type":     "array",
				"minItems": alternativeCount,
				"maxItems": alternativeCount,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"text", "is_correct", "explanation"},
					"properties": map[string]any{
						"text":        map[string]any{"type": "string"},
						"is_correct":  map[string]any{"type": "boolean"},
						"explanation": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
