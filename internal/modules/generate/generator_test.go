package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/medforge/medforge-backend/internal/data/repos/testutil"
	"github.com/medforge/medforge-backend/internal/platform/openai"
)

type stubClient struct {
	response map[string]any
	err      error
}

func (c *stubClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, openai.Usage, error) {
	if c.err != nil {
		return nil, openai.Usage{}, c.err
	}
	return c.response, openai.Usage{}, nil
}

func (c *stubClient) GenerateText(ctx context.Context, system, user string) (string, openai.Usage, error) {
	return "", openai.Usage{}, errors.New("unused")
}

func variationResponse(correct ...int) map[string]any {
	isCorrect := map[int]bool{}
	for _, i := range correct {
		isCorrect[i] = true
	}
	alts := make([]any, 0, 4)
	for i := 0; i < 4; i++ {
		alts = append(alts, map[string]any{
			"text":        "alternativa",
			"is_correct":  isCorrect[i],
			"explanation": "porque sí",
		})
	}
	return map[string]any{
		"question_text": "¿Cuál es el manejo inicial?",
		"explanation":   "explicación global",
		"alternatives":  alts,
	}
}

func TestGenerateEnforcesAlternativeContract(t *testing.T) {
	g := NewGenerator(&stubClient{response: variationResponse(2)}, testutil.Logger(t))

	v := g.Generate(context.Background(), "pregunta base", 0)
	if v == nil {
		t.Fatalf("Generate returned nil")
	}
	if len(v.Alternatives) != 4 {
		t.Fatalf("alternatives = %d, want 4", len(v.Alternatives))
	}
	correct := 0
	for _, alt := range v.Alternatives {
		if alt.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		t.Fatalf("correct alternatives = %d, want exactly 1", correct)
	}
	if v.Version != 1 || !v.IsVisible {
		t.Fatalf("draft must start as visible version 1, got version %d visible %v", v.Version, v.IsVisible)
	}
}

func TestGeneratePositionsContiguousAfterShuffle(t *testing.T) {
	g := NewGenerator(&stubClient{response: variationResponse(0)}, testutil.Logger(t))

	v := g.Generate(context.Background(), "pregunta base", 0)
	for i, alt := range v.Alternatives {
		if alt.Position != i {
			t.Fatalf("alternative %d has position %d; positions must be reassigned after shuffling", i, alt.Position)
		}
	}
}

func TestGenerateFallbackOnModelError(t *testing.T) {
	g := NewGenerator(&stubClient{err: errors.New("upstream 503")}, testutil.Logger(t))

	v := g.Generate(context.Background(), "pregunta base", 1)
	if v == nil {
		t.Fatalf("Generate must never return nil")
	}
	if v.Text != "pregunta base" {
		t.Fatalf("fallback draft text = %q, want the base text", v.Text)
	}
	placeholders := 0
	correct := 0
	for _, alt := range v.Alternatives {
		if strings.HasPrefix(alt.Text, "PENDIENTE") {
			placeholders++
		}
		if alt.IsCorrect {
			correct++
		}
	}
	if placeholders != 4 {
		t.Fatalf("placeholder alternatives = %d, want 4", placeholders)
	}
	if correct != 1 {
		t.Fatalf("correct alternatives = %d, want 1", correct)
	}
}

func TestGenerateFallbackOnContractViolation(t *testing.T) {
	// Two correct answers violates the contract and must be replaced by the
	// placeholder draft, not passed through.
	g := NewGenerator(&stubClient{response: variationResponse(0, 1)}, testutil.Logger(t))

	v := g.Generate(context.Background(), "pregunta base", 0)
	if !strings.HasPrefix(v.Explanation, "PENDIENTE") {
		t.Fatalf("explanation = %q, want the placeholder draft", v.Explanation)
	}
}

func TestCoerceVariationRejections(t *testing.T) {
	if _, err := coerceVariation(map[string]any{"question_text": ""}); err == nil {
		t.Fatalf("empty question_text must be rejected")
	}

	resp := variationResponse(0)
	resp["alternatives"] = resp["alternatives"].([]any)[:3]
	if _, err := coerceVariation(resp); err == nil {
		t.Fatalf("three alternatives must be rejected")
	}

	resp = variationResponse(0)
	resp["alternatives"].([]any)[1].(map[string]any)["text"] = "  "
	if _, err := coerceVariation(resp); err == nil {
		t.Fatalf("blank alternative text must be rejected")
	}
}
