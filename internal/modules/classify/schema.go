package classify

import (
	"fmt"
	"strings"

	types "github.com/medforge/medforge-backend/internal/domain"
)

// classifierOutput is the strict shape required from the completion service.
// Anything that doesn't coerce into it is treated as a parse failure at the
// boundary; loosely-typed data never reaches persistence.
type classifierOutput struct {
	Specialty          string
	Topic              string
	Subtopic           string
	Confidence         float64
	Keywords           []string
	LearningObjectives []string
	QuestionType       string
	Difficulty         types.Difficulty
	ReviewNotes        string
}

func classificationSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required": []string{
			"specialty", "topic", "subtopic", "confidence", "keywords",
			"learning_objectives", "question_type", "difficulty", "review_notes",
		},
		"properties": map[string]any{
			"specialty":           map[string]any{"type": "string"},
			"topic":               map[string]any{"type": "string"},
			"subtopic":            map[string]any{"type": "string"},
			"confidence":          map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"keywords":            map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"learning_objectives": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"question_type":       map[string]any{"type": "string"},
			"difficulty":          map[string]any{"type": "string", "enum": []string{"EASY", "MEDIUM", "HARD"}},
			"review_notes":        map[string]any{"type": "string"},
		},
	}
}

func coerceClassifierOutput(obj map[string]any) (classifierOutput, error) {
	out := classifierOutput{
		Specialty:    strings.TrimSpace(stringValue(obj["specialty"])),
		Topic:        strings.TrimSpace(stringValue(obj["topic"])),
		Subtopic:     strings.TrimSpace(stringValue(obj["subtopic"])),
		QuestionType: strings.TrimSpace(stringValue(obj["question_type"])),
		ReviewNotes:  strings.TrimSpace(stringValue(obj["review_notes"])),
	}
	if out.Specialty == "" || out.Topic == "" {
		return out, fmt.Errorf("classifier output missing specialty/topic")
	}
	out.Confidence = clamp01(floatValue(obj["confidence"]))
	out.Keywords = stringSlice(obj["keywords"])
	out.LearningObjectives = stringSlice(obj["learning_objectives"])
	out.Difficulty = parseDifficulty(stringValue(obj["difficulty"]))
	return out, nil
}

func parseDifficulty(raw string) types.Difficulty {
	switch types.Difficulty(strings.ToUpper(strings.TrimSpace(raw))) {
	case types.DifficultyEasy:
		return types.DifficultyEasy
	case types.DifficultyHard:
		return types.DifficultyHard
	default:
		return types.DifficultyMedium
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
