package sweep

import (
	"fmt"
	"strings"
)

// Scorecard sub-scores run 0..3; the worst one drives the confidence score.
type Scorecard struct {
	ClinicalCoherence  int `json:"clinical_coherence"`
	GuidelineAlignment int `json:"guideline_alignment"`
	SafetyRisk         int `json:"safety_risk"`
	PedagogicalClarity int `json:"pedagogical_clarity"`
	StructuralQuality  int `json:"structural_quality"`
}

func (s Scorecard) Max() int {
	max := s.ClinicalCoherence
	for _, v := range []int{s.GuidelineAlignment, s.SafetyRisk, s.PedagogicalClarity, s.StructuralQuality} {
		if v > max {
			max = v
		}
	}
	return max
}

type Evaluation struct {
	Scores         Scorecard `json:"scores"`
	Tags           []string  `json:"tags"`
	Severity       int       `json:"severity"`
	Recommendation string    `json:"recommendation"`
}

// CorrectionAction is the decided corrective step for one variation.
type CorrectionAction string

const (
	ActionNoChange CorrectionAction = "NO_CHANGE"
	ActionPolish   CorrectionAction = "POLISH"
	ActionRewrite  CorrectionAction = "REWRITE"
)

// Decide maps severity and safety risk to the corrective action.
func Decide(ev Evaluation) CorrectionAction {
	switch {
	case ev.Severity <= 0:
		return ActionNoChange
	case ev.Severity == 1 && ev.Scores.SafetyRisk < 2:
		return ActionPolish
	default:
		return ActionRewrite
	}
}

// ConfidenceScore derives the 0..1 confidence from the worst sub-score: a
// perfect scorecard yields 1, any maxed sub-score yields 0.
func ConfidenceScore(ev Evaluation) float64 {
	score := 1 - float64(ev.Scores.Max())/3
	if score < 0 {
		return 0
	}
	return score
}

// defaultEvaluation is the conservative substitute for a malformed scorecard:
// low quality flags, no safety risk, severity 1, recommendation "polish".
func defaultEvaluation() Evaluation {
	return Evaluation{
		Scores: Scorecard{
			ClinicalCoherence:  1,
			GuidelineAlignment: 1,
			SafetyRisk:         0,
			PedagogicalClarity: 1,
			StructuralQuality:  1,
		},
		Severity:       1,
		Recommendation: "polish",
	}
}

// coerceEvaluation enforces the strict scorecard shape at the completion
// boundary. A response missing required fields gets the conservative default
// rather than failing the item.
func coerceEvaluation(obj map[string]any) Evaluation {
	scoresRaw, ok := obj["scores"].(map[string]any)
	if !ok {
		return defaultEvaluation()
	}
	severity, sevOK := intValue(obj["severity"])
	if !sevOK {
		return defaultEvaluation()
	}
	ev := Evaluation{
		Severity:       clampScore(severity),
		Recommendation: strings.TrimSpace(stringValue(obj["recommendation"])),
		Tags:           stringSlice(obj["tags"]),
	}
	if ev.Recommendation == "" {
		ev.Recommendation = "polish"
	}
	ev.Scores = Scorecard{
		ClinicalCoherence:  clampScore(intOr(scoresRaw["clinical_coherence"], 1)),
		GuidelineAlignment: clampScore(intOr(scoresRaw["guideline_alignment"], 1)),
		SafetyRisk:         clampScore(intOr(scoresRaw["safety_risk"], 0)),
		PedagogicalClarity: clampScore(intOr(scoresRaw["pedagogical_clarity"], 1)),
		StructuralQuality:  clampScore(intOr(scoresRaw["structural_quality"], 1)),
	}
	return ev
}

func evaluationSchema() map[string]any {
	score := map[string]any{"type": "integer", "minimum": 0, "maximum": 3}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"scores", "tags", "severity", "recommendation"},
		"properties": map[string]any{
			"scores": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required": []string{
					"clinical_coherence", "guideline_alignment", "safety_risk",
					"pedagogical_clarity", "structural_quality",
				},
				"properties": map[string]any{
					"clinical_coherence":  score,
					"guideline_alignment": score,
					"safety_risk":         score,
					"pedagogical_clarity": score,
					"structural_quality":  score,
				},
			},
			"tags":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"severity":       score,
			"recommendation": map[string]any{"type": "string", "enum": []string{"none", "polish", "rewrite"}},
		},
	}
}

// Correction is the strict shape of a polish/rewrite response. Alternative
// correctness is determined strictly by CorrectLetter, never by the model's
// per-alternative flags.
type Correction struct {
	Statement     string                  `json:"statement"`
	Explanation   string                  `json:"explanation"`
	Alternatives  []CorrectionAlternative `json:"alternatives"`
	CorrectLetter string                  `json:"correct_letter"`
	NewSpecialty  string                  `json:"new_specialty,omitempty"`
	NewTopic      string                  `json:"new_topic,omitempty"`
}

type CorrectionAlternative struct {
	Letter      string `json:"letter"`
	Text        string `json:"text"`
	Explanation string `json:"explanation"`
}

func coerceCorrection(obj map[string]any) (Correction, error) {
	out := Correction{
		Statement:     strings.TrimSpace(stringValue(obj["statement"])),
		Explanation:   strings.TrimSpace(stringValue(obj["explanation"])),
		CorrectLetter: strings.ToUpper(strings.TrimSpace(stringValue(obj["correct_letter"]))),
		NewSpecialty:  strings.TrimSpace(stringValue(obj["new_specialty"])),
		NewTopic:      strings.TrimSpace(stringValue(obj["new_topic"])),
	}
	if out.CorrectLetter < "A" || out.CorrectLetter > "D" || len(out.CorrectLetter) != 1 {
		return out, fmt.Errorf("correction has invalid correct_letter %q", out.CorrectLetter)
	}
	if rawAlts, ok := obj["alternatives"].([]any); ok {
		for _, raw := range rawAlts {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			alt := CorrectionAlternative{
				Letter:      strings.ToUpper(strings.TrimSpace(stringValue(m["letter"]))),
				Text:        strings.TrimSpace(stringValue(m["text"])),
				Explanation: strings.TrimSpace(stringValue(m["explanation"])),
			}
			if alt.Letter != "" {
				out.Alternatives = append(out.Alternatives, alt)
			}
		}
	}
	return out, nil
}

func correctionSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"statement", "explanation", "alternatives", "correct_letter", "new_specialty", "new_topic"},
		"properties": map[string]any{
			"statement":   map[string]any{"type": "string"},
			"explanation": map[string]any{"type": "string"},
			"alternatives": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"letter", "text", "explanation"},
					"properties": map[string]any{
						"letter":      map[string]any{"type": "string", "enum": []string{"A", "B", "C", "D"}},
						"text":        map[string]any{"type": "string"},
						"explanation": map[string]any{"type": "string"},
					},
				},
			},
			"correct_letter": map[string]any{"type": "string", "enum": []string{"A", "B", "C", "D"}},
			"new_specialty":  map[string]any{"type": "string"},
			"new_topic":      map[string]any{"type": "string"},
		},
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

func intOr(v any, def int) int {
	if n, ok := intValue(v); ok {
		return n
	}
	return def
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 3 {
		return 3
	}
	return n
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

// letters maps alternative positions to exercise letters.
var letters = []string{"A", "B", "C", "D"}

func letterFor(position int) string {
	if position >= 0 && position < len(letters) {
		return letters[position]
	}
	return ""
}
