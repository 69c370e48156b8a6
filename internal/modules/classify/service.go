package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/modules/taxonomy"
	"github.com/medforge/medforge-backend/internal/platform/logger"
	"github.com/medforge/medforge-backend/internal/platform/openai"
)

// attemptState tracks the retry-then-fallback flow of one classification.
type attemptState string

const (
	stateFirstAttempt    attemptState = "FIRST_ATTEMPT"
	stateRetrying        attemptState = "RETRYING"
	stateFallbackApplied attemptState = "FALLBACK_APPLIED"
)

const (
	maxCandidateSpecialties = 3
	maxCandidateTopics      = 5

	defaultSpecialty = "Medicina Interna"
	defaultTopic     = "General"
)

type Config struct {
	Model string
}

// Service classifies raw question text against the taxonomy catalog.
// Classify never fails because of the completion service; only catalog
// (persistence) errors propagate.
type Service struct {
	log     *logger.Logger
	ai      openai.Client
	catalog *taxonomy.Catalog
	metrics *Metrics
}

func NewService(ai openai.Client, catalog *taxonomy.Catalog, metrics *Metrics, baseLog *logger.Logger) *Service {
	return &Service{
		log:     baseLog.With("service", "ClassificationService"),
		ai:      ai,
		catalog: catalog,
		metrics: metrics,
	}
}

func (s *Service) Metrics() *Metrics { return s.metrics }

// Classify runs the validate/retry/fallback flow and returns an unsaved
// Classification row for the item.
func (s *Service) Classify(ctx context.Context, text string) (*types.Classification, error) {
	entries, err := s.catalog.ListSpecialtiesWithTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy snapshot: %w", err)
	}

	state := stateFirstAttempt
	s.log.Debug("classification attempt", "state", state)

	s.metrics.RecordAttempt()
	out, err := s.invoke(ctx, entries, text, nil, nil)
	if err != nil {
		// Completion-service or parse failure: local keyword fallback, never
		// surfaced to the caller.
		s.log.Warn("classifier call failed, using keyword fallback", "error", err)
		s.metrics.RecordFallback()
		return s.keywordFallback(entries, text), nil
	}

	validated, candidates := s.validate(entries, out)
	if validated != nil {
		s.metrics.RecordSuccess()
		return validated, nil
	}

	state = stateRetrying
	s.log.Debug("classification attempt", "state", state,
		"claimed_specialty", out.Specialty, "claimed_topic", out.Topic)
	s.metrics.RecordRetry()
	s.metrics.RecordAttempt()

	retryOut, retryErr := s.invoke(ctx, entries, text, candidates.specialties, candidates.topics)
	if retryErr == nil {
		if validated, _ := s.validate(entries, retryOut); validated != nil {
			s.metrics.RecordSuccess()
			return validated, nil
		}
	} else {
		s.log.Warn("classifier retry call failed", "error", retryErr)
	}

	state = stateFallbackApplied
	s.log.Warn("classification fell back", "state", state,
		"claimed_specialty", out.Specialty, "claimed_topic", out.Topic)
	s.metrics.RecordFallback()
	return s.candidateFallback(out, candidates), nil
}

type candidateSet struct {
	specialties []string
	topics      []string
}

// validate resolves the claimed specialty/topic against the catalog, exact
// match first then fuzzy. On failure it returns the candidate lists for the
// retry prompt.
func (s *Service) validate(entries []taxonomy.SpecialtyEntry, out classifierOutput) (*types.Classification, candidateSet) {
	entry := taxonomy.FindSpecialtyIn(entries, out.Specialty)
	if entry != nil {
		if topic := taxonomy.FindTopicIn(entry.Topics, out.Topic); topic != "" {
			return s.build(out, entry.Name, topic, out.Confidence, out.ReviewNotes), candidateSet{}
		}
	}
	return nil, s.candidates(entries, out, entry)
}

func (s *Service) candidates(entries []taxonomy.SpecialtyEntry, out classifierOutput, matched *taxonomy.SpecialtyEntry) candidateSet {
	set := candidateSet{}
	if matched != nil {
		// Specialty resolved but the topic didn't: keep it as the lead candidate.
		set.specialties = append(set.specialties, matched.Name)
	}
	needle := strings.ToLower(out.Specialty)
	for _, e := range entries {
		if len(set.specialties) >= maxCandidateSpecialties {
			break
		}
		if matched != nil && e.Name == matched.Name {
			continue
		}
		name := strings.ToLower(e.Name)
		if strings.Contains(name, needle) || strings.Contains(needle, name) {
			set.specialties = append(set.specialties, e.Name)
		}
	}
	if len(set.specialties) > 0 {
		for _, e := range entries {
			if e.Name != set.specialties[0] {
				continue
			}
			if topic := taxonomy.FindTopicIn(e.Topics, out.Topic); topic != "" {
				set.topics = append(set.topics, topic)
			}
			for _, t := range e.Topics {
				if len(set.topics) >= maxCandidateTopics {
					break
				}
				if len(set.topics) > 0 && set.topics[0] == t {
					continue
				}
				set.topics = append(set.topics, t)
			}
			break
		}
	}
	return set
}

func (s *Service) candidateFallback(out classifierOutput, candidates candidateSet) *types.Classification {
	if len(candidates.specialties) > 0 {
		topic := defaultTopic
		if len(candidates.topics) > 0 {
			topic = candidates.topics[0]
		}
		note := appendNote(out.ReviewNotes,
			fmt.Sprintf("taxonomy validation failed for %q/%q; fell back to first candidate", out.Specialty, out.Topic))
		return s.build(out, candidates.specialties[0], topic, 0.3, note)
	}
	note := appendNote(out.ReviewNotes,
		fmt.Sprintf("taxonomy validation failed for %q/%q; default fallback applied", out.Specialty, out.Topic))
	return s.build(out, defaultSpecialty, defaultTopic, 0.1, note)
}

func (s *Service) keywordFallback(entries []taxonomy.SpecialtyEntry, text string) *types.Classification {
	if specialty, topic, ok := keywordClassify(entries, text); ok {
		return s.build(classifierOutput{Difficulty: types.DifficultyMedium}, specialty, topic, 0.3,
			"completion service unavailable; heuristic keyword classification")
	}
	return s.build(classifierOutput{Difficulty: types.DifficultyMedium}, defaultSpecialty, defaultTopic, 0.1,
		"completion service unavailable and no keyword match; default classification")
}

func (s *Service) build(out classifierOutput, specialty, topic string, confidence float64, notes string) *types.Classification {
	c := &types.Classification{
		Specialty:    specialty,
		Topic:        topic,
		Subtopic:     out.Subtopic,
		Difficulty:   out.Difficulty,
		Confidence:   clamp01(confidence),
		QuestionType: out.QuestionType,
		ReviewNotes:  notes,
	}
	if c.Difficulty == "" {
		c.Difficulty = types.DifficultyMedium
	}
	if len(out.Keywords) > 0 {
		if raw, err := json.Marshal(out.Keywords); err == nil {
			c.Keywords = datatypes.JSON(raw)
		}
	}
	if len(out.LearningObjectives) > 0 {
		if raw, err := json.Marshal(out.LearningObjectives); err == nil {
			c.LearningObjectives = datatypes.JSON(raw)
		}
	}
	return c
}

func (s *Service) invoke(ctx context.Context, entries []taxonomy.SpecialtyEntry, text string, candidateSpecialties, candidateTopics []string) (classifierOutput, error) {
	system := "You classify medical exam questions into a fixed taxonomy. " +
		"Choose the specialty and topic strictly from the catalog provided."

	var user strings.Builder
	user.WriteString("Catalog:\n")
	for _, e := range entries {
		user.WriteString("- ")
		user.WriteString(e.Name)
		user.WriteString(": ")
		user.WriteString(strings.Join(e.Topics, ", "))
		user.WriteString("\n")
	}
	if len(candidateSpecialties) > 0 {
		user.WriteString("\nYour previous answer was not in the catalog. ")
		user.WriteString("Pick ONLY from these candidate specialties: ")
		user.WriteString(strings.Join(candidateSpecialties, ", "))
		if len(candidateTopics) > 0 {
			user.WriteString("; candidate topics: ")
			user.WriteString(strings.Join(candidateTopics, ", "))
		}
		user.WriteString(".\n")
	}
	user.WriteString("\nQuestion:\n")
	user.WriteString(text)

	obj, _, err := s.ai.GenerateJSON(ctx, system, user.String(), "question_classification", classificationSchema())
	if err != nil {
		return classifierOutput{}, err
	}
	return coerceClassifierOutput(obj)
}

func appendNote(existing, note string) string {
	if strings.TrimSpace(existing) == "" {
		return note
	}
	return existing + " | " + note
}
