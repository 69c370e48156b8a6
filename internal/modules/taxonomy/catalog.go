package taxonomy

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/medforge/medforge-backend/internal/data/repos/catalog"
	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/platform/logger"
)

// SpecialtyEntry is one catalog row: a specialty and its topics, in display
// order. Callers treat the snapshot as ground truth for validation.
type SpecialtyEntry struct {
	ID     uuid.UUID
	Name   string
	Topics []string
}

// Catalog is the read-only accessor over the specialty/topic taxonomy.
type Catalog struct {
	repo catalog.TaxonomyRepo
	log  *logger.Logger
}

func NewCatalog(repo catalog.TaxonomyRepo, baseLog *logger.Logger) *Catalog {
	return &Catalog{repo: repo, log: baseLog.With("service", "TaxonomyCatalog")}
}

func (c *Catalog) ListSpecialtiesWithTopics(ctx context.Context) ([]SpecialtyEntry, error) {
	rows, err := c.repo.ListSpecialtiesWithTopics(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]SpecialtyEntry, 0, len(rows))
	for _, s := range rows {
		entry := SpecialtyEntry{ID: s.ID, Name: s.Name, Topics: topicNames(s.Topics)}
		out = append(out, entry)
	}
	return out, nil
}

// FindSpecialty matches exactly first, then fuzzily (case-insensitive
// substring containment in either direction). Returns nil when nothing fits.
func (c *Catalog) FindSpecialty(ctx context.Context, name string) (*SpecialtyEntry, error) {
	entries, err := c.ListSpecialtiesWithTopics(ctx)
	if err != nil {
		return nil, err
	}
	return FindSpecialtyIn(entries, name), nil
}

// FindTopic resolves a topic inside a specialty with the same exact-then-fuzzy
// rule. Returns the catalog's canonical topic name or "".
func (c *Catalog) FindTopic(ctx context.Context, specialtyID uuid.UUID, name string) (string, error) {
	entries, err := c.ListSpecialtiesWithTopics(ctx)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.ID == specialtyID {
			return FindTopicIn(e.Topics, name), nil
		}
	}
	return "", nil
}

// FindSpecialtyIn is the pure matching rule over an already-loaded snapshot.
func FindSpecialtyIn(entries []SpecialtyEntry, name string) *SpecialtyEntry {
	needle := normalize(name)
	if needle == "" {
		return nil
	}
	for i := range entries {
		if normalize(entries[i].Name) == needle {
			return &entries[i]
		}
	}
	for i := range entries {
		if fuzzyContains(entries[i].Name, name) {
			return &entries[i]
		}
	}
	return nil
}

func FindTopicIn(topics []string, name string) string {
	needle := normalize(name)
	if needle == "" {
		return ""
	}
	for _, t := range topics {
		if normalize(t) == needle {
			return t
		}
	}
	for _, t := range topics {
		if fuzzyContains(t, name) {
			return t
		}
	}
	return ""
}

func fuzzyContains(a, b string) bool {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func topicNames(topics []types.Topic) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		out = append(out, t.Name)
	}
	return out
}
