package taxonomy

import (
	"context"
	"testing"

	"github.com/medforge/medforge-backend/internal/data/repos/catalog"
	"github.com/medforge/medforge-backend/internal/data/repos/testutil"
)

func TestListSpecialtiesWithTopicsOrdered(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	testutil.SeedCatalog(t, ctx, db)

	c := NewCatalog(catalog.NewTaxonomyRepo(db, testutil.Logger(t)), testutil.Logger(t))
	entries, err := c.ListSpecialtiesWithTopics(ctx)
	if err != nil {
		t.Fatalf("ListSpecialtiesWithTopics: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Name != "Cardiología" {
		t.Fatalf("first specialty = %s, want Cardiología (position order)", entries[0].Name)
	}
	if len(entries[0].Topics) != 3 || entries[0].Topics[0] != "Arritmias" {
		t.Fatalf("Cardiología topics = %v, want position order starting with Arritmias", entries[0].Topics)
	}
}

func TestFindSpecialtyInExactAndFuzzy(t *testing.T) {
	entries := []SpecialtyEntry{
		{Name: "Cardiología", Topics: []string{"Arritmias"}},
		{Name: "Medicina Interna", Topics: []string{"General"}},
	}

	if got := FindSpecialtyIn(entries, "cardiología"); got == nil || got.Name != "Cardiología" {
		t.Fatalf("case-insensitive exact match failed: %v", got)
	}
	if got := FindSpecialtyIn(entries, "Cardio"); got == nil || got.Name != "Cardiología" {
		t.Fatalf("fuzzy substring match failed: %v", got)
	}
	if got := FindSpecialtyIn(entries, "Dermatología"); got != nil {
		t.Fatalf("unexpected match for unknown specialty: %v", got)
	}
	if got := FindSpecialtyIn(entries, ""); got != nil {
		t.Fatalf("empty name must not match: %v", got)
	}
}

func TestFindTopicInReturnsCanonicalName(t *testing.T) {
	topics := []string{"Insuficiencia Cardíaca", "Arritmias"}

	if got := FindTopicIn(topics, "arritmias"); got != "Arritmias" {
		t.Fatalf("exact match = %q, want canonical Arritmias", got)
	}
	if got := FindTopicIn(topics, "Insuficiencia"); got != "Insuficiencia Cardíaca" {
		t.Fatalf("fuzzy match = %q, want canonical Insuficiencia Cardíaca", got)
	}
	if got := FindTopicIn(topics, "Epilepsia"); got != "" {
		t.Fatalf("unknown topic matched %q", got)
	}
}

func TestFindTopicAgainstDatabase(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	specs := testutil.SeedCatalog(t, ctx, db)

	c := NewCatalog(catalog.NewTaxonomyRepo(db, testutil.Logger(t)), testutil.Logger(t))

	entry, err := c.FindSpecialty(ctx, "Neuro")
	if err != nil {
		t.Fatalf("FindSpecialty: %v", err)
	}
	if entry == nil || entry.Name != "Neurología" {
		t.Fatalf("FindSpecialty(Neuro) = %v, want Neurología", entry)
	}

	var neuroID = specs[2].ID
	topic, err := c.FindTopic(ctx, neuroID, "acv")
	if err != nil {
		t.Fatalf("FindTopic: %v", err)
	}
	if topic != "ACV" {
		t.Fatalf("FindTopic = %q, want ACV", topic)
	}
}
