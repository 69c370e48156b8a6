package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/medforge/medforge-backend/internal/domain"
)

// SeedCatalog inserts a small specialty/topic catalog used across tests.
func SeedCatalog(tb testing.TB, ctx context.Context, tx *gorm.DB) []*types.Specialty {
	tb.Helper()
	specs := []*types.Specialty{
		{ID: uuid.New(), Name: "Cardiología", Position: 0},
		{ID: uuid.New(), Name: "Medicina Interna", Position: 1},
		{ID: uuid.New(), Name: "Neurología", Position: 2},
	}
	topics := map[string][]string{
		"Cardiología":      {"Arritmias", "Insuficiencia Cardíaca", "Cardiopatía Isquémica"},
		"Medicina Interna": {"General", "Infectología"},
		"Neurología":       {"Epilepsia", "ACV"},
	}
	for _, s := range specs {
		if err := tx.WithContext(ctx).Create(s).Error; err != nil {
			tb.Fatalf("seed specialty: %v", err)
		}
		for i, name := range topics[s.Name] {
			topic := &types.Topic{ID: uuid.New(), SpecialtyID: s.ID, Name: name, Position: i}
			if err := tx.WithContext(ctx).Create(topic).Error; err != nil {
				tb.Fatalf("seed topic: %v", err)
			}
			s.Topics = append(s.Topics, *topic)
		}
	}
	return specs
}

func SeedIngestJob(tb testing.TB, ctx context.Context, tx *gorm.DB, total int) *types.IngestJob {
	tb.Helper()
	j := &types.IngestJob{
		ID:         uuid.New(),
		Label:      "batch",
		TotalItems: total,
		Status:     types.IngestJobPending,
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed ingest job: %v", err)
	}
	return j
}

func SeedBaseItem(tb testing.TB, ctx context.Context, tx *gorm.DB, jobID uuid.UUID, text string) *types.BaseItem {
	tb.Helper()
	item := &types.BaseItem{
		ID:          uuid.New(),
		SourceText:  text,
		IngestJobID: jobID,
		Status:      types.BaseItemPending,
	}
	if err := tx.WithContext(ctx).Create(item).Error; err != nil {
		tb.Fatalf("seed base item: %v", err)
	}
	return item
}

func SeedClassification(tb testing.TB, ctx context.Context, tx *gorm.DB, baseItemID uuid.UUID, specialty, topic string) *types.Classification {
	tb.Helper()
	c := &types.Classification{
		ID:         uuid.New(),
		BaseItemID: baseItemID,
		Specialty:  specialty,
		Topic:      topic,
		Difficulty: types.DifficultyMedium,
		Confidence: 0.9,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed classification: %v", err)
	}
	return c
}

// SeedVariation creates a visible version-1 variation with four alternatives,
// the first one correct.
func SeedVariation(tb testing.TB, ctx context.Context, tx *gorm.DB, baseItemID uuid.UUID, text string) *types.Variation {
	tb.Helper()
	v := &types.Variation{
		ID:         uuid.New(),
		BaseItemID: baseItemID,
		Version:    1,
		IsVisible:  true,
		Text:       text,
		Difficulty: types.DifficultyMedium,
	}
	v.ParentVersionID = v.ID
	for i := 0; i < 4; i++ {
		v.Alternatives = append(v.Alternatives, types.Alternative{
			ID:        uuid.New(),
			Text:      "option",
			IsCorrect: i == 0,
			Position:  i,
		})
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed variation: %v", err)
	}
	return v
}

func SeedSweepRun(tb testing.TB, ctx context.Context, tx *gorm.DB, status types.SweepRunStatus) *types.SweepRun {
	tb.Helper()
	r := &types.SweepRun{
		ID:          uuid.New(),
		Name:        "run",
		BatchSize:   50,
		Concurrency: 2,
		Status:      status,
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed sweep run: %v", err)
	}
	return r
}
