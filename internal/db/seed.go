package db

import (
	"gorm.io/gorm"

	types "github.com/medforge/medforge-backend/internal/domain"
)

var defaultCatalog = []struct {
	Specialty string
	Topics    []string
}{
	{"Cardiología", []string{"Arritmias", "Insuficiencia Cardíaca", "Cardiopatía Isquémica"}},
	{"Medicina Interna", []string{"General", "Infectología"}},
	{"Neurología", []string{"Epilepsia", "ACV"}},
}

// SeedTaxonomyDefaults inserts the baseline specialty catalog when the table
// is empty. Existing rows are never modified.
func (s *PostgresService) SeedTaxonomyDefaults() error {
	var count int64
	if err := s.db.Model(&types.Specialty{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for i, entry := range defaultCatalog {
			specialty := &types.Specialty{Name: entry.Specialty, Position: i}
			if err := tx.Create(specialty).Error; err != nil {
				return err
			}
			for j, name := range entry.Topics {
				topic := &types.Topic{SpecialtyID: specialty.ID, Name: name, Position: j}
				if err := tx.Create(topic).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}
