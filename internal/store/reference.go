package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"production-output-backend/internal/errs"
	"production-output-backend/internal/model"
)

// ListReferences returns every expected-output entry.
func (s *GormStore) ListReferences(ctx context.Context) ([]model.ReferenceEntry, error) {
	var entries []model.ReferenceEntry
	if err := s.db.WithContext(ctx).
		Order("material, size, pressure_rating, machine_id").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list reference entries: %w", err)
	}
	return entries, nil
}

// SaveReference inserts the entry or replaces the rate of the entry with the same id.
func (s *GormStore) SaveReference(ctx context.Context, entry *model.ReferenceEntry) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate", "updated_at"}),
	}).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save reference entry %s: %w", entry.ID, err)
	}
	return nil
}

// DeleteReference removes an entry by id.
func (s *GormStore) DeleteReference(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&model.ReferenceEntry{ID: id})
	if res.Error != nil {
		return fmt.Errorf("failed to delete reference entry %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: reference entry %s", errs.ErrNotFound, id)
	}
	return nil
}
