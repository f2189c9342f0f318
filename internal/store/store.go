package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"production-output-backend/internal/errs"
	"production-output-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	RecordRunStart(ctx context.Context, closed *model.RunSession, opened *model.RunSession) error
	ListRuns(ctx context.Context) ([]model.RunSession, error)
	ImportRuns(ctx context.Context, runs []model.RunSession) error

	CreateReading(ctx context.Context, reading *model.OutputReading) error
	GetReading(ctx context.Context, id int64) (model.OutputReading, error)
	ListReadings(ctx context.Context, filter ReadingFilter) ([]model.OutputReading, error)

	ListReferences(ctx context.Context) ([]model.ReferenceEntry, error)
	SaveReference(ctx context.Context, entry *model.ReferenceEntry) error
	DeleteReference(ctx context.Context, id string) error

	ListMachines(ctx context.Context) ([]MachineSummary, error)

	PutSubscription(ctx context.Context, sub *model.PushSubscription, machineIDs []string) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionMachines(ctx context.Context, endpoint string) ([]string, error)
	SubscriptionsForMachine(ctx context.Context, machineID string) ([]model.PushSubscription, error)
}

// GormStore implements Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// RecordRunStart closes the previous open run (if any) and inserts the new one in a
// single transaction. The close only matches a row that is still open, so a run is
// never closed twice.
func (s *GormStore) RecordRunStart(ctx context.Context, closed *model.RunSession, opened *model.RunSession) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureMachines(tx, opened.MachineID); err != nil {
			return err
		}

		if closed != nil {
			res := tx.Model(&model.RunSession{}).
				Where("id = ? AND end_at IS NULL", closed.ID).
				Updates(map[string]any{
					"end_at":         closed.EndAt,
					"duration_hours": closed.DurationHours,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to close run %d for machine %s: %w", closed.ID, closed.MachineID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("run %d for machine %s is no longer open", closed.ID, closed.MachineID)
			}
		}

		if err := tx.Create(opened).Error; err != nil {
			return fmt.Errorf("failed to create run for machine %s: %w", opened.MachineID, err)
		}
		return nil
	})
}

// ListRuns returns every run ordered by start, then id.
func (s *GormStore) ListRuns(ctx context.Context) ([]model.RunSession, error) {
	var runs []model.RunSession
	if err := s.db.WithContext(ctx).Order("start_at, id").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// ImportRuns inserts already-closed runs in one transaction.
func (s *GormStore) ImportRuns(ctx context.Context, runs []model.RunSession) error {
	if len(runs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(runs))
		for _, r := range runs {
			ids = append(ids, r.MachineID)
		}
		if err := ensureMachines(tx, ids...); err != nil {
			return err
		}
		if err := tx.Create(&runs).Error; err != nil {
			return fmt.Errorf("failed to import %d runs: %w", len(runs), err)
		}
		return nil
	})
}

// CreateReading persists a reading and registers its machine.
func (s *GormStore) CreateReading(ctx context.Context, reading *model.OutputReading) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureMachines(tx, reading.MachineID); err != nil {
			return err
		}
		if err := tx.Create(reading).Error; err != nil {
			return fmt.Errorf("failed to create reading for machine %s: %w", reading.MachineID, err)
		}
		return nil
	})
}

// GetReading loads one reading.
func (s *GormStore) GetReading(ctx context.Context, id int64) (model.OutputReading, error) {
	var reading model.OutputReading
	if err := s.db.WithContext(ctx).First(&reading, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reading, fmt.Errorf("%w: reading %d", errs.ErrNotFound, id)
		}
		return reading, fmt.Errorf("failed to load reading %d: %w", id, err)
	}
	return reading, nil
}

// ListReadings returns the readings matching the filter, oldest first.
func (s *GormStore) ListReadings(ctx context.Context, filter ReadingFilter) ([]model.OutputReading, error) {
	q := s.db.WithContext(ctx).Model(&model.OutputReading{})
	if len(filter.Materials) > 0 {
		q = q.Where("material IN ?", filter.Materials)
	}
	if len(filter.Machines) > 0 {
		q = q.Where("machine_id IN ?", filter.Machines)
	}
	if len(filter.Sizes) > 0 {
		q = q.Where("size_pn IN ?", filter.Sizes)
	}
	if filter.From != nil {
		q = q.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("date <= ?", *filter.To)
	}

	var readings []model.OutputReading
	if err := q.Order("submitted_at, id").Find(&readings).Error; err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	return readings, nil
}

// ListMachines returns all machines with their reading and run counts.
func (s *GormStore) ListMachines(ctx context.Context) ([]MachineSummary, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Order("id").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}

	type aggRow struct {
		MachineID string
		Total     int64
	}
	var readingAggs, runAggs []aggRow
	if err := s.db.WithContext(ctx).
		Model(&model.OutputReading{}).
		Select("machine_id as machine_id, COUNT(*) as total").
		Group("machine_id").
		Scan(&readingAggs).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate readings: %w", err)
	}
	if err := s.db.WithContext(ctx).
		Model(&model.RunSession{}).
		Select("machine_id as machine_id, COUNT(*) as total").
		Group("machine_id").
		Scan(&runAggs).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate runs: %w", err)
	}

	readingMap := make(map[string]int64, len(readingAggs))
	for _, a := range readingAggs {
		readingMap[a.MachineID] = a.Total
	}
	runMap := make(map[string]int64, len(runAggs))
	for _, a := range runAggs {
		runMap[a.MachineID] = a.Total
	}

	out := make([]MachineSummary, 0, len(machines))
	for _, m := range machines {
		out = append(out, MachineSummary{
			Machine:      m,
			ReadingCount: readingMap[m.ID],
			RunCount:     runMap[m.ID],
		})
	}
	return out, nil
}

func ensureMachines(tx *gorm.DB, ids ...string) error {
	seen := make(map[string]struct{}, len(ids))
	var machines []model.Machine
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		machines = append(machines, model.Machine{ID: id, DisplayName: id})
	}
	if len(machines) == 0 {
		return nil
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&machines).Error; err != nil {
		return fmt.Errorf("failed to register machines: %w", err)
	}
	return nil
}
