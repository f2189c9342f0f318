// Package reference holds the expected-output lookup keyed by
// material, size, pressure rating and machine.
package reference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"production-output-backend/internal/catalog"
	"production-output-backend/internal/errs"
	"production-output-backend/internal/model"
)

// Repository is the durable side of the table.
type Repository interface {
	ListReferences(ctx context.Context) ([]model.ReferenceEntry, error)
	SaveReference(ctx context.Context, entry *model.ReferenceEntry) error
	DeleteReference(ctx context.Context, id string) error
}

// Key identifies one expected-output value.
type Key struct {
	Material       string
	Size           string
	PressureRating string
	MachineID      string
}

func newKey(material, size, pressureRating, machineID string) Key {
	return Key{
		Material:       strings.TrimSpace(material),
		Size:           strings.TrimSpace(size),
		PressureRating: strings.TrimSpace(pressureRating),
		MachineID:      strings.TrimSpace(machineID),
	}
}

func (k Key) valid() bool {
	return k.Material != "" && k.Size != "" && k.PressureRating != "" && k.MachineID != ""
}

// Table is a read-mostly, in-memory view of the reference entries.
// Entries are stored by value and replaced whole, never mutated in place.
type Table struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time

	writeMu sync.Mutex // serializes writers, held across the repository call

	mu      sync.RWMutex
	entries map[Key]model.ReferenceEntry
	keys    map[string]Key // id -> key
}

// NewTable creates an empty table backed by repo.
func NewTable(repo Repository, logger *zap.Logger) *Table {
	return &Table{
		repo:    repo,
		logger:  logger,
		now:     time.Now,
		entries: make(map[Key]model.ReferenceEntry),
		keys:    make(map[string]Key),
	}
}

// Load replaces the in-memory view with the repository contents.
func (t *Table) Load(ctx context.Context) error {
	stored, err := t.repo.ListReferences(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorageFailure, err)
	}

	entries := make(map[Key]model.ReferenceEntry, len(stored))
	keys := make(map[string]Key, len(stored))
	for _, e := range stored {
		k := newKey(e.Material, e.Size, e.PressureRating, e.MachineID)
		entries[k] = e
		keys[e.ID] = k
	}

	t.mu.Lock()
	t.entries = entries
	t.keys = keys
	t.mu.Unlock()

	t.logger.Info("reference table loaded", zap.Int("entries", len(entries)))
	return nil
}

// Seed inserts the given defaults when the table is empty. It returns the number inserted.
func (t *Table) Seed(ctx context.Context, defaults []catalog.SeedEntry) (int, error) {
	if t.Len() > 0 {
		return 0, nil
	}
	for i, d := range defaults {
		if _, err := t.Upsert(ctx, d.Material, d.Size, d.PressureRating, d.MachineID, d.Rate); err != nil {
			return i, err
		}
	}
	t.logger.Info("reference table seeded", zap.Int("entries", len(defaults)))
	return len(defaults), nil
}

// Lookup returns the expected rate for an exact key match.
func (t *Table) Lookup(material, size, pressureRating, machineID string) (float64, bool) {
	k := newKey(material, size, pressureRating, machineID)
	t.mu.RLock()
	e, ok := t.entries[k]
	t.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return e.Rate, true
}

// Upsert sets the rate for a key, inserting a new entry when none exists.
func (t *Table) Upsert(ctx context.Context, material, size, pressureRating, machineID string, rate float64) (model.ReferenceEntry, error) {
	k := newKey(material, size, pressureRating, machineID)
	if !k.valid() {
		return model.ReferenceEntry{}, fmt.Errorf("%w: material, size, pressure rating and machine are required", errs.ErrInvalidValue)
	}
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return model.ReferenceEntry{}, fmt.Errorf("%w: rate must be a non-negative number, got %v", errs.ErrInvalidValue, rate)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.RLock()
	existing, ok := t.entries[k]
	t.mu.RUnlock()

	entry := model.ReferenceEntry{
		ID:             uuid.NewString(),
		Material:       k.Material,
		Size:           k.Size,
		PressureRating: k.PressureRating,
		MachineID:      k.MachineID,
		Rate:           rate,
		UpdatedAt:      t.now().UTC(),
	}
	if ok {
		entry.ID = existing.ID
	}

	if err := t.repo.SaveReference(ctx, &entry); err != nil {
		return model.ReferenceEntry{}, fmt.Errorf("%w: %v", errs.ErrStorageFailure, err)
	}

	t.mu.Lock()
	t.entries[k] = entry
	t.keys[entry.ID] = k
	t.mu.Unlock()

	return entry, nil
}

// Delete removes an entry by id.
func (t *Table) Delete(ctx context.Context, id string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.RLock()
	k, ok := t.keys[id]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: reference entry %s", errs.ErrNotFound, id)
	}

	if err := t.repo.DeleteReference(ctx, id); err != nil {
		// Removed behind our back: drop it from memory too.
		if !errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("%w: %v", errs.ErrStorageFailure, err)
		}
		t.logger.Warn("reference entry missing from store", zap.String("id", id))
	}

	t.mu.Lock()
	delete(t.entries, k)
	delete(t.keys, id)
	t.mu.Unlock()
	return nil
}

// List returns a snapshot ordered by material, size, pressure rating and machine.
func (t *Table) List() []model.ReferenceEntry {
	t.mu.RLock()
	out := make([]model.ReferenceEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Material != b.Material {
			return a.Material < b.Material
		}
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		if a.PressureRating != b.PressureRating {
			return a.PressureRating < b.PressureRating
		}
		return a.MachineID < b.MachineID
	})
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
