// Package dashboard builds read-only projections over the ledger and readings.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"production-output-backend/internal/catalog"
	"production-output-backend/internal/deviation"
	"production-output-backend/internal/errs"
	"production-output-backend/internal/ledger"
	"production-output-backend/internal/model"
	"production-output-backend/internal/parse"
	"production-output-backend/internal/store"
)

// ReadingSource lists stored readings.
type ReadingSource interface {
	ListReadings(ctx context.Context, filter store.ReadingFilter) ([]model.OutputReading, error)
}

// RunSource is the read side of the ledger.
type RunSource interface {
	Statuses(now time.Time) []ledger.Status
	CurrentStatus(machineID string, now time.Time) ledger.Status
	HistoryAll() []model.RunSession
}

// Filter narrows every projection. Empty slices and nil bounds match everything.
type Filter struct {
	Materials []string
	Machines  []string
	Sizes     []string // size descriptors, e.g. "20MM PN 16"
	From      *time.Time
	To        *time.Time
}

func (f Filter) readingFilter() store.ReadingFilter {
	sizes := make([]string, 0, len(f.Sizes))
	for _, s := range f.Sizes {
		sizes = append(sizes, parse.NormalizeSize(s))
	}
	return store.ReadingFilter{
		Materials: f.Materials,
		Machines:  f.Machines,
		Sizes:     sizes,
		From:      f.From,
		To:        f.To,
	}
}

// window turns the inclusive From/To dates into the instant range [from, to).
func (f Filter) window() (from, to *time.Time) {
	if f.To != nil {
		end := f.To.AddDate(0, 0, 1)
		to = &end
	}
	return f.From, to
}

// matchesRun applies the machine, material and size parts of the filter to a
// run. A run size such as "20MM" matches a descriptor "20MM PN 16".
func (f Filter) matchesRun(r model.RunSession) bool {
	if len(f.Machines) > 0 && !contains(f.Machines, r.MachineID) {
		return false
	}
	if len(f.Materials) > 0 && !contains(f.Materials, r.Material) {
		return false
	}
	if len(f.Sizes) == 0 {
		return true
	}
	for _, s := range f.Sizes {
		s = parse.NormalizeSize(s)
		if s == r.Size {
			return true
		}
		if desc, err := parse.ParseSizePN(s); err == nil && desc.Size == r.Size {
			return true
		}
	}
	return false
}

// KPIs are the headline tiles.
type KPIs struct {
	Readings         int     `json:"readings"`
	TotalExpected    float64 `json:"totalExpected"`
	TotalActual      float64 `json:"totalActual"`
	TotalShiftHours  float64 `json:"totalShiftHours"`
	AverageDeviation float64 `json:"averageDeviation"`
	InTolerance      int     `json:"inTolerance"`
	OutOfTolerance   int     `json:"outOfTolerance"`
	RunningHours     float64 `json:"runningHours"` // clipped to the filter's date window
	RunningMachines  int     `json:"runningMachines"`
}

// SizeTotal is expected against actual output for one size descriptor.
type SizeTotal struct {
	SizePN   string  `json:"sizePn"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
	Readings int     `json:"readings"`
}

// MachineAverage is the mean output of one machine for a fixed size.
type MachineAverage struct {
	MachineID       string   `json:"machineId"`
	AverageExpected *float64 `json:"averageExpected"`
	AverageActual   float64  `json:"averageActual"`
	Readings        int      `json:"readings"`
}

// Row is a reading with its tolerance label.
type Row struct {
	model.OutputReading
	Tolerance deviation.Tolerance `json:"tolerance"`
}

// Service composes ledger state, elapsed hours and reading deviations.
type Service struct {
	readings ReadingSource
	runs     RunSource
	band     float64
}

// NewService creates a dashboard service. A band <= 0 uses deviation.DefaultBand.
func NewService(readings ReadingSource, runs RunSource, band float64) *Service {
	if band <= 0 {
		band = deviation.DefaultBand
	}
	return &Service{readings: readings, runs: runs, band: band}
}

// StatusTable returns one row per catalog machine plus any other machine the
// ledger knows, catalog machines first.
func (s *Service) StatusTable(now time.Time) []ledger.Status {
	known := make(map[string]ledger.Status)
	for _, st := range s.runs.Statuses(now) {
		known[st.MachineID] = st
	}

	out := make([]ledger.Status, 0, len(catalog.Machines)+len(known))
	for _, id := range catalog.Machines {
		if st, ok := known[id]; ok {
			out = append(out, st)
			delete(known, id)
			continue
		}
		out = append(out, s.runs.CurrentStatus(id, now))
	}

	extra := make([]string, 0, len(known))
	for id := range known {
		extra = append(extra, id)
	}
	sort.Strings(extra)
	for _, id := range extra {
		out = append(out, known[id])
	}
	return out
}

// KPIs aggregates the filtered readings and the running hours of the matching runs.
func (s *Service) KPIs(ctx context.Context, f Filter, now time.Time) (KPIs, error) {
	readings, err := s.list(ctx, f)
	if err != nil {
		return KPIs{}, err
	}

	var k KPIs
	var devSum float64
	for _, r := range readings {
		k.Readings++
		if r.ExpectedOutput != nil {
			k.TotalExpected += *r.ExpectedOutput
		}
		k.TotalActual += r.ActualOutput
		k.TotalShiftHours += r.ShiftHours
		devSum += r.DeviationPct
		if deviation.Classify(r.DeviationPct, s.band) == deviation.InTolerance {
			k.InTolerance++
		} else {
			k.OutOfTolerance++
		}
	}
	k.TotalExpected = deviation.Round(k.TotalExpected, 2)
	k.TotalActual = deviation.Round(k.TotalActual, 2)
	k.TotalShiftHours = deviation.Round(k.TotalShiftHours, 2)
	if k.Readings > 0 {
		k.AverageDeviation = deviation.Round(devSum/float64(k.Readings), 2)
	}

	from, to := f.window()
	var sessions []model.RunSession
	running := make(map[string]struct{})
	for _, r := range s.runs.HistoryAll() {
		if !f.matchesRun(r) {
			continue
		}
		sessions = append(sessions, r)
		if r.Open() && (to == nil || r.StartAt.Before(*to)) {
			running[r.MachineID] = struct{}{}
		}
	}
	k.RunningHours = ledger.RunningHoursWithin(sessions, now, from, to)
	k.RunningMachines = len(running)
	return k, nil
}

// BySize sums expected and actual output per size descriptor, smallest size first.
func (s *Service) BySize(ctx context.Context, f Filter) ([]SizeTotal, error) {
	readings, err := s.list(ctx, f)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*SizeTotal)
	for _, r := range readings {
		t, ok := totals[r.SizePN]
		if !ok {
			t = &SizeTotal{SizePN: r.SizePN}
			totals[r.SizePN] = t
		}
		if r.ExpectedOutput != nil {
			t.Expected += *r.ExpectedOutput
		}
		t.Actual += r.ActualOutput
		t.Readings++
	}

	out := make([]SizeTotal, 0, len(totals))
	for _, t := range totals {
		t.Expected = deviation.Round(t.Expected, 2)
		t.Actual = deviation.Round(t.Actual, 2)
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return sizeLess(out[i].SizePN, out[j].SizePN) })
	return out, nil
}

// CompareSize averages expected and actual output per machine for one size descriptor.
func (s *Service) CompareSize(ctx context.Context, sizePN string, f Filter) ([]MachineAverage, error) {
	sizePN = parse.NormalizeSize(sizePN)
	if sizePN == "" {
		return nil, fmt.Errorf("%w: size is required", errs.ErrInvalidValue)
	}
	f.Sizes = []string{sizePN}
	readings, err := s.list(ctx, f)
	if err != nil {
		return nil, err
	}

	type acc struct {
		expected      float64
		expectedCount int
		actual        float64
		count         int
	}
	byMachine := make(map[string]*acc)
	for _, r := range readings {
		a, ok := byMachine[r.MachineID]
		if !ok {
			a = &acc{}
			byMachine[r.MachineID] = a
		}
		if r.ExpectedOutput != nil {
			a.expected += *r.ExpectedOutput
			a.expectedCount++
		}
		a.actual += r.ActualOutput
		a.count++
	}

	out := make([]MachineAverage, 0, len(byMachine))
	for id, a := range byMachine {
		m := MachineAverage{
			MachineID:     id,
			AverageActual: deviation.Round(a.actual/float64(a.count), 2),
			Readings:      a.count,
		}
		if a.expectedCount > 0 {
			avg := deviation.Round(a.expected/float64(a.expectedCount), 2)
			m.AverageExpected = &avg
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MachineID < out[j].MachineID })
	return out, nil
}

// Readings returns the filtered readings, oldest first, each with its tolerance.
func (s *Service) Readings(ctx context.Context, f Filter) ([]Row, error) {
	readings, err := s.list(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(readings))
	for _, r := range readings {
		out = append(out, Row{OutputReading: r, Tolerance: deviation.Classify(r.DeviationPct, s.band)})
	}
	return out, nil
}

func (s *Service) list(ctx context.Context, f Filter) ([]model.OutputReading, error) {
	readings, err := s.readings.ListReadings(ctx, f.readingFilter())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStorageFailure, err)
	}
	return readings, nil
}

// sizeLess orders descriptors by millimetre size, then pressure rating.
// Descriptors that do not parse sort after those that do, alphabetically.
func sizeLess(a, b string) bool {
	da, errA := parse.ParseSizePN(a)
	db, errB := parse.ParseSizePN(b)
	switch {
	case errA != nil && errB != nil:
		return a < b
	case errA != nil:
		return false
	case errB != nil:
		return true
	}
	if sa, sb := mm(da.Size), mm(db.Size); sa != sb {
		return sa < sb
	}
	pa, _ := strconv.ParseFloat(da.PressureRating, 64)
	pb, _ := strconv.ParseFloat(db.PressureRating, 64)
	return pa < pb
}

func mm(size string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSuffix(size, "MM"), 64)
	return v
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
