// Package reading is the write path for operator output readings.
package reading

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"production-output-backend/internal/deviation"
	"production-output-backend/internal/errs"
	"production-output-backend/internal/ledger"
	"production-output-backend/internal/model"
	"production-output-backend/internal/parse"
)

// Repository persists readings.
type Repository interface {
	CreateReading(ctx context.Context, reading *model.OutputReading) error
}

// ExpectedLookup resolves the expected output for a key.
type ExpectedLookup interface {
	Lookup(material, size, pressureRating, machineID string) (float64, bool)
}

// Dispatcher queues an out-of-tolerance alert for a stored reading.
type Dispatcher interface {
	Dispatch(readingID int64)
}

// Sink receives every stored reading, e.g. a time-series database.
type Sink interface {
	WriteReading(ctx context.Context, reading model.OutputReading) error
}

// Input is a reading as submitted by an operator or line terminal.
// Any deviation supplied by the caller is ignored.
type Input struct {
	Date           string   `json:"date"` // 2006-01-02
	MachineID      string   `json:"machineId"`
	Material       string   `json:"material"`
	SizePN         string   `json:"sizePn"`
	ExpectedOutput *float64 `json:"expectedOutput,omitempty"`
	ActualOutput   float64  `json:"actualOutput"`
	ShiftStart     string   `json:"shiftStart,omitempty"` // 15:04
	ShiftEnd       string   `json:"shiftEnd,omitempty"`
	ShiftHours     *float64 `json:"shiftHours,omitempty"`
	Remarks        string   `json:"remarks"`
	SubmittedBy    string   `json:"submittedBy"`
}

// Recorder validates, scores and stores readings.
type Recorder struct {
	repo     Repository
	expected ExpectedLookup
	loc      *time.Location
	band     float64
	logger   *zap.Logger
	now      func() time.Time

	alerts Dispatcher
	sink   Sink
}

// NewRecorder creates a recorder. A band <= 0 uses deviation.DefaultBand.
func NewRecorder(repo Repository, expected ExpectedLookup, loc *time.Location, band float64, logger *zap.Logger) *Recorder {
	if loc == nil {
		loc = time.UTC
	}
	if band <= 0 {
		band = deviation.DefaultBand
	}
	return &Recorder{
		repo:     repo,
		expected: expected,
		loc:      loc,
		band:     band,
		logger:   logger,
		now:      time.Now,
	}
}

// SetDispatcher enables out-of-tolerance alerts.
func (r *Recorder) SetDispatcher(d Dispatcher) { r.alerts = d }

// SetSink enables the best-effort copy of each reading.
func (r *Recorder) SetSink(s Sink) { r.sink = s }

// Band returns the tolerance band in percent.
func (r *Recorder) Band() float64 { return r.band }

// ExpectedFor looks up the expected output for a size descriptor such as "20MM PN 16".
func (r *Recorder) ExpectedFor(material, sizePN, machineID string) (float64, bool) {
	desc, err := parse.ParseSizePN(sizePN)
	if err != nil {
		return 0, false
	}
	return r.expected.Lookup(material, desc.Size, desc.PressureRating, machineID)
}

// Submit stores one reading. Deviation is always recomputed here.
func (r *Recorder) Submit(ctx context.Context, in Input) (model.OutputReading, error) {
	machineID := strings.TrimSpace(in.MachineID)
	material := strings.TrimSpace(in.Material)
	sizePN := parse.NormalizeSize(in.SizePN)
	if machineID == "" || material == "" || sizePN == "" {
		return model.OutputReading{}, fmt.Errorf("%w: machine, material and size are required", errs.ErrInvalidValue)
	}

	date, err := ledger.CombineDateTime(in.Date, "00:00", r.loc)
	if err != nil {
		return model.OutputReading{}, err
	}

	if !validRate(in.ActualOutput) {
		return model.OutputReading{}, fmt.Errorf("%w: actual output must be a non-negative number, got %v", errs.ErrInvalidValue, in.ActualOutput)
	}

	expected := in.ExpectedOutput
	if expected != nil {
		if !validRate(*expected) {
			return model.OutputReading{}, fmt.Errorf("%w: expected output must be a non-negative number, got %v", errs.ErrInvalidValue, *expected)
		}
		v := *expected
		expected = &v
	} else if v, ok := r.ExpectedFor(material, sizePN, machineID); ok {
		expected = &v
	}

	rec := model.OutputReading{
		SubmittedAt:    r.now().UTC(),
		Date:           date.UTC(),
		MachineID:      machineID,
		Material:       material,
		SizePN:         sizePN,
		ExpectedOutput: expected,
		ActualOutput:   in.ActualOutput,
		DeviationPct:   deviation.Percent(expected, in.ActualOutput),
		Remarks:        in.Remarks,
		SubmittedBy:    strings.TrimSpace(in.SubmittedBy),
	}

	if err := r.applyShift(&rec, in); err != nil {
		return model.OutputReading{}, err
	}

	if err := r.repo.CreateReading(ctx, &rec); err != nil {
		return model.OutputReading{}, fmt.Errorf("%w: %v", errs.ErrStorageFailure, err)
	}

	tolerance := deviation.Classify(rec.DeviationPct, r.band)
	r.logger.Info("reading recorded",
		zap.Int64("reading_id", rec.ID),
		zap.String("machine", rec.MachineID),
		zap.String("size_pn", rec.SizePN),
		zap.Float64("deviation_pct", rec.DeviationPct),
		zap.String("tolerance", string(tolerance)))

	if tolerance == deviation.OutOfTolerance && r.alerts != nil {
		r.alerts.Dispatch(rec.ID)
	}
	if r.sink != nil {
		if err := r.sink.WriteReading(ctx, rec); err != nil {
			r.logger.Warn("failed to forward reading", zap.Int64("reading_id", rec.ID), zap.Error(err))
		}
	}
	return rec, nil
}

// applyShift fills the shift window and hours. An explicit ShiftHours wins over
// the clock times; an end before the start is taken to be on the next day.
func (r *Recorder) applyShift(rec *model.OutputReading, in Input) error {
	if strings.TrimSpace(in.ShiftStart) != "" && strings.TrimSpace(in.ShiftEnd) != "" {
		start, err := ledger.CombineDateTime(in.Date, in.ShiftStart, r.loc)
		if err != nil {
			return err
		}
		end, err := ledger.CombineDateTime(in.Date, in.ShiftEnd, r.loc)
		if err != nil {
			return err
		}
		if end.Before(start) {
			end = end.AddDate(0, 0, 1)
		}
		start, end = start.UTC(), end.UTC()
		rec.ShiftStart = &start
		rec.ShiftEnd = &end
		rec.ShiftHours = ShiftHours(start, end)
	}

	if in.ShiftHours != nil {
		if !validRate(*in.ShiftHours) {
			return fmt.Errorf("%w: shift hours must be a non-negative number, got %v", errs.ErrInvalidValue, *in.ShiftHours)
		}
		rec.ShiftHours = deviation.Round(*in.ShiftHours, 2)
	}
	return nil
}

// ShiftHours returns end - start in hours rounded to 2 decimals.
func ShiftHours(start, end time.Time) float64 {
	return deviation.Round(end.Sub(start).Hours(), 2)
}

func validRate(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
