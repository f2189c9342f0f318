package reading

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"production-output-backend/internal/errs"
	"production-output-backend/internal/model"
)

type fakeRepo struct {
	created []model.OutputReading
	err     error
}

func (f *fakeRepo) CreateReading(ctx context.Context, reading *model.OutputReading) error {
	if f.err != nil {
		return f.err
	}
	reading.ID = int64(len(f.created) + 1)
	f.created = append(f.created, *reading)
	return nil
}

type fakeLookup map[[4]string]float64

func (f fakeLookup) Lookup(material, size, pressureRating, machineID string) (float64, bool) {
	v, ok := f[[4]string{material, size, pressureRating, machineID}]
	return v, ok
}

type fakeDispatcher struct{ ids []int64 }

func (f *fakeDispatcher) Dispatch(readingID int64) { f.ids = append(f.ids, readingID) }

type fakeSink struct {
	written []model.OutputReading
	err     error
}

func (f *fakeSink) WriteReading(ctx context.Context, reading model.OutputReading) error {
	f.written = append(f.written, reading)
	return f.err
}

func ptr(v float64) *float64 { return &v }

var submittedAt = time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)

func newTestRecorder(repo Repository) (*Recorder, *fakeDispatcher, *fakeSink) {
	lookup := fakeLookup{{"PPR", "20MM", "16", "MC 2"}: 75}
	r := NewRecorder(repo, lookup, time.UTC, 0, zap.NewNop())
	r.now = func() time.Time { return submittedAt }
	d, s := &fakeDispatcher{}, &fakeSink{}
	r.SetDispatcher(d)
	r.SetSink(s)
	return r, d, s
}

func TestRecorder_Submit(t *testing.T) {
	testCases := []struct {
		name              string
		in                Input
		expectedExpected  *float64
		expectedDeviation float64
		expectedAlert     bool
	}{
		{
			name:              "expected output is prefilled from the reference table",
			in:                Input{Date: "2025-01-02", MachineID: "MC 2", Material: "PPR", SizePN: "20mm pn16", ActualOutput: 69},
			expectedExpected:  ptr(75),
			expectedDeviation: -8,
		},
		{
			name:              "caller expectation wins over the table",
			in:                Input{Date: "2025-01-02", MachineID: "MC 2", Material: "PPR", SizePN: "20MM PN 16", ExpectedOutput: ptr(100), ActualOutput: 115},
			expectedExpected:  ptr(100),
			expectedDeviation: 15,
			expectedAlert:     true,
		},
		{
			name:              "no reference value means no deviation",
			in:                Input{Date: "2025-01-02", MachineID: "MC 9", Material: "PPR", SizePN: "20MM PN 16", ActualOutput: 50},
			expectedDeviation: 0,
		},
		{
			name:              "zero expectation means no deviation",
			in:                Input{Date: "2025-01-02", MachineID: "MC 9", Material: "PPR", SizePN: "20MM PN 16", ExpectedOutput: ptr(0), ActualOutput: 50},
			expectedExpected:  ptr(0),
			expectedDeviation: 0,
		},
		{
			name:              "band edge is in tolerance",
			in:                Input{Date: "2025-01-02", MachineID: "MC 2", Material: "PPR", SizePN: "20MM PN 16", ExpectedOutput: ptr(100), ActualOutput: 90},
			expectedExpected:  ptr(100),
			expectedDeviation: -10,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepo{}
			r, alerts, sink := newTestRecorder(repo)

			rec, err := r.Submit(context.Background(), tc.in)
			require.NoError(t, err)
			require.Len(t, repo.created, 1)
			assert.Equal(t, int64(1), rec.ID)
			assert.Equal(t, tc.expectedExpected, rec.ExpectedOutput)
			assert.Equal(t, tc.expectedDeviation, rec.DeviationPct)
			assert.Equal(t, "20MM PN 16", rec.SizePN)
			assert.True(t, rec.SubmittedAt.Equal(submittedAt))
			assert.True(t, rec.Date.Equal(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)))
			if tc.expectedAlert {
				assert.Equal(t, []int64{1}, alerts.ids)
			} else {
				assert.Empty(t, alerts.ids)
			}
			require.Len(t, sink.written, 1)
			assert.Equal(t, rec, sink.written[0])
		})
	}
}

func TestRecorder_SubmitValidation(t *testing.T) {
	valid := Input{Date: "2025-01-02", MachineID: "MC 2", Material: "PPR", SizePN: "20MM PN 16", ActualOutput: 10}

	testCases := []struct {
		name        string
		mutate      func(in *Input)
		expectedErr error
	}{
		{name: "bad date", mutate: func(in *Input) { in.Date = "02/01/2025" }, expectedErr: errs.ErrInvalidTime},
		{name: "bad shift clock", mutate: func(in *Input) { in.ShiftStart, in.ShiftEnd = "6am", "14:00" }, expectedErr: errs.ErrInvalidTime},
		{name: "negative actual", mutate: func(in *Input) { in.ActualOutput = -1 }, expectedErr: errs.ErrInvalidValue},
		{name: "NaN actual", mutate: func(in *Input) { in.ActualOutput = math.NaN() }, expectedErr: errs.ErrInvalidValue},
		{name: "negative expected", mutate: func(in *Input) { in.ExpectedOutput = ptr(-5) }, expectedErr: errs.ErrInvalidValue},
		{name: "negative shift hours", mutate: func(in *Input) { in.ShiftHours = ptr(-1) }, expectedErr: errs.ErrInvalidValue},
		{name: "missing machine", mutate: func(in *Input) { in.MachineID = "" }, expectedErr: errs.ErrInvalidValue},
		{name: "missing material", mutate: func(in *Input) { in.Material = " " }, expectedErr: errs.ErrInvalidValue},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepo{}
			r, alerts, sink := newTestRecorder(repo)
			in := valid
			tc.mutate(&in)

			_, err := r.Submit(context.Background(), in)
			assert.ErrorIs(t, err, tc.expectedErr)
			assert.Empty(t, repo.created)
			assert.Empty(t, alerts.ids)
			assert.Empty(t, sink.written)
		})
	}
}

func TestRecorder_ShiftHours(t *testing.T) {
	testCases := []struct {
		name          string
		start, end    string
		override      *float64
		expectedHours float64
	}{
		{name: "day shift", start: "06:00", end: "14:00", expectedHours: 8},
		{name: "night shift wraps to the next day", start: "22:00", end: "06:00", expectedHours: 8},
		{name: "partial hour is rounded", start: "06:00", end: "06:20", expectedHours: 0.33},
		{name: "override wins", start: "06:00", end: "14:00", override: ptr(7.456), expectedHours: 7.46},
		{name: "override without clocks", override: ptr(12), expectedHours: 12},
		{name: "nothing given", expectedHours: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, _, _ := newTestRecorder(&fakeRepo{})
			rec, err := r.Submit(context.Background(), Input{
				Date: "2025-01-02", MachineID: "MC 2", Material: "PPR", SizePN: "20MM PN 16", ActualOutput: 75,
				ShiftStart: tc.start, ShiftEnd: tc.end, ShiftHours: tc.override,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.expectedHours, rec.ShiftHours)
			if tc.start != "" {
				require.NotNil(t, rec.ShiftStart)
				require.NotNil(t, rec.ShiftEnd)
				assert.True(t, rec.ShiftEnd.After(*rec.ShiftStart))
			}
		})
	}
}

func TestRecorder_StorageFailure(t *testing.T) {
	repo := &fakeRepo{err: errors.New("disk full")}
	r, alerts, sink := newTestRecorder(repo)

	_, err := r.Submit(context.Background(), Input{
		Date: "2025-01-02", MachineID: "MC 2", Material: "PPR", SizePN: "20MM PN 16", ExpectedOutput: ptr(100), ActualOutput: 10,
	})
	assert.ErrorIs(t, err, errs.ErrStorageFailure)
	assert.Empty(t, alerts.ids)
	assert.Empty(t, sink.written)
}

func TestRecorder_SinkFailureIsNotReturned(t *testing.T) {
	r, _, sink := newTestRecorder(&fakeRepo{})
	sink.err = errors.New("influx unavailable")

	rec, err := r.Submit(context.Background(), Input{
		Date: "2025-01-02", MachineID: "MC 2", Material: "PPR", SizePN: "20MM PN 16", ActualOutput: 75,
	})
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	assert.Len(t, sink.written, 1)
}

func TestRecorder_ExpectedFor(t *testing.T) {
	r, _, _ := newTestRecorder(&fakeRepo{})

	v, ok := r.ExpectedFor("PPR", "20MM PN 16", "MC 2")
	assert.True(t, ok)
	assert.Equal(t, 75.0, v)

	_, ok = r.ExpectedFor("PPR", "N/A", "MC 2")
	assert.False(t, ok)
}
