package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"production-output-backend/internal/errs"
	"production-output-backend/internal/ledger"
	"production-output-backend/internal/model"
	"production-output-backend/internal/reading"
)

type fakeRuns struct {
	reqs []ledger.StartRunRequest
	err  error
}

func (f *fakeRuns) StartRun(ctx context.Context, req ledger.StartRunRequest) (model.RunSession, error) {
	if f.err != nil {
		return model.RunSession{}, f.err
	}
	f.reqs = append(f.reqs, req)
	return model.RunSession{ID: int64(len(f.reqs)), MachineID: req.MachineID}, nil
}

type fakeReadings struct {
	inputs []reading.Input
}

func (f *fakeReadings) Submit(ctx context.Context, in reading.Input) (model.OutputReading, error) {
	f.inputs = append(f.inputs, in)
	return model.OutputReading{ID: int64(len(f.inputs)), MachineID: in.MachineID}, nil
}

type countingCache struct {
	purges int
}

func (c *countingCache) Purge(ctx context.Context) error {
	c.purges++
	return nil
}

func TestTopicToMachine(t *testing.T) {
	testCases := []struct {
		topic     string
		machineID string
		kind      string
		ok        bool
	}{
		{topic: "production/MC 2/run", machineID: "MC 2", kind: "run", ok: true},
		{topic: "production/MC 10/reading", machineID: "MC 10", kind: "reading", ok: true},
		{topic: "production/MC 2/status"},
		{topic: "production//run"},
		{topic: "machine/MC 2/run"},
		{topic: "production/MC 2/run/extra"},
	}

	for _, tc := range testCases {
		t.Run(tc.topic, func(t *testing.T) {
			machineID, kind, ok := TopicToMachine(tc.topic)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.machineID, machineID)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestSubscriber_HandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("run payload starts a run on the topic machine", func(t *testing.T) {
		runs := &fakeRuns{}
		s := NewSubscriber(runs, &fakeReadings{}, zap.NewNop())

		err := s.handleMessage(ctx, "production/MC 5/run",
			[]byte(`{"machineId":"ignored","material":"PPR","size":"25MM","startAt":"2025-01-01T08:00:00Z","submittedBy":"terminal-5"}`))
		require.NoError(t, err)
		require.Len(t, runs.reqs, 1)

		req := runs.reqs[0]
		assert.Equal(t, "MC 5", req.MachineID)
		assert.Equal(t, "25MM", req.Size)
		require.NotNil(t, req.StartAt)
		assert.True(t, req.StartAt.Equal(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)))
		assert.Equal(t, "terminal-5", req.SubmittedBy)
	})

	t.Run("reading payload is submitted", func(t *testing.T) {
		readings := &fakeReadings{}
		s := NewSubscriber(&fakeRuns{}, readings, zap.NewNop())

		err := s.handleMessage(ctx, "production/MC 2/reading",
			[]byte(`{"date":"2025-01-02","material":"PPR","sizePn":"20MM PN 16","actualOutput":70.5,"deviationPct":99}`))
		require.NoError(t, err)
		require.Len(t, readings.inputs, 1)
		assert.Equal(t, "MC 2", readings.inputs[0].MachineID)
		assert.Equal(t, 70.5, readings.inputs[0].ActualOutput)
	})

	t.Run("accepted messages purge the response cache", func(t *testing.T) {
		cache := &countingCache{}
		s := NewSubscriber(&fakeRuns{}, &fakeReadings{}, zap.NewNop())
		s.SetCache(cache)

		require.NoError(t, s.handleMessage(ctx, "production/MC 9/run", []byte(`{"size":"40MM","startAt":"2025-01-01T08:00:00Z"}`)))
		require.NoError(t, s.handleMessage(ctx, "production/MC 9/reading", []byte(`{"date":"2025-01-01","material":"PPR","sizePn":"40MM PN 16","actualOutput":150}`)))
		assert.Equal(t, 2, cache.purges)

		failing := NewSubscriber(&fakeRuns{err: errs.ErrInvalidValue}, &fakeReadings{}, zap.NewNop())
		failing.SetCache(cache)
		assert.Error(t, failing.handleMessage(ctx, "production/MC 9/run", []byte(`{"size":"40MM"}`)))
		assert.Error(t, failing.handleMessage(ctx, "production/MC 9/status", []byte(`{}`)))
		assert.Equal(t, 2, cache.purges)
	})

	t.Run("rejected messages surface the error", func(t *testing.T) {
		runs := &fakeRuns{err: errs.ErrInvalidTime}
		s := NewSubscriber(runs, &fakeReadings{}, zap.NewNop())

		assert.Error(t, s.handleMessage(ctx, "production/MC 2/status", []byte(`{}`)))
		assert.Error(t, s.handleMessage(ctx, "production/MC 2/run", []byte(`not json`)))
		assert.ErrorIs(t, s.handleMessage(ctx, "production/MC 2/run", []byte(`{"size":"20MM","date":"x","time":"y"}`)), errs.ErrInvalidTime)
	})
}
