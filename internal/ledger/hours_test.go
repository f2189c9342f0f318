package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"production-output-backend/internal/model"
)

func TestElapsedHours(t *testing.T) {
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, 0.5, ElapsedHours(start, start.Add(30*time.Minute)))
	assert.Equal(t, 0.333, ElapsedHours(start, start.Add(20*time.Minute)))
	assert.Equal(t, 26.0, ElapsedHours(start, start.Add(26*time.Hour)))
	assert.Equal(t, -0.25, ElapsedHours(start, start.Add(-15*time.Minute)))
	assert.Equal(t, 0.0, ElapsedHours(start, start))

	// Same wall clock in different zones is the same instant.
	manila := time.FixedZone("PHT", 8*60*60)
	assert.Equal(t, 1.0, ElapsedHours(start, time.Date(2025, 1, 1, 17, 0, 0, 0, manila)))
}

func TestTotalRunningHours(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	open := []model.RunSession{{MachineID: "MC 2", StartAt: t0}}

	t.Run("open session grows with now", func(t *testing.T) {
		assert.Equal(t, 1.0, TotalRunningHours(open, t0.Add(time.Hour)))
		assert.Equal(t, 2.0, TotalRunningHours(open, t0.Add(2*time.Hour)))
	})

	t.Run("same now gives the same total", func(t *testing.T) {
		now := t0.Add(97 * time.Minute)
		assert.Equal(t, TotalRunningHours(open, now), TotalRunningHours(open, now))
	})

	t.Run("closed and open sessions are mixed", func(t *testing.T) {
		end := t0.Add(-time.Hour)
		stored := 1.25
		sessions := []model.RunSession{
			{MachineID: "MC 5", StartAt: t0.Add(-3 * time.Hour), EndAt: &end, DurationHours: &stored},
			{MachineID: "MC 9", StartAt: t0.Add(-2 * time.Hour), EndAt: &end},
			{MachineID: "MC 2", StartAt: t0},
		}
		// 1.25 stored + 1.0 derived + 0.5 live
		assert.Equal(t, 2.75, TotalRunningHours(sessions, t0.Add(30*time.Minute)))
	})

	t.Run("non-decreasing as now advances", func(t *testing.T) {
		prev := TotalRunningHours(open, t0)
		for m := 1; m <= 180; m += 7 {
			cur := TotalRunningHours(open, t0.Add(time.Duration(m)*time.Minute))
			assert.GreaterOrEqual(t, cur, prev)
			prev = cur
		}
	})

	t.Run("no sessions", func(t *testing.T) {
		assert.Equal(t, 0.0, TotalRunningHours(nil, t0))
	})
}

func TestRunningHoursWithin(t *testing.T) {
	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)
	end := day.Add(2 * time.Hour)
	sessions := []model.RunSession{
		{MachineID: "MC 5", StartAt: day.Add(-4 * time.Hour), EndAt: &end},
		{MachineID: "MC 2", StartAt: day.Add(20 * time.Hour)},
	}
	now := next.Add(6 * time.Hour)

	assert.Equal(t, TotalRunningHours(sessions, now), RunningHoursWithin(sessions, now, nil, nil))
	// 2h of MC 5 after midnight + 4h of MC 2 before the next midnight
	assert.Equal(t, 6.0, RunningHoursWithin(sessions, now, &day, &next))
	assert.Equal(t, 4.0, RunningHoursWithin(sessions, now, nil, &day))
	assert.Equal(t, 6.0, RunningHoursWithin(sessions, now, &next, nil))

	later := next.AddDate(0, 0, 1)
	assert.Equal(t, 0.0, RunningHoursWithin(sessions[:1], now, &next, &later))
}
