package ledger

import (
	"math"
	"time"

	"production-output-backend/internal/model"
)

// ElapsedHours returns end - start in hours, rounded to 3 decimals.
// The result is negative when end precedes start.
func ElapsedHours(start, end time.Time) float64 {
	return round3(end.Sub(start).Hours())
}

// TotalRunningHours sums the stored duration of closed sessions and the live
// elapsed time (now - start) of open ones. Only the total is rounded.
func TotalRunningHours(sessions []model.RunSession, now time.Time) float64 {
	var total float64
	for _, s := range sessions {
		switch {
		case s.Open():
			total += now.Sub(s.StartAt).Hours()
		case s.DurationHours != nil:
			total += *s.DurationHours
		default:
			total += s.EndAt.Sub(s.StartAt).Hours()
		}
	}
	return round3(total)
}

// RunningHoursWithin is TotalRunningHours restricted to [from, to). A nil
// bound leaves that side open; with both nil it equals TotalRunningHours.
func RunningHoursWithin(sessions []model.RunSession, now time.Time, from, to *time.Time) float64 {
	if from == nil && to == nil {
		return TotalRunningHours(sessions, now)
	}
	var total float64
	for _, s := range sessions {
		start, end := s.StartAt, now
		if !s.Open() {
			end = *s.EndAt
		}
		if from != nil && start.Before(*from) {
			start = *from
		}
		if to != nil && end.After(*to) {
			end = *to
		}
		if end.After(start) {
			total += end.Sub(start).Hours()
		}
	}
	return round3(total)
}

func round3(h float64) float64 {
	return math.Round(h*1000) / 1000
}
