package store

import (
	"time"

	"production-output-backend/internal/model"
)

// ReadingFilter narrows reading queries. Empty slices and nil bounds match everything.
// From and To are inclusive effective dates.
type ReadingFilter struct {
	Materials []string
	Machines  []string
	Sizes     []string
	From      *time.Time
	To        *time.Time
}

// MachineSummary is a machine together with its activity counts.
type MachineSummary struct {
	model.Machine
	ReadingCount int64 `json:"readingCount"`
	RunCount     int64 `json:"runCount"`
}
