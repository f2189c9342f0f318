package model

import "time"

// RunSession is one contiguous interval of a machine producing one size/material.
// EndAt and DurationHours are nil while the session is open.
type RunSession struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	MachineID     string     `gorm:"size:64;not null;index:idx_run_sessions_machine_start,priority:1" json:"machineId"`
	Material      string     `gorm:"size:32;not null" json:"material"`
	Size          string     `gorm:"size:64;not null;index" json:"size"`
	StartAt       time.Time  `gorm:"not null;index:idx_run_sessions_machine_start,priority:2" json:"startAt"`
	EndAt         *time.Time `json:"endAt"`
	DurationHours *float64   `json:"durationHours"`
	Remarks       string     `gorm:"size:1024" json:"remarks"`
	SubmittedBy   string     `gorm:"size:128;not null" json:"submittedBy"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Open reports whether the session has no recorded end.
func (r RunSession) Open() bool {
	return r.EndAt == nil
}
