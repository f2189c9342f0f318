package model

import "time"

// OutputReading is one operator-submitted output sample. It is never updated.
type OutputReading struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	SubmittedAt    time.Time  `gorm:"not null;index" json:"submittedAt"`
	Date           time.Time  `gorm:"not null;index" json:"date"` // Effective production date (midnight, ledger timezone)
	MachineID      string     `gorm:"size:64;not null;index" json:"machineId"`
	Material       string     `gorm:"size:32;not null;index" json:"material"`
	SizePN         string     `gorm:"column:size_pn;size:64;not null;index" json:"sizePn"`
	ExpectedOutput *float64   `json:"expectedOutput"`
	ActualOutput   float64    `gorm:"not null" json:"actualOutput"`
	DeviationPct   float64    `gorm:"not null" json:"deviationPct"`
	ShiftStart     *time.Time `json:"shiftStart"`
	ShiftEnd       *time.Time `json:"shiftEnd"`
	ShiftHours     float64    `gorm:"not null;default:0" json:"shiftHours"`
	Remarks        string     `gorm:"size:1024" json:"remarks"`
	SubmittedBy    string     `gorm:"size:128;not null" json:"submittedBy"`
}
