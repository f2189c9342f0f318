package model

import "time"

// ReferenceEntry is the expected output rate for one material/size/pressure/machine tuple.
type ReferenceEntry struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Material       string    `gorm:"size:32;not null;uniqueIndex:idx_reference_key,priority:1" json:"material"`
	Size           string    `gorm:"size:32;not null;uniqueIndex:idx_reference_key,priority:2" json:"size"`
	PressureRating string    `gorm:"size:16;not null;uniqueIndex:idx_reference_key,priority:3" json:"pressureRating"`
	MachineID      string    `gorm:"size:64;not null;uniqueIndex:idx_reference_key,priority:4" json:"machineId"`
	Rate           float64   `gorm:"not null" json:"rate"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
