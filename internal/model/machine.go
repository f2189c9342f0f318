package model

import "time"

// Machine is an extrusion line that runs sessions and produces readings.
type Machine struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"` // Operator-facing code, e.g. "MC 2"
	DisplayName string    `gorm:"size:256;not null" json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
