package db

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"production-output-backend/config"
	"production-output-backend/internal/model"
)

func TestInit_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel: "silent",
	}

	gormDB, err := Init(cfg)
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	first := model.RunSession{MachineID: "MC 2", Material: "PPR", Size: "20MM PN 16", StartAt: start, SubmittedBy: "ada"}
	require.NoError(t, gormDB.Create(&first).Error)

	// A second open run for the same machine violates the partial unique index.
	second := model.RunSession{MachineID: "MC 2", Material: "PPR", Size: "25MM PN 16", StartAt: start.Add(time.Hour), SubmittedBy: "ada"}
	assert.Error(t, gormDB.Create(&second).Error)

	// Closed runs are not constrained.
	end := start.Add(-2 * time.Hour)
	closed := model.RunSession{MachineID: "MC 2", Material: "PPR", Size: "32MM PN 16", StartAt: start.Add(-4 * time.Hour), EndAt: &end, SubmittedBy: "ada"}
	assert.NoError(t, gormDB.Create(&closed).Error)

	// Another machine may have its own open run.
	other := model.RunSession{MachineID: "MC 5", Material: "PPR", Size: "20MM PN 16", StartAt: start, SubmittedBy: "ada"}
	assert.NoError(t, gormDB.Create(&other).Error)
}

func TestInit_UnknownDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
