package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/andrescamacho/fleetdispatch/internal/adapters/persistence"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/test/helpers"
)

func seedHistory(t *testing.T, db *gorm.DB, id, vehicleID, faultType, location string, status fault.Status, reportedAt time.Time) {
	t.Helper()
	model := &persistence.FaultModel{
		ID: id, Type: faultType, Location: location,
		Category:          string(fault.CategoryMedium),
		ReportedAt:        reportedAt,
		Status:            string(status),
		AssignedVehicleID: &vehicleID,
	}
	require.NoError(t, db.Create(model).Error)
}

func TestScoringStats_AggregatesPerVehicle(t *testing.T) {
	// Arrange - history for veh-1; veh-2 stays blank
	db := helpers.NewTestDB(t)
	repo := persistence.NewStatsRepository(db)
	now := time.Now().UTC()
	midnight := now.Add(-12 * time.Hour)

	seedHistory(t, db, "hist-1", "veh-1", "ENGINE_FAILURE", "Dock 4", fault.StatusResolved, now.Add(-48*time.Hour))
	seedHistory(t, db, "hist-2", "veh-1", "ENGINE_FAILURE", "Berth 12", fault.StatusResolved, now.Add(-24*time.Hour))
	seedHistory(t, db, "hist-3", "veh-1", "HYDRAULIC_LEAK", "Dock 4", fault.StatusAssigned, now.Add(-2*time.Hour))

	current := helpers.SeedFault(t, db, "fault-now", fault.StatusWaiting, 10.0, 20.0) // ENGINE_FAILURE at Dock 4

	// Act
	stats, err := repo.ScoringStats(context.Background(), []string{"veh-1", "veh-2"}, current, midnight)

	// Assert
	require.NoError(t, err)

	s1 := stats["veh-1"]
	assert.Equal(t, int64(3), s1.Assigned)
	assert.Equal(t, int64(2), s1.Resolved)
	assert.Equal(t, int64(1), s1.FaultsToday)
	assert.Equal(t, int64(1), s1.SameLocation) // hist-1, resolved at Dock 4
	assert.Equal(t, int64(2), s1.SameType)     // hist-1 and hist-2
	assert.InDelta(t, 2.0/3.0, s1.Performance(), 1e-9)
	assert.True(t, s1.LocationExp())
	assert.True(t, s1.TypeExp())

	s2 := stats["veh-2"]
	assert.Equal(t, int64(0), s2.Assigned)
	assert.Equal(t, 0.5, s2.Performance())
	assert.False(t, s2.LocationExp())
	assert.False(t, s2.TypeExp())
}

func TestScoringStats_EmptyCandidateSet(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewStatsRepository(db)
	current := helpers.SeedFault(t, db, "fault-now", fault.StatusWaiting, 10.0, 20.0)

	stats, err := repo.ScoringStats(context.Background(), nil, current, time.Now().UTC())

	require.NoError(t, err)
	assert.Empty(t, stats)
}
