package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetdispatch/internal/adapters/persistence"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
	"github.com/andrescamacho/fleetdispatch/test/helpers"
)

func TestVehicleRepository_FindByIDLoadsDevice(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewVehicleRepository(db)
	helpers.SeedVehicle(t, db, "veh-1", "V-001", fleet.VehicleStatusAvailable, true)

	// Act
	v, err := repo.FindByID(context.Background(), "veh-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "V-001", v.Number)
	assert.True(t, v.HasDevice())
	require.NotNil(t, v.Device)
	assert.Equal(t, "ext-veh-1", v.Device.ExternalDeviceID)
}

func TestVehicleRepository_FindByIDNotFound(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewVehicleRepository(db)

	_, err := repo.FindByID(context.Background(), "ghost")

	var notFound *shared.NotFoundError
	require.Error(t, err)
	assert.ErrorAs(t, err, &notFound)
}

func TestVehicleRepository_FindByNumber(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewVehicleRepository(db)
	helpers.SeedVehicle(t, db, "veh-1", "V-001", fleet.VehicleStatusAvailable, false)

	v, err := repo.FindByNumber(context.Background(), "V-001")

	require.NoError(t, err)
	assert.Equal(t, "veh-1", v.ID)
	assert.False(t, v.HasDevice())
}

func TestVehicleRepository_ListByStatus(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewVehicleRepository(db)
	helpers.SeedVehicle(t, db, "veh-1", "V-001", fleet.VehicleStatusAvailable, true)
	helpers.SeedVehicle(t, db, "veh-2", "V-002", fleet.VehicleStatusOnRoute, true)
	helpers.SeedVehicle(t, db, "veh-3", "V-003", fleet.VehicleStatusAvailable, false)

	// Act
	available, err := repo.ListByStatus(context.Background(), fleet.VehicleStatusAvailable)

	// Assert
	require.NoError(t, err)
	require.Len(t, available, 2)
	ids := []string{available[0].ID, available[1].ID}
	assert.ElementsMatch(t, []string{"veh-1", "veh-3"}, ids)
}

func TestVehicleRepository_ListByStatuses(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewVehicleRepository(db)
	helpers.SeedVehicle(t, db, "veh-1", "V-001", fleet.VehicleStatusOnRoute, true)
	helpers.SeedVehicle(t, db, "veh-2", "V-002", fleet.VehicleStatusWorking, true)
	helpers.SeedVehicle(t, db, "veh-3", "V-003", fleet.VehicleStatusAvailable, true)

	dispatched, err := repo.ListByStatuses(context.Background(), fleet.ActiveStatuses())

	require.NoError(t, err)
	assert.Len(t, dispatched, 2)
}

func TestVehicleRepository_TransitionStatusGuardsFromState(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewVehicleRepository(db)
	helpers.SeedVehicle(t, db, "veh-1", "V-001", fleet.VehicleStatusAvailable, true)

	// Act
	ok := repo.TransitionStatus(context.Background(), "veh-1",
		fleet.VehicleStatusAvailable, fleet.VehicleStatusOnRoute)
	stale := repo.TransitionStatus(context.Background(), "veh-1",
		fleet.VehicleStatusAvailable, fleet.VehicleStatusOnRoute)

	// Assert
	require.NoError(t, ok)
	var contended *shared.ContendedError
	require.Error(t, stale)
	assert.ErrorAs(t, stale, &contended)
}

func TestVehicleRepository_ForceStatus(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewVehicleRepository(db)
	helpers.SeedVehicle(t, db, "veh-1", "V-001", fleet.VehicleStatusWorking, true)

	require.NoError(t, repo.ForceStatus(context.Background(), "veh-1", fleet.VehicleStatusAvailable))

	v, err := repo.FindByID(context.Background(), "veh-1")
	require.NoError(t, err)
	assert.Equal(t, fleet.VehicleStatusAvailable, v.Status)
}
