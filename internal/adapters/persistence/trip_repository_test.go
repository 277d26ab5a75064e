package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetdispatch/internal/adapters/persistence"
	"github.com/andrescamacho/fleetdispatch/internal/domain/trip"
	"github.com/andrescamacho/fleetdispatch/test/helpers"
)

func TestTripRepository_CreateAndFindOngoing(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTripRepository(db)
	tr, err := trip.NewTrip("trip-1", "veh-1", "Dock 4", nil, time.Now().UTC())
	require.NoError(t, err)

	// Act
	require.NoError(t, repo.Create(context.Background(), tr))
	ongoing, err := repo.FindOngoingByVehicle(context.Background(), "veh-1")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, ongoing)
	assert.Equal(t, "trip-1", ongoing.ID)
	assert.Equal(t, trip.StatusOngoing, ongoing.Status)
}

func TestTripRepository_RejectsSecondOngoingTrip(t *testing.T) {
	// Arrange - the partial unique index allows one ONGOING trip per vehicle
	db := helpers.NewTestDB(t)
	repo := persistence.NewTripRepository(db)
	first, err := trip.NewTrip("trip-1", "veh-1", "Dock 4", nil, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), first))

	second, err := trip.NewTrip("trip-2", "veh-1", "Berth 12", nil, time.Now().UTC())
	require.NoError(t, err)

	// Act
	err = repo.Create(context.Background(), second)

	// Assert
	require.Error(t, err)
}

func TestTripRepository_CompletedTripFreesTheIndex(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTripRepository(db)
	first, err := trip.NewTrip("trip-1", "veh-1", "Dock 4", nil, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), first))
	require.NoError(t, repo.Complete(context.Background(), "trip-1", time.Now().UTC(), "Dock 4"))

	// Act - a new ONGOING trip is allowed once the first completed
	second, err := trip.NewTrip("trip-2", "veh-1", "Berth 12", nil, time.Now().UTC())
	require.NoError(t, err)
	err = repo.Create(context.Background(), second)

	// Assert
	require.NoError(t, err)

	done, err := repo.FindByID(context.Background(), "trip-1")
	require.NoError(t, err)
	assert.Equal(t, trip.StatusCompleted, done.Status)
	require.NotNil(t, done.EndLocation)
	assert.Equal(t, "Dock 4", *done.EndLocation)
	require.NotNil(t, done.EndAt)
}

func TestTripRepository_CompleteIsGuarded(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewTripRepository(db)
	tr, err := trip.NewTrip("trip-1", "veh-1", "Dock 4", nil, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), tr))
	require.NoError(t, repo.Complete(context.Background(), "trip-1", time.Now().UTC(), "Dock 4"))

	// A second completion finds no ONGOING row
	err = repo.Complete(context.Background(), "trip-1", time.Now().UTC(), "elsewhere")
	require.Error(t, err)
}

func TestTripRepository_Cancel(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewTripRepository(db)
	tr, err := trip.NewTrip("trip-1", "veh-1", "Dock 4", nil, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), tr))

	require.NoError(t, repo.Cancel(context.Background(), "trip-1", time.Now().UTC()))

	cancelled, err := repo.FindByID(context.Background(), "trip-1")
	require.NoError(t, err)
	assert.Equal(t, trip.StatusCanceled, cancelled.Status)
}
