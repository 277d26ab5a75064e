package lifecycle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andrescamacho/fleetdispatch/internal/adapters/persistence"
	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	"github.com/andrescamacho/fleetdispatch/internal/application/lifecycle"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
	"github.com/andrescamacho/fleetdispatch/internal/domain/routing"
	"github.com/andrescamacho/fleetdispatch/test/helpers"
)

func newSweeperFixture(t *testing.T) (*lifecycle.Sweeper, *serviceFixture) {
	fx := newServiceFixture(t, lifecycleConfig(false))
	sweeper := lifecycle.NewSweeper(
		lifecycleConfig(false),
		persistence.NewVehicleRepository(fx.db),
		persistence.NewFaultRepository(fx.db),
		persistence.NewRouteRepository(fx.db),
		fx.timers,
		helpers.NewMemCache(),
		fx.bus,
		common.NewKeyedMutex(),
		zap.NewNop(),
		nil,
	)
	return sweeper, fx
}

func TestSweep_RecoversStuckVehicle(t *testing.T) {
	// Arrange - ON_ROUTE vehicle with no fault holding it and no live deadline
	sweeper, fx := newSweeperFixture(t)
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusOnRoute, true)
	seedActiveRoute(t, fx, "veh-1", "fault-gone")

	// Act
	err := sweeper.Sweep(context.Background())

	// Assert - back to AVAILABLE, routes cancelled, clients notified
	require.NoError(t, err)

	v, err := persistence.NewVehicleRepository(fx.db).FindByID(context.Background(), "veh-1")
	require.NoError(t, err)
	assert.Equal(t, fleet.VehicleStatusAvailable, v.Status)

	active, err := persistence.NewRouteRepository(fx.db).FindActiveByVehicle(context.Background(), "veh-1")
	require.NoError(t, err)
	assert.Nil(t, active)

	payload, ok := fx.bus.Last(common.EventVehicleStatusChange)
	require.True(t, ok)
	event, ok := payload.(common.VehicleStatusChangeEvent)
	require.True(t, ok)
	assert.True(t, event.UpdatedFields.ClearRoute)
}

func TestSweep_LeavesVehicleHoldingFault(t *testing.T) {
	// Arrange - legitimately dispatched vehicle
	sweeper, fx := newSweeperFixture(t)
	vehicleID := "veh-1"
	helpers.SeedVehicle(t, fx.db, vehicleID, "V-001", fleet.VehicleStatusOnRoute, true)
	helpers.SeedFaultWithVehicle(t, fx.db, "fault-1", fault.StatusPendingConfirmation, 10.0, 20.0, &vehicleID)

	// Act
	err := sweeper.Sweep(context.Background())

	// Assert
	require.NoError(t, err)
	v, err := persistence.NewVehicleRepository(fx.db).FindByID(context.Background(), "veh-1")
	require.NoError(t, err)
	assert.Equal(t, fleet.VehicleStatusOnRoute, v.Status)
}

func TestSweep_LeavesVehicleWithLiveAckDeadline(t *testing.T) {
	// Arrange - reservation write still settling, only the timer knows
	sweeper, fx := newSweeperFixture(t)
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusOnRoute, true)
	fx.timers.ArmAckDeadline("fault-1", "veh-1")

	// Act
	err := sweeper.Sweep(context.Background())

	// Assert
	require.NoError(t, err)
	v, err := persistence.NewVehicleRepository(fx.db).FindByID(context.Background(), "veh-1")
	require.NoError(t, err)
	assert.Equal(t, fleet.VehicleStatusOnRoute, v.Status)
}

func TestSweep_IgnoresAvailableVehicles(t *testing.T) {
	sweeper, fx := newSweeperFixture(t)
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusAvailable, true)
	seedActiveRoute(t, fx, "veh-1", "fault-1")

	err := sweeper.Sweep(context.Background())

	require.NoError(t, err)
	// An AVAILABLE vehicle is out of scope, its routes are not touched
	active, err := persistence.NewRouteRepository(fx.db).FindActiveByVehicle(context.Background(), "veh-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, routing.StatusActive, active.Status)
}
