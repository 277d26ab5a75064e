package dispatch_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andrescamacho/fleetdispatch/internal/adapters/persistence"
	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	"github.com/andrescamacho/fleetdispatch/internal/application/dispatch"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/config"
	"github.com/andrescamacho/fleetdispatch/test/helpers"
)

type recordingAck struct {
	mu    sync.Mutex
	armed []string
}

func (r *recordingAck) ArmAckDeadline(faultID, vehicleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = append(r.armed, faultID+"/"+vehicleID)
}

type recordingConfirmer struct {
	mu        sync.Mutex
	confirmed []string
}

func (r *recordingConfirmer) Confirm(_ context.Context, faultID, vehicleNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, faultID+"/"+vehicleNumber)
	return nil
}

type engineFixture struct {
	engine    *dispatch.Engine
	db        *gorm.DB
	bus       *helpers.RecordingBus
	device    *helpers.StubDeviceChannel
	ml        *helpers.StubMLClient
	ack       *recordingAck
	confirmer *recordingConfirmer
}

func testDispatchConfig(prototype bool) config.DispatchConfig {
	return config.DispatchConfig{
		Engine:                  config.ScorerRule,
		PrototypeMode:           prototype,
		AckDeadlineMS:           60000,
		AutoResolveMS:           30000,
		SweeperIntervalMS:       30000,
		ArrivalThresholdM:       50,
		DeviationThresholdM:     200,
		MinDistToDestForRecalcM: 500,
		DefaultLocationLat:      10.0,
		DefaultLocationLon:      20.0,
		BatchCap:                100,
	}
}

func newEngineFixture(t *testing.T, cfg config.DispatchConfig) *engineFixture {
	db := helpers.NewTestDB(t)

	fx := &engineFixture{
		db:        db,
		bus:       helpers.NewRecordingBus(),
		device:    helpers.NewStubDeviceChannel(),
		ml:        helpers.NewStubMLClient(),
		ack:       &recordingAck{},
		confirmer: &recordingConfirmer{},
	}

	fx.engine = dispatch.NewEngine(cfg, dispatch.EngineDeps{
		Faults:       persistence.NewFaultRepository(db),
		Vehicles:     persistence.NewVehicleRepository(db),
		Stats:        persistence.NewStatsRepository(db),
		Alerts:       persistence.NewAlertRepository(db),
		Routes:       persistence.NewRouteRepository(db),
		Samples:      persistence.NewTelemetryRepository(db),
		Planner:      helpers.NewStubPlanner(),
		Reservations: persistence.NewReservationStore(db),
		ML:           fx.ml,
		Device:       fx.device,
		Cache:        helpers.NewMemCache(),
		Bus:          fx.bus,
		Logger:       zap.NewNop(),
		VehicleLocks: common.NewKeyedMutex(),
		FaultLocks:   common.NewKeyedMutex(),
	})
	fx.engine.SetAckScheduler(fx.ack)
	fx.engine.SetConfirmer(fx.confirmer)
	return fx
}

func TestDispatchFault_HappyPath(t *testing.T) {
	// Arrange
	fx := newEngineFixture(t, testDispatchConfig(false))
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusAvailable, true)
	helpers.SeedFault(t, fx.db, "fault-1", fault.StatusWaiting, 10.001, 20.0)

	// Act
	result, err := fx.engine.DispatchFault(context.Background(), "fault-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, dispatch.OutcomeDispatched, result.Outcome)
	assert.Equal(t, "veh-1", result.VehicleID)
	assert.Equal(t, "V-001", result.VehicleNumber)

	// Fault reserved with the vehicle recorded
	f, err := persistence.NewFaultRepository(fx.db).FindByID(context.Background(), "fault-1")
	require.NoError(t, err)
	assert.Equal(t, fault.StatusPendingConfirmation, f.Status)
	require.NotNil(t, f.AssignedVehicleID)
	assert.Equal(t, "veh-1", *f.AssignedVehicleID)

	// Vehicle committed
	v, err := persistence.NewVehicleRepository(fx.db).FindByID(context.Background(), "veh-1")
	require.NoError(t, err)
	assert.Equal(t, fleet.VehicleStatusOnRoute, v.Status)

	// Route persisted ACTIVE for the pair
	route, err := persistence.NewRouteRepository(fx.db).FindActiveByVehicleAndFault(context.Background(), "veh-1", "fault-1")
	require.NoError(t, err)
	require.NotNil(t, route)

	// Alert created unsolved
	alerts, err := persistence.NewAlertRepository(fx.db).FindByFault(context.Background(), "fault-1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.False(t, alerts[0].Solved)

	// Device addressed and the ack deadline armed
	require.Len(t, fx.device.Commands(), 1)
	assert.Equal(t, "ext-veh-1", fx.device.Commands()[0].ExternalDeviceID)
	assert.Equal(t, []string{"fault-1/veh-1"}, fx.ack.armed)
	assert.Empty(t, fx.confirmer.confirmed)

	// Events out
	assert.Equal(t, 1, fx.bus.Count(common.EventFaultDispatched))
	assert.Equal(t, 1, fx.bus.Count(common.EventDispatchComplete))
	assert.GreaterOrEqual(t, fx.bus.Count(common.EventVehicleStatusChange), 1)
}

func TestDispatchFault_WrongStateWhenNotWaiting(t *testing.T) {
	fx := newEngineFixture(t, testDispatchConfig(false))
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusAvailable, true)
	helpers.SeedFault(t, fx.db, "fault-1", fault.StatusResolved, 10.001, 20.0)

	result, err := fx.engine.DispatchFault(context.Background(), "fault-1")

	var wrongState *shared.WrongStateError
	require.Error(t, err)
	assert.ErrorAs(t, err, &wrongState)
	assert.Equal(t, dispatch.OutcomeWrongState, result.Outcome)
}

func TestDispatchFault_NoCandidateWithoutVehicles(t *testing.T) {
	fx := newEngineFixture(t, testDispatchConfig(false))
	helpers.SeedFault(t, fx.db, "fault-1", fault.StatusWaiting, 10.001, 20.0)

	_, err := fx.engine.DispatchFault(context.Background(), "fault-1")

	var noCandidate *shared.NoCandidateError
	require.Error(t, err)
	assert.ErrorAs(t, err, &noCandidate)

	// Fault stays WAITING
	f, err := persistence.NewFaultRepository(fx.db).FindByID(context.Background(), "fault-1")
	require.NoError(t, err)
	assert.Equal(t, fault.StatusWaiting, f.Status)
}

func TestDispatchFault_StrictModeRequiresDevice(t *testing.T) {
	// Arrange - one device-less vehicle in strict mode
	fx := newEngineFixture(t, testDispatchConfig(false))
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusAvailable, false)
	helpers.SeedFault(t, fx.db, "fault-1", fault.StatusWaiting, 10.001, 20.0)

	// Act
	_, err := fx.engine.DispatchFault(context.Background(), "fault-1")

	// Assert
	var noCandidate *shared.NoCandidateError
	require.Error(t, err)
	assert.ErrorAs(t, err, &noCandidate)
}

func TestDispatchFault_PrototypeModeAutoConfirmsWithoutDevice(t *testing.T) {
	// Arrange
	fx := newEngineFixture(t, testDispatchConfig(true))
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusAvailable, false)
	helpers.SeedFault(t, fx.db, "fault-1", fault.StatusWaiting, 10.001, 20.0)

	// Act
	result, err := fx.engine.DispatchFault(context.Background(), "fault-1")

	// Assert - dispatched, no device command, no ack timer, auto-confirmed
	require.NoError(t, err)
	assert.Equal(t, dispatch.OutcomeDispatched, result.Outcome)
	assert.Empty(t, fx.device.Commands())
	assert.Empty(t, fx.ack.armed)
	assert.Equal(t, []string{"fault-1/V-001"}, fx.confirmer.confirmed)
}

func TestDispatchFault_ExcludesTimedOutVehicles(t *testing.T) {
	// Arrange - veh-1 already timed out on this fault
	fx := newEngineFixture(t, testDispatchConfig(false))
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusAvailable, true)
	helpers.SeedVehicle(t, fx.db, "veh-2", "V-002", fleet.VehicleStatusAvailable, true)
	helpers.SeedFault(t, fx.db, "fault-1", fault.StatusWaiting, 10.001, 20.0)
	fx.engine.TimedOut().Add("fault-1", "veh-1")

	// Act
	result, err := fx.engine.DispatchFault(context.Background(), "fault-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "veh-2", result.VehicleID)
}

func TestDispatchFault_RuleScorerPrefersProvenPerformer(t *testing.T) {
	// Arrange - veh-2 has resolved history, veh-1 has none
	fx := newEngineFixture(t, testDispatchConfig(false))
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusAvailable, true)
	helpers.SeedVehicle(t, fx.db, "veh-2", "V-002", fleet.VehicleStatusAvailable, true)
	vehicleID := "veh-2"
	helpers.SeedFaultWithVehicle(t, fx.db, "fault-old", fault.StatusResolved, 10.002, 20.0, &vehicleID)
	helpers.SeedFault(t, fx.db, "fault-1", fault.StatusWaiting, 10.001, 20.0)

	// Act
	result, err := fx.engine.DispatchFault(context.Background(), "fault-1")

	// Assert - perf 1.0 plus type/location experience beats the baseline
	require.NoError(t, err)
	assert.Equal(t, "veh-2", result.VehicleID)
}

func TestDispatchFault_MLFallsBackToRuleOnFailure(t *testing.T) {
	// Arrange - ML configured, healthy, but failing
	cfg := testDispatchConfig(false)
	cfg.Engine = config.ScorerML
	fx := newEngineFixture(t, cfg)
	fx.ml.ScriptFailure(shared.NewMLUnavailableError("boom"))
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusAvailable, true)
	helpers.SeedFault(t, fx.db, "fault-1", fault.StatusWaiting, 10.001, 20.0)

	// Act
	result, err := fx.engine.DispatchFault(context.Background(), "fault-1")

	// Assert - the failure degrades, never surfaces
	require.NoError(t, err)
	assert.Equal(t, dispatch.OutcomeDispatched, result.Outcome)
	assert.Equal(t, 1, fx.ml.PredictCalls())
}

func TestDispatchFault_MLPredictionWins(t *testing.T) {
	// Arrange - single candidate, scripted prediction
	cfg := testDispatchConfig(false)
	cfg.Engine = config.ScorerML
	fx := newEngineFixture(t, cfg)
	fx.ml.ScriptPrediction(&common.MLPrediction{BestIndex: 0, Scores: []float64{0.9}})
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusAvailable, true)
	helpers.SeedFault(t, fx.db, "fault-1", fault.StatusWaiting, 10.001, 20.0)

	// Act
	result, err := fx.engine.DispatchFault(context.Background(), "fault-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "veh-1", result.VehicleID)
	assert.Equal(t, 1, fx.ml.PredictCalls())
}

func TestRunBatch_DrainsOldestFirstUntilFleetExhausted(t *testing.T) {
	// Arrange - two faults, one vehicle
	fx := newEngineFixture(t, testDispatchConfig(false))
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusAvailable, true)
	helpers.SeedFault(t, fx.db, "fault-1", fault.StatusWaiting, 10.001, 20.0)
	helpers.SeedFault(t, fx.db, "fault-2", fault.StatusWaiting, 10.002, 20.0)

	// Act
	summary, err := fx.engine.RunBatch(context.Background())

	// Assert - one dispatched, the other fails with no availability left
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Dispatched)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Results, 2)
}

func TestRunBatch_EmptyQueue(t *testing.T) {
	fx := newEngineFixture(t, testDispatchConfig(false))

	summary, err := fx.engine.RunBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Dispatched)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, summary.Results)
}
