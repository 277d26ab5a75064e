package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andrescamacho/fleetdispatch/internal/adapters/persistence"
	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	"github.com/andrescamacho/fleetdispatch/internal/application/dispatch"
	"github.com/andrescamacho/fleetdispatch/internal/application/lifecycle"
	"github.com/andrescamacho/fleetdispatch/internal/application/tracking"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/config"
	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/database"
	"github.com/andrescamacho/fleetdispatch/test/helpers"
)

type dispatchContext struct {
	db      *gorm.DB
	engine  *dispatch.Engine
	service *lifecycle.Service
	tracker *tracking.Handler
	timers  *lifecycle.TimerService
	device  *helpers.StubDeviceChannel
	bus     *helpers.RecordingBus

	lastResult *dispatch.DispatchResult
	lastErr    error
}

func (dc *dispatchContext) reset() error {
	cfg := config.DispatchConfig{
		Engine:                  config.ScorerRule,
		AckDeadlineMS:           60000,
		AutoResolveMS:           60000,
		SweeperIntervalMS:       30000,
		ArrivalThresholdM:       100,
		DeviationThresholdM:     100,
		MinDistToDestForRecalcM: 500,
		DefaultLocationLat:      10.0,
		DefaultLocationLon:      20.0,
		BatchCap:                100,
	}

	db, err := database.NewTestConnection()
	if err != nil {
		return err
	}
	dc.db = db

	logger := zap.NewNop()
	dc.bus = helpers.NewRecordingBus()
	dc.device = helpers.NewStubDeviceChannel()
	memCache := helpers.NewMemCache()
	planner := helpers.NewStubPlanner()
	ml := helpers.NewStubMLClient()
	vehicleLocks := common.NewKeyedMutex()
	faultLocks := common.NewKeyedMutex()
	timedOut := dispatch.NewTimedOutSet()

	dc.timers = lifecycle.NewTimerService(cfg, logger, nil)

	faults := persistence.NewFaultRepository(db)
	vehicles := persistence.NewVehicleRepository(db)

	dc.service = lifecycle.NewService(cfg, lifecycle.ServiceDeps{
		Faults:       faults,
		Vehicles:     vehicles,
		Trips:        persistence.NewTripRepository(db),
		Routes:       persistence.NewRouteRepository(db),
		Alerts:       persistence.NewAlertRepository(db),
		Reservations: persistence.NewReservationStore(db),
		Cache:        memCache,
		Bus:          dc.bus,
		Logger:       logger,
		Timers:       dc.timers,
		TimedOut:     timedOut,
		VehicleLocks: vehicleLocks,
		FaultLocks:   faultLocks,
	})

	dc.engine = dispatch.NewEngine(cfg, dispatch.EngineDeps{
		Faults:       faults,
		Vehicles:     vehicles,
		Stats:        persistence.NewStatsRepository(db),
		Alerts:       persistence.NewAlertRepository(db),
		Routes:       persistence.NewRouteRepository(db),
		Samples:      persistence.NewTelemetryRepository(db),
		Planner:      planner,
		Reservations: persistence.NewReservationStore(db),
		ML:           ml,
		Device:       dc.device,
		Cache:        memCache,
		Bus:          dc.bus,
		Logger:       logger,
		TimedOut:     timedOut,
		VehicleLocks: vehicleLocks,
		FaultLocks:   faultLocks,
	})
	dc.engine.SetAckScheduler(dc.timers)
	dc.engine.SetConfirmer(dc.service)
	dc.service.SetRedispatcher(dc.engine)

	dc.tracker = tracking.NewHandler(cfg, tracking.HandlerDeps{
		Samples:      persistence.NewTelemetryRepository(db),
		Vehicles:     vehicles,
		Faults:       faults,
		Routes:       persistence.NewRouteRepository(db),
		Planner:      planner,
		Timers:       dc.timers,
		Cache:        memCache,
		Bus:          dc.bus,
		Logger:       logger,
		VehicleLocks: vehicleLocks,
	})

	dc.lastResult = nil
	dc.lastErr = nil
	return nil
}

func (dc *dispatchContext) teardown() {
	if dc.timers != nil {
		dc.timers.Stop()
	}
	if dc.db != nil {
		_ = database.Close(dc.db)
	}
}

// Given steps

func (dc *dispatchContext) theFollowingVehicles(table *godog.Table) error {
	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header
		}
		id := row.Cells[0].Value
		number := row.Cells[1].Value
		status := row.Cells[2].Value
		withDevice := row.Cells[3].Value == "yes"

		model := &persistence.VehicleModel{ID: id, Number: number, Status: status}
		if err := dc.db.Create(model).Error; err != nil {
			return err
		}
		if withDevice {
			deviceID := id + "-device"
			device := &persistence.DeviceModel{
				ID:               deviceID,
				ExternalDeviceID: "ext-" + id,
				VehicleID:        &id,
				Status:           "ACTIVE",
				InstalledAt:      time.Now().UTC(),
			}
			if err := dc.db.Create(device).Error; err != nil {
				return err
			}
			if err := dc.db.Model(model).Update("device_id", deviceID).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (dc *dispatchContext) aWaitingFault(id, faultType, category string, lat, lon float64) error {
	model := &persistence.FaultModel{
		ID:         id,
		Type:       faultType,
		Location:   "Dock 4",
		Category:   category,
		Lat:        lat,
		Lon:        lon,
		ReportedAt: time.Now().UTC(),
		Status:     string(fault.StatusWaiting),
	}
	return dc.db.Create(model).Error
}

// When steps

func (dc *dispatchContext) faultIsDispatched(faultID string) error {
	dc.lastResult, dc.lastErr = dc.engine.DispatchFault(context.Background(), faultID)
	return nil
}

func (dc *dispatchContext) vehicleConfirmsFault(vehicleNumber, faultID string) error {
	return dc.service.Confirm(context.Background(), faultID, vehicleNumber)
}

func (dc *dispatchContext) vehicleResolvesFault(vehicleNumber, faultID string) error {
	return dc.service.Resolve(context.Background(), faultID, vehicleNumber)
}

func (dc *dispatchContext) vehicleReportsPosition(vehicleID string, lat, lon float64) error {
	return dc.tracker.Ingest(context.Background(), vehicleID, lat, lon, 5.0)
}

// Then steps

func (dc *dispatchContext) theDispatchOutcomeIs(outcome string) error {
	if dc.lastResult == nil {
		return fmt.Errorf("no dispatch was attempted")
	}
	if dc.lastResult.Outcome != outcome {
		return fmt.Errorf("expected outcome %q, got %q (err: %v)", outcome, dc.lastResult.Outcome, dc.lastErr)
	}
	return nil
}

func (dc *dispatchContext) theDispatchSelectedVehicle(vehicleID string) error {
	if dc.lastResult == nil {
		return fmt.Errorf("no dispatch was attempted")
	}
	if dc.lastResult.VehicleID != vehicleID {
		return fmt.Errorf("expected vehicle %q, got %q", vehicleID, dc.lastResult.VehicleID)
	}
	return nil
}

func (dc *dispatchContext) faultHasStatus(faultID, status string) error {
	f, err := persistence.NewFaultRepository(dc.db).FindByID(context.Background(), faultID)
	if err != nil {
		return err
	}
	if string(f.Status) != status {
		return fmt.Errorf("expected fault %s in %s, got %s", faultID, status, f.Status)
	}
	return nil
}

func (dc *dispatchContext) vehicleHasStatus(vehicleID, status string) error {
	v, err := persistence.NewVehicleRepository(dc.db).FindByID(context.Background(), vehicleID)
	if err != nil {
		return err
	}
	if string(v.Status) != status {
		return fmt.Errorf("expected vehicle %s in %s, got %s", vehicleID, status, v.Status)
	}
	return nil
}

func (dc *dispatchContext) aDispatchCommandIsSentToDevice(externalDeviceID string) error {
	for _, cmd := range dc.device.Commands() {
		if cmd.ExternalDeviceID == externalDeviceID {
			return nil
		}
	}
	return fmt.Errorf("no dispatch command sent to %s", externalDeviceID)
}

func (dc *dispatchContext) vehicleHasAnOngoingTrip(vehicleID string) error {
	t, err := persistence.NewTripRepository(dc.db).FindOngoingByVehicle(context.Background(), vehicleID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("vehicle %s has no ongoing trip", vehicleID)
	}
	return nil
}

func (dc *dispatchContext) vehicleHasNoOngoingTrip(vehicleID string) error {
	t, err := persistence.NewTripRepository(dc.db).FindOngoingByVehicle(context.Background(), vehicleID)
	if err != nil {
		return err
	}
	if t != nil {
		return fmt.Errorf("vehicle %s still has ongoing trip %s", vehicleID, t.ID)
	}
	return nil
}

func (dc *dispatchContext) theDispatchFailsWithNoCandidate() error {
	if dc.lastErr == nil {
		return fmt.Errorf("expected a dispatch failure")
	}
	if dc.lastResult == nil || dc.lastResult.Outcome != "no_candidate" {
		return fmt.Errorf("expected no_candidate outcome, got %+v", dc.lastResult)
	}
	return nil
}

func (dc *dispatchContext) eventWasPublished(name string) error {
	if dc.bus.Count(name) == 0 {
		return fmt.Errorf("event %s was never published (saw: %v)", name, dc.bus.Names())
	}
	return nil
}

// InitializeDispatchScenario registers the dispatch lifecycle step definitions
func InitializeDispatchScenario(sc *godog.ScenarioContext) {
	dc := &dispatchContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, dc.reset()
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		dc.teardown()
		return ctx, nil
	})

	sc.Given(`^the following vehicles:$`, dc.theFollowingVehicles)
	sc.Given(`^a waiting fault "([^"]*)" of type "([^"]*)" and category "([^"]*)" at (-?\d+\.?\d*), (-?\d+\.?\d*)$`, dc.aWaitingFault)

	sc.When(`^fault "([^"]*)" is dispatched$`, dc.faultIsDispatched)
	sc.When(`^vehicle "([^"]*)" confirms fault "([^"]*)"$`, dc.vehicleConfirmsFault)
	sc.When(`^vehicle "([^"]*)" resolves fault "([^"]*)"$`, dc.vehicleResolvesFault)
	sc.When(`^vehicle "([^"]*)" reports position (-?\d+\.?\d*), (-?\d+\.?\d*)$`, dc.vehicleReportsPosition)

	sc.Then(`^the dispatch outcome is "([^"]*)"$`, dc.theDispatchOutcomeIs)
	sc.Then(`^the dispatch selected vehicle "([^"]*)"$`, dc.theDispatchSelectedVehicle)
	sc.Then(`^the dispatch fails with no candidate$`, dc.theDispatchFailsWithNoCandidate)
	sc.Then(`^fault "([^"]*)" has status "([^"]*)"$`, dc.faultHasStatus)
	sc.Then(`^vehicle "([^"]*)" has status "([^"]*)"$`, dc.vehicleHasStatus)
	sc.Then(`^a dispatch command is sent to device "([^"]*)"$`, dc.aDispatchCommandIsSentToDevice)
	sc.Then(`^vehicle "([^"]*)" has an ongoing trip$`, dc.vehicleHasAnOngoingTrip)
	sc.Then(`^vehicle "([^"]*)" has no ongoing trip$`, dc.vehicleHasNoOngoingTrip)
	sc.Then(`^the "([^"]*)" event was published$`, dc.eventWasPublished)
}
