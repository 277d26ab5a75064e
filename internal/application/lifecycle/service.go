package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	"github.com/andrescamacho/fleetdispatch/internal/application/dispatch"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
	"github.com/andrescamacho/fleetdispatch/internal/domain/routing"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
	"github.com/andrescamacho/fleetdispatch/internal/domain/trip"
	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/config"
)

// managedBy marks trips opened by the dispatch core rather than an operator
const managedBy = "dispatch-core"

// timerCtxTimeout bounds the store work of one timer callback
const timerCtxTimeout = 10 * time.Second

// Redispatcher re-runs the dispatch decision after an acknowledgement timeout
type Redispatcher interface {
	DispatchFault(ctx context.Context, faultID string) (*dispatch.DispatchResult, error)
}

// ReservationReleaser undoes an unacknowledged reservation as one write
type ReservationReleaser interface {
	Release(ctx context.Context, faultID, vehicleID string) error
}

// Service drives the fault and vehicle state machines past the dispatch
// reservation: confirmation, resolution, acknowledgement timeout and
// auto-resolution.
type Service struct {
	faults       fault.Repository
	vehicles     fleet.VehicleRepository
	trips        trip.Repository
	routes       routing.Repository
	alerts       fault.AlertRepository
	reservations ReservationReleaser
	cache        common.Cache
	bus          common.EventBus
	clock        shared.Clock
	logger       *zap.Logger
	cfg          config.DispatchConfig
	timers       *TimerService
	timedOut     *dispatch.TimedOutSet
	redispatch   Redispatcher

	vehicleLocks *common.KeyedMutex
	faultLocks   *common.KeyedMutex
}

// ServiceDeps bundles the lifecycle service's collaborators
type ServiceDeps struct {
	Faults       fault.Repository
	Vehicles     fleet.VehicleRepository
	Trips        trip.Repository
	Routes       routing.Repository
	Alerts       fault.AlertRepository
	Reservations ReservationReleaser
	Cache        common.Cache
	Bus          common.EventBus
	Clock        shared.Clock
	Logger       *zap.Logger
	Timers       *TimerService
	TimedOut     *dispatch.TimedOutSet
	Redispatch   Redispatcher
	VehicleLocks *common.KeyedMutex
	FaultLocks   *common.KeyedMutex
}

// NewService creates the lifecycle service and wires the timer callbacks
func NewService(cfg config.DispatchConfig, deps ServiceDeps) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = shared.NewRealClock()
	}
	s := &Service{
		faults:       deps.Faults,
		vehicles:     deps.Vehicles,
		trips:        deps.Trips,
		routes:       deps.Routes,
		alerts:       deps.Alerts,
		reservations: deps.Reservations,
		cache:        deps.Cache,
		bus:          deps.Bus,
		clock:        clock,
		logger:       deps.Logger,
		cfg:          cfg,
		timers:       deps.Timers,
		timedOut:     deps.TimedOut,
		redispatch:   deps.Redispatch,
		vehicleLocks: deps.VehicleLocks,
		faultLocks:   deps.FaultLocks,
	}
	if s.timers != nil {
		s.timers.OnAckTimeout = s.handleAckTimeout
		s.timers.OnAutoResolve = s.handleAutoResolve
	}
	return s
}

// Timers exposes the timer service for wiring and the sweeper
func (s *Service) Timers() *TimerService { return s.timers }

// SetRedispatcher wires the dispatch engine in after construction (the engine
// is built later because it needs the device channel, which needs this
// service's protocol handlers)
func (s *Service) SetRedispatcher(r Redispatcher) { s.redispatch = r }

// Confirm applies the confirmation transition: the assigned vehicle
// acknowledged the dispatch. Idempotent by fault state: a duplicate
// confirmation of an ASSIGNED fault is a no-op.
func (s *Service) Confirm(ctx context.Context, faultID, vehicleNumber string) error {
	f, err := s.faults.FindByID(ctx, faultID)
	if err != nil {
		return err
	}
	if f.Status == fault.StatusAssigned {
		return nil
	}
	if f.Status != fault.StatusPendingConfirmation || f.AssignedVehicleID == nil {
		return shared.NewWrongStateError("fault "+f.ID, string(fault.StatusPendingConfirmation), string(f.Status))
	}
	vehicleID := *f.AssignedVehicleID

	v, err := s.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	if vehicleNumber != "" && v.Number != vehicleNumber {
		return shared.NewValidationError("vehicleNumber", "does not match the assigned vehicle")
	}

	s.vehicleLocks.Lock(vehicleID)
	defer s.vehicleLocks.Unlock(vehicleID)
	s.faultLocks.Lock(faultID)
	defer s.faultLocks.Unlock(faultID)

	s.timers.CancelAckDeadline(faultID)

	if err := s.faults.TransitionStatus(ctx, faultID, fault.StatusPendingConfirmation, fault.StatusAssigned); err != nil {
		var contended *shared.ContendedError
		if errors.As(err, &contended) {
			// Lost the race to a duplicate confirmation
			current, findErr := s.faults.FindByID(ctx, faultID)
			if findErr == nil && current.Status == fault.StatusAssigned {
				return nil
			}
		}
		return err
	}

	if err := s.ensureOngoingTrip(ctx, f, v); err != nil {
		s.logger.Error("failed to open trip on confirmation",
			zap.String("fault_id", faultID),
			zap.String("vehicle_id", vehicleID),
			zap.Error(err))
	}

	s.cache.DeleteByPrefix(common.CachePrefixFaults)
	s.cache.DeleteByPrefix(common.CachePrefixVehicles)

	s.bus.Publish(common.EventVehicleConfirmation, common.VehicleConfirmationEvent{
		VehicleID:     vehicleID,
		VehicleNumber: v.Number,
		FaultID:       faultID,
		Status:        string(fault.StatusAssigned),
	})
	s.bus.Publish(common.EventFaultUpdated, common.FaultEvent{Fault: common.FaultPayload{
		ID:     faultID,
		Status: string(fault.StatusAssigned),
	}})
	s.bus.Publish(common.EventVehicleStatusChange, common.VehicleStatusChangeEvent{
		VehicleID: vehicleID,
		Status:    string(v.Status),
	})
	return nil
}

// ensureOngoingTrip opens a trip for the vehicle unless one is already
// ONGOING. The unique partial index backs this up against races; a create
// that loses the race falls back to the existing trip.
func (s *Service) ensureOngoingTrip(ctx context.Context, f *fault.Fault, v *fleet.Vehicle) error {
	ongoing, err := s.trips.FindOngoingByVehicle(ctx, v.ID)
	if err != nil {
		return err
	}
	if ongoing != nil {
		return nil
	}

	t, err := trip.NewTrip(uuid.NewString(), v.ID, f.Location, v.DriverID, s.clock.Now())
	if err != nil {
		return err
	}
	owner := managedBy
	t.ManagedBy = &owner

	if err := s.trips.Create(ctx, t); err != nil {
		existing, findErr := s.trips.FindOngoingByVehicle(ctx, v.ID)
		if findErr == nil && existing != nil {
			return nil
		}
		return err
	}
	return nil
}

// Resolve applies the resolution transition: fault RESOLVED, trip COMPLETED,
// vehicle back to AVAILABLE, routes closed, alert solved. Idempotent by fault
// state.
func (s *Service) Resolve(ctx context.Context, faultID, vehicleNumber string) error {
	f, err := s.faults.FindByID(ctx, faultID)
	if err != nil {
		return err
	}
	if f.Status == fault.StatusResolved {
		return nil
	}
	if !f.IsAssigned() || f.AssignedVehicleID == nil {
		return shared.NewWrongStateError("fault "+f.ID, string(fault.StatusAssigned), string(f.Status))
	}
	vehicleID := *f.AssignedVehicleID

	v, err := s.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	if vehicleNumber != "" && v.Number != vehicleNumber {
		return shared.NewValidationError("vehicleNumber", "does not match the assigned vehicle")
	}

	s.vehicleLocks.Lock(vehicleID)
	defer s.vehicleLocks.Unlock(vehicleID)
	s.faultLocks.Lock(faultID)
	defer s.faultLocks.Unlock(faultID)

	s.timers.CancelAckDeadline(faultID)
	s.timers.CancelAutoResolve(vehicleID)

	if err := s.faults.TransitionStatus(ctx, faultID, f.Status, fault.StatusResolved); err != nil {
		var contended *shared.ContendedError
		if errors.As(err, &contended) {
			current, findErr := s.faults.FindByID(ctx, faultID)
			if findErr == nil && current.Status == fault.StatusResolved {
				return nil
			}
		}
		return err
	}

	now := s.clock.Now()
	if ongoing, err := s.trips.FindOngoingByVehicle(ctx, vehicleID); err == nil && ongoing != nil {
		if err := s.trips.Complete(ctx, ongoing.ID, now, f.Location); err != nil {
			s.logger.Error("failed to complete trip on resolution",
				zap.String("trip_id", ongoing.ID), zap.Error(err))
		}
	}

	if err := s.vehicles.ForceStatus(ctx, vehicleID, fleet.VehicleStatusAvailable); err != nil {
		s.logger.Error("failed to return vehicle to AVAILABLE",
			zap.String("vehicle_id", vehicleID), zap.Error(err))
	}

	s.closeRoutes(ctx, vehicleID, faultID)

	if err := s.alerts.MarkSolved(ctx, faultID); err != nil {
		s.logger.Error("failed to mark alert solved",
			zap.String("fault_id", faultID), zap.Error(err))
	}

	if s.timedOut != nil {
		s.timedOut.Clear(faultID)
	}

	s.cache.DeleteByPrefix(common.CachePrefixFaults)
	s.cache.DeleteByPrefix(common.CachePrefixVehicles)
	s.cache.DeleteByPrefix(common.CachePrefixRoutes)

	s.bus.Publish(common.EventVehicleResolved, common.VehicleResolvedEvent{
		VehicleID:     vehicleID,
		VehicleNumber: v.Number,
		FaultID:       faultID,
		Status:        string(fault.StatusResolved),
	})
	s.bus.Publish(common.EventFaultUpdated, common.FaultEvent{Fault: common.FaultPayload{
		ID:     faultID,
		Status: string(fault.StatusResolved),
	}})
	s.bus.Publish(common.EventVehicleStatusChange, common.VehicleStatusChangeEvent{
		VehicleID: vehicleID,
		Status:    string(fleet.VehicleStatusAvailable),
	})
	return nil
}

// closeRoutes completes the (vehicle, fault) route and cancels any other
// ACTIVE route left on the vehicle
func (s *Service) closeRoutes(ctx context.Context, vehicleID, faultID string) {
	if pair, err := s.routes.FindActiveByVehicleAndFault(ctx, vehicleID, faultID); err == nil && pair != nil {
		if err := s.routes.MarkStatus(ctx, pair.ID, routing.StatusCompleted); err != nil {
			s.logger.Error("failed to complete route",
				zap.String("route_id", pair.ID), zap.Error(err))
		}
	}
	if _, err := s.routes.CancelActiveByVehicle(ctx, vehicleID); err != nil {
		s.logger.Error("failed to cancel vehicle routes",
			zap.String("vehicle_id", vehicleID), zap.Error(err))
	}
}

// handleAckTimeout runs when the acknowledgement deadline fires: the vehicle
// never confirmed, so the reservation unwinds and the fault re-dispatches
// excluding the silent vehicle.
func (s *Service) handleAckTimeout(faultID, vehicleID string) {
	ctx, cancel := context.WithTimeout(context.Background(), timerCtxTimeout)
	defer cancel()

	released := s.releaseReservation(ctx, faultID, vehicleID)
	if !released {
		return
	}

	// Re-dispatch outside the keyed locks; the engine takes its own
	if _, err := s.redispatch.DispatchFault(ctx, faultID); err != nil {
		var noCandidate *shared.NoCandidateError
		if errors.As(err, &noCandidate) {
			s.logger.Info("no candidate on re-dispatch, fault stays WAITING",
				zap.String("fault_id", faultID))
			return
		}
		s.logger.Error("re-dispatch after acknowledgement timeout failed",
			zap.String("fault_id", faultID), zap.Error(err))
	}
}

// releaseReservation unwinds the unacknowledged reservation and reports
// whether the fault returned to WAITING
func (s *Service) releaseReservation(ctx context.Context, faultID, vehicleID string) bool {
	s.vehicleLocks.Lock(vehicleID)
	defer s.vehicleLocks.Unlock(vehicleID)
	s.faultLocks.Lock(faultID)
	defer s.faultLocks.Unlock(faultID)

	f, err := s.faults.FindByID(ctx, faultID)
	if err != nil || f.Status != fault.StatusPendingConfirmation {
		// Confirmed or resolved before the deadline fired
		return false
	}

	if s.timedOut != nil {
		s.timedOut.Add(faultID, vehicleID)
	}

	v, err := s.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		s.logger.Error("acknowledgement timeout could not load vehicle",
			zap.String("vehicle_id", vehicleID), zap.Error(err))
		return false
	}

	if v.Status == fleet.VehicleStatusWorking {
		// Arrived without confirming. Leave the vehicle alone, release only
		// the fault.
		s.logger.Warn("anomaly: vehicle WORKING while fault unconfirmed, skipping vehicle reset",
			zap.String("vehicle_id", vehicleID),
			zap.String("fault_id", faultID))
		if err := s.faults.Release(ctx, faultID); err != nil {
			s.logger.Error("failed to release fault",
				zap.String("fault_id", faultID), zap.Error(err))
			return false
		}
	} else {
		if err := s.reservations.Release(ctx, faultID, vehicleID); err != nil {
			s.logger.Error("failed to release reservation",
				zap.String("fault_id", faultID),
				zap.String("vehicle_id", vehicleID),
				zap.Error(err))
			return false
		}
		s.bus.Publish(common.EventVehicleStatusChange, common.VehicleStatusChangeEvent{
			VehicleID:     vehicleID,
			Status:        string(fleet.VehicleStatusAvailable),
			UpdatedFields: common.StatusChangeUpdatedFields{ClearRoute: true},
		})
	}

	s.cache.DeleteByPrefix(common.CachePrefixFaults)
	s.cache.DeleteByPrefix(common.CachePrefixVehicles)

	s.bus.Publish(common.EventFaultUpdated, common.FaultEvent{Fault: common.FaultPayload{
		ID:     faultID,
		Status: string(fault.StatusWaiting),
	}})
	return true
}

// handleAutoResolve runs when the auto-resolution deadline fires
// (prototype mode): the vehicle has been WORKING long enough, resolve.
func (s *Service) handleAutoResolve(vehicleID, faultID string) {
	if !s.cfg.PrototypeMode {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timerCtxTimeout)
	defer cancel()

	v, err := s.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		s.logger.Error("auto-resolve could not load vehicle",
			zap.String("vehicle_id", vehicleID), zap.Error(err))
		return
	}
	if v.Status != fleet.VehicleStatusWorking {
		// Status changed since arming; the timer is moot
		return
	}

	if err := s.Resolve(ctx, faultID, ""); err != nil {
		s.logger.Error("auto-resolve failed",
			zap.String("fault_id", faultID),
			zap.String("vehicle_id", vehicleID),
			zap.Error(err))
	}
}
