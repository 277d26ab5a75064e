package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
	"github.com/andrescamacho/fleetdispatch/internal/domain/routing"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
	"github.com/andrescamacho/fleetdispatch/internal/domain/telemetry"
	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/config"
)

// Dispatch decision outcomes
const (
	OutcomeDispatched  = "dispatched"
	OutcomeNoCandidate = "no_candidate"
	OutcomeWrongState  = "wrong_state"
	OutcomeContended   = "contended"
	OutcomeError       = "error"
)

// DispatchResult is one dispatch decision
type DispatchResult struct {
	FaultID       string `json:"faultId"`
	VehicleID     string `json:"vehicleId,omitempty"`
	VehicleNumber string `json:"vehicleNumber,omitempty"`
	Outcome       string `json:"outcome"`
}

// ReservationStore commits the fault and vehicle CAS as one write
type ReservationStore interface {
	Reserve(ctx context.Context, faultID, vehicleID string) error
}

// AckScheduler arms the acknowledgement deadline after a device was addressed
type AckScheduler interface {
	ArmAckDeadline(faultID, vehicleID string)
}

// Confirmer applies the confirmation transition (prototype auto-confirm path)
type Confirmer interface {
	Confirm(ctx context.Context, faultID, vehicleNumber string) error
}

// Metrics receives dispatch decision observations
type Metrics interface {
	RecordDispatch(outcome string, seconds float64)
	RecordScorer(engine string)
}

// Engine makes dispatch decisions: pick the best AVAILABLE vehicle for a
// WAITING fault, reserve the pair atomically, then run the side effects
// (route, alert, device command, ack timer, events).
type Engine struct {
	faults       fault.Repository
	vehicles     fleet.VehicleRepository
	stats        fault.StatsRepository
	alerts       fault.AlertRepository
	routes       routing.Repository
	samples      telemetry.Repository
	planner      routing.Planner
	reservations ReservationStore
	ml           common.MLClient
	device       common.DeviceChannel
	cache        common.Cache
	bus          common.EventBus
	clock        shared.Clock
	logger       *zap.Logger
	metrics      Metrics
	cfg          config.DispatchConfig
	timedOut     *TimedOutSet

	vehicleLocks *common.KeyedMutex
	faultLocks   *common.KeyedMutex

	// Wired after construction: the timer service and lifecycle service both
	// depend on the engine for re-dispatch
	ackTimers AckScheduler
	confirmer Confirmer
}

// EngineDeps bundles the engine's collaborators
type EngineDeps struct {
	Faults       fault.Repository
	Vehicles     fleet.VehicleRepository
	Stats        fault.StatsRepository
	Alerts       fault.AlertRepository
	Routes       routing.Repository
	Samples      telemetry.Repository
	Planner      routing.Planner
	Reservations ReservationStore
	ML           common.MLClient
	Device       common.DeviceChannel
	Cache        common.Cache
	Bus          common.EventBus
	Clock        shared.Clock
	Logger       *zap.Logger
	Metrics      Metrics
	TimedOut     *TimedOutSet
	VehicleLocks *common.KeyedMutex
	FaultLocks   *common.KeyedMutex
}

// NewEngine creates a dispatch engine
func NewEngine(cfg config.DispatchConfig, deps EngineDeps) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = shared.NewRealClock()
	}
	timedOut := deps.TimedOut
	if timedOut == nil {
		timedOut = NewTimedOutSet()
	}
	return &Engine{
		faults:       deps.Faults,
		vehicles:     deps.Vehicles,
		stats:        deps.Stats,
		alerts:       deps.Alerts,
		routes:       deps.Routes,
		samples:      deps.Samples,
		planner:      deps.Planner,
		reservations: deps.Reservations,
		ml:           deps.ML,
		device:       deps.Device,
		cache:        deps.Cache,
		bus:          deps.Bus,
		clock:        clock,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		cfg:          cfg,
		timedOut:     timedOut,
		vehicleLocks: deps.VehicleLocks,
		faultLocks:   deps.FaultLocks,
	}
}

// SetAckScheduler wires the timer service in after construction
func (e *Engine) SetAckScheduler(s AckScheduler) { e.ackTimers = s }

// SetConfirmer wires the lifecycle service in after construction
func (e *Engine) SetConfirmer(c Confirmer) { e.confirmer = c }

// TimedOut exposes the per-fault timed-out sets shared with the timer service
func (e *Engine) TimedOut() *TimedOutSet { return e.timedOut }

// DispatchFault runs one dispatch decision for the fault. Store contention
// gets a single retry before Contended surfaces to the caller.
func (e *Engine) DispatchFault(ctx context.Context, faultID string) (*DispatchResult, error) {
	start := e.clock.Now()

	result, err := e.dispatchOnce(ctx, faultID)
	var contended *shared.ContendedError
	if errors.As(err, &contended) {
		e.logger.Info("dispatch reservation contended, retrying once",
			zap.String("fault_id", faultID))
		result, err = e.dispatchOnce(ctx, faultID)
	}

	outcome := outcomeOf(result, err)
	if e.metrics != nil {
		e.metrics.RecordDispatch(outcome, e.clock.Now().Sub(start).Seconds())
	}
	if result == nil {
		result = &DispatchResult{FaultID: faultID, Outcome: outcome}
	}
	return result, err
}

func outcomeOf(result *DispatchResult, err error) string {
	if err == nil && result != nil {
		return result.Outcome
	}

	var wrongState *shared.WrongStateError
	var noCandidate *shared.NoCandidateError
	var contended *shared.ContendedError
	switch {
	case errors.As(err, &wrongState):
		return OutcomeWrongState
	case errors.As(err, &noCandidate):
		return OutcomeNoCandidate
	case errors.As(err, &contended):
		return OutcomeContended
	default:
		return OutcomeError
	}
}

func (e *Engine) dispatchOnce(ctx context.Context, faultID string) (*DispatchResult, error) {
	f, err := e.faults.FindByID(ctx, faultID)
	if err != nil {
		return nil, err
	}
	if f.Status != fault.StatusWaiting {
		return nil, shared.NewWrongStateError("fault "+f.ID, string(fault.StatusWaiting), string(f.Status))
	}

	candidates, err := e.candidateVehicles(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, shared.NewNoCandidateError(f.ID)
	}

	positions, err := e.candidatePositions(ctx, candidates)
	if err != nil {
		return nil, err
	}

	chosen, err := e.selectCandidate(ctx, f, candidates, positions)
	if err != nil {
		return nil, err
	}

	origin := positions[chosen.ID]
	deviceAddressed, err := e.reserveAndPrepare(ctx, f, chosen, origin)
	if err != nil {
		return nil, err
	}

	e.emitDispatched(f, chosen, origin)

	// The confirmer takes the same keyed locks, so this runs after
	// reserveAndPrepare released them
	if deviceAddressed {
		if e.ackTimers != nil {
			e.ackTimers.ArmAckDeadline(f.ID, chosen.ID)
		}
	} else if e.cfg.PrototypeMode && e.confirmer != nil {
		if err := e.confirmer.Confirm(ctx, f.ID, chosen.Number); err != nil {
			e.logger.Error("prototype auto-confirm failed",
				zap.String("fault_id", f.ID), zap.Error(err))
		}
	}

	return &DispatchResult{
		FaultID:       f.ID,
		VehicleID:     chosen.ID,
		VehicleNumber: chosen.Number,
		Outcome:       OutcomeDispatched,
	}, nil
}

// reserveAndPrepare holds the keyed locks across the reservation and its
// store side effects. Returns whether a real device was addressed.
func (e *Engine) reserveAndPrepare(ctx context.Context, f *fault.Fault, chosen *fleet.Vehicle, origin shared.LatLon) (bool, error) {
	// Cross-entity transition: vehicle key before fault key
	e.vehicleLocks.Lock(chosen.ID)
	defer e.vehicleLocks.Unlock(chosen.ID)
	e.faultLocks.Lock(f.ID)
	defer e.faultLocks.Unlock(f.ID)

	if err := e.reservations.Reserve(ctx, f.ID, chosen.ID); err != nil {
		return false, err
	}

	e.cache.DeleteByPrefix(common.CachePrefixVehicles)
	e.cache.DeleteByPrefix(common.CachePrefixFaults)

	if _, err := e.createRoute(ctx, f, chosen, origin); err != nil {
		// Reservation stands; the telemetry handler recalculates the route
		// on the next sample
		e.logger.Error("failed to persist dispatch route",
			zap.String("fault_id", f.ID),
			zap.String("vehicle_id", chosen.ID),
			zap.Error(err))
	}

	if err := e.createAlert(ctx, f, chosen); err != nil {
		e.logger.Error("failed to create dispatch alert",
			zap.String("fault_id", f.ID), zap.Error(err))
	}

	return e.publishCommand(ctx, f, chosen), nil
}

// candidateVehicles lists AVAILABLE vehicles, applies the device requirement
// (strict mode only) and drops vehicles that already timed out on this fault
func (e *Engine) candidateVehicles(ctx context.Context, f *fault.Fault) ([]*fleet.Vehicle, error) {
	available, err := e.vehicles.ListByStatus(ctx, fleet.VehicleStatusAvailable)
	if err != nil {
		return nil, err
	}

	candidates := make([]*fleet.Vehicle, 0, len(available))
	for _, v := range available {
		if !e.cfg.PrototypeMode && !v.HasDevice() {
			continue
		}
		if e.timedOut.Contains(f.ID, v.ID) {
			continue
		}
		candidates = append(candidates, v)
	}
	return candidates, nil
}

// candidatePositions resolves each candidate's latest reported position,
// falling back to the configured default location for vehicles with no
// telemetry yet
func (e *Engine) candidatePositions(ctx context.Context, candidates []*fleet.Vehicle) (map[string]shared.LatLon, error) {
	defaultPos := shared.LatLon{Lat: e.cfg.DefaultLocationLat, Lon: e.cfg.DefaultLocationLon}

	positions := make(map[string]shared.LatLon, len(candidates))
	for _, v := range candidates {
		sample, err := e.samples.LatestByVehicle(ctx, v.ID)
		if err != nil {
			return nil, err
		}
		if sample == nil {
			positions[v.ID] = defaultPos
			continue
		}
		positions[v.ID] = sample.Position()
	}
	return positions, nil
}

// selectCandidate scores the candidates with the external scorer when it is
// configured and healthy, falling back to the rule-based scorer on any failure
func (e *Engine) selectCandidate(ctx context.Context, f *fault.Fault, candidates []*fleet.Vehicle, positions map[string]shared.LatLon) (*fleet.Vehicle, error) {
	now := e.clock.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	ids := make([]string, len(candidates))
	for i, v := range candidates {
		ids[i] = v.ID
	}
	stats, err := e.stats.ScoringStats(ctx, ids, f, midnight)
	if err != nil {
		return nil, err
	}

	if e.cfg.Engine == config.ScorerML && e.ml != nil && e.ml.Healthy(ctx) {
		features := BuildFeatures(f, candidates, positions, stats)
		prediction, err := e.ml.Predict(ctx, features)
		if err == nil {
			if e.metrics != nil {
				e.metrics.RecordScorer("ml")
			}
			return candidates[prediction.BestIndex], nil
		}
		e.logger.Warn("ml scorer unavailable, falling back to rule-based scorer",
			zap.String("fault_id", f.ID),
			zap.Error(err))
	}

	if e.metrics != nil {
		e.metrics.RecordScorer("rule")
	}
	return PickByRule(candidates, stats, f.Category), nil
}

func (e *Engine) createRoute(ctx context.Context, f *fault.Fault, v *fleet.Vehicle, origin shared.LatLon) (*routing.Route, error) {
	planned, err := e.planner.ComputeRoute(ctx, origin, f.Position())
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	route, err := routing.NewRoute(uuid.NewString(), v.ID, f.ID, planned, now, now)
	if err != nil {
		return nil, err
	}
	if err := e.routes.Create(ctx, route); err != nil {
		return nil, err
	}
	return route, nil
}

func (e *Engine) createAlert(ctx context.Context, f *fault.Fault, v *fleet.Vehicle) error {
	return e.alerts.Create(ctx, &fault.Alert{
		ID:        uuid.NewString(),
		FaultID:   f.ID,
		VehicleID: v.ID,
		Priority:  f.Category,
		Solved:    false,
		Timestamp: e.clock.Now(),
	})
}

// publishCommand sends the dispatch command to the vehicle's device and
// reports whether a device was addressed. Prototype-mode vehicles without a
// device are skipped.
func (e *Engine) publishCommand(ctx context.Context, f *fault.Fault, v *fleet.Vehicle) bool {
	if !v.HasDevice() || v.Device == nil {
		return false
	}

	cmd := common.DispatchCommand{FaultID: f.ID, FaultDetails: f.Detail}
	if err := e.device.PublishDispatch(ctx, v.Device.ExternalDeviceID, cmd); err != nil {
		e.logger.Warn("failed to publish dispatch command",
			zap.String("fault_id", f.ID),
			zap.String("vehicle_id", v.ID),
			zap.Error(err))
	}
	return true
}

func (e *Engine) emitDispatched(f *fault.Fault, v *fleet.Vehicle, origin shared.LatLon) {
	e.bus.Publish(common.EventFaultDispatched, common.FaultDispatchedEvent{
		FaultID:       f.ID,
		VehicleID:     v.ID,
		VehicleNumber: v.Number,
		Status:        string(fault.StatusPendingConfirmation),
		FaultLat:      f.Lat,
		FaultLon:      f.Lon,
		VehicleLat:    origin.Lat,
		VehicleLon:    origin.Lon,
	})
	e.bus.Publish(common.EventVehicleStatusChange, common.VehicleStatusChangeEvent{
		VehicleID: v.ID,
		Status:    string(fleet.VehicleStatusOnRoute),
	})
	e.bus.Publish(common.EventFaultUpdated, common.FaultEvent{Fault: common.FaultPayload{
		ID:     f.ID,
		Status: string(fault.StatusPendingConfirmation),
	}})
	e.bus.Publish(common.EventDispatchComplete, common.DispatchCompleteEvent{
		FaultID:        f.ID,
		VehicleID:      v.ID,
		VehicleNumber:  v.Number,
		DispatchResult: OutcomeDispatched,
	})
}
