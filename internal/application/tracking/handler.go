package tracking

import (
	"context"
	"errors"

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

// AutoResolveScheduler arms the auto-resolution deadline on arrival
type AutoResolveScheduler interface {
	ArmAutoResolveIfAbsent(vehicleID, faultID string)
}

// RouteMetrics receives recomputed route observations
type RouteMetrics interface {
	RecordRoute(source string)
}

// Handler ingests telemetry samples and derives the movement-driven
// transitions: arrival detection and route recalculation. Samples for one
// vehicle are processed serially so concurrent recalculations cannot race.
type Handler struct {
	samples  telemetry.Repository
	vehicles fleet.VehicleRepository
	faults   fault.Repository
	routes   routing.Repository
	planner  routing.Planner
	timers   AutoResolveScheduler
	cache    common.Cache
	bus      common.EventBus
	clock    shared.Clock
	logger   *zap.Logger
	metrics  RouteMetrics
	cfg      config.DispatchConfig

	vehicleLocks *common.KeyedMutex
}

// HandlerDeps bundles the telemetry handler's collaborators
type HandlerDeps struct {
	Samples      telemetry.Repository
	Vehicles     fleet.VehicleRepository
	Faults       fault.Repository
	Routes       routing.Repository
	Planner      routing.Planner
	Timers       AutoResolveScheduler
	Cache        common.Cache
	Bus          common.EventBus
	Clock        shared.Clock
	Logger       *zap.Logger
	Metrics      RouteMetrics
	VehicleLocks *common.KeyedMutex
}

// NewHandler creates a telemetry handler
func NewHandler(cfg config.DispatchConfig, deps HandlerDeps) *Handler {
	clock := deps.Clock
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Handler{
		samples:      deps.Samples,
		vehicles:     deps.Vehicles,
		faults:       deps.Faults,
		routes:       deps.Routes,
		planner:      deps.Planner,
		timers:       deps.Timers,
		cache:        deps.Cache,
		bus:          deps.Bus,
		clock:        clock,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		cfg:          cfg,
		vehicleLocks: deps.VehicleLocks,
	}
}

// Ingest processes one position report
func (h *Handler) Ingest(ctx context.Context, vehicleID string, lat, lon, speed float64) error {
	sample, err := telemetry.NewSample(vehicleID, lat, lon, speed, h.clock.Now())
	if err != nil {
		return err
	}

	h.vehicleLocks.Lock(vehicleID)
	defer h.vehicleLocks.Unlock(vehicleID)

	if err := h.samples.Append(ctx, sample); err != nil {
		return err
	}
	h.cache.Delete(common.CachePrefixTelemetry + vehicleID)

	h.bus.Publish(common.EventVehicleGPSUpdate, common.GPSUpdateEvent{
		VehicleID: vehicleID,
		Lat:       sample.Lat,
		Lon:       sample.Lon,
		Speed:     sample.Speed,
		Timestamp: sample.Timestamp,
	})

	v, err := h.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	if !v.IsDispatched() {
		return nil
	}

	holding, err := h.faults.FindAssignedToVehicle(ctx, vehicleID, fault.AssignedStatuses())
	if err != nil {
		return err
	}
	if holding == nil {
		// The sweeper reconciles dispatched vehicles with no fault
		return nil
	}

	distance := shared.Haversine(sample.Position(), holding.Position())
	if distance <= h.cfg.ArrivalThresholdM {
		return h.handleArrival(ctx, v, holding, distance)
	}
	if v.Status == fleet.VehicleStatusOnRoute {
		return h.maybeRecalculate(ctx, v, sample.Position())
	}
	return nil
}

// handleArrival promotes the vehicle to WORKING when it reaches the fault.
// Repeated samples inside the threshold are no-ops beyond keeping the
// auto-resolution deadline armed.
func (h *Handler) handleArrival(ctx context.Context, v *fleet.Vehicle, holding *fault.Fault, distance float64) error {
	if v.Status == fleet.VehicleStatusWorking {
		if h.cfg.PrototypeMode && h.timers != nil {
			h.timers.ArmAutoResolveIfAbsent(v.ID, holding.ID)
		}
		return nil
	}

	err := h.vehicles.TransitionStatus(ctx, v.ID, fleet.VehicleStatusOnRoute, fleet.VehicleStatusWorking)
	if err != nil {
		var contended *shared.ContendedError
		if errors.As(err, &contended) {
			// Another sample won the promotion
			return nil
		}
		return err
	}

	if active, err := h.routes.FindActiveByVehicleAndFault(ctx, v.ID, holding.ID); err == nil && active != nil {
		if err := h.routes.MarkStatus(ctx, active.ID, routing.StatusCompleted); err != nil {
			h.logger.Error("failed to complete route on arrival",
				zap.String("route_id", active.ID), zap.Error(err))
		}
	}

	if h.cfg.PrototypeMode && h.timers != nil {
		h.timers.ArmAutoResolveIfAbsent(v.ID, holding.ID)
	}

	h.cache.DeleteByPrefix(common.CachePrefixVehicles)
	h.cache.DeleteByPrefix(common.CachePrefixRoutes)

	h.logger.Info("vehicle arrived at fault",
		zap.String("vehicle_id", v.ID),
		zap.String("fault_id", holding.ID),
		zap.Float64("distance_m", distance))

	h.bus.Publish(common.EventVehicleArrived, common.VehicleArrivedEvent{
		VehicleID: v.ID,
		FaultID:   holding.ID,
		Distance:  distance,
	})
	h.bus.Publish(common.EventVehicleStatusChange, common.VehicleStatusChangeEvent{
		VehicleID: v.ID,
		Status:    string(fleet.VehicleStatusWorking),
	})
	return nil
}

// maybeRecalculate supersedes the active route when the vehicle strayed from
// it and is still far from the destination
func (h *Handler) maybeRecalculate(ctx context.Context, v *fleet.Vehicle, pos shared.LatLon) error {
	active, err := h.routes.FindActiveByVehicle(ctx, v.ID)
	if err != nil || active == nil {
		return err
	}

	deviation := shared.DeviationFromRoute(pos, active.Waypoints)
	distToDest := shared.Haversine(pos, active.Destination())
	if deviation <= h.cfg.DeviationThresholdM || distToDest <= h.cfg.MinDistToDestForRecalcM {
		return nil
	}

	if err := h.routes.MarkStatus(ctx, active.ID, routing.StatusSuperseded); err != nil {
		return err
	}

	planned, err := h.planner.ComputeRoute(ctx, pos, active.Destination())
	if err != nil {
		return err
	}

	now := h.clock.Now()
	replacement, err := routing.NewRoute(uuid.NewString(), v.ID, active.FaultID, planned, now, now)
	if err != nil {
		return err
	}
	if err := h.routes.Create(ctx, replacement); err != nil {
		return err
	}

	h.cache.DeleteByPrefix(common.CachePrefixRoutes)
	if h.metrics != nil {
		h.metrics.RecordRoute(string(planned.Source))
	}

	h.logger.Info("route recalculated after deviation",
		zap.String("vehicle_id", v.ID),
		zap.String("fault_id", active.FaultID),
		zap.Float64("deviation_m", deviation),
		zap.Float64("dist_to_dest_m", distToDest))

	h.bus.Publish(common.EventRouteUpdated, common.RouteUpdatedEvent{
		VehicleID: v.ID,
		FaultID:   active.FaultID,
		Route:     routePayload(replacement),
	})
	return nil
}

func routePayload(r *routing.Route) common.RoutePayload {
	waypoints := make([][2]float64, len(r.Waypoints))
	for i, w := range r.Waypoints {
		waypoints[i] = [2]float64{w.Lat, w.Lon}
	}
	return common.RoutePayload{
		Waypoints:    waypoints,
		DistanceM:    r.DistanceM,
		DurationS:    r.DurationS,
		Source:       string(r.Source),
		IsFallback:   r.IsFallback,
		CalculatedAt: r.CalculatedAt,
		RouteStartAt: r.RouteStartAt,
	}
}
