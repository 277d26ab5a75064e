package routing

import (
	"time"

	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

// Status represents the route lifecycle state
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusSuperseded Status = "SUPERSEDED"
)

// Source identifies how a route was computed
type Source string

const (
	SourceExternal Source = "EXTERNAL"
	SourceFallback Source = "FALLBACK"
)

// PlannedRoute is the routing collaborator's answer: a drivable polyline with
// distance and duration. IsFallback marks the straight-line degradation.
type PlannedRoute struct {
	Waypoints  []shared.LatLon
	DistanceM  float64
	DurationS  float64
	Source     Source
	IsFallback bool
}

// Route is a persisted navigation plan for a (vehicle, fault) pair.
//
// Invariant: at most one ACTIVE route per (vehicleId, faultId). Deviation
// recalculation supersedes the old route before persisting the new one.
type Route struct {
	ID           string
	VehicleID    string
	FaultID      string
	Waypoints    []shared.LatLon
	DistanceM    float64
	DurationS    float64
	Source       Source
	IsFallback   bool
	CalculatedAt time.Time
	RouteStartAt time.Time
	Status       Status
}

// NewRoute creates an ACTIVE route from a planned route
func NewRoute(id, vehicleID, faultID string, planned *PlannedRoute, calculatedAt, routeStartAt time.Time) (*Route, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	if vehicleID == "" || faultID == "" {
		return nil, shared.NewValidationError("vehicleId/faultId", "cannot be empty")
	}
	if len(planned.Waypoints) < 2 {
		return nil, shared.NewValidationError("waypoints", "route needs at least two waypoints")
	}
	return &Route{
		ID:           id,
		VehicleID:    vehicleID,
		FaultID:      faultID,
		Waypoints:    planned.Waypoints,
		DistanceM:    planned.DistanceM,
		DurationS:    planned.DurationS,
		Source:       planned.Source,
		IsFallback:   planned.IsFallback,
		CalculatedAt: calculatedAt,
		RouteStartAt: routeStartAt,
		Status:       StatusActive,
	}, nil
}

// Destination returns the final waypoint
func (r *Route) Destination() shared.LatLon {
	return r.Waypoints[len(r.Waypoints)-1]
}
