package routing

import (
	"context"

	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

// Planner computes a drivable route between two points. Implementations never
// fail to the caller: provider failure degrades to the straight-line fallback.
type Planner interface {
	ComputeRoute(ctx context.Context, from, to shared.LatLon) (*PlannedRoute, error)
}

// Repository is the store gateway for routes
type Repository interface {
	Create(ctx context.Context, r *Route) error
	FindByID(ctx context.Context, id string) (*Route, error)

	// FindActiveByVehicle returns the vehicle's current ACTIVE route, or nil
	FindActiveByVehicle(ctx context.Context, vehicleID string) (*Route, error)

	// FindActiveByVehicleAndFault returns the ACTIVE route for the pair, or nil
	FindActiveByVehicleAndFault(ctx context.Context, vehicleID, faultID string) (*Route, error)

	// MarkStatus transitions ACTIVE -> to (COMPLETED, CANCELLED or SUPERSEDED)
	MarkStatus(ctx context.Context, id string, to Status) error

	// CancelActiveByVehicle cancels every ACTIVE route for the vehicle and
	// returns how many were affected
	CancelActiveByVehicle(ctx context.Context, vehicleID string) (int64, error)
}
