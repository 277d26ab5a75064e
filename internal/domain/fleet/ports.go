package fleet

import "context"

// VehicleRepository is the store gateway for vehicles
type VehicleRepository interface {
	FindByID(ctx context.Context, id string) (*Vehicle, error)
	FindByNumber(ctx context.Context, number string) (*Vehicle, error)

	// ListByStatus returns vehicles in the given status with assigned
	// driver and device populated
	ListByStatus(ctx context.Context, status VehicleStatus) ([]*Vehicle, error)

	// ListByStatuses returns vehicles in any of the given statuses
	ListByStatuses(ctx context.Context, statuses []VehicleStatus) ([]*Vehicle, error)

	// TransitionStatus performs an optimistic status transition guarded by
	// the expected current status. Returns ContendedError when the guard
	// does not match (concurrent mutation).
	TransitionStatus(ctx context.Context, id string, from, to VehicleStatus) error

	// ForceStatus sets the status unconditionally. Reserved for the sweeper
	// and timeout recovery paths.
	ForceStatus(ctx context.Context, id string, to VehicleStatus) error
}
