package fault

import (
	"context"
	"time"
)

// Repository is the store gateway for faults
type Repository interface {
	Create(ctx context.Context, f *Fault) error
	FindByID(ctx context.Context, id string) (*Fault, error)

	// ListByStatus returns faults in the given status ordered by
	// reportedAt ascending
	ListByStatus(ctx context.Context, status Status) ([]*Fault, error)

	// FindAssignedToVehicle returns the fault in any of the given statuses
	// currently assigned to the vehicle, or nil when none exists
	FindAssignedToVehicle(ctx context.Context, vehicleID string, statuses []Status) (*Fault, error)

	// Reserve atomically transitions the fault WAITING -> PENDING_CONFIRMATION
	// with the vehicle recorded. Returns ContendedError when the fault left
	// WAITING concurrently.
	Reserve(ctx context.Context, id, vehicleID string) error

	// Release atomically transitions PENDING_CONFIRMATION -> WAITING and
	// clears the assigned vehicle (acknowledgement timeout path)
	Release(ctx context.Context, id string) error

	// TransitionStatus performs an optimistic status transition guarded by
	// the expected current status
	TransitionStatus(ctx context.Context, id string, from, to Status) error
}

// AlertRepository is the store gateway for alerts
type AlertRepository interface {
	Create(ctx context.Context, a *Alert) error
	MarkSolved(ctx context.Context, faultID string) error
	FindByFault(ctx context.Context, faultID string) ([]*Alert, error)
}

// VehicleStats holds the per-vehicle aggregate counters the scorers consume,
// batch-precomputed by the store gateway for a candidate set
type VehicleStats struct {
	Assigned     int64
	Resolved     int64
	FaultsToday  int64
	SameLocation int64 // resolved faults with the same location
	SameType     int64 // resolved faults with the same type
}

// Performance is resolved/assigned, defaulting to 0.5 for a vehicle that has
// never been assigned
func (s VehicleStats) Performance() float64 {
	if s.Assigned == 0 {
		return 0.5
	}
	return float64(s.Resolved) / float64(s.Assigned)
}

// LocationExp reports whether the vehicle has resolved a fault at the same location
func (s VehicleStats) LocationExp() bool { return s.SameLocation > 0 }

// TypeExp reports whether the vehicle has resolved a fault of the same type
func (s VehicleStats) TypeExp() bool { return s.SameType > 0 }

// StatsRepository computes scorer inputs from fault history
type StatsRepository interface {
	// ScoringStats aggregates counters for each candidate vehicle against
	// one fault: lifetime assigned/resolved counts, faults assigned since
	// midnight, and whether the vehicle has resolved a fault with the same
	// location or type
	ScoringStats(ctx context.Context, vehicleIDs []string, f *Fault, midnight time.Time) (map[string]VehicleStats, error)
}
