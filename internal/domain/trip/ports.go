package trip

import (
	"context"
	"time"
)

// Repository is the store gateway for trips
type Repository interface {
	// Create persists an ONGOING trip. The unique partial index on
	// (vehicle_id) WHERE status=ONGOING makes a second ongoing trip for the
	// same vehicle fail; callers check FindOngoingByVehicle first and reuse.
	Create(ctx context.Context, t *Trip) error

	FindByID(ctx context.Context, id string) (*Trip, error)
	FindOngoingByVehicle(ctx context.Context, vehicleID string) (*Trip, error)

	// Complete ends the trip with the given end time and location
	Complete(ctx context.Context, id string, endAt time.Time, endLocation string) error

	// Cancel marks the trip CANCELED
	Cancel(ctx context.Context, id string, endAt time.Time) error
}
