package trip

import (
	"time"

	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

// Status represents the trip lifecycle state
type Status string

const (
	StatusOngoing   Status = "ONGOING"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

// Trip records one service run by a vehicle.
//
// Invariant: at most one ONGOING trip per vehicle at any instant. The store
// enforces it with a partial unique index on (vehicle_id) where status=ONGOING.
type Trip struct {
	ID            string
	VehicleID     string
	DriverID      *string
	StartAt       time.Time
	EndAt         *time.Time
	StartLocation string
	EndLocation   *string
	Status        Status
	ManagedBy     *string
}

// NewTrip creates an ONGOING trip with validation
func NewTrip(id, vehicleID, startLocation string, driverID *string, startAt time.Time) (*Trip, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	if vehicleID == "" {
		return nil, shared.NewValidationError("vehicleId", "cannot be empty")
	}
	return &Trip{
		ID:            id,
		VehicleID:     vehicleID,
		DriverID:      driverID,
		StartAt:       startAt,
		StartLocation: startLocation,
		Status:        StatusOngoing,
	}, nil
}
