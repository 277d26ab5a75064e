package telemetry

import (
	"context"
	"time"

	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

// Sample is one append-only position report from a vehicle
type Sample struct {
	VehicleID string
	Lat       float64
	Lon       float64
	Speed     float64
	Timestamp time.Time
}

// NewSample creates a sample with coordinate validation
func NewSample(vehicleID string, lat, lon, speed float64, ts time.Time) (*Sample, error) {
	if vehicleID == "" {
		return nil, shared.NewValidationError("vehicleId", "cannot be empty")
	}
	if err := shared.ValidateCoordinate(lat, lon); err != nil {
		return nil, err
	}
	return &Sample{VehicleID: vehicleID, Lat: lat, Lon: lon, Speed: speed, Timestamp: ts}, nil
}

// Position returns the sample as a coordinate
func (s *Sample) Position() shared.LatLon {
	return shared.LatLon{Lat: s.Lat, Lon: s.Lon}
}

// Repository is the store gateway for telemetry samples
type Repository interface {
	Append(ctx context.Context, s *Sample) error
	LatestByVehicle(ctx context.Context, vehicleID string) (*Sample, error)
}
