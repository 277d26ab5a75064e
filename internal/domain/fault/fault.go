package fault

import (
	"time"

	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

// Status represents the fault lifecycle state
type Status string

const (
	StatusWaiting             Status = "WAITING"
	StatusPendingConfirmation Status = "PENDING_CONFIRMATION"
	StatusAssigned            Status = "ASSIGNED"
	StatusResolved            Status = "RESOLVED"
)

// AssignedStatuses are the statuses in which a fault holds a vehicle
func AssignedStatuses() []Status {
	return []Status{StatusPendingConfirmation, StatusAssigned}
}

// Category is the fault severity bucket
type Category string

const (
	CategoryHigh   Category = "HIGH"
	CategoryMedium Category = "MEDIUM"
	CategoryLow    Category = "LOW"
)

// Severity maps the category to the numeric scale the ML scorer expects
func (c Category) Severity() int {
	switch c {
	case CategoryHigh:
		return 3
	case CategoryMedium:
		return 2
	default:
		return 1
	}
}

// Valid reports whether the category is one of the recognized buckets
func (c Category) Valid() bool {
	switch c {
	case CategoryHigh, CategoryMedium, CategoryLow:
		return true
	}
	return false
}

// Fault is a reported incident awaiting or undergoing service.
//
// Lifecycle:
//
//	WAITING -> PENDING_CONFIRMATION -> ASSIGNED -> RESOLVED
//	PENDING_CONFIRMATION -> WAITING on acknowledgement timeout
//
// A fault in PENDING_CONFIRMATION or ASSIGNED has exactly one vehicle.
type Fault struct {
	ID                string
	Type              string
	Location          string
	Category          Category
	Lat               float64
	Lon               float64
	Detail            string
	ReportedAt        time.Time
	Status            Status
	AssignedVehicleID *string
}

// NewFault creates a fault in WAITING with validation
func NewFault(id, faultType, location string, category Category, lat, lon float64, detail string, reportedAt time.Time) (*Fault, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	if faultType == "" {
		return nil, shared.NewValidationError("type", "cannot be empty")
	}
	if !category.Valid() {
		return nil, shared.NewValidationError("category", "must be HIGH, MEDIUM or LOW")
	}
	if err := shared.ValidateCoordinate(lat, lon); err != nil {
		return nil, err
	}
	return &Fault{
		ID:         id,
		Type:       faultType,
		Location:   location,
		Category:   category,
		Lat:        lat,
		Lon:        lon,
		Detail:     detail,
		ReportedAt: reportedAt,
		Status:     StatusWaiting,
	}, nil
}

// Position returns the fault location as a coordinate
func (f *Fault) Position() shared.LatLon {
	return shared.LatLon{Lat: f.Lat, Lon: f.Lon}
}

// IsAssigned reports whether the fault currently holds a vehicle
func (f *Fault) IsAssigned() bool {
	return f.Status == StatusPendingConfirmation || f.Status == StatusAssigned
}
