package fleet

import (
	"time"

	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

// VehicleStatus represents where a vehicle is in the dispatch cycle
type VehicleStatus string

const (
	VehicleStatusAvailable VehicleStatus = "AVAILABLE"
	VehicleStatusIdle      VehicleStatus = "IDLE"
	VehicleStatusOnRoute   VehicleStatus = "ON_ROUTE"
	VehicleStatusWorking   VehicleStatus = "WORKING"
)

// ActiveStatuses are the statuses in which a vehicle is committed to a fault
func ActiveStatuses() []VehicleStatus {
	return []VehicleStatus{VehicleStatusOnRoute, VehicleStatusWorking}
}

// Vehicle is a dispatchable unit of the fleet.
// Status is mutated only by the dispatch core (engine, FSMs, telemetry
// handler, timers, sweeper); there is no external mutation path.
type Vehicle struct {
	ID       string
	Number   string
	Status   VehicleStatus
	DriverID *string
	DeviceID *string

	// Populated by the store gateway when requested
	Driver *Driver
	Device *Device
}

// NewVehicle creates a vehicle with validation
func NewVehicle(id, number string) (*Vehicle, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	if number == "" {
		return nil, shared.NewValidationError("number", "cannot be empty")
	}
	return &Vehicle{ID: id, Number: number, Status: VehicleStatusAvailable}, nil
}

// HasDevice reports whether a device is installed on the vehicle
func (v *Vehicle) HasDevice() bool {
	return v.DeviceID != nil && *v.DeviceID != ""
}

// IsDispatched reports whether the vehicle is committed to a fault
func (v *Vehicle) IsDispatched() bool {
	return v.Status == VehicleStatusOnRoute || v.Status == VehicleStatusWorking
}

// Driver operates a vehicle
type Driver struct {
	ID        string
	Name      string
	License   string
	Contact   string
	VehicleID *string
}

// Device is the in-vehicle unit addressed on the device channel
type Device struct {
	ID               string
	ExternalDeviceID string
	VehicleID        *string
	Status           string
	InstalledAt      time.Time
}
