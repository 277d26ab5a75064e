package persistence

import (
	"time"
)

// VehicleModel represents the vehicles table
type VehicleModel struct {
	ID       string  `gorm:"column:id;primaryKey;not null"`
	Number   string  `gorm:"column:number;unique;not null"`
	Status   string  `gorm:"column:status;not null;index"`
	DriverID *string `gorm:"column:driver_id"`
	DeviceID *string `gorm:"column:device_id"`

	Driver *DriverModel `gorm:"foreignKey:DriverID;references:ID"`
	Device *DeviceModel `gorm:"foreignKey:DeviceID;references:ID"`
}

func (VehicleModel) TableName() string {
	return "vehicles"
}

// DriverModel represents the drivers table
type DriverModel struct {
	ID        string  `gorm:"column:id;primaryKey;not null"`
	Name      string  `gorm:"column:name;not null"`
	License   string  `gorm:"column:license;unique;not null"`
	Contact   string  `gorm:"column:contact"`
	VehicleID *string `gorm:"column:vehicle_id"`
}

func (DriverModel) TableName() string {
	return "drivers"
}

// DeviceModel represents the devices table
type DeviceModel struct {
	ID               string    `gorm:"column:id;primaryKey;not null"`
	ExternalDeviceID string    `gorm:"column:external_device_id;unique;not null"`
	VehicleID        *string   `gorm:"column:vehicle_id"`
	Status           string    `gorm:"column:status"`
	InstalledAt      time.Time `gorm:"column:installed_at"`
}

func (DeviceModel) TableName() string {
	return "devices"
}

// FaultModel represents the faults table
type FaultModel struct {
	ID                string    `gorm:"column:id;primaryKey;not null"`
	Type              string    `gorm:"column:type;not null;index"`
	Location          string    `gorm:"column:location;index"`
	Category          string    `gorm:"column:category;not null"`
	Lat               float64   `gorm:"column:lat;not null"`
	Lon               float64   `gorm:"column:lon;not null"`
	Detail            string    `gorm:"column:detail;type:text"`
	ReportedAt        time.Time `gorm:"column:reported_at;not null;index"`
	Status            string    `gorm:"column:status;not null;index"`
	AssignedVehicleID *string   `gorm:"column:assigned_vehicle_id;index"`
}

func (FaultModel) TableName() string {
	return "faults"
}

// TripModel represents the trips table.
// The partial unique index enforces at most one ONGOING trip per vehicle.
type TripModel struct {
	ID            string     `gorm:"column:id;primaryKey;not null"`
	VehicleID     string     `gorm:"column:vehicle_id;not null;index:idx_trips_one_ongoing,unique,where:status = 'ONGOING'"`
	DriverID      *string    `gorm:"column:driver_id"`
	StartAt       time.Time  `gorm:"column:start_at;not null"`
	EndAt         *time.Time `gorm:"column:end_at"`
	StartLocation string     `gorm:"column:start_location"`
	EndLocation   *string    `gorm:"column:end_location"`
	Status        string     `gorm:"column:status;not null;index"`
	ManagedBy     *string    `gorm:"column:managed_by"`
}

func (TripModel) TableName() string {
	return "trips"
}

// RouteModel represents the routes table.
// Waypoints are stored as a JSON array of [lat, lon] pairs.
type RouteModel struct {
	ID           string    `gorm:"column:id;primaryKey;not null"`
	VehicleID    string    `gorm:"column:vehicle_id;not null;index:idx_routes_pair"`
	FaultID      string    `gorm:"column:fault_id;not null;index:idx_routes_pair"`
	Waypoints    string    `gorm:"column:waypoints;type:text;not null"`
	DistanceM    float64   `gorm:"column:distance_m;not null"`
	DurationS    float64   `gorm:"column:duration_s;not null"`
	Source       string    `gorm:"column:source;not null"`
	IsFallback   bool      `gorm:"column:is_fallback;not null"`
	CalculatedAt time.Time `gorm:"column:calculated_at;not null"`
	RouteStartAt time.Time `gorm:"column:route_start_at;not null"`
	Status       string    `gorm:"column:status;not null;index"`
}

func (RouteModel) TableName() string {
	return "routes"
}

// TelemetrySampleModel represents the append-only telemetry table
type TelemetrySampleModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	VehicleID string    `gorm:"column:vehicle_id;not null;index:idx_telemetry_vehicle_time"`
	Lat       float64   `gorm:"column:lat;not null"`
	Lon       float64   `gorm:"column:lon;not null"`
	Speed     float64   `gorm:"column:speed"`
	Timestamp time.Time `gorm:"column:timestamp;not null;index:idx_telemetry_vehicle_time"`
}

func (TelemetrySampleModel) TableName() string {
	return "telemetry_samples"
}

// AlertModel represents the alerts table
type AlertModel struct {
	ID             string    `gorm:"column:id;primaryKey;not null"`
	FaultID        string    `gorm:"column:fault_id;not null;index"`
	VehicleID      string    `gorm:"column:vehicle_id;not null"`
	Priority       string    `gorm:"column:priority;not null"`
	Solved         bool      `gorm:"column:solved;not null"`
	AcknowledgedBy *string   `gorm:"column:acknowledged_by"`
	Timestamp      time.Time `gorm:"column:timestamp;not null"`
}

func (AlertModel) TableName() string {
	return "alerts"
}
