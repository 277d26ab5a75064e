package common

import "time"

// Event names form a compatibility surface with frontend observers.
// Do not rename without coordinating with subscribers.
const (
	EventFaultCreated        = "fault:created"
	EventFaultUpdated        = "fault:updated"
	EventFaultDispatched     = "fault:dispatched"
	EventVehicleGPSUpdate    = "vehicle:gps-update"
	EventVehicleStatusChange = "vehicle:status-change"
	EventVehicleConfirmation = "vehicle:confirmation"
	EventVehicleArrived      = "vehicle:arrived"
	EventVehicleResolved     = "vehicle:resolved"
	EventDispatchComplete    = "dispatch:complete"
	EventRouteUpdated        = "route:updated"
)

// EventBus broadcasts named events with JSON-serializable payloads to all
// subscribers. Delivery is fire-and-forget; subscribers must tolerate
// duplicates and out-of-order delivery.
type EventBus interface {
	Publish(name string, payload interface{})
}

// FaultPayload is the fault snapshot carried by fault:created and fault:updated
type FaultPayload struct {
	ID         string    `json:"id"`
	Type       string    `json:"type,omitempty"`
	Location   string    `json:"location,omitempty"`
	Category   string    `json:"category,omitempty"`
	Lat        float64   `json:"lat,omitempty"`
	Lon        float64   `json:"lon,omitempty"`
	Status     string    `json:"status,omitempty"`
	ReportedAt time.Time `json:"reportedAt,omitempty"`
}

// FaultEvent wraps a fault snapshot
type FaultEvent struct {
	Fault FaultPayload `json:"fault"`
}

// FaultDispatchedEvent announces a reservation
type FaultDispatchedEvent struct {
	FaultID       string  `json:"faultId"`
	VehicleID     string  `json:"vehicleId"`
	VehicleNumber string  `json:"vehicleNumber"`
	Status        string  `json:"status"`
	FaultLat      float64 `json:"faultLat"`
	FaultLon      float64 `json:"faultLon"`
	VehicleLat    float64 `json:"vehicleLat"`
	VehicleLon    float64 `json:"vehicleLon"`
}

// GPSUpdateEvent carries one telemetry sample
type GPSUpdateEvent struct {
	VehicleID string    `json:"vehicleId"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Speed     float64   `json:"speed"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusChangeUpdatedFields carries side effects of a status change
type StatusChangeUpdatedFields struct {
	ClearRoute bool `json:"clearRoute,omitempty"`
}

// VehicleStatusChangeEvent announces a vehicle status transition
type VehicleStatusChangeEvent struct {
	VehicleID     string                    `json:"vehicleId"`
	Status        string                    `json:"status"`
	UpdatedFields StatusChangeUpdatedFields `json:"updatedFields"`
}

// VehicleConfirmationEvent announces a device acknowledgement
type VehicleConfirmationEvent struct {
	VehicleID     string `json:"vehicleId"`
	VehicleNumber string `json:"vehicleNumber"`
	FaultID       string `json:"faultId"`
	Status        string `json:"status"`
}

// VehicleArrivedEvent announces arrival within the arrival threshold
type VehicleArrivedEvent struct {
	VehicleID string  `json:"vehicleId"`
	FaultID   string  `json:"faultId"`
	Distance  float64 `json:"distance"`
}

// VehicleResolvedEvent announces a fault resolution
type VehicleResolvedEvent struct {
	VehicleID     string `json:"vehicleId"`
	VehicleNumber string `json:"vehicleNumber"`
	FaultID       string `json:"faultId"`
	Status        string `json:"status"`
}

// DispatchCompleteEvent closes out one dispatch decision
type DispatchCompleteEvent struct {
	FaultID        string `json:"faultId"`
	VehicleID      string `json:"vehicleId"`
	VehicleNumber  string `json:"vehicleNumber"`
	DispatchResult string `json:"dispatchResult"`
}

// RoutePayload is the route snapshot carried by route:updated
type RoutePayload struct {
	Waypoints    [][2]float64 `json:"waypoints"`
	DistanceM    float64      `json:"distanceM"`
	DurationS    float64      `json:"durationS"`
	Source       string       `json:"source"`
	IsFallback   bool         `json:"isFallback"`
	CalculatedAt time.Time    `json:"calculatedAt"`
	RouteStartAt time.Time    `json:"routeStartAt"`
}

// RouteUpdatedEvent announces a recalculated route
type RouteUpdatedEvent struct {
	VehicleID string       `json:"vehicleId"`
	FaultID   string       `json:"faultId"`
	Route     RoutePayload `json:"route"`
}
