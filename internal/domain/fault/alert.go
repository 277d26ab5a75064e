package fault

import "time"

// Alert is emitted once per successful dispatch reservation and marked
// solved when the fault resolves
type Alert struct {
	ID             string
	FaultID        string
	VehicleID      string
	Priority       Category
	Solved         bool
	AcknowledgedBy *string
	Timestamp      time.Time
}
