package config

import "time"

// ScorerEngine selects how dispatch candidates are scored
type ScorerEngine string

const (
	// ScorerRule uses the in-process rule-based scorer
	ScorerRule ScorerEngine = "RULE"
	// ScorerML prefers the external ML scorer with rule-based fallback
	ScorerML ScorerEngine = "ML"
)

// DispatchConfig holds the dispatch core's operating knobs
type DispatchConfig struct {
	Engine ScorerEngine `mapstructure:"engine"`

	// PrototypeMode relaxes the device requirement: device-less vehicles are
	// dispatchable, dispatch auto-confirms, and arrival arms auto-resolution
	PrototypeMode bool `mapstructure:"prototype_mode"`

	AckDeadlineMS     int `mapstructure:"ack_deadline_ms"`
	AutoResolveMS     int `mapstructure:"auto_resolve_ms"`
	SweeperIntervalMS int `mapstructure:"sweeper_interval_ms"`

	ArrivalThresholdM       float64 `mapstructure:"arrival_threshold_m"`
	DeviationThresholdM     float64 `mapstructure:"deviation_threshold_m"`
	MinDistToDestForRecalcM float64 `mapstructure:"min_dist_to_dest_for_recalc_m"`

	// Fallback origin when a vehicle has no telemetry yet
	DefaultLocationLat float64 `mapstructure:"default_location_lat"`
	DefaultLocationLon float64 `mapstructure:"default_location_lon"`

	// BatchCap bounds one runBatch invocation
	BatchCap int `mapstructure:"batch_cap"`
}

// AckDeadline returns the acknowledgement deadline as a duration
func (c DispatchConfig) AckDeadline() time.Duration {
	return time.Duration(c.AckDeadlineMS) * time.Millisecond
}

// AutoResolve returns the auto-resolution deadline as a duration
func (c DispatchConfig) AutoResolve() time.Duration {
	return time.Duration(c.AutoResolveMS) * time.Millisecond
}

// SweeperInterval returns the sweeper period as a duration
func (c DispatchConfig) SweeperInterval() time.Duration {
	return time.Duration(c.SweeperIntervalMS) * time.Millisecond
}
