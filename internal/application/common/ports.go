package common

import (
	"context"
	"time"
)

// DispatchCommand is the payload published to a device on dispatch
type DispatchCommand struct {
	FaultID      string `json:"faultId"`
	FaultDetails string `json:"faultDetails"`
}

// DeviceChannel publishes dispatch commands to in-vehicle devices.
// Implementations queue while disconnected; publishing never fails a dispatch.
type DeviceChannel interface {
	PublishDispatch(ctx context.Context, externalDeviceID string, cmd DispatchCommand) error
	Connected() bool
}

// MLFeatures is one candidate's feature vector for the external scorer
type MLFeatures struct {
	DistanceM     float64 `json:"distanceM"`
	DistanceCat   int     `json:"distanceCat"`
	PastPerf      float64 `json:"pastPerf"`
	FaultHistory  int     `json:"faultHistory"`
	FatigueH      float64 `json:"fatigueH"`
	FaultSeverity int     `json:"faultSeverity"`
}

// MLPrediction is the external scorer's answer
type MLPrediction struct {
	BestIndex int       `json:"bestIndex"`
	Scores    []float64 `json:"scores"`
}

// MLClient is the optional external scorer. Any failure surfaces as
// MLUnavailableError and the caller falls back to the rule-based scorer.
type MLClient interface {
	Healthy(ctx context.Context) bool
	Predict(ctx context.Context, candidates []MLFeatures) (*MLPrediction, error)
}

// Cache is a process-local TTL cache with pattern invalidation
type Cache interface {
	Set(key string, value interface{}, ttl time.Duration)
	Get(key string) (interface{}, bool)
	Delete(key string)
	DeleteByPrefix(prefix string)
}

// Cache key prefixes invalidated on state transitions
const (
	CachePrefixVehicles  = "vehicles:"
	CachePrefixFaults    = "faults:"
	CachePrefixTelemetry = "telemetry:"
	CachePrefixRoutes    = "routes:"
)
