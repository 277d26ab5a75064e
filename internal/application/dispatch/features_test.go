package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetdispatch/internal/application/dispatch"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

func featureFixture() (*fault.Fault, []*fleet.Vehicle, map[string]shared.LatLon) {
	f := &fault.Fault{
		ID:       "fault-1",
		Type:     "ENGINE_FAILURE",
		Category: fault.CategoryHigh,
		Lat:      0,
		Lon:      0,
	}
	candidates := []*fleet.Vehicle{
		{ID: "veh-near"},
		{ID: "veh-mid"},
		{ID: "veh-far"},
	}
	positions := map[string]shared.LatLon{
		"veh-near": {Lat: 0.01, Lon: 0}, // ~1.1 km
		"veh-mid":  {Lat: 0.06, Lon: 0}, // ~6.7 km
		"veh-far":  {Lat: 0.2, Lon: 0},  // ~22 km
	}
	return f, candidates, positions
}

func TestBuildFeatures_DistanceCategories(t *testing.T) {
	// Arrange
	f, candidates, positions := featureFixture()
	stats := map[string]fault.VehicleStats{}

	// Act
	features := dispatch.BuildFeatures(f, candidates, positions, stats)

	// Assert - one vector per candidate, in order
	require.Len(t, features, 3)
	assert.Equal(t, 0, features[0].DistanceCat)
	assert.Equal(t, 1, features[1].DistanceCat)
	assert.Equal(t, 2, features[2].DistanceCat)
	assert.Greater(t, features[2].DistanceM, features[0].DistanceM)
}

func TestBuildFeatures_PastPerfDefaultsToMidScale(t *testing.T) {
	// Arrange - never-assigned vehicle
	f, candidates, positions := featureFixture()
	stats := map[string]fault.VehicleStats{}

	// Act
	features := dispatch.BuildFeatures(f, candidates[:1], positions, stats)

	// Assert - perf 0.5 maps to 0.5*9+1 = 5.5
	require.Len(t, features, 1)
	assert.Equal(t, 5.5, features[0].PastPerf)
}

func TestBuildFeatures_PerfectPerformerMapsToTen(t *testing.T) {
	f, candidates, positions := featureFixture()
	stats := map[string]fault.VehicleStats{
		"veh-near": {Assigned: 5, Resolved: 5, SameType: 4},
	}

	features := dispatch.BuildFeatures(f, candidates[:1], positions, stats)

	require.Len(t, features, 1)
	assert.Equal(t, 10.0, features[0].PastPerf)
	assert.Equal(t, 4, features[0].FaultHistory)
}

func TestBuildFeatures_FatigueClampsAtTwentyFour(t *testing.T) {
	f, candidates, positions := featureFixture()
	stats := map[string]fault.VehicleStats{
		"veh-near": {FaultsToday: 40},
	}

	features := dispatch.BuildFeatures(f, candidates[:1], positions, stats)

	require.Len(t, features, 1)
	assert.Equal(t, 24.0, features[0].FatigueH)
}

func TestBuildFeatures_SeverityFromCategory(t *testing.T) {
	f, candidates, positions := featureFixture()

	features := dispatch.BuildFeatures(f, candidates[:1], positions, nil)

	require.Len(t, features, 1)
	assert.Equal(t, 3, features[0].FaultSeverity)
}
