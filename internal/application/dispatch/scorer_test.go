package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetdispatch/internal/application/dispatch"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
)

func TestRuleScore_NeverAssignedBaseline(t *testing.T) {
	// Arrange - perf defaults to 0.5, no fatigue, no experience
	stats := fault.VehicleStats{}

	// Act - LOW carries an unconditional bonus of 10
	score := dispatch.RuleScore(stats, fault.CategoryLow)

	// Assert - 100 + 25*0.5 + 10
	assert.Equal(t, 122.5, score)
}

func TestRuleScore_FatigueCapsAtThirty(t *testing.T) {
	stats := fault.VehicleStats{Assigned: 10, Resolved: 10, FaultsToday: 12}

	score := dispatch.RuleScore(stats, fault.CategoryLow)

	// 100 + 25*1.0 - 30 + 10; twelve faults today would be -60 uncapped
	assert.Equal(t, 105.0, score)
}

func TestRuleScore_ExperienceBonuses(t *testing.T) {
	stats := fault.VehicleStats{Assigned: 4, Resolved: 2, SameLocation: 1, SameType: 3}

	score := dispatch.RuleScore(stats, fault.CategoryLow)

	// 100 + 25*0.5 + 15 + 15 + 10
	assert.Equal(t, 152.5, score)
}

func TestRuleScore_CriticalityBonus(t *testing.T) {
	strong := fault.VehicleStats{Assigned: 10, Resolved: 8} // perf 0.8
	weak := fault.VehicleStats{Assigned: 10, Resolved: 4}   // perf 0.4

	// HIGH rewards only proven performers (perf >= 0.7)
	assert.Equal(t, 100.0+25*0.8+25, dispatch.RuleScore(strong, fault.CategoryHigh))
	assert.Equal(t, 100.0+25*0.4, dispatch.RuleScore(weak, fault.CategoryHigh))

	// MEDIUM threshold is perf >= 0.5
	assert.Equal(t, 100.0+25*0.8+15, dispatch.RuleScore(strong, fault.CategoryMedium))
	assert.Equal(t, 100.0+25*0.4, dispatch.RuleScore(weak, fault.CategoryMedium))
}

func TestPickByRule_HighestScoreWins(t *testing.T) {
	// Arrange
	candidates := []*fleet.Vehicle{
		{ID: "veh-1", Number: "V-001"},
		{ID: "veh-2", Number: "V-002"},
	}
	stats := map[string]fault.VehicleStats{
		"veh-1": {},                           // 122.5 on LOW
		"veh-2": {Assigned: 10, Resolved: 10}, // 135 on LOW
	}

	// Act
	best := dispatch.PickByRule(candidates, stats, fault.CategoryLow)

	// Assert
	require.NotNil(t, best)
	assert.Equal(t, "veh-2", best.ID)
}

func TestPickByRule_TieBreaksByAscendingVehicleID(t *testing.T) {
	// Arrange - identical stats, deliberately out of order
	candidates := []*fleet.Vehicle{
		{ID: "veh-9"},
		{ID: "veh-2"},
		{ID: "veh-5"},
	}
	stats := map[string]fault.VehicleStats{}

	// Act
	best := dispatch.PickByRule(candidates, stats, fault.CategoryMedium)

	// Assert - deterministic across runs
	require.NotNil(t, best)
	assert.Equal(t, "veh-2", best.ID)
}

func TestPickByRule_EmptyCandidates(t *testing.T) {
	best := dispatch.PickByRule(nil, nil, fault.CategoryLow)

	assert.Nil(t, best)
}
