package dispatch

import (
	"math"
	"sort"

	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
)

// RuleScore computes the deterministic rule-based score of one candidate for
// one fault
func RuleScore(stats fault.VehicleStats, category fault.Category) float64 {
	perf := stats.Performance()

	score := 100.0
	score += 25.0 * perf
	score -= math.Min(float64(stats.FaultsToday)*5.0, 30.0)
	if stats.LocationExp() {
		score += 15.0
	}
	if stats.TypeExp() {
		score += 15.0
	}
	score += criticalityBonus(category, perf)
	return score
}

// criticalityBonus rewards proven performers on urgent faults and keeps
// low-priority faults from starving
func criticalityBonus(category fault.Category, perf float64) float64 {
	switch category {
	case fault.CategoryHigh:
		if perf >= 0.7 {
			return 25.0
		}
		return 0
	case fault.CategoryMedium:
		if perf >= 0.5 {
			return 15.0
		}
		return 0
	default:
		return 10.0
	}
}

// PickByRule returns the highest-scoring candidate. Ties break by ascending
// vehicle id so the decision is reproducible across runs.
func PickByRule(candidates []*fleet.Vehicle, stats map[string]fault.VehicleStats, category fault.Category) *fleet.Vehicle {
	if len(candidates) == 0 {
		return nil
	}

	ordered := make([]*fleet.Vehicle, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	best := ordered[0]
	bestScore := RuleScore(stats[best.ID], category)
	for _, v := range ordered[1:] {
		if score := RuleScore(stats[v.ID], category); score > bestScore {
			best, bestScore = v, score
		}
	}
	return best
}
