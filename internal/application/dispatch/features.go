package dispatch

import (
	"math"

	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

// Distance buckets for the external scorer
const (
	distanceCatNearM = 5000.0
	distanceCatMidM  = 10000.0
)

// BuildFeatures assembles one feature vector per candidate, in candidate
// order, so the scorer's bestIndex maps back to the slice
func BuildFeatures(f *fault.Fault, candidates []*fleet.Vehicle, positions map[string]shared.LatLon, stats map[string]fault.VehicleStats) []common.MLFeatures {
	features := make([]common.MLFeatures, 0, len(candidates))
	for _, v := range candidates {
		s := stats[v.ID]
		distance := shared.Haversine(positions[v.ID], f.Position())

		features = append(features, common.MLFeatures{
			DistanceM:     distance,
			DistanceCat:   distanceCategory(distance),
			PastPerf:      s.Performance()*9.0 + 1.0,
			FaultHistory:  int(s.SameType),
			FatigueH:      math.Min(float64(s.FaultsToday), 24.0),
			FaultSeverity: f.Category.Severity(),
		})
	}
	return features
}

func distanceCategory(distanceM float64) int {
	switch {
	case distanceM < distanceCatNearM:
		return 0
	case distanceM < distanceCatMidM:
		return 1
	default:
		return 2
	}
}
