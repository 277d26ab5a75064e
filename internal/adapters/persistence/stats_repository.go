package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
)

// StatsRepositoryGORM aggregates scorer inputs from fault history
type StatsRepositoryGORM struct {
	db *gorm.DB
}

// NewStatsRepository creates a new GORM-based stats repository
func NewStatsRepository(db *gorm.DB) *StatsRepositoryGORM {
	return &StatsRepositoryGORM{db: db}
}

type countRow struct {
	VehicleID string
	N         int64
}

// ScoringStats batch-precomputes the per-vehicle counters for one fault:
// lifetime assigned/resolved counts, faults since midnight, and location/type
// experience. Four grouped queries regardless of candidate count.
func (r *StatsRepositoryGORM) ScoringStats(ctx context.Context, vehicleIDs []string, f *fault.Fault, midnight time.Time) (map[string]fault.VehicleStats, error) {
	stats := make(map[string]fault.VehicleStats, len(vehicleIDs))
	for _, id := range vehicleIDs {
		stats[id] = fault.VehicleStats{}
	}
	if len(vehicleIDs) == 0 {
		return stats, nil
	}

	// Lifetime assigned counts
	var assigned []countRow
	err := r.db.WithContext(ctx).Model(&FaultModel{}).
		Select("assigned_vehicle_id AS vehicle_id, COUNT(*) AS n").
		Where("assigned_vehicle_id IN ?", vehicleIDs).
		Group("assigned_vehicle_id").
		Scan(&assigned).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count assigned faults: %w", err)
	}
	for _, row := range assigned {
		s := stats[row.VehicleID]
		s.Assigned = row.N
		stats[row.VehicleID] = s
	}

	// Lifetime resolved counts
	var resolved []countRow
	err = r.db.WithContext(ctx).Model(&FaultModel{}).
		Select("assigned_vehicle_id AS vehicle_id, COUNT(*) AS n").
		Where("assigned_vehicle_id IN ? AND status = ?", vehicleIDs, string(fault.StatusResolved)).
		Group("assigned_vehicle_id").
		Scan(&resolved).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count resolved faults: %w", err)
	}
	for _, row := range resolved {
		s := stats[row.VehicleID]
		s.Resolved = row.N
		stats[row.VehicleID] = s
	}

	// Faults assigned since midnight (fatigue)
	var today []countRow
	err = r.db.WithContext(ctx).Model(&FaultModel{}).
		Select("assigned_vehicle_id AS vehicle_id, COUNT(*) AS n").
		Where("assigned_vehicle_id IN ? AND reported_at >= ?", vehicleIDs, midnight).
		Group("assigned_vehicle_id").
		Scan(&today).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count today's faults: %w", err)
	}
	for _, row := range today {
		s := stats[row.VehicleID]
		s.FaultsToday = row.N
		stats[row.VehicleID] = s
	}

	// Location and type experience on resolved faults
	var exp []struct {
		VehicleID string
		SameLoc   int64
		SameType  int64
	}
	err = r.db.WithContext(ctx).Model(&FaultModel{}).
		Select("assigned_vehicle_id AS vehicle_id, "+
			"SUM(CASE WHEN location = ? THEN 1 ELSE 0 END) AS same_loc, "+
			"SUM(CASE WHEN type = ? THEN 1 ELSE 0 END) AS same_type",
			f.Location, f.Type).
		Where("assigned_vehicle_id IN ? AND status = ?", vehicleIDs, string(fault.StatusResolved)).
		Group("assigned_vehicle_id").
		Scan(&exp).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate experience: %w", err)
	}
	for _, row := range exp {
		s := stats[row.VehicleID]
		s.SameLocation = row.SameLoc
		s.SameType = row.SameType
		stats[row.VehicleID] = s
	}

	return stats, nil
}
