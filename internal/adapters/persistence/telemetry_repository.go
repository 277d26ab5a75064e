package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetdispatch/internal/domain/telemetry"
)

// TelemetryRepositoryGORM implements append-only telemetry persistence
type TelemetryRepositoryGORM struct {
	db *gorm.DB
}

// NewTelemetryRepository creates a new GORM-based telemetry repository
func NewTelemetryRepository(db *gorm.DB) *TelemetryRepositoryGORM {
	return &TelemetryRepositoryGORM{db: db}
}

// Append persists a sample
func (r *TelemetryRepositoryGORM) Append(ctx context.Context, s *telemetry.Sample) error {
	model := &TelemetrySampleModel{
		VehicleID: s.VehicleID,
		Lat:       s.Lat,
		Lon:       s.Lon,
		Speed:     s.Speed,
		Timestamp: s.Timestamp,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append telemetry sample: %w", err)
	}
	return nil
}

// LatestByVehicle returns the most recent sample for the vehicle, or nil
func (r *TelemetryRepositoryGORM) LatestByVehicle(ctx context.Context, vehicleID string) (*telemetry.Sample, error) {
	var model TelemetrySampleModel
	err := r.db.WithContext(ctx).
		Where("vehicle_id = ?", vehicleID).
		Order("timestamp DESC, id DESC").
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest telemetry: %w", err)
	}
	return &telemetry.Sample{
		VehicleID: model.VehicleID,
		Lat:       model.Lat,
		Lon:       model.Lon,
		Speed:     model.Speed,
		Timestamp: model.Timestamp,
	}, nil
}
