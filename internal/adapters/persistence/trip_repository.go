package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
	"github.com/andrescamacho/fleetdispatch/internal/domain/trip"
)

// TripRepositoryGORM implements trip persistence using GORM
type TripRepositoryGORM struct {
	db *gorm.DB
}

// NewTripRepository creates a new GORM-based trip repository
func NewTripRepository(db *gorm.DB) *TripRepositoryGORM {
	return &TripRepositoryGORM{db: db}
}

// Create persists an ONGOING trip. The partial unique index on (vehicle_id)
// WHERE status=ONGOING rejects a second ongoing trip for the same vehicle.
func (r *TripRepositoryGORM) Create(ctx context.Context, t *trip.Trip) error {
	model := tripToModel(t)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

// FindByID retrieves a trip
func (r *TripRepositoryGORM) FindByID(ctx context.Context, id string) (*trip.Trip, error) {
	var model TripModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, shared.NewNotFoundError("trip", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find trip: %w", err)
	}
	return tripToDomain(&model), nil
}

// FindOngoingByVehicle returns the vehicle's ONGOING trip, or nil
func (r *TripRepositoryGORM) FindOngoingByVehicle(ctx context.Context, vehicleID string) (*trip.Trip, error) {
	var model TripModel
	err := r.db.WithContext(ctx).
		Where("vehicle_id = ? AND status = ?", vehicleID, string(trip.StatusOngoing)).
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ongoing trip: %w", err)
	}
	return tripToDomain(&model), nil
}

// Complete ends the trip
func (r *TripRepositoryGORM) Complete(ctx context.Context, id string, endAt time.Time, endLocation string) error {
	result := r.db.WithContext(ctx).
		Model(&TripModel{}).
		Where("id = ? AND status = ?", id, string(trip.StatusOngoing)).
		Updates(map[string]interface{}{
			"status":       string(trip.StatusCompleted),
			"end_at":       endAt,
			"end_location": endLocation,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete trip: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewContendedError("trip " + id)
	}
	return nil
}

// Cancel marks the trip CANCELED
func (r *TripRepositoryGORM) Cancel(ctx context.Context, id string, endAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&TripModel{}).
		Where("id = ? AND status = ?", id, string(trip.StatusOngoing)).
		Updates(map[string]interface{}{
			"status": string(trip.StatusCanceled),
			"end_at": endAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to cancel trip: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewContendedError("trip " + id)
	}
	return nil
}

func tripToModel(t *trip.Trip) *TripModel {
	return &TripModel{
		ID:            t.ID,
		VehicleID:     t.VehicleID,
		DriverID:      t.DriverID,
		StartAt:       t.StartAt,
		EndAt:         t.EndAt,
		StartLocation: t.StartLocation,
		EndLocation:   t.EndLocation,
		Status:        string(t.Status),
		ManagedBy:     t.ManagedBy,
	}
}

func tripToDomain(m *TripModel) *trip.Trip {
	return &trip.Trip{
		ID:            m.ID,
		VehicleID:     m.VehicleID,
		DriverID:      m.DriverID,
		StartAt:       m.StartAt,
		EndAt:         m.EndAt,
		StartLocation: m.StartLocation,
		EndLocation:   m.EndLocation,
		Status:        trip.Status(m.Status),
		ManagedBy:     m.ManagedBy,
	}
}
