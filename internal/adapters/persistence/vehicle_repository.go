package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

// VehicleRepositoryGORM implements vehicle persistence using GORM
type VehicleRepositoryGORM struct {
	db *gorm.DB
}

// NewVehicleRepository creates a new GORM-based vehicle repository
func NewVehicleRepository(db *gorm.DB) *VehicleRepositoryGORM {
	return &VehicleRepositoryGORM{db: db}
}

// FindByID retrieves a vehicle with driver and device populated
func (r *VehicleRepositoryGORM) FindByID(ctx context.Context, id string) (*fleet.Vehicle, error) {
	var model VehicleModel
	err := r.db.WithContext(ctx).
		Preload("Driver").Preload("Device").
		Where("id = ?", id).
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, shared.NewNotFoundError("vehicle", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vehicle: %w", err)
	}
	return vehicleToDomain(&model), nil
}

// FindByNumber retrieves a vehicle by its unique number
func (r *VehicleRepositoryGORM) FindByNumber(ctx context.Context, number string) (*fleet.Vehicle, error) {
	var model VehicleModel
	err := r.db.WithContext(ctx).
		Preload("Driver").Preload("Device").
		Where("number = ?", number).
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, shared.NewNotFoundError("vehicle", number)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vehicle by number: %w", err)
	}
	return vehicleToDomain(&model), nil
}

// ListByStatus returns vehicles in the given status with relations populated
func (r *VehicleRepositoryGORM) ListByStatus(ctx context.Context, status fleet.VehicleStatus) ([]*fleet.Vehicle, error) {
	return r.ListByStatuses(ctx, []fleet.VehicleStatus{status})
}

// ListByStatuses returns vehicles in any of the given statuses
func (r *VehicleRepositoryGORM) ListByStatuses(ctx context.Context, statuses []fleet.VehicleStatus) ([]*fleet.Vehicle, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	var models []VehicleModel
	err := r.db.WithContext(ctx).
		Preload("Driver").Preload("Device").
		Where("status IN ?", values).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}

	vehicles := make([]*fleet.Vehicle, 0, len(models))
	for i := range models {
		vehicles = append(vehicles, vehicleToDomain(&models[i]))
	}
	return vehicles, nil
}

// TransitionStatus performs an optimistic status transition.
// Returns ContendedError when the expected status no longer holds.
func (r *VehicleRepositoryGORM) TransitionStatus(ctx context.Context, id string, from, to fleet.VehicleStatus) error {
	return vehicleCAS(r.db.WithContext(ctx), id, from, to)
}

// ForceStatus sets the status unconditionally (sweeper / timeout recovery)
func (r *VehicleRepositoryGORM) ForceStatus(ctx context.Context, id string, to fleet.VehicleStatus) error {
	result := r.db.WithContext(ctx).
		Model(&VehicleModel{}).
		Where("id = ?", id).
		Update("status", string(to))
	if result.Error != nil {
		return fmt.Errorf("failed to force vehicle status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("vehicle", id)
	}
	return nil
}

// vehicleCAS is the shared guarded update, also used inside the dispatch
// reservation transaction
func vehicleCAS(tx *gorm.DB, id string, from, to fleet.VehicleStatus) error {
	result := tx.Model(&VehicleModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if result.Error != nil {
		return fmt.Errorf("failed to transition vehicle status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewContendedError("vehicle " + id)
	}
	return nil
}

func vehicleToDomain(m *VehicleModel) *fleet.Vehicle {
	v := &fleet.Vehicle{
		ID:       m.ID,
		Number:   m.Number,
		Status:   fleet.VehicleStatus(m.Status),
		DriverID: m.DriverID,
		DeviceID: m.DeviceID,
	}
	if m.Driver != nil {
		v.Driver = &fleet.Driver{
			ID:        m.Driver.ID,
			Name:      m.Driver.Name,
			License:   m.Driver.License,
			Contact:   m.Driver.Contact,
			VehicleID: m.Driver.VehicleID,
		}
	}
	if m.Device != nil {
		v.Device = &fleet.Device{
			ID:               m.Device.ID,
			ExternalDeviceID: m.Device.ExternalDeviceID,
			VehicleID:        m.Device.VehicleID,
			Status:           m.Device.Status,
			InstalledAt:      m.Device.InstalledAt,
		}
	}
	return v
}
