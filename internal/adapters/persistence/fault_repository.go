package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

// FaultRepositoryGORM implements fault persistence using GORM
type FaultRepositoryGORM struct {
	db *gorm.DB
}

// NewFaultRepository creates a new GORM-based fault repository
func NewFaultRepository(db *gorm.DB) *FaultRepositoryGORM {
	return &FaultRepositoryGORM{db: db}
}

// Create persists a new fault
func (r *FaultRepositoryGORM) Create(ctx context.Context, f *fault.Fault) error {
	model := faultToModel(f)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create fault: %w", err)
	}
	return nil
}

// FindByID retrieves a fault
func (r *FaultRepositoryGORM) FindByID(ctx context.Context, id string) (*fault.Fault, error) {
	var model FaultModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, shared.NewNotFoundError("fault", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find fault: %w", err)
	}
	return faultToDomain(&model), nil
}

// ListByStatus returns faults in the status ordered by reportedAt ascending
func (r *FaultRepositoryGORM) ListByStatus(ctx context.Context, status fault.Status) ([]*fault.Fault, error) {
	var models []FaultModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("reported_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list faults: %w", err)
	}

	faults := make([]*fault.Fault, 0, len(models))
	for i := range models {
		faults = append(faults, faultToDomain(&models[i]))
	}
	return faults, nil
}

// FindAssignedToVehicle returns the fault assigned to the vehicle in any of
// the given statuses, or nil when none exists
func (r *FaultRepositoryGORM) FindAssignedToVehicle(ctx context.Context, vehicleID string, statuses []fault.Status) (*fault.Fault, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	var model FaultModel
	err := r.db.WithContext(ctx).
		Where("assigned_vehicle_id = ? AND status IN ?", vehicleID, values).
		Order("reported_at ASC").
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find assigned fault: %w", err)
	}
	return faultToDomain(&model), nil
}

// Reserve atomically transitions WAITING -> PENDING_CONFIRMATION with the
// vehicle recorded
func (r *FaultRepositoryGORM) Reserve(ctx context.Context, id, vehicleID string) error {
	return faultReserve(r.db.WithContext(ctx), id, vehicleID)
}

// Release atomically transitions PENDING_CONFIRMATION -> WAITING and clears
// the assigned vehicle (acknowledgement timeout)
func (r *FaultRepositoryGORM) Release(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&FaultModel{}).
		Where("id = ? AND status = ?", id, string(fault.StatusPendingConfirmation)).
		Updates(map[string]interface{}{
			"status":              string(fault.StatusWaiting),
			"assigned_vehicle_id": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to release fault: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewContendedError("fault " + id)
	}
	return nil
}

// TransitionStatus performs an optimistic status transition
func (r *FaultRepositoryGORM) TransitionStatus(ctx context.Context, id string, from, to fault.Status) error {
	result := r.db.WithContext(ctx).
		Model(&FaultModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if result.Error != nil {
		return fmt.Errorf("failed to transition fault status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewContendedError("fault " + id)
	}
	return nil
}

// faultReserve is the shared guarded update, also used inside the dispatch
// reservation transaction
func faultReserve(tx *gorm.DB, id, vehicleID string) error {
	result := tx.Model(&FaultModel{}).
		Where("id = ? AND status = ?", id, string(fault.StatusWaiting)).
		Updates(map[string]interface{}{
			"status":              string(fault.StatusPendingConfirmation),
			"assigned_vehicle_id": vehicleID,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to reserve fault: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewContendedError("fault " + id)
	}
	return nil
}

func faultToModel(f *fault.Fault) *FaultModel {
	return &FaultModel{
		ID:                f.ID,
		Type:              f.Type,
		Location:          f.Location,
		Category:          string(f.Category),
		Lat:               f.Lat,
		Lon:               f.Lon,
		Detail:            f.Detail,
		ReportedAt:        f.ReportedAt,
		Status:            string(f.Status),
		AssignedVehicleID: f.AssignedVehicleID,
	}
}

func faultToDomain(m *FaultModel) *fault.Fault {
	return &fault.Fault{
		ID:                m.ID,
		Type:              m.Type,
		Location:          m.Location,
		Category:          fault.Category(m.Category),
		Lat:               m.Lat,
		Lon:               m.Lon,
		Detail:            m.Detail,
		ReportedAt:        m.ReportedAt,
		Status:            fault.Status(m.Status),
		AssignedVehicleID: m.AssignedVehicleID,
	}
}
