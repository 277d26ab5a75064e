package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

// ReservationStore performs the atomic dispatch reservation: the fault CAS
// (WAITING -> PENDING_CONFIRMATION with the vehicle recorded) and the vehicle
// CAS (AVAILABLE -> ON_ROUTE) commit together or not at all. A lost CAS on
// either side rolls back the whole write and surfaces ContendedError.
type ReservationStore struct {
	db *gorm.DB
}

// NewReservationStore creates a reservation store on the shared connection
func NewReservationStore(db *gorm.DB) *ReservationStore {
	return &ReservationStore{db: db}
}

// Reserve writes the dispatch reservation transactionally
func (s *ReservationStore) Reserve(ctx context.Context, faultID, vehicleID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := faultReserve(tx, faultID, vehicleID); err != nil {
			return err
		}
		return vehicleCAS(tx, vehicleID, fleet.VehicleStatusAvailable, fleet.VehicleStatusOnRoute)
	})
}

// Release undoes an unacknowledged reservation transactionally: the fault
// returns to WAITING with the vehicle cleared and the vehicle returns to
// AVAILABLE. Used by the acknowledgement timeout path.
func (s *ReservationStore) Release(ctx context.Context, faultID, vehicleID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&FaultModel{}).
			Where("id = ? AND status = ?", faultID, string(fault.StatusPendingConfirmation)).
			Updates(map[string]interface{}{
				"status":              string(fault.StatusWaiting),
				"assigned_vehicle_id": nil,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to release fault: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return shared.NewContendedError("fault " + faultID)
		}

		err := tx.Model(&VehicleModel{}).
			Where("id = ?", vehicleID).
			Update("status", string(fleet.VehicleStatusAvailable)).Error
		if err != nil {
			return fmt.Errorf("failed to release vehicle: %w", err)
		}
		return nil
	})
}
