package lifecycle

import (
	"context"

	"go.uber.org/zap"

	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
)

// Recover rebuilds in-memory timer state after a restart. Durable state lives
// in the store; timers do not survive the process, so:
//
//   - Faults still in PENDING_CONFIRMATION lost their acknowledgement
//     deadline. The remaining time is unknown, so they time out immediately
//     and re-dispatch.
//   - In prototype mode, WORKING vehicles holding an ASSIGNED fault lost
//     their auto-resolution deadline; it is re-armed from scratch.
//
// The first sweeper pass reconciles anything left over.
func (s *Service) Recover(ctx context.Context) error {
	pending, err := s.faults.ListByStatus(ctx, fault.StatusPendingConfirmation)
	if err != nil {
		return err
	}
	for _, f := range pending {
		if f.AssignedVehicleID == nil {
			s.logger.Warn("pending fault with no assigned vehicle, leaving to sweeper",
				zap.String("fault_id", f.ID))
			continue
		}
		s.logger.Info("recovering unacknowledged dispatch as immediate timeout",
			zap.String("fault_id", f.ID),
			zap.String("vehicle_id", *f.AssignedVehicleID))
		s.handleAckTimeout(f.ID, *f.AssignedVehicleID)
	}

	if !s.cfg.PrototypeMode {
		return nil
	}

	working, err := s.vehicles.ListByStatus(ctx, fleet.VehicleStatusWorking)
	if err != nil {
		return err
	}
	for _, v := range working {
		holding, err := s.faults.FindAssignedToVehicle(ctx, v.ID, []fault.Status{fault.StatusAssigned})
		if err != nil {
			return err
		}
		if holding == nil {
			continue
		}
		s.logger.Info("re-arming auto-resolution after restart",
			zap.String("vehicle_id", v.ID),
			zap.String("fault_id", holding.ID))
		s.timers.ArmAutoResolve(v.ID, holding.ID)
	}
	return nil
}
