package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/config"
)

const timerKindSweeper = "sweeper"

// SweeperMetrics receives sweep observations
type SweeperMetrics interface {
	RecordTimerFiring(kind string)
	RecordSweeperRecovery(n int)
}

// Sweeper periodically reconciles vehicles stuck in a dispatched status with
// no fault holding them: crashed timers, lost device messages, restarts. Such
// vehicles return to AVAILABLE and their routes are cancelled.
type Sweeper struct {
	vehicles     fleet.VehicleRepository
	faults       fault.Repository
	routes       routeCanceller
	timers       *TimerService
	cache        common.Cache
	bus          common.EventBus
	logger       *zap.Logger
	metrics      SweeperMetrics
	interval     time.Duration
	vehicleLocks *common.KeyedMutex
}

// routeCanceller is the slice of the route store the sweeper needs
type routeCanceller interface {
	CancelActiveByVehicle(ctx context.Context, vehicleID string) (int64, error)
}

// NewSweeper creates a sweeper with the configured interval
func NewSweeper(cfg config.DispatchConfig, vehicles fleet.VehicleRepository, faults fault.Repository, routes routeCanceller, timers *TimerService, cache common.Cache, bus common.EventBus, vehicleLocks *common.KeyedMutex, logger *zap.Logger, metrics SweeperMetrics) *Sweeper {
	return &Sweeper{
		vehicles:     vehicles,
		faults:       faults,
		routes:       routes,
		timers:       timers,
		cache:        cache,
		bus:          bus,
		logger:       logger,
		metrics:      metrics,
		interval:     cfg.SweeperInterval(),
		vehicleLocks: vehicleLocks,
	}
}

// Run ticks until the context is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.metrics != nil {
				s.metrics.RecordTimerFiring(timerKindSweeper)
			}
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one reconciliation pass
func (s *Sweeper) Sweep(ctx context.Context) error {
	dispatched, err := s.vehicles.ListByStatuses(ctx, fleet.ActiveStatuses())
	if err != nil {
		return err
	}

	recovered := 0
	for _, v := range dispatched {
		ok, err := s.sweepVehicle(ctx, v)
		if err != nil {
			s.logger.Error("failed to sweep vehicle",
				zap.String("vehicle_id", v.ID), zap.Error(err))
			continue
		}
		if ok {
			recovered++
		}
	}

	if recovered > 0 {
		s.cache.DeleteByPrefix(common.CachePrefixVehicles)
		s.cache.DeleteByPrefix(common.CachePrefixRoutes)
		if s.metrics != nil {
			s.metrics.RecordSweeperRecovery(recovered)
		}
		s.logger.Info("sweeper recovered stuck vehicles", zap.Int("count", recovered))
	}
	return nil
}

// sweepVehicle returns the vehicle to AVAILABLE when no fault holds it and no
// live acknowledgement deadline names it
func (s *Sweeper) sweepVehicle(ctx context.Context, v *fleet.Vehicle) (bool, error) {
	s.vehicleLocks.Lock(v.ID)
	defer s.vehicleLocks.Unlock(v.ID)

	holding, err := s.faults.FindAssignedToVehicle(ctx, v.ID, fault.AssignedStatuses())
	if err != nil {
		return false, err
	}
	if holding != nil {
		return false, nil
	}
	if s.timers.HasAckDeadlineForVehicle(v.ID) {
		// Freshly dispatched; the reservation write may still be settling
		return false, nil
	}

	if err := s.vehicles.ForceStatus(ctx, v.ID, fleet.VehicleStatusAvailable); err != nil {
		return false, err
	}
	s.timers.CancelAutoResolve(v.ID)

	if _, err := s.routes.CancelActiveByVehicle(ctx, v.ID); err != nil {
		s.logger.Error("failed to cancel routes for recovered vehicle",
			zap.String("vehicle_id", v.ID), zap.Error(err))
	}

	s.logger.Warn("recovered stuck vehicle",
		zap.String("vehicle_id", v.ID),
		zap.String("was_status", string(v.Status)))

	s.bus.Publish(common.EventVehicleStatusChange, common.VehicleStatusChangeEvent{
		VehicleID:     v.ID,
		Status:        string(fleet.VehicleStatusAvailable),
		UpdatedFields: common.StatusChangeUpdatedFields{ClearRoute: true},
	})
	return true, nil
}
