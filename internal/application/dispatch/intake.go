package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
)

// asyncDispatchTimeout bounds the dispatch decision spawned by fault intake
const asyncDispatchTimeout = 30 * time.Second

// ReportFaultInput is one inbound fault report
type ReportFaultInput struct {
	Type     string
	Location string
	Category fault.Category
	Lat      float64
	Lon      float64
	Detail   string
}

// ReportFault creates a fault in WAITING and kicks off the dispatch decision
// asynchronously. The caller gets the created fault back immediately.
func (e *Engine) ReportFault(ctx context.Context, in ReportFaultInput) (*fault.Fault, error) {
	f, err := fault.NewFault(uuid.NewString(), in.Type, in.Location, in.Category, in.Lat, in.Lon, in.Detail, e.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := e.faults.Create(ctx, f); err != nil {
		return nil, err
	}

	e.cache.DeleteByPrefix(common.CachePrefixFaults)

	e.bus.Publish(common.EventFaultCreated, common.FaultEvent{Fault: common.FaultPayload{
		ID:         f.ID,
		Type:       f.Type,
		Location:   f.Location,
		Category:   string(f.Category),
		Lat:        f.Lat,
		Lon:        f.Lon,
		Status:     string(f.Status),
		ReportedAt: f.ReportedAt,
	}})

	// Dispatch outlives the intake request
	go func() {
		dispatchCtx, cancel := context.WithTimeout(context.Background(), asyncDispatchTimeout)
		defer cancel()

		if _, err := e.DispatchFault(dispatchCtx, f.ID); err != nil {
			e.logger.Info("fault waits for the next dispatch trigger",
				zap.String("fault_id", f.ID),
				zap.Error(err))
		}
	}()

	return f, nil
}
