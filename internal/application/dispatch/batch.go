package dispatch

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

// BatchSummary reports one runBatch invocation
type BatchSummary struct {
	Dispatched int              `json:"dispatched"`
	Failed     int              `json:"failed"`
	Results    []DispatchResult `json:"results"`
}

// RunBatch drains WAITING faults oldest-first. It stops when no WAITING
// faults remain, when a fault finds no candidate and the fleet has no
// availability left, or at the safety cap.
func (e *Engine) RunBatch(ctx context.Context) (*BatchSummary, error) {
	summary := &BatchSummary{Results: make([]DispatchResult, 0)}
	attempted := make(map[string]struct{})

	for i := 0; i < e.cfg.BatchCap; i++ {
		next, err := e.nextWaiting(ctx, attempted)
		if err != nil {
			return summary, err
		}
		if next == nil {
			break
		}
		attempted[next.ID] = struct{}{}

		result, err := e.DispatchFault(ctx, next.ID)
		summary.Results = append(summary.Results, *result)

		if err == nil {
			summary.Dispatched++
			continue
		}
		summary.Failed++

		var noCandidate *shared.NoCandidateError
		if errors.As(err, &noCandidate) {
			idle, availErr := e.vehicles.ListByStatus(ctx, fleet.VehicleStatusAvailable)
			if availErr != nil {
				return summary, availErr
			}
			if len(idle) == 0 {
				e.logger.Info("batch dispatch stopping, no available vehicles",
					zap.Int("dispatched", summary.Dispatched),
					zap.Int("failed", summary.Failed))
				break
			}
			continue
		}

		e.logger.Warn("batch dispatch item failed",
			zap.String("fault_id", next.ID),
			zap.Error(err))
	}

	return summary, nil
}

// nextWaiting returns the oldest WAITING fault not yet attempted this batch
func (e *Engine) nextWaiting(ctx context.Context, attempted map[string]struct{}) (*fault.Fault, error) {
	waiting, err := e.faults.ListByStatus(ctx, fault.StatusWaiting)
	if err != nil {
		return nil, err
	}
	for _, f := range waiting {
		if _, seen := attempted[f.ID]; !seen {
			return f, nil
		}
	}
	return nil, nil
}
