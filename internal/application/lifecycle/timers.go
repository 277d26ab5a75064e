package lifecycle

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/config"
)

// Timer kinds for metrics
const (
	timerKindAckTimeout  = "ack_timeout"
	timerKindAutoResolve = "auto_resolve"
)

// TimerMetrics receives timer firing observations
type TimerMetrics interface {
	RecordTimerFiring(kind string)
}

type ackEntry struct {
	timer     *time.Timer
	vehicleID string
}

type autoEntry struct {
	timer   *time.Timer
	faultID string
}

// TimerService owns the in-memory acknowledgement and auto-resolution
// deadlines. Timers are keyed (ack by faultId, auto-resolve by vehicleId);
// arming again cancels the prior timer of the same kind and key. Callbacks
// fire on their own goroutine; the handlers serialize per key through the
// keyed mutexes, so no two callbacks for the same key mutate state
// concurrently.
type TimerService struct {
	ackDeadline time.Duration
	autoResolve time.Duration
	logger      *zap.Logger
	metrics     TimerMetrics

	mu         sync.Mutex
	ackTimers  map[string]*ackEntry
	autoTimers map[string]*autoEntry

	// Wired at startup
	OnAckTimeout  func(faultID, vehicleID string)
	OnAutoResolve func(vehicleID, faultID string)
}

// NewTimerService creates a timer service with the configured deadlines
func NewTimerService(cfg config.DispatchConfig, logger *zap.Logger, metrics TimerMetrics) *TimerService {
	return &TimerService{
		ackDeadline: cfg.AckDeadline(),
		autoResolve: cfg.AutoResolve(),
		logger:      logger,
		metrics:     metrics,
		ackTimers:   make(map[string]*ackEntry),
		autoTimers:  make(map[string]*autoEntry),
	}
}

// ArmAckDeadline starts the acknowledgement deadline for the fault,
// cancelling any prior deadline for the same fault
func (t *TimerService) ArmAckDeadline(faultID, vehicleID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prior, ok := t.ackTimers[faultID]; ok {
		prior.timer.Stop()
	}
	t.ackTimers[faultID] = &ackEntry{
		vehicleID: vehicleID,
		timer: time.AfterFunc(t.ackDeadline, func() {
			t.fireAck(faultID)
		}),
	}
}

// CancelAckDeadline stops the fault's acknowledgement deadline
func (t *TimerService) CancelAckDeadline(faultID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.ackTimers[faultID]; ok {
		entry.timer.Stop()
		delete(t.ackTimers, faultID)
	}
}

// HasAckDeadlineForVehicle reports whether a live acknowledgement deadline
// names the vehicle. The sweeper uses this to leave freshly dispatched
// vehicles alone.
func (t *TimerService) HasAckDeadlineForVehicle(vehicleID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, entry := range t.ackTimers {
		if entry.vehicleID == vehicleID {
			return true
		}
	}
	return false
}

func (t *TimerService) fireAck(faultID string) {
	t.mu.Lock()
	entry, ok := t.ackTimers[faultID]
	if ok {
		delete(t.ackTimers, faultID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	if t.metrics != nil {
		t.metrics.RecordTimerFiring(timerKindAckTimeout)
	}
	t.logger.Info("acknowledgement deadline fired",
		zap.String("fault_id", faultID),
		zap.String("vehicle_id", entry.vehicleID))

	if t.OnAckTimeout != nil {
		t.OnAckTimeout(faultID, entry.vehicleID)
	}
}

// ArmAutoResolve starts the auto-resolution deadline for the vehicle,
// cancelling any prior deadline for the same vehicle
func (t *TimerService) ArmAutoResolve(vehicleID, faultID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armAutoLocked(vehicleID, faultID)
}

// ArmAutoResolveIfAbsent arms the auto-resolution deadline only when none is
// live for the vehicle, so repeated arrival samples leave a single timer
func (t *TimerService) ArmAutoResolveIfAbsent(vehicleID, faultID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.autoTimers[vehicleID]; ok {
		return
	}
	t.armAutoLocked(vehicleID, faultID)
}

func (t *TimerService) armAutoLocked(vehicleID, faultID string) {
	if prior, ok := t.autoTimers[vehicleID]; ok {
		prior.timer.Stop()
	}
	t.autoTimers[vehicleID] = &autoEntry{
		faultID: faultID,
		timer: time.AfterFunc(t.autoResolve, func() {
			t.fireAuto(vehicleID)
		}),
	}
}

// CancelAutoResolve stops the vehicle's auto-resolution deadline
func (t *TimerService) CancelAutoResolve(vehicleID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.autoTimers[vehicleID]; ok {
		entry.timer.Stop()
		delete(t.autoTimers, vehicleID)
	}
}

func (t *TimerService) fireAuto(vehicleID string) {
	t.mu.Lock()
	entry, ok := t.autoTimers[vehicleID]
	if ok {
		delete(t.autoTimers, vehicleID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	if t.metrics != nil {
		t.metrics.RecordTimerFiring(timerKindAutoResolve)
	}
	t.logger.Info("auto-resolution deadline fired",
		zap.String("vehicle_id", vehicleID),
		zap.String("fault_id", entry.faultID))

	if t.OnAutoResolve != nil {
		t.OnAutoResolve(vehicleID, entry.faultID)
	}
}

// Stop cancels every live timer (shutdown path)
func (t *TimerService) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, entry := range t.ackTimers {
		entry.timer.Stop()
		delete(t.ackTimers, id)
	}
	for id, entry := range t.autoTimers {
		entry.timer.Stop()
		delete(t.autoTimers, id)
	}
}
