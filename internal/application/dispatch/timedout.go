package dispatch

import "sync"

// TimedOutSet tracks, per fault, the vehicles that failed to acknowledge a
// dispatch. Re-dispatch excludes them so the same silent vehicle is not
// chosen again. Process-local; cleared when the fault resolves.
type TimedOutSet struct {
	mu      sync.Mutex
	byFault map[string]map[string]struct{}
}

// NewTimedOutSet creates an empty set
func NewTimedOutSet() *TimedOutSet {
	return &TimedOutSet{byFault: make(map[string]map[string]struct{})}
}

// Add records a vehicle that timed out on the fault
func (s *TimedOutSet) Add(faultID, vehicleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.byFault[faultID]
	if !ok {
		set = make(map[string]struct{})
		s.byFault[faultID] = set
	}
	set[vehicleID] = struct{}{}
}

// Contains reports whether the vehicle already timed out on the fault
func (s *TimedOutSet) Contains(faultID, vehicleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.byFault[faultID]
	if !ok {
		return false
	}
	_, found := set[vehicleID]
	return found
}

// Clear forgets the fault's timed-out vehicles
func (s *TimedOutSet) Clear(faultID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byFault, faultID)
}
