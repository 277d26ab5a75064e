package shared

import "fmt"

// DomainError is the base error type for all domain errors
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(message string) *DomainError {
	return &DomainError{Message: message}
}

// WrongStateError signals that an entity was not in the state the operation
// requires (e.g. dispatching a fault that is not WAITING). Callers may ignore it.
type WrongStateError struct {
	*DomainError
	Entity   string
	Expected string
	Actual   string
}

func NewWrongStateError(entity, expected, actual string) *WrongStateError {
	return &WrongStateError{
		DomainError: &DomainError{Message: fmt.Sprintf("%s is %s, expected %s", entity, actual, expected)},
		Entity:      entity,
		Expected:    expected,
		Actual:      actual,
	}
}

// NoCandidateError signals that no eligible vehicle exists for a fault.
// The fault stays in WAITING.
type NoCandidateError struct {
	*DomainError
	FaultID string
}

func NewNoCandidateError(faultID string) *NoCandidateError {
	return &NoCandidateError{
		DomainError: &DomainError{Message: fmt.Sprintf("no eligible vehicle for fault %s", faultID)},
		FaultID:     faultID,
	}
}

// ContendedError signals a lost compare-and-swap against the store.
// Policy is a single retry before surfacing it to the caller.
type ContendedError struct {
	*DomainError
	Entity string
}

func NewContendedError(entity string) *ContendedError {
	return &ContendedError{
		DomainError: &DomainError{Message: fmt.Sprintf("concurrent mutation of %s", entity)},
		Entity:      entity,
	}
}

// MLUnavailableError signals the ML scorer could not produce a usable
// prediction (down, timeout, schema violation, out-of-range result).
// The dispatch engine absorbs it by falling back to the rule-based scorer.
type MLUnavailableError struct {
	*DomainError
}

func NewMLUnavailableError(reason string) *MLUnavailableError {
	return &MLUnavailableError{DomainError: &DomainError{Message: "ml scorer unavailable: " + reason}}
}

// RoutingUnavailableError signals the external routing provider failed.
// It never reaches callers of the routing client, which degrades to the
// straight-line fallback route.
type RoutingUnavailableError struct {
	*DomainError
}

func NewRoutingUnavailableError(reason string) *RoutingUnavailableError {
	return &RoutingUnavailableError{DomainError: &DomainError{Message: "routing provider unavailable: " + reason}}
}

// BadCoordinateError rejects NaN/Inf or out-of-range coordinates.
type BadCoordinateError struct {
	*DomainError
	Lat float64
	Lon float64
}

func NewBadCoordinateError(lat, lon float64) *BadCoordinateError {
	return &BadCoordinateError{
		DomainError: &DomainError{Message: fmt.Sprintf("bad coordinate (%v, %v)", lat, lon)},
		Lat:         lat,
		Lon:         lon,
	}
}

// ValidationError reports an invalid field on an inbound payload
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a missing entity
type NotFoundError struct {
	*DomainError
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		DomainError: &DomainError{Message: fmt.Sprintf("%s %s not found", entity, id)},
		Entity:      entity,
		ID:          id,
	}
}
