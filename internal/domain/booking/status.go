package booking

import (
	"fmt"

	"github.com/cleanfanatics/service-booking/internal/domain"
)

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusAssigned   BookingStatus = "assigned"
	StatusAccepted   BookingStatus = "accepted"
	StatusInProgress BookingStatus = "in-progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
	StatusFailed     BookingStatus = "failed"
)

// validTransitions defines the state machine for booking status transitions.
// "failed" permits a manual restart back to "pending".
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:    {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusAccepted, StatusPending, StatusCancelled, StatusFailed},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusFailed},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusFailed:     {StatusPending},
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// NextStates returns the set of statuses reachable from this status in one step.
func (s BookingStatus) NextStates() []BookingStatus {
	allowed := validTransitions[s]
	out := make([]BookingStatus, len(allowed))
	copy(out, allowed)
	return out
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// TransitionResult is the outcome of validating a requested status change.
type TransitionResult struct {
	Allowed bool
	Reason  string
}

// ValidateTransition checks whether a booking may move from current to
// requested. A privileged (administrator) actor is always allowed; the
// orchestrator is responsible for recording such moves as overrides.
// The function is pure: identical inputs always yield identical results.
func ValidateTransition(current, requested BookingStatus, privileged bool) TransitionResult {
	if privileged {
		return TransitionResult{Allowed: true}
	}
	if current.CanTransitionTo(requested) {
		return TransitionResult{Allowed: true}
	}
	next := make([]string, 0, len(validTransitions[current]))
	for _, s := range validTransitions[current] {
		next = append(next, string(s))
	}
	return TransitionResult{
		Allowed: false,
		Reason:  domain.NewInvalidTransitionError(string(current), string(requested), next).Error(),
	}
}

// transitionError builds the InvalidTransitionError for a denied edge.
func transitionError(current, requested BookingStatus) error {
	next := make([]string, 0, len(validTransitions[current]))
	for _, s := range validTransitions[current] {
		next = append(next, string(s))
	}
	return domain.NewInvalidTransitionError(string(current), string(requested), next)
}
