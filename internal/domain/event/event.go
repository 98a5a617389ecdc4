package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies an audit event. The set is closed; every accepted
// lifecycle intent maps to exactly one of these.
type Type string

const (
	TypeBookingCreated   Type = "BOOKING_CREATED"
	TypeProviderAssigned Type = "PROVIDER_ASSIGNED"
	TypeProviderAccepted Type = "PROVIDER_ACCEPTED"
	TypeProviderRejected Type = "PROVIDER_REJECTED"
	TypeWorkStarted      Type = "WORK_STARTED"
	TypeWorkCompleted    Type = "WORK_COMPLETED"
	TypeBookingCancelled Type = "BOOKING_CANCELLED"
	TypeBookingFailed    Type = "BOOKING_FAILED"
	TypeRetryAttempted   Type = "RETRY_ATTEMPTED"
	TypeAdminOverride    Type = "ADMIN_OVERRIDE"
	TypeStatusChanged    Type = "STATUS_CHANGED"
)

// IsValid returns true if the event type is recognized.
func (t Type) IsValid() bool {
	switch t {
	case TypeBookingCreated, TypeProviderAssigned, TypeProviderAccepted,
		TypeProviderRejected, TypeWorkStarted, TypeWorkCompleted,
		TypeBookingCancelled, TypeBookingFailed, TypeRetryAttempted,
		TypeAdminOverride, TypeStatusChanged:
		return true
	}
	return false
}

// ActorRole is the role an actor held when it triggered an event. Unlike
// user roles, this includes "system" for assignment and retry automation.
type ActorRole string

const (
	RoleCustomer ActorRole = "customer"
	RoleProvider ActorRole = "provider"
	RoleAdmin    ActorRole = "admin"
	RoleSystem   ActorRole = "system"
)

// Actor identifies who triggered an event.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Role   ActorRole `json:"role"`
	Name   string    `json:"name"`
}

// SystemActor is the actor recorded on system-initiated events such as
// auto-assignment and retries.
func SystemActor() Actor {
	return Actor{UserID: uuid.Nil, Role: RoleSystem, Name: "System"}
}

// Event is one immutable audit fact about a booking. Events are appended
// once by the orchestrator and never updated or deleted; the ordered
// sequence for a booking replays its transition history.
type Event struct {
	ID            int64          `json:"id"`
	BookingID     uuid.UUID      `json:"booking_id"`
	Type          Type           `json:"event_type"`
	PreviousState *string        `json:"previous_state"`
	NewState      string         `json:"new_state"`
	Actor         Actor          `json:"actor"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Description   string         `json:"description"`
	CreatedAt     time.Time      `json:"created_at"`
}

// New builds an Event for a transition. previousState may be empty for
// creation events; createdAt is assigned at write time by the repository.
func New(bookingID uuid.UUID, eventType Type, previousState, newState string, actor Actor, metadata map[string]any, description string) (*Event, error) {
	if bookingID == uuid.Nil {
		return nil, fmt.Errorf("booking ID is required")
	}
	if !eventType.IsValid() {
		return nil, fmt.Errorf("invalid event type: %s", eventType)
	}
	if newState == "" {
		return nil, fmt.Errorf("new state is required")
	}
	e := &Event{
		BookingID:   bookingID,
		Type:        eventType,
		NewState:    newState,
		Actor:       actor,
		Metadata:    metadata,
		Description: description,
	}
	if previousState != "" {
		e.PreviousState = &previousState
	}
	return e, nil
}
