package events

import (
	"time"

	"github.com/google/uuid"
)

// TopicBookingEvents carries every booking lifecycle event.
const TopicBookingEvents = "booking.events"

// Lifecycle event types published on TopicBookingEvents.
const (
	BookingCreated   = "booking.created"
	ProviderAssigned = "booking.provider_assigned"
	ProviderAccepted = "booking.provider_accepted"
	ProviderRejected = "booking.provider_rejected"
	WorkStarted      = "booking.work_started"
	WorkCompleted    = "booking.work_completed"
	BookingCancelled = "booking.cancelled"
	BookingFailed    = "booking.failed"
	RetryAttempted   = "booking.retry_attempted"
	AdminOverride    = "booking.admin_override"
	StatusChanged    = "booking.status_changed"
)

// BookingLifecycleEvent is the payload for every lifecycle event type.
type BookingLifecycleEvent struct {
	BookingID      uuid.UUID  `json:"booking_id"`
	CustomerID     uuid.UUID  `json:"customer_id"`
	ProviderID     *uuid.UUID `json:"provider_id,omitempty"`
	Service        string     `json:"service"`
	PreviousStatus string     `json:"previous_status,omitempty"`
	NewStatus      string     `json:"new_status"`
	ActorRole      string     `json:"actor_role"`
	Reason         string     `json:"reason,omitempty"`
	RetryCount     int        `json:"retry_count,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}
