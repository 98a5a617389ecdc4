package booking

import (
	"fmt"
	"time"

	"github.com/cleanfanatics/service-booking/internal/domain"
	"github.com/google/uuid"
)

// DefaultMaxRetries bounds how many times a booking may be reassigned after
// provider rejections before it is marked failed.
const DefaultMaxRetries = 3

// CancelActor identifies which role cancelled a booking.
type CancelActor string

const (
	CancelledByCustomer CancelActor = "customer"
	CancelledByProvider CancelActor = "provider"
	CancelledByAdmin    CancelActor = "admin"
	CancelledByNone     CancelActor = ""
)

// Address is the service location for a booking. Required and immutable
// after creation.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	Pincode string `json:"pincode"`
}

// Booking is the aggregate root for the booking domain. All mutation goes
// through its behavior methods; the orchestrator decides which to invoke.
type Booking struct {
	id         uuid.UUID
	customerID uuid.UUID
	providerID *uuid.UUID
	service    ServiceCategory
	status     BookingStatus

	// lastProviderID survives rejection so the next assignment pass can
	// exclude the provider who just turned the booking down.
	lastProviderID *uuid.UUID

	scheduledDate time.Time
	scheduledTime string
	address       Address
	description   string

	estimatedPriceCents int64
	finalPriceCents     *int64

	retryCount int
	maxRetries int

	cancellationReason string
	cancelledBy        CancelActor
	adminNotes         string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewBooking creates a new Booking aggregate with status=pending.
func NewBooking(
	customerID uuid.UUID,
	service ServiceCategory,
	scheduledDate time.Time,
	scheduledTime string,
	address Address,
	description string,
	estimatedPriceCents int64,
) (*Booking, error) {
	if customerID == uuid.Nil {
		return nil, domain.NewValidationError("customer ID is required")
	}
	if !service.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid service category: %s", service))
	}
	if scheduledDate.IsZero() {
		return nil, domain.NewValidationError("scheduled date is required")
	}
	if scheduledTime == "" {
		return nil, domain.NewValidationError("scheduled time slot is required")
	}
	if address.Street == "" || address.City == "" || address.Pincode == "" {
		return nil, domain.NewValidationError("address street, city and pincode are required")
	}
	if estimatedPriceCents < 0 {
		return nil, domain.NewValidationError("estimated price cannot be negative")
	}

	now := time.Now().UTC()
	return &Booking{
		id:                  uuid.New(),
		customerID:          customerID,
		service:             service,
		status:              StatusPending,
		scheduledDate:       scheduledDate,
		scheduledTime:       scheduledTime,
		address:             address,
		description:         description,
		estimatedPriceCents: estimatedPriceCents,
		maxRetries:          DefaultMaxRetries,
		version:             1,
		createdAt:           now,
		updatedAt:           now,
	}, nil
}

// Reconstruct rebuilds a Booking from persistence data (no validation).
func Reconstruct(
	id, customerID uuid.UUID,
	providerID, lastProviderID *uuid.UUID,
	service ServiceCategory,
	status BookingStatus,
	scheduledDate time.Time,
	scheduledTime string,
	address Address,
	description string,
	estimatedPriceCents int64,
	finalPriceCents *int64,
	retryCount, maxRetries int,
	cancellationReason string,
	cancelledBy CancelActor,
	adminNotes string,
	version int64,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:                  id,
		customerID:          customerID,
		providerID:          providerID,
		lastProviderID:      lastProviderID,
		service:             service,
		status:              status,
		scheduledDate:       scheduledDate,
		scheduledTime:       scheduledTime,
		address:             address,
		description:         description,
		estimatedPriceCents: estimatedPriceCents,
		finalPriceCents:     finalPriceCents,
		retryCount:          retryCount,
		maxRetries:          maxRetries,
		cancellationReason:  cancellationReason,
		cancelledBy:         cancelledBy,
		adminNotes:          adminNotes,
		version:             version,
		createdAt:           createdAt,
		updatedAt:           updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// CustomerID returns the requesting customer's user ID.
func (b *Booking) CustomerID() uuid.UUID { return b.customerID }

// ProviderID returns the assigned provider's user ID, or nil if unassigned.
func (b *Booking) ProviderID() *uuid.UUID { return b.providerID }

// LastProviderID returns the most recently assigned provider, retained
// across rejections.
func (b *Booking) LastProviderID() *uuid.UUID { return b.lastProviderID }

// Service returns the requested service category.
func (b *Booking) Service() ServiceCategory { return b.service }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// ScheduledDate returns the calendar date the work is scheduled for.
func (b *Booking) ScheduledDate() time.Time { return b.scheduledDate }

// ScheduledTime returns the time-slot label for the scheduled date.
func (b *Booking) ScheduledTime() string { return b.scheduledTime }

// Address returns the service address.
func (b *Booking) Address() Address { return b.address }

// Description returns the customer's description of the work.
func (b *Booking) Description() string { return b.description }

// EstimatedPriceCents returns the estimated price in cents.
func (b *Booking) EstimatedPriceCents() int64 { return b.estimatedPriceCents }

// FinalPriceCents returns the final price in cents, or nil if not finalized.
func (b *Booking) FinalPriceCents() *int64 { return b.finalPriceCents }

// RetryCount returns the number of reassignment attempts consumed so far.
func (b *Booking) RetryCount() int { return b.retryCount }

// MaxRetries returns the reassignment budget.
func (b *Booking) MaxRetries() int { return b.maxRetries }

// CancellationReason returns the reason supplied at cancellation.
func (b *Booking) CancellationReason() string { return b.cancellationReason }

// CancelledBy returns the role that cancelled the booking, if any.
func (b *Booking) CancelledBy() CancelActor { return b.cancelledBy }

// AdminNotes returns free text set by administrator overrides.
func (b *Booking) AdminNotes() string { return b.adminNotes }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// AssignProvider sets the provider and moves the booking to assigned.
// Non-privileged callers may only assign from a status that permits the
// assigned edge; a privileged actor may assign from any status.
func (b *Booking) AssignProvider(providerID uuid.UUID, privileged bool) error {
	if providerID == uuid.Nil {
		return domain.NewValidationError("provider ID is required")
	}
	if !privileged && !b.status.CanTransitionTo(StatusAssigned) {
		return transitionError(b.status, StatusAssigned)
	}
	b.providerID = &providerID
	b.lastProviderID = &providerID
	b.status = StatusAssigned
	b.updatedAt = time.Now().UTC()
	return nil
}

// ChangeStatus applies a validated status transition. Cancellation and
// rejection have dedicated methods because they stamp extra fields.
func (b *Booking) ChangeStatus(requested BookingStatus, privileged bool) error {
	if result := ValidateTransition(b.status, requested, privileged); !result.Allowed {
		return transitionError(b.status, requested)
	}
	b.status = requested
	if requested == StatusCompleted && b.finalPriceCents == nil {
		price := b.estimatedPriceCents
		b.finalPriceCents = &price
	}
	b.updatedAt = time.Now().UTC()
	return nil
}

// Cancel moves the booking to cancelled and stamps who cancelled it and why.
// Completed and cancelled bookings cannot be cancelled. The provider
// reference is retained for audit.
func (b *Booking) Cancel(by CancelActor, reason string) error {
	if b.status == StatusCompleted || b.status == StatusCancelled {
		return transitionError(b.status, StatusCancelled)
	}
	b.status = StatusCancelled
	b.cancelledBy = by
	b.cancellationReason = reason
	b.updatedAt = time.Now().UTC()
	return nil
}

// RecordRejection consumes the retry budget after the assigned provider
// rejects the booking. While budget remains it clears the provider and
// returns the booking to pending for reassignment, reporting true. Once the
// budget is exhausted it marks the booking failed and reports false. This
// bounds how many times a booking can bounce between providers.
func (b *Booking) RecordRejection() (retried bool) {
	if b.retryCount < b.maxRetries {
		b.retryCount++
		b.providerID = nil
		b.status = StatusPending
		b.updatedAt = time.Now().UTC()
		return true
	}
	b.status = StatusFailed
	b.updatedAt = time.Now().UTC()
	return false
}

// Override forces the booking into newStatus without consulting the state
// machine. Callers must record the move as an admin override in the audit
// trail; no other path may skip validation.
func (b *Booking) Override(newStatus BookingStatus, notes string) {
	b.status = newStatus
	if notes != "" {
		b.adminNotes = notes
	}
	b.updatedAt = time.Now().UTC()
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}
