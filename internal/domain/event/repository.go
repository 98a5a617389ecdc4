package event

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the append-only persistence contract for the audit log.
// There is deliberately no update or delete operation.
type Repository interface {
	// Append stores a new event, assigning its ID and creation time.
	Append(ctx context.Context, e *Event) error

	// HistoryByBooking returns all events for a booking ordered oldest first,
	// suitable for replaying the transition path.
	HistoryByBooking(ctx context.Context, bookingID uuid.UUID) ([]Event, error)

	// Recent returns the newest events first, optionally filtered to one
	// booking, capped at limit.
	Recent(ctx context.Context, limit int, bookingID *uuid.UUID) ([]Event, error)
}
