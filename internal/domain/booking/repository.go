package booking

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for booking aggregates.
// Bookings are never deleted: terminal states are retained for audit.
type Repository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByCustomerID retrieves bookings created by a customer, newest first.
	FindByCustomerID(ctx context.Context, customerID uuid.UUID, status *BookingStatus, page, limit int) ([]*Booking, int64, error)

	// FindByProviderID retrieves bookings assigned to a provider, newest first.
	FindByProviderID(ctx context.Context, providerID uuid.UUID, status *BookingStatus, page, limit int) ([]*Booking, int64, error)

	// ListAll retrieves bookings with pagination and optional status filter (admin).
	ListAll(ctx context.Context, status *BookingStatus, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// CountByProvider returns booking counts for one provider grouped by status.
	CountByProvider(ctx context.Context, providerID uuid.UUID) (map[string]int64, error)

	// Save persists a new booking.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, booking *Booking) error
}
