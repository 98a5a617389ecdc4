package user

import (
	"context"

	"github.com/cleanfanatics/service-booking/internal/domain/booking"
	"github.com/google/uuid"
)

// Repository defines persistence operations for user accounts.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindProviderCandidates returns active, available providers holding the
	// requested service capability, excluding the given IDs, ordered by
	// rating descending, completed jobs descending, then ID ascending so the
	// ranking is reproducible for identical candidate sets.
	FindProviderCandidates(ctx context.Context, service booking.ServiceCategory, exclude []uuid.UUID) ([]*User, error)

	// ListProviders returns all providers sorted by rating descending,
	// optionally restricted to available+active ones offering service.
	ListProviders(ctx context.Context, service *booking.ServiceCategory, onlyAvailable bool) ([]*User, error)

	// ListByRole returns users, optionally filtered by role, newest first.
	ListByRole(ctx context.Context, role *Role) ([]*User, error)

	// CountByRole returns the number of users with the given role. When
	// onlyAvailable is true only available providers are counted.
	CountByRole(ctx context.Context, role Role, onlyAvailable bool) (int64, error)

	Save(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error

	// IncrementCompletedJobs bumps a provider's completed-job counter as a
	// single atomic update at the storage layer.
	IncrementCompletedJobs(ctx context.Context, providerID uuid.UUID) error
}
