// Package assignment selects a qualified provider for a booking. Selection
// is a pure decision: the orchestrator applies the resulting mutation.
package assignment

import (
	"context"
	"errors"
	"fmt"

	"github.com/cleanfanatics/service-booking/internal/domain"
	"github.com/cleanfanatics/service-booking/internal/domain/booking"
	"github.com/cleanfanatics/service-booking/internal/domain/user"
	"github.com/google/uuid"
)

// ErrNoAvailableProvider is returned when no candidate qualifies for the
// booking's service. Callers keep the booking at pending; this is not a
// failure of the surrounding operation.
var ErrNoAvailableProvider = errors.New("no available provider found")

// Service picks a provider for a booking.
type Service struct {
	users user.Repository
}

// NewService creates an assignment Service.
func NewService(users user.Repository) *Service {
	return &Service{users: users}
}

// Select chooses a provider for the booking. When explicitProviderID is set
// (the manual/administrator path) that identity is validated and returned
// without ranking. Otherwise candidates for the booking's service are
// ranked by rating, then completed jobs, with ties broken by ID so repeated
// calls over the same candidate set pick the same provider. The provider
// most recently tried on this booking is excluded once a retry has occurred.
func (s *Service) Select(ctx context.Context, bk *booking.Booking, explicitProviderID *uuid.UUID) (*user.User, error) {
	if explicitProviderID != nil {
		candidate, err := s.users.FindByID(ctx, *explicitProviderID)
		if err != nil {
			if domain.IsNotFound(err) {
				return nil, domain.NewValidationError("invalid provider")
			}
			return nil, fmt.Errorf("failed to load provider: %w", err)
		}
		if candidate.Role() != user.RoleProvider {
			return nil, domain.NewValidationError("invalid provider")
		}
		return candidate, nil
	}

	var exclude []uuid.UUID
	if bk.RetryCount() > 0 && bk.LastProviderID() != nil {
		exclude = []uuid.UUID{*bk.LastProviderID()}
	}

	candidates, err := s.users.FindProviderCandidates(ctx, bk.Service(), exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoAvailableProvider
	}
	return candidates[0], nil
}
