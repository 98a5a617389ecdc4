package application

import (
	"context"
	"testing"
	"time"

	"github.com/cleanfanatics/service-booking/internal/assignment"
	"github.com/cleanfanatics/service-booking/internal/domain"
	bookingDomain "github.com/cleanfanatics/service-booking/internal/domain/booking"
	eventDomain "github.com/cleanfanatics/service-booking/internal/domain/event"
	userDomain "github.com/cleanfanatics/service-booking/internal/domain/user"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	_ bookingDomain.Repository = (*memBookingRepo)(nil)
	_ eventDomain.Repository   = (*memEventRepo)(nil)
	_ userDomain.Repository    = (*memUserRepo)(nil)
)

type stack struct {
	svc      *BookingService
	bookings *memBookingRepo
	events   *memEventRepo
	users    *memUserRepo

	customer *userDomain.User
	admin    *userDomain.User
}

func newStack(t *testing.T) *stack {
	t.Helper()
	bookings := newMemBookingRepo()
	events := newMemEventRepo()
	users := newMemUserRepo()

	customer, err := userDomain.NewUser("customer@example.com", "x-hash", "Asha", "9000000001",
		userDomain.RoleCustomer, nil, userDomain.Location{City: "Mumbai"})
	require.NoError(t, err)
	users.add(customer)

	admin, err := userDomain.NewUser("admin@example.com", "x-hash", "Ops", "9000000002",
		userDomain.RoleAdmin, nil, userDomain.Location{})
	require.NoError(t, err)
	users.add(admin)

	svc := NewBookingService(bookings, events, users, assignment.NewService(users), nil, zap.NewNop())
	return &stack{svc: svc, bookings: bookings, events: events, users: users, customer: customer, admin: admin}
}

func (s *stack) addProvider(t *testing.T, name string, services ...bookingDomain.ServiceCategory) *userDomain.User {
	t.Helper()
	u, err := userDomain.NewUser(name+"@example.com", "x-hash", name, "9000000003",
		userDomain.RoleProvider, services, userDomain.Location{City: "Mumbai"})
	require.NoError(t, err)
	s.users.add(u)
	return u
}

func createRequest() CreateBookingRequest {
	return CreateBookingRequest{
		Service:             "cleaning",
		ScheduledDate:       time.Now().UTC().AddDate(0, 0, 3),
		ScheduledTime:       "09:00-11:00",
		Address:             bookingDomain.Address{Street: "4 Hill Rd", City: "Mumbai", Pincode: "400050"},
		Description:         "kitchen and bathrooms",
		EstimatedPriceCents: 180000,
	}
}

func TestCreateBooking_AutoAssigns(t *testing.T) {
	s := newStack(t)
	provider := s.addProvider(t, "cleaner", bookingDomain.ServiceCleaning)

	dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), createRequest())
	require.NoError(t, err)

	assert.Equal(t, string(bookingDomain.StatusAssigned), dto.Status)
	require.NotNil(t, dto.ProviderID)
	assert.Equal(t, provider.ID(), *dto.ProviderID)
	assert.Equal(t, int64(2), dto.Version)

	history, err := s.svc.GetBookingHistory(context.Background(), dto.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	created := history[0]
	assert.Equal(t, eventDomain.TypeBookingCreated, created.Type)
	assert.Nil(t, created.PreviousState)
	assert.Equal(t, "pending", created.NewState)
	assert.Equal(t, eventDomain.RoleCustomer, created.Actor.Role)

	assigned := history[1]
	assert.Equal(t, eventDomain.TypeProviderAssigned, assigned.Type)
	require.NotNil(t, assigned.PreviousState)
	assert.Equal(t, "pending", *assigned.PreviousState)
	assert.Equal(t, "assigned", assigned.NewState)
	assert.Equal(t, eventDomain.RoleSystem, assigned.Actor.Role)
	assert.Equal(t, provider.ID().String(), assigned.Metadata["provider_id"])
}

func TestCreateBooking_NoProvidersLeavesPending(t *testing.T) {
	s := newStack(t)

	dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), createRequest())
	require.NoError(t, err)

	assert.Equal(t, string(bookingDomain.StatusPending), dto.Status)
	assert.Nil(t, dto.ProviderID)

	history, err := s.svc.GetBookingHistory(context.Background(), dto.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, eventDomain.TypeBookingCreated, history[0].Type)
}

func TestCreateBooking_AutoAssignDisabled(t *testing.T) {
	s := newStack(t)
	s.addProvider(t, "idle", bookingDomain.ServiceCleaning)

	req := createRequest()
	off := false
	req.AutoAssign = &off

	dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), req)
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusPending), dto.Status)
	assert.Nil(t, dto.ProviderID)
}

func TestCreateBooking_RejectedInputLeavesNoTrace(t *testing.T) {
	s := newStack(t)

	req := createRequest()
	req.Service = "gardening"

	_, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), req)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, s.events.events)
	assert.Empty(t, s.bookings.bookings)
}

func TestAssignProvider_Explicit(t *testing.T) {
	s := newStack(t)

	req := createRequest()
	off := false
	req.AutoAssign = &off
	dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), req)
	require.NoError(t, err)

	t.Run("invalid provider appends no event", func(t *testing.T) {
		bogus := uuid.New()
		before := len(s.events.events)
		_, err := s.svc.AssignProvider(context.Background(), dto.ID, s.admin.ID(), &bogus)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
		assert.Len(t, s.events.events, before)
	})

	t.Run("valid provider assigns", func(t *testing.T) {
		provider := s.addProvider(t, "chosen", bookingDomain.ServiceCleaning)
		id := provider.ID()
		result, err := s.svc.AssignProvider(context.Background(), dto.ID, s.admin.ID(), &id)
		require.NoError(t, err)
		assert.Equal(t, string(bookingDomain.StatusAssigned), result.Status)
		require.Len(t, s.events.byType(dto.ID, eventDomain.TypeProviderAssigned), 1)
	})
}

func TestSetStatus_HappyPathClassification(t *testing.T) {
	s := newStack(t)
	provider := s.addProvider(t, "worker", bookingDomain.ServiceCleaning)

	dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), createRequest())
	require.NoError(t, err)
	require.Equal(t, string(bookingDomain.StatusAssigned), dto.Status)

	steps := []struct {
		status    bookingDomain.BookingStatus
		eventType eventDomain.Type
	}{
		{bookingDomain.StatusAccepted, eventDomain.TypeProviderAccepted},
		{bookingDomain.StatusInProgress, eventDomain.TypeWorkStarted},
		{bookingDomain.StatusCompleted, eventDomain.TypeWorkCompleted},
	}
	for _, step := range steps {
		result, err := s.svc.SetStatus(context.Background(), dto.ID, provider.ID(), step.status, "")
		require.NoError(t, err)
		assert.Equal(t, string(step.status), result.Status)
		assert.Len(t, s.events.byType(dto.ID, step.eventType), 1)
	}

	// Completion finalizes the price and credits the provider.
	final, err := s.svc.GetBooking(context.Background(), dto.ID)
	require.NoError(t, err)
	require.NotNil(t, final.FinalPriceCents)
	assert.Equal(t, final.EstimatedPriceCents, *final.FinalPriceCents)
	assert.Equal(t, 1, s.users.increments[provider.ID()])
}

func TestSetStatus_IllegalEdgeDenied(t *testing.T) {
	s := newStack(t)
	provider := s.addProvider(t, "eager", bookingDomain.ServiceCleaning)

	dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), createRequest())
	require.NoError(t, err)

	before := len(s.events.events)
	_, err = s.svc.SetStatus(context.Background(), dto.ID, provider.ID(), bookingDomain.StatusCompleted, "")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.EqualError(t, err, "cannot transition from assigned to completed; valid transitions: accepted, pending, cancelled, failed")

	// Denied intents leave no audit trace and no mutation.
	assert.Len(t, s.events.events, before)
	current, err := s.svc.GetBooking(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusAssigned), current.Status)
}

func TestSetStatus_AdminForcedEdgeIsOverride(t *testing.T) {
	s := newStack(t)
	s.addProvider(t, "bystander", bookingDomain.ServiceCleaning)

	dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), createRequest())
	require.NoError(t, err)
	require.Equal(t, string(bookingDomain.StatusAssigned), dto.Status)

	result, err := s.svc.SetStatus(context.Background(), dto.ID, s.admin.ID(), bookingDomain.StatusCompleted, "customer confirmed by phone")
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusCompleted), result.Status)

	overrides := s.events.byType(dto.ID, eventDomain.TypeAdminOverride)
	require.Len(t, overrides, 1)
	assert.Equal(t, "assigned", *overrides[0].PreviousState)
	assert.Equal(t, "completed", overrides[0].NewState)
	assert.Empty(t, s.events.byType(dto.ID, eventDomain.TypeWorkCompleted))
}

func TestSetStatus_AdminOnLegalEdgeIsNotOverride(t *testing.T) {
	s := newStack(t)
	s.addProvider(t, "helper", bookingDomain.ServiceCleaning)

	dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), createRequest())
	require.NoError(t, err)

	_, err = s.svc.SetStatus(context.Background(), dto.ID, s.admin.ID(), bookingDomain.StatusAccepted, "")
	require.NoError(t, err)

	assert.Empty(t, s.events.byType(dto.ID, eventDomain.TypeAdminOverride))
	assert.Len(t, s.events.byType(dto.ID, eventDomain.TypeProviderAccepted), 1)
}

func TestRejectAssignment(t *testing.T) {
	t.Run("only the assigned provider may reject", func(t *testing.T) {
		s := newStack(t)
		s.addProvider(t, "assigned", bookingDomain.ServiceCleaning)
		outsider := s.addProvider(t, "outsider", bookingDomain.ServicePainting)

		dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), createRequest())
		require.NoError(t, err)

		_, err = s.svc.RejectAssignment(context.Background(), dto.ID, outsider.ID(), "not mine")
		require.Error(t, err)
		assert.True(t, domain.IsForbidden(err))
		assert.Empty(t, s.events.byType(dto.ID, eventDomain.TypeProviderRejected))
	})

	t.Run("retry branch returns the booking to pending", func(t *testing.T) {
		s := newStack(t)
		provider := s.addProvider(t, "reluctant", bookingDomain.ServiceCleaning)

		dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), createRequest())
		require.NoError(t, err)

		result, err := s.svc.RejectAssignment(context.Background(), dto.ID, provider.ID(), "schedule conflict")
		require.NoError(t, err)

		assert.Equal(t, OutcomeRetried, result.Outcome)
		assert.Equal(t, string(bookingDomain.StatusPending), result.Booking.Status)
		assert.Nil(t, result.Booking.ProviderID)
		assert.Equal(t, 1, result.Booking.RetryCount)

		rejected := s.events.byType(dto.ID, eventDomain.TypeProviderRejected)
		require.Len(t, rejected, 1)
		assert.Equal(t, "schedule conflict", rejected[0].Metadata["reason"])
		assert.Equal(t, provider.ID().String(), rejected[0].Metadata["rejected_provider_id"])
		assert.Equal(t, eventDomain.RoleProvider, rejected[0].Actor.Role)

		retries := s.events.byType(dto.ID, eventDomain.TypeRetryAttempted)
		require.Len(t, retries, 1)
		assert.Equal(t, eventDomain.RoleSystem, retries[0].Actor.Role)
		assert.Equal(t, "Retry attempt 1 of 3", retries[0].Description)
	})

	t.Run("budget exhaustion fails the booking", func(t *testing.T) {
		s := newStack(t)
		// Single provider: every reassignment lands on the same one once the
		// exclusion window passes, which is irrelevant here because we
		// re-assign explicitly.
		provider := s.addProvider(t, "overloaded", bookingDomain.ServiceCleaning)

		dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), createRequest())
		require.NoError(t, err)

		var last *RejectResultDTO
		for i := 0; i < bookingDomain.DefaultMaxRetries+1; i++ {
			if i > 0 {
				id := provider.ID()
				_, err := s.svc.AssignProvider(context.Background(), dto.ID, s.admin.ID(), &id)
				require.NoError(t, err)
			}
			last, err = s.svc.RejectAssignment(context.Background(), dto.ID, provider.ID(), "")
			require.NoError(t, err)
		}

		assert.Equal(t, OutcomeFailed, last.Outcome)
		assert.Equal(t, string(bookingDomain.StatusFailed), last.Booking.Status)
		assert.Equal(t, bookingDomain.DefaultMaxRetries, last.Booking.RetryCount)
		require.NotNil(t, last.Booking.ProviderID)

		assert.Len(t, s.events.byType(dto.ID, eventDomain.TypeProviderRejected), bookingDomain.DefaultMaxRetries+1)
		assert.Len(t, s.events.byType(dto.ID, eventDomain.TypeRetryAttempted), bookingDomain.DefaultMaxRetries)

		failed := s.events.byType(dto.ID, eventDomain.TypeBookingFailed)
		require.Len(t, failed, 1)
		assert.Equal(t, "Maximum retry attempts exceeded", failed[0].Description)
		assert.Equal(t, eventDomain.RoleSystem, failed[0].Actor.Role)
	})
}

func TestCancelBooking_Authorization(t *testing.T) {
	s := newStack(t)
	provider := s.addProvider(t, "busy", bookingDomain.ServiceCleaning)

	otherCustomer, err := userDomain.NewUser("other@example.com", "x-hash", "Ravi", "9000000009",
		userDomain.RoleCustomer, nil, userDomain.Location{})
	require.NoError(t, err)
	s.users.add(otherCustomer)

	otherProvider := s.addProvider(t, "unrelated", bookingDomain.ServicePlumbing)

	dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), createRequest())
	require.NoError(t, err)

	t.Run("foreign customer denied", func(t *testing.T) {
		_, err := s.svc.CancelBooking(context.Background(), dto.ID, otherCustomer.ID(), "")
		assert.True(t, domain.IsForbidden(err))
	})

	t.Run("unassigned provider denied", func(t *testing.T) {
		_, err := s.svc.CancelBooking(context.Background(), dto.ID, otherProvider.ID(), "")
		assert.True(t, domain.IsForbidden(err))
	})

	t.Run("assigned provider may cancel", func(t *testing.T) {
		result, err := s.svc.CancelBooking(context.Background(), dto.ID, provider.ID(), "equipment failure")
		require.NoError(t, err)
		assert.Equal(t, string(bookingDomain.StatusCancelled), result.Status)
		assert.Equal(t, "provider", result.CancelledBy)
		assert.Equal(t, "equipment failure", result.CancellationReason)
		// Cancellation keeps the provider reference for audit.
		assert.NotNil(t, result.ProviderID)
	})

	t.Run("cancelling twice is denied", func(t *testing.T) {
		_, err := s.svc.CancelBooking(context.Background(), dto.ID, s.admin.ID(), "")
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})
}

func TestAdminOverride(t *testing.T) {
	s := newStack(t)
	s.addProvider(t, "steady", bookingDomain.ServiceCleaning)

	dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), createRequest())
	require.NoError(t, err)

	t.Run("requires the admin role", func(t *testing.T) {
		_, err := s.svc.AdminOverride(context.Background(), dto.ID, s.customer.ID(), bookingDomain.StatusCompleted, "")
		assert.True(t, domain.IsForbidden(err))
	})

	t.Run("forces any status and records one override event", func(t *testing.T) {
		result, err := s.svc.AdminOverride(context.Background(), dto.ID, s.admin.ID(), bookingDomain.StatusCompleted, "resolved offline")
		require.NoError(t, err)
		assert.Equal(t, string(bookingDomain.StatusCompleted), result.Status)
		assert.Equal(t, "resolved offline", result.AdminNotes)

		overrides := s.events.byType(dto.ID, eventDomain.TypeAdminOverride)
		require.Len(t, overrides, 1)
		assert.Equal(t, "assigned", *overrides[0].PreviousState)
		assert.Equal(t, "completed", overrides[0].NewState)
		assert.Equal(t, "Admin override: assigned -> completed", overrides[0].Description)
		assert.Equal(t, "resolved offline", overrides[0].Metadata["notes"])
		assert.Equal(t, eventDomain.RoleAdmin, overrides[0].Actor.Role)
	})

	t.Run("can resurrect a terminal booking", func(t *testing.T) {
		result, err := s.svc.AdminOverride(context.Background(), dto.ID, s.admin.ID(), bookingDomain.StatusPending, "")
		require.NoError(t, err)
		assert.Equal(t, string(bookingDomain.StatusPending), result.Status)
	})
}

// TestHistoryReplay folds a booking's history and checks that every event
// chains from the previous one's state and that the fold lands on the
// booking's final status.
func TestHistoryReplay(t *testing.T) {
	s := newStack(t)
	first := s.addProvider(t, "first", bookingDomain.ServiceCleaning)

	dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), createRequest())
	require.NoError(t, err)

	// reject once, re-assign, then run to completion
	_, err = s.svc.RejectAssignment(context.Background(), dto.ID, first.ID(), "busy")
	require.NoError(t, err)

	second := s.addProvider(t, "second", bookingDomain.ServiceCleaning)
	id := second.ID()
	_, err = s.svc.AssignProvider(context.Background(), dto.ID, s.admin.ID(), &id)
	require.NoError(t, err)

	for _, status := range []bookingDomain.BookingStatus{
		bookingDomain.StatusAccepted, bookingDomain.StatusInProgress, bookingDomain.StatusCompleted,
	} {
		_, err = s.svc.SetStatus(context.Background(), dto.ID, second.ID(), status, "")
		require.NoError(t, err)
	}

	history, err := s.svc.GetBookingHistory(context.Background(), dto.ID)
	require.NoError(t, err)
	require.NotEmpty(t, history)

	// Each event either continues from the previous event's state or restates
	// the same transition (a rejection and its retry/failure follow-up record
	// one transition twice).
	state := ""
	lastPrevious := ""
	for i, e := range history {
		if i == 0 {
			assert.Nil(t, e.PreviousState)
		} else if e.PreviousState != nil {
			chains := *e.PreviousState == state
			restates := *e.PreviousState == lastPrevious && e.NewState == state
			assert.True(t, chains || restates, "event %d (%s) does not chain: %s -> %s after %s", i, e.Type, *e.PreviousState, e.NewState, state)
		}
		if e.PreviousState != nil {
			lastPrevious = *e.PreviousState
		} else {
			lastPrevious = ""
		}
		state = e.NewState
	}

	final, err := s.svc.GetBooking(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, final.Status, state)
}

func TestGetBookingHistory_UnknownBooking(t *testing.T) {
	s := newStack(t)
	_, err := s.svc.GetBookingHistory(context.Background(), uuid.New())
	assert.True(t, domain.IsNotFound(err))
}

func TestGetRecentEvents_DefaultLimit(t *testing.T) {
	s := newStack(t)
	s.addProvider(t, "logger", bookingDomain.ServiceCleaning)

	dto, err := s.svc.CreateBooking(context.Background(), s.customer.ID(), createRequest())
	require.NoError(t, err)

	events, err := s.svc.GetRecentEvents(context.Background(), 0, nil)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	// newest first
	assert.Equal(t, eventDomain.TypeProviderAssigned, events[0].Type)

	scoped, err := s.svc.GetRecentEvents(context.Background(), 10, &dto.ID)
	require.NoError(t, err)
	for _, e := range scoped {
		assert.Equal(t, dto.ID, e.BookingID)
	}
}
