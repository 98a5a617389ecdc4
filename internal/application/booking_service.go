package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cleanfanatics/service-booking/internal/assignment"
	"github.com/cleanfanatics/service-booking/internal/domain"
	bookingDomain "github.com/cleanfanatics/service-booking/internal/domain/booking"
	eventDomain "github.com/cleanfanatics/service-booking/internal/domain/event"
	userDomain "github.com/cleanfanatics/service-booking/internal/domain/user"
	"github.com/cleanfanatics/service-booking/internal/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RejectOutcome reports which branch of the retry budget a rejection took.
type RejectOutcome string

const (
	OutcomeRetried RejectOutcome = "retried"
	OutcomeFailed  RejectOutcome = "failed"
)

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	Service             string                `json:"service" binding:"required"`
	ScheduledDate       time.Time             `json:"scheduled_date" binding:"required"`
	ScheduledTime       string                `json:"scheduled_time" binding:"required"`
	Address             bookingDomain.Address `json:"address" binding:"required"`
	Description         string                `json:"description"`
	EstimatedPriceCents int64                 `json:"estimated_price_cents"`
	AutoAssign          *bool                 `json:"auto_assign"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID                  uuid.UUID             `json:"id"`
	CustomerID          uuid.UUID             `json:"customer_id"`
	ProviderID          *uuid.UUID            `json:"provider_id,omitempty"`
	Service             string                `json:"service"`
	Status              string                `json:"status"`
	ScheduledDate       time.Time             `json:"scheduled_date"`
	ScheduledTime       string                `json:"scheduled_time"`
	Address             bookingDomain.Address `json:"address"`
	Description         string                `json:"description,omitempty"`
	EstimatedPriceCents int64                 `json:"estimated_price_cents"`
	FinalPriceCents     *int64                `json:"final_price_cents,omitempty"`
	RetryCount          int                   `json:"retry_count"`
	MaxRetries          int                   `json:"max_retries"`
	CancellationReason  string                `json:"cancellation_reason,omitempty"`
	CancelledBy         string                `json:"cancelled_by,omitempty"`
	AdminNotes          string                `json:"admin_notes,omitempty"`
	Version             int64                 `json:"version"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// RejectResultDTO is returned from RejectAssignment.
type RejectResultDTO struct {
	Booking BookingDTO    `json:"booking"`
	Outcome RejectOutcome `json:"outcome"`
}

// BookingService orchestrates the booking lifecycle. Every mutating
// operation follows the same shape: load, validate, mutate the aggregate,
// persist under the optimistic version check, append the audit event, then
// publish the lifecycle event. Audit and publish are best-effort: once the
// mutation is persisted it is never rolled back.
type BookingService struct {
	bookings bookingDomain.Repository
	eventLog eventDomain.Repository
	users    userDomain.Repository
	assigner *assignment.Service
	producer *events.Producer
	logger   *zap.Logger
}

// NewBookingService creates a BookingService.
func NewBookingService(
	bookings bookingDomain.Repository,
	eventLog eventDomain.Repository,
	users userDomain.Repository,
	assigner *assignment.Service,
	producer *events.Producer,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		eventLog: eventLog,
		users:    users,
		assigner: assigner,
		producer: producer,
		logger:   logger,
	}
}

// CreateBooking creates a new booking at pending and, unless auto-assign is
// disabled, immediately tries to assign a provider. Failure to find a
// provider leaves the booking at pending and is not an error to the caller.
func (s *BookingService) CreateBooking(ctx context.Context, customerID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	customer, err := s.users.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	service, err := bookingDomain.ParseServiceCategory(req.Service)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	bk, err := bookingDomain.NewBooking(
		customerID,
		service,
		req.ScheduledDate,
		req.ScheduledTime,
		req.Address,
		req.Description,
		req.EstimatedPriceCents,
	)
	if err != nil {
		return nil, err
	}

	if err := s.bookings.Save(ctx, bk); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	s.recordEvent(ctx, bk, eventDomain.TypeBookingCreated, "", actorFor(customer), nil,
		fmt.Sprintf("Booking created for %s service", service))
	s.publish(ctx, events.BookingCreated, bk, "", string(eventDomain.RoleCustomer), "", 0)

	autoAssign := req.AutoAssign == nil || *req.AutoAssign
	if autoAssign {
		s.tryAutoAssign(ctx, bk)
	}

	result := toBookingDTO(bk)
	return &result, nil
}

// tryAutoAssign attempts the automatic assignment path after creation.
// Every failure mode leaves the booking at pending.
func (s *BookingService) tryAutoAssign(ctx context.Context, bk *bookingDomain.Booking) {
	provider, err := s.assigner.Select(ctx, bk, nil)
	if err != nil {
		if errors.Is(err, assignment.ErrNoAvailableProvider) {
			s.logger.Info("no provider available for auto-assignment",
				zap.String("booking_id", bk.ID().String()),
				zap.String("service", bk.Service().String()),
			)
		} else {
			s.logger.Warn("auto-assignment selection failed",
				zap.String("booking_id", bk.ID().String()),
				zap.Error(err),
			)
		}
		return
	}

	previous := bk.Status()
	if err := bk.AssignProvider(provider.ID(), false); err != nil {
		s.logger.Warn("auto-assignment rejected by state machine",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
		return
	}

	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		s.logger.Warn("failed to persist auto-assignment",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
		return
	}

	s.recordEvent(ctx, bk, eventDomain.TypeProviderAssigned, string(previous),
		eventDomain.SystemActor(),
		map[string]any{"provider_id": provider.ID().String()},
		fmt.Sprintf("Provider %s auto-assigned to booking", provider.Name()))
	s.publish(ctx, events.ProviderAssigned, bk, string(previous), string(eventDomain.RoleSystem), "", 0)
}

// AssignProvider assigns a provider, automatically ranked or explicitly
// chosen. Non-admin actors may only assign when the booking's status
// permits the assigned edge.
func (s *BookingService) AssignProvider(ctx context.Context, bookingID, actorID uuid.UUID, explicitProviderID *uuid.UUID) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	provider, err := s.assigner.Select(ctx, bk, explicitProviderID)
	if err != nil {
		if errors.Is(err, assignment.ErrNoAvailableProvider) {
			return nil, domain.NewValidationError(err.Error())
		}
		return nil, err
	}

	previous := bk.Status()
	privileged := actor.Role() == userDomain.RoleAdmin
	if err := bk.AssignProvider(provider.ID(), privileged); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.recordEvent(ctx, bk, eventDomain.TypeProviderAssigned, string(previous),
		actorFor(actor),
		map[string]any{"provider_id": provider.ID().String()},
		fmt.Sprintf("Provider %s assigned to booking", provider.Name()))
	s.publish(ctx, events.ProviderAssigned, bk, string(previous), string(actor.Role()), "", 0)

	result := toBookingDTO(bk)
	return &result, nil
}

// SetStatus applies a requested status transition on behalf of an actor.
// Admin actors may force edges outside the transition table; such forced
// moves are recorded as ADMIN_OVERRIDE rather than with the normal event
// classification.
func (s *BookingService) SetStatus(ctx context.Context, bookingID, actorID uuid.UUID, requested bookingDomain.BookingStatus, reason string) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !requested.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid booking status: %s", requested))
	}

	previous := bk.Status()
	privileged := actor.Role() == userDomain.RoleAdmin
	forced := privileged && !previous.CanTransitionTo(requested)

	if requested == bookingDomain.StatusCancelled && !forced {
		if result := bookingDomain.ValidateTransition(previous, requested, privileged); !result.Allowed {
			return nil, domain.NewInvalidTransitionError(string(previous), string(requested), statusStrings(previous.NextStates()))
		}
		if err := bk.Cancel(bookingDomain.CancelActor(actor.Role()), reason); err != nil {
			return nil, err
		}
	} else if forced {
		bk.Override(requested, "")
	} else {
		if err := bk.ChangeStatus(requested, privileged); err != nil {
			return nil, err
		}
	}

	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	if requested == bookingDomain.StatusCompleted && bk.ProviderID() != nil {
		if err := s.users.IncrementCompletedJobs(ctx, *bk.ProviderID()); err != nil {
			s.logger.Warn("failed to increment provider completed jobs",
				zap.String("provider_id", bk.ProviderID().String()),
				zap.Error(err),
			)
		}
	}

	eventType := classifyTransition(requested)
	if forced {
		eventType = eventDomain.TypeAdminOverride
	}

	description := reason
	if description == "" {
		description = fmt.Sprintf("Status changed from %s to %s", previous, requested)
	}
	metadata := map[string]any{}
	if reason != "" {
		metadata["reason"] = reason
	}
	s.recordEvent(ctx, bk, eventType, string(previous), actorFor(actor), metadata, description)
	s.publish(ctx, kafkaTypeFor(eventType), bk, string(previous), string(actor.Role()), reason, 0)

	result := toBookingDTO(bk)
	return &result, nil
}

// RejectAssignment handles the assigned provider turning down a booking.
// While retry budget remains the booking is returned to pending for
// reassignment; once the budget is exhausted it is marked failed. Only the
// currently assigned provider may reject.
func (s *BookingService) RejectAssignment(ctx context.Context, bookingID, providerID uuid.UUID, reason string) (*RejectResultDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	provider, err := s.users.FindByID(ctx, providerID)
	if err != nil {
		return nil, err
	}

	if bk.ProviderID() == nil || *bk.ProviderID() != providerID {
		return nil, domain.NewForbiddenError("only the assigned provider may reject this booking")
	}

	previous := bk.Status()
	rejectedProviderID := bk.ProviderID().String()
	retried := bk.RecordRejection()

	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	description := reason
	if description == "" {
		description = "Provider rejected the booking"
	}
	s.recordEvent(ctx, bk, eventDomain.TypeProviderRejected, string(previous),
		actorFor(provider),
		map[string]any{"reason": reason, "rejected_provider_id": rejectedProviderID},
		description)
	s.publish(ctx, events.ProviderRejected, bk, string(previous), string(provider.Role()), reason, 0)

	outcome := OutcomeFailed
	if retried {
		outcome = OutcomeRetried
		s.recordEvent(ctx, bk, eventDomain.TypeRetryAttempted, string(previous),
			eventDomain.SystemActor(),
			map[string]any{"retry_count": bk.RetryCount()},
			fmt.Sprintf("Retry attempt %d of %d", bk.RetryCount(), bk.MaxRetries()))
		s.publish(ctx, events.RetryAttempted, bk, string(previous), string(eventDomain.RoleSystem), "", bk.RetryCount())
	} else {
		s.recordEvent(ctx, bk, eventDomain.TypeBookingFailed, string(previous),
			eventDomain.SystemActor(), nil,
			"Maximum retry attempts exceeded")
		s.publish(ctx, events.BookingFailed, bk, string(previous), string(eventDomain.RoleSystem), "maximum retry attempts exceeded", bk.RetryCount())
	}

	return &RejectResultDTO{Booking: toBookingDTO(bk), Outcome: outcome}, nil
}

// CancelBooking cancels a booking on behalf of an actor. Customers may only
// cancel their own bookings, providers only bookings assigned to them;
// admins may always cancel. Completed and cancelled bookings cannot be
// cancelled.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, actorID uuid.UUID, reason string) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	switch actor.Role() {
	case userDomain.RoleCustomer:
		if bk.CustomerID() != actorID {
			return nil, domain.NewForbiddenError("booking does not belong to this customer")
		}
	case userDomain.RoleProvider:
		if bk.ProviderID() == nil || *bk.ProviderID() != actorID {
			return nil, domain.NewForbiddenError("booking is not assigned to this provider")
		}
	case userDomain.RoleAdmin:
		// Admins may cancel any booking.
	}

	previous := bk.Status()
	if err := bk.Cancel(bookingDomain.CancelActor(actor.Role()), reason); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	description := reason
	if description == "" {
		description = fmt.Sprintf("Booking cancelled by %s", actor.Role())
	}
	metadata := map[string]any{}
	if reason != "" {
		metadata["reason"] = reason
	}
	s.recordEvent(ctx, bk, eventDomain.TypeBookingCancelled, string(previous),
		actorFor(actor), metadata, description)
	s.publish(ctx, events.BookingCancelled, bk, string(previous), string(actor.Role()), reason, 0)

	result := toBookingDTO(bk)
	return &result, nil
}

// AdminOverride forces the booking into newStatus, bypassing the transition
// table. This is the single blessed bypass: every call is recorded as an
// ADMIN_OVERRIDE event carrying the previous and new state and the notes.
func (s *BookingService) AdminOverride(ctx context.Context, bookingID, adminID uuid.UUID, newStatus bookingDomain.BookingStatus, notes string) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	admin, err := s.users.FindByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.Role() != userDomain.RoleAdmin {
		return nil, domain.NewForbiddenError("override requires the admin role")
	}
	if !newStatus.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid booking status: %s", newStatus))
	}

	previous := bk.Status()
	bk.Override(newStatus, notes)

	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	metadata := map[string]any{}
	if notes != "" {
		metadata["notes"] = notes
	}
	s.recordEvent(ctx, bk, eventDomain.TypeAdminOverride, string(previous),
		actorFor(admin), metadata,
		fmt.Sprintf("Admin override: %s -> %s", previous, newStatus))
	s.publish(ctx, events.AdminOverride, bk, string(previous), string(admin.Role()), notes, 0)

	result := toBookingDTO(bk)
	return &result, nil
}

// --- Queries ---

// GetBooking retrieves a single booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetCustomerBookings retrieves paginated bookings for a customer.
func (s *BookingService) GetCustomerBookings(ctx context.Context, customerID uuid.UUID, status *bookingDomain.BookingStatus, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.bookings.FindByCustomerID(ctx, customerID, status, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// GetProviderBookings retrieves paginated bookings assigned to a provider.
func (s *BookingService) GetProviderBookings(ctx context.Context, providerID uuid.UUID, status *bookingDomain.BookingStatus, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.bookings.FindByProviderID(ctx, providerID, status, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, status *bookingDomain.BookingStatus, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.bookings.ListAll(ctx, status, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// GetBookingHistory returns the full audit trail for a booking, oldest
// first, suitable for replaying its transition path.
func (s *BookingService) GetBookingHistory(ctx context.Context, bookingID uuid.UUID) ([]eventDomain.Event, error) {
	if _, err := s.bookings.FindByID(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.eventLog.HistoryByBooking(ctx, bookingID)
}

// GetRecentEvents returns the newest events first, optionally scoped to one
// booking.
func (s *BookingService) GetRecentEvents(ctx context.Context, limit int, bookingID *uuid.UUID) ([]eventDomain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.eventLog.Recent(ctx, limit, bookingID)
}

// --- Helpers ---

// recordEvent appends an audit event. Appending is best-effort: a failure
// is logged and reported nowhere else, never reversing the booking mutation
// that preceded it. previous is the pre-transition status, or empty for
// creation.
func (s *BookingService) recordEvent(ctx context.Context, bk *bookingDomain.Booking, eventType eventDomain.Type, previous string, actor eventDomain.Actor, metadata map[string]any, description string) {
	e, err := eventDomain.New(bk.ID(), eventType, previous, string(bk.Status()), actor, metadata, description)
	if err != nil {
		s.logger.Warn("failed to build audit event",
			zap.String("booking_id", bk.ID().String()),
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
		return
	}
	if err := s.eventLog.Append(ctx, e); err != nil {
		s.logger.Warn("failed to append audit event",
			zap.String("booking_id", bk.ID().String()),
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, bk *bookingDomain.Booking, previousStatus, actorRole, reason string, retryCount int) {
	if s.producer == nil {
		return
	}

	payload := events.BookingLifecycleEvent{
		BookingID:      bk.ID(),
		CustomerID:     bk.CustomerID(),
		ProviderID:     bk.ProviderID(),
		Service:        bk.Service().String(),
		PreviousStatus: previousStatus,
		NewStatus:      string(bk.Status()),
		ActorRole:      actorRole,
		Reason:         reason,
		RetryCount:     retryCount,
		OccurredAt:     time.Now().UTC(),
	}

	ce, err := events.NewCloudEvent("service-booking", eventType, payload)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := s.producer.PublishEvent(ctx, events.TopicBookingEvents, bk.ID().String(), ce); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// classifyTransition maps an accepted status change to its audit event type.
func classifyTransition(newStatus bookingDomain.BookingStatus) eventDomain.Type {
	switch newStatus {
	case bookingDomain.StatusAccepted:
		return eventDomain.TypeProviderAccepted
	case bookingDomain.StatusInProgress:
		return eventDomain.TypeWorkStarted
	case bookingDomain.StatusCompleted:
		return eventDomain.TypeWorkCompleted
	case bookingDomain.StatusCancelled:
		return eventDomain.TypeBookingCancelled
	case bookingDomain.StatusFailed:
		return eventDomain.TypeBookingFailed
	default:
		return eventDomain.TypeStatusChanged
	}
}

// kafkaTypeFor maps an audit event type to the published lifecycle type.
func kafkaTypeFor(t eventDomain.Type) string {
	switch t {
	case eventDomain.TypeProviderAccepted:
		return events.ProviderAccepted
	case eventDomain.TypeWorkStarted:
		return events.WorkStarted
	case eventDomain.TypeWorkCompleted:
		return events.WorkCompleted
	case eventDomain.TypeBookingCancelled:
		return events.BookingCancelled
	case eventDomain.TypeBookingFailed:
		return events.BookingFailed
	case eventDomain.TypeAdminOverride:
		return events.AdminOverride
	default:
		return events.StatusChanged
	}
}

func actorFor(u *userDomain.User) eventDomain.Actor {
	return eventDomain.Actor{
		UserID: u.ID(),
		Role:   eventDomain.ActorRole(u.Role()),
		Name:   u.Name(),
	}
}

func statusStrings(statuses []bookingDomain.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:                  bk.ID(),
		CustomerID:          bk.CustomerID(),
		ProviderID:          bk.ProviderID(),
		Service:             bk.Service().String(),
		Status:              string(bk.Status()),
		ScheduledDate:       bk.ScheduledDate(),
		ScheduledTime:       bk.ScheduledTime(),
		Address:             bk.Address(),
		Description:         bk.Description(),
		EstimatedPriceCents: bk.EstimatedPriceCents(),
		FinalPriceCents:     bk.FinalPriceCents(),
		RetryCount:          bk.RetryCount(),
		MaxRetries:          bk.MaxRetries(),
		CancellationReason:  bk.CancellationReason(),
		CancelledBy:         string(bk.CancelledBy()),
		AdminNotes:          bk.AdminNotes(),
		Version:             bk.Version(),
		CreatedAt:           bk.CreatedAt(),
		UpdatedAt:           bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}
