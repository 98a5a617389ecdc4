package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cleanfanatics/service-booking/internal/auth"
	"github.com/cleanfanatics/service-booking/internal/domain"
	bookingDomain "github.com/cleanfanatics/service-booking/internal/domain/booking"
	userDomain "github.com/cleanfanatics/service-booking/internal/domain/user"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterRequest holds the data for a new account.
type RegisterRequest struct {
	Email    string              `json:"email" binding:"required,email"`
	Password string              `json:"password" binding:"required,min=6"`
	Name     string              `json:"name" binding:"required"`
	Phone    string              `json:"phone" binding:"required"`
	Role     string              `json:"role"`
	Services []string            `json:"services"`
	Location userDomain.Location `json:"location"`
}

// UserDTO is the response representation of a user. The password hash never
// leaves the service layer.
type UserDTO struct {
	ID            uuid.UUID           `json:"id"`
	Email         string              `json:"email"`
	Name          string              `json:"name"`
	Phone         string              `json:"phone"`
	Role          string              `json:"role"`
	Services      []string            `json:"services,omitempty"`
	Availability  bool                `json:"availability"`
	Rating        float64             `json:"rating"`
	CompletedJobs int64               `json:"completed_jobs"`
	Location      userDomain.Location `json:"location"`
	IsActive      bool                `json:"is_active"`
	CreatedAt     time.Time           `json:"created_at"`
}

// AuthResponseDTO is returned from register and login.
type AuthResponseDTO struct {
	User  UserDTO `json:"user"`
	Token string  `json:"token"`
}

// ProviderStatsDTO summarizes one provider's workload.
type ProviderStatsDTO struct {
	Total          int64   `json:"total"`
	Completed      int64   `json:"completed"`
	InProgress     int64   `json:"in_progress"`
	Pending        int64   `json:"pending"`
	CompletionRate float64 `json:"completion_rate"`
}

// AdminStatsDTO is the admin dashboard summary.
type AdminStatsDTO struct {
	Bookings struct {
		Total     int64 `json:"total"`
		Pending   int64 `json:"pending"`
		Active    int64 `json:"active"`
		Completed int64 `json:"completed"`
		Cancelled int64 `json:"cancelled"`
		Failed    int64 `json:"failed"`
	} `json:"bookings"`
	Users struct {
		Customers       int64 `json:"customers"`
		Providers       int64 `json:"providers"`
		ActiveProviders int64 `json:"active_providers"`
	} `json:"users"`
}

// UserService handles accounts: registration, login, provider availability
// and the read models for provider and admin dashboards.
type UserService struct {
	users    userDomain.Repository
	bookings bookingDomain.Repository
	jwt      *auth.JWTManager
	logger   *zap.Logger
}

// NewUserService creates a UserService.
func NewUserService(users userDomain.Repository, bookings bookingDomain.Repository, jwt *auth.JWTManager, logger *zap.Logger) *UserService {
	return &UserService{users: users, bookings: bookings, jwt: jwt, logger: logger}
}

// Register creates a new account and returns it with an access token.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*AuthResponseDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if existing, err := s.users.FindByEmail(ctx, email); err == nil && existing != nil {
		return nil, domain.NewValidationError("user already exists")
	} else if err != nil && !domain.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	role := userDomain.Role(req.Role)
	if req.Role == "" {
		role = userDomain.RoleCustomer
	}

	services := make([]bookingDomain.ServiceCategory, 0, len(req.Services))
	for _, raw := range req.Services {
		svc, err := bookingDomain.ParseServiceCategory(raw)
		if err != nil {
			return nil, domain.NewValidationError(err.Error())
		}
		services = append(services, svc)
	}

	u, err := userDomain.NewUser(email, hash, req.Name, req.Phone, role, services, req.Location)
	if err != nil {
		return nil, err
	}

	if err := s.users.Save(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	token, err := s.jwt.Generate(u.ID(), string(u.Role()), u.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &AuthResponseDTO{User: toUserDTO(u), Token: token}, nil
}

// Login verifies credentials and returns the account with an access token.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResponseDTO, error) {
	u, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewForbiddenError("invalid email or password")
		}
		return nil, err
	}

	if !auth.CheckPassword(u.PasswordHash(), password) {
		return nil, domain.NewForbiddenError("invalid email or password")
	}

	token, err := s.jwt.Generate(u.ID(), string(u.Role()), u.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &AuthResponseDTO{User: toUserDTO(u), Token: token}, nil
}

// GetUser retrieves a single account by ID.
func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := toUserDTO(u)
	return &dto, nil
}

// SetAvailability toggles whether the provider accepts new assignments.
func (s *UserService) SetAvailability(ctx context.Context, providerID uuid.UUID, available bool) (*UserDTO, error) {
	u, err := s.users.FindByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if u.Role() != userDomain.RoleProvider {
		return nil, domain.NewForbiddenError("only providers have availability")
	}

	u.SetAvailability(available)
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}

	dto := toUserDTO(u)
	return &dto, nil
}

// ListAvailableProviders returns active, available providers sorted by
// rating, optionally restricted to one service.
func (s *UserService) ListAvailableProviders(ctx context.Context, service *bookingDomain.ServiceCategory) ([]UserDTO, error) {
	providers, err := s.users.ListProviders(ctx, service, true)
	if err != nil {
		return nil, err
	}
	return toUserDTOs(providers), nil
}

// ListProviders returns every provider sorted by rating (admin).
func (s *UserService) ListProviders(ctx context.Context) ([]UserDTO, error) {
	providers, err := s.users.ListProviders(ctx, nil, false)
	if err != nil {
		return nil, err
	}
	return toUserDTOs(providers), nil
}

// ListUsers returns users, optionally filtered by role (admin).
func (s *UserService) ListUsers(ctx context.Context, role *userDomain.Role) ([]UserDTO, error) {
	users, err := s.users.ListByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	return toUserDTOs(users), nil
}

// UpdateProviderFlags lets an admin toggle a provider's isActive and
// availability flags. Nil fields are left unchanged.
func (s *UserService) UpdateProviderFlags(ctx context.Context, providerID uuid.UUID, isActive, availability *bool) (*UserDTO, error) {
	u, err := s.users.FindByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if u.Role() != userDomain.RoleProvider {
		return nil, domain.NewNotFoundError("Provider", providerID.String())
	}

	if isActive != nil {
		u.SetActive(*isActive)
	}
	if availability != nil {
		u.SetAvailability(*availability)
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}

	dto := toUserDTO(u)
	return &dto, nil
}

// ProviderStats summarizes one provider's bookings.
func (s *UserService) ProviderStats(ctx context.Context, providerID uuid.UUID) (*ProviderStatsDTO, error) {
	counts, err := s.bookings.CountByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count provider bookings: %w", err)
	}

	stats := &ProviderStatsDTO{
		Completed:  counts[string(bookingDomain.StatusCompleted)],
		InProgress: counts[string(bookingDomain.StatusInProgress)],
		Pending:    counts[string(bookingDomain.StatusAssigned)] + counts[string(bookingDomain.StatusAccepted)],
	}
	for _, c := range counts {
		stats.Total += c
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total) * 100
	}
	return stats, nil
}

// AdminStats builds the admin dashboard summary.
func (s *UserService) AdminStats(ctx context.Context) (*AdminStatsDTO, error) {
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}

	stats := &AdminStatsDTO{}
	for _, c := range counts {
		stats.Bookings.Total += c
	}
	stats.Bookings.Pending = counts[string(bookingDomain.StatusPending)]
	stats.Bookings.Active = counts[string(bookingDomain.StatusAssigned)] +
		counts[string(bookingDomain.StatusAccepted)] +
		counts[string(bookingDomain.StatusInProgress)]
	stats.Bookings.Completed = counts[string(bookingDomain.StatusCompleted)]
	stats.Bookings.Cancelled = counts[string(bookingDomain.StatusCancelled)]
	stats.Bookings.Failed = counts[string(bookingDomain.StatusFailed)]

	customers, err := s.users.CountByRole(ctx, userDomain.RoleCustomer, false)
	if err != nil {
		return nil, fmt.Errorf("failed to count customers: %w", err)
	}
	providers, err := s.users.CountByRole(ctx, userDomain.RoleProvider, false)
	if err != nil {
		return nil, fmt.Errorf("failed to count providers: %w", err)
	}
	activeProviders, err := s.users.CountByRole(ctx, userDomain.RoleProvider, true)
	if err != nil {
		return nil, fmt.Errorf("failed to count active providers: %w", err)
	}
	stats.Users.Customers = customers
	stats.Users.Providers = providers
	stats.Users.ActiveProviders = activeProviders

	return stats, nil
}

// --- Helpers ---

func toUserDTO(u *userDomain.User) UserDTO {
	services := make([]string, len(u.Services()))
	for i, s := range u.Services() {
		services[i] = string(s)
	}
	return UserDTO{
		ID:            u.ID(),
		Email:         u.Email(),
		Name:          u.Name(),
		Phone:         u.Phone(),
		Role:          string(u.Role()),
		Services:      services,
		Availability:  u.Availability(),
		Rating:        u.Rating(),
		CompletedJobs: u.CompletedJobs(),
		Location:      u.Location(),
		IsActive:      u.IsActive(),
		CreatedAt:     u.CreatedAt(),
	}
}

func toUserDTOs(users []*userDomain.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	return dtos
}
