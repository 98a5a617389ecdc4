package user

import (
	"fmt"
	"time"

	"github.com/cleanfanatics/service-booking/internal/domain"
	"github.com/cleanfanatics/service-booking/internal/domain/booking"
	"github.com/google/uuid"
)

// Role is the account role. The system actor is not a stored user.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// IsValid returns true if the role is recognized.
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

// Location is the provider's base area, informational only.
type Location struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Pincode string `json:"pincode,omitempty"`
}

// User is the aggregate root for an account: customer, provider or admin.
// Provider-only fields (services, availability, rating, completedJobs) are
// zero-valued for other roles.
type User struct {
	id            uuid.UUID
	email         string
	passwordHash  string
	name          string
	phone         string
	role          Role
	services      []booking.ServiceCategory
	availability  bool
	rating        float64
	completedJobs int64
	location      Location
	isActive      bool
	createdAt     time.Time
	updatedAt     time.Time
}

// NewUser creates a new account. password must already be hashed.
func NewUser(email, passwordHash, name, phone string, role Role, services []booking.ServiceCategory, location Location) (*User, error) {
	if email == "" {
		return nil, domain.NewValidationError("email is required")
	}
	if passwordHash == "" {
		return nil, domain.NewValidationError("password is required")
	}
	if name == "" {
		return nil, domain.NewValidationError("name is required")
	}
	if phone == "" {
		return nil, domain.NewValidationError("phone is required")
	}
	if !role.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid role: %s", role))
	}
	for _, s := range services {
		if !s.IsValid() {
			return nil, domain.NewValidationError(fmt.Sprintf("invalid service category: %s", s))
		}
	}
	if role != RoleProvider {
		services = nil
	}

	now := time.Now().UTC()
	return &User{
		id:           uuid.New(),
		email:        email,
		passwordHash: passwordHash,
		name:         name,
		phone:        phone,
		role:         role,
		services:     services,
		availability: true,
		rating:       5,
		location:     location,
		isActive:     true,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// Reconstruct rebuilds a User from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	email, passwordHash, name, phone string,
	role Role,
	services []booking.ServiceCategory,
	availability bool,
	rating float64,
	completedJobs int64,
	location Location,
	isActive bool,
	createdAt, updatedAt time.Time,
) *User {
	return &User{
		id:            id,
		email:         email,
		passwordHash:  passwordHash,
		name:          name,
		phone:         phone,
		role:          role,
		services:      services,
		availability:  availability,
		rating:        rating,
		completedJobs: completedJobs,
		location:      location,
		isActive:      isActive,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// --- Getters ---

func (u *User) ID() uuid.UUID                        { return u.id }
func (u *User) Email() string                        { return u.email }
func (u *User) PasswordHash() string                 { return u.passwordHash }
func (u *User) Name() string                         { return u.name }
func (u *User) Phone() string                        { return u.phone }
func (u *User) Role() Role                           { return u.role }
func (u *User) Services() []booking.ServiceCategory  { return u.services }
func (u *User) Availability() bool                   { return u.availability }
func (u *User) Rating() float64                      { return u.rating }
func (u *User) CompletedJobs() int64                 { return u.completedJobs }
func (u *User) Location() Location                   { return u.location }
func (u *User) IsActive() bool                       { return u.isActive }
func (u *User) CreatedAt() time.Time                 { return u.createdAt }
func (u *User) UpdatedAt() time.Time                 { return u.updatedAt }

// OffersService reports whether a provider holds the given capability.
func (u *User) OffersService(service booking.ServiceCategory) bool {
	for _, s := range u.services {
		if s == service {
			return true
		}
	}
	return false
}

// SetAvailability toggles whether the provider accepts new assignments.
func (u *User) SetAvailability(available bool) {
	u.availability = available
	u.updatedAt = time.Now().UTC()
}

// SetActive toggles whether the account participates at all (admin control).
func (u *User) SetActive(active bool) {
	u.isActive = active
	u.updatedAt = time.Now().UTC()
}
