package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cleanfanatics/service-booking/internal/domain"
	bookingDomain "github.com/cleanfanatics/service-booking/internal/domain/booking"
	userDomain "github.com/cleanfanatics/service-booking/internal/domain/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Email         string          `gorm:"uniqueIndex;not null;size:255"`
	PasswordHash  string          `gorm:"not null;size:100"`
	Name          string          `gorm:"not null;size:100"`
	Phone         string          `gorm:"not null;size:20"`
	Role          string          `gorm:"not null;size:20;index"`
	Services      json.RawMessage `gorm:"type:jsonb"`
	Availability  bool            `gorm:"not null;default:true"`
	Rating        float64         `gorm:"not null;default:5"`
	CompletedJobs int64           `gorm:"not null;default:0"`
	Location      json.RawMessage `gorm:"type:jsonb"`
	IsActive      bool            `gorm:"not null;default:true"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (UserModel) TableName() string {
	return "users"
}

// GormUserRepository is the GORM-based implementation of the user
// repository.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GormUserRepository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FindByID retrieves a user by its unique identifier.
func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User", id.String())
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return toDomainUser(&model)
}

// FindByEmail retrieves a user by email address.
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*userDomain.User, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User", email)
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return toDomainUser(&model)
}

// FindProviderCandidates retrieves active, available providers offering the
// given service, best ranked first. The ordering is total: rating
// descending, then completed jobs descending, then ID ascending, so equal
// candidate sets always rank identically.
func (r *GormUserRepository) FindProviderCandidates(ctx context.Context, service bookingDomain.ServiceCategory, exclude []uuid.UUID) ([]*userDomain.User, error) {
	query := r.db.WithContext(ctx).
		Where("role = ?", string(userDomain.RoleProvider)).
		Where("is_active = ?", true).
		Where("availability = ?", true).
		Where("services @> ?", fmt.Sprintf(`["%s"]`, string(service)))
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}

	var models []UserModel
	if err := query.
		Order("rating DESC, completed_jobs DESC, id ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find provider candidates: %w", err)
	}
	return toDomainUsers(models)
}

// ListProviders retrieves providers sorted by rating, optionally filtered
// by service and availability.
func (r *GormUserRepository) ListProviders(ctx context.Context, service *bookingDomain.ServiceCategory, onlyAvailable bool) ([]*userDomain.User, error) {
	query := r.db.WithContext(ctx).Where("role = ?", string(userDomain.RoleProvider))
	if onlyAvailable {
		query = query.Where("is_active = ? AND availability = ?", true, true)
	}
	if service != nil {
		query = query.Where("services @> ?", fmt.Sprintf(`["%s"]`, string(*service)))
	}

	var models []UserModel
	if err := query.
		Order("rating DESC, completed_jobs DESC, id ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	return toDomainUsers(models)
}

// ListByRole retrieves users, optionally filtered by role (admin).
func (r *GormUserRepository) ListByRole(ctx context.Context, role *userDomain.Role) ([]*userDomain.User, error) {
	query := r.db.WithContext(ctx).Model(&UserModel{})
	if role != nil {
		query = query.Where("role = ?", string(*role))
	}

	var models []UserModel
	if err := query.
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return toDomainUsers(models)
}

// CountByRole counts users with the given role. With onlyAvailable set it
// counts only active, available ones.
func (r *GormUserRepository) CountByRole(ctx context.Context, role userDomain.Role, onlyAvailable bool) (int64, error) {
	query := r.db.WithContext(ctx).Model(&UserModel{}).Where("role = ?", string(role))
	if onlyAvailable {
		query = query.Where("is_active = ? AND availability = ?", true, true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, nil
}

// Save persists a new user.
func (r *GormUserRepository) Save(ctx context.Context, u *userDomain.User) error {
	model, err := toUserModel(u)
	if err != nil {
		return fmt.Errorf("failed to convert user to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// Update persists changes to an existing user.
func (r *GormUserRepository) Update(ctx context.Context, u *userDomain.User) error {
	model, err := toUserModel(u)
	if err != nil {
		return fmt.Errorf("failed to convert user to model: %w", err)
	}

	result := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"name":         model.Name,
			"phone":        model.Phone,
			"services":     model.Services,
			"availability": model.Availability,
			"rating":       model.Rating,
			"location":     model.Location,
			"is_active":    model.IsActive,
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("User", model.ID.String())
	}
	return nil
}

// IncrementCompletedJobs bumps the provider's completed job counter as a
// single atomic UPDATE, so concurrent completions never lose increments.
func (r *GormUserRepository) IncrementCompletedJobs(ctx context.Context, providerID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ?", providerID).
		Updates(map[string]interface{}{
			"completed_jobs": gorm.Expr("completed_jobs + 1"),
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment completed jobs: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("User", providerID.String())
	}
	return nil
}

// --- Conversion Helpers ---

func toUserModel(u *userDomain.User) (*UserModel, error) {
	services := u.Services()
	if services == nil {
		services = []bookingDomain.ServiceCategory{}
	}
	servicesJSON, err := json.Marshal(services)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal services: %w", err)
	}

	locationJSON, err := json.Marshal(u.Location())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal location: %w", err)
	}

	return &UserModel{
		ID:            u.ID(),
		Email:         u.Email(),
		PasswordHash:  u.PasswordHash(),
		Name:          u.Name(),
		Phone:         u.Phone(),
		Role:          string(u.Role()),
		Services:      servicesJSON,
		Availability:  u.Availability(),
		Rating:        u.Rating(),
		CompletedJobs: u.CompletedJobs(),
		Location:      locationJSON,
		IsActive:      u.IsActive(),
		CreatedAt:     u.CreatedAt(),
		UpdatedAt:     u.UpdatedAt(),
	}, nil
}

func toDomainUser(m *UserModel) (*userDomain.User, error) {
	var services []bookingDomain.ServiceCategory
	if len(m.Services) > 0 {
		if err := json.Unmarshal(m.Services, &services); err != nil {
			return nil, fmt.Errorf("failed to unmarshal services: %w", err)
		}
	}

	var location userDomain.Location
	if len(m.Location) > 0 {
		if err := json.Unmarshal(m.Location, &location); err != nil {
			return nil, fmt.Errorf("failed to unmarshal location: %w", err)
		}
	}

	return userDomain.Reconstruct(
		m.ID,
		m.Email,
		m.PasswordHash,
		m.Name,
		m.Phone,
		userDomain.Role(m.Role),
		services,
		m.Availability,
		m.Rating,
		m.CompletedJobs,
		location,
		m.IsActive,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainUsers(models []UserModel) ([]*userDomain.User, error) {
	users := make([]*userDomain.User, len(models))
	for i, m := range models {
		u, err := toDomainUser(&m)
		if err != nil {
			return nil, err
		}
		users[i] = u
	}
	return users, nil
}
