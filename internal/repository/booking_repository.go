package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cleanfanatics/service-booking/internal/domain"
	bookingDomain "github.com/cleanfanatics/service-booking/internal/domain/booking"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CustomerID          uuid.UUID       `gorm:"type:uuid;index:idx_bookings_customer_status;not null"`
	ProviderID          *uuid.UUID      `gorm:"type:uuid;index:idx_bookings_provider_status"`
	LastProviderID      *uuid.UUID      `gorm:"type:uuid"`
	Service             string          `gorm:"not null;size:30;index"`
	Status              string          `gorm:"not null;size:20;index:idx_bookings_customer_status;index:idx_bookings_provider_status"`
	ScheduledDate       time.Time       `gorm:"type:date;not null"`
	ScheduledTime       string          `gorm:"not null;size:20"`
	Address             json.RawMessage `gorm:"type:jsonb;not null"`
	Description         string          `gorm:"size:1000"`
	EstimatedPriceCents int64           `gorm:"not null"`
	FinalPriceCents     *int64          `gorm:""`
	RetryCount          int             `gorm:"not null;default:0"`
	MaxRetries          int             `gorm:"not null;default:3"`
	CancellationReason  string          `gorm:"size:500"`
	CancelledBy         string          `gorm:"size:20"`
	AdminNotes          string          `gorm:"size:1000"`
	Version             int64           `gorm:"not null;default:1"`
	CreatedAt           time.Time       `gorm:"not null"`
	UpdatedAt           time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of the booking
// repository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByCustomerID retrieves bookings for a customer with pagination,
// optionally filtered by status.
func (r *GormBookingRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, status *bookingDomain.BookingStatus, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	query := r.db.WithContext(ctx).Model(&BookingModel{}).Where("customer_id = ?", customerID)
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}
	return r.paginate(query, page, limit)
}

// FindByProviderID retrieves bookings assigned to a provider with
// pagination, optionally filtered by status.
func (r *GormBookingRepository) FindByProviderID(ctx context.Context, providerID uuid.UUID, status *bookingDomain.BookingStatus, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	query := r.db.WithContext(ctx).Model(&BookingModel{}).Where("provider_id = ?", providerID)
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}
	return r.paginate(query, page, limit)
}

// ListAll retrieves all bookings with pagination, optionally filtered by
// status (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, status *bookingDomain.BookingStatus, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	query := r.db.WithContext(ctx).Model(&BookingModel{})
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}
	return r.paginate(query, page, limit)
}

func (r *GormBookingRepository) paginate(query *gorm.DB, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := query.Session(&gorm.Session{}).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}

	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// CountByProvider returns one provider's booking counts grouped by status.
func (r *GormBookingRepository) CountByProvider(ctx context.Context, providerID uuid.UUID) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Where("provider_id = ?", providerID).
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count provider bookings: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	// Optimistic locking: only update if the version matches (current version - 1 since IncrementVersion was called)
	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"provider_id":           model.ProviderID,
			"last_provider_id":      model.LastProviderID,
			"status":                model.Status,
			"scheduled_date":        model.ScheduledDate,
			"scheduled_time":        model.ScheduledTime,
			"address":               model.Address,
			"description":           model.Description,
			"estimated_price_cents": model.EstimatedPriceCents,
			"final_price_cents":     model.FinalPriceCents,
			"retry_count":           model.RetryCount,
			"max_retries":           model.MaxRetries,
			"cancellation_reason":   model.CancellationReason,
			"cancelled_by":          model.CancelledBy,
			"admin_notes":           model.AdminNotes,
			"version":               model.Version,
			"updated_at":            model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}

	return nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	addressJSON, err := json.Marshal(bk.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal address: %w", err)
	}

	return &BookingModel{
		ID:                  bk.ID(),
		CustomerID:          bk.CustomerID(),
		ProviderID:          bk.ProviderID(),
		LastProviderID:      bk.LastProviderID(),
		Service:             string(bk.Service()),
		Status:              string(bk.Status()),
		ScheduledDate:       bk.ScheduledDate(),
		ScheduledTime:       bk.ScheduledTime(),
		Address:             addressJSON,
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
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	var address bookingDomain.Address
	if err := json.Unmarshal(m.Address, &address); err != nil {
		return nil, fmt.Errorf("failed to unmarshal address: %w", err)
	}

	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	service, err := bookingDomain.ParseServiceCategory(m.Service)
	if err != nil {
		return nil, err
	}

	return bookingDomain.Reconstruct(
		m.ID,
		m.CustomerID,
		m.ProviderID,
		m.LastProviderID,
		service,
		status,
		m.ScheduledDate,
		m.ScheduledTime,
		address,
		m.Description,
		m.EstimatedPriceCents,
		m.FinalPriceCents,
		m.RetryCount,
		m.MaxRetries,
		m.CancellationReason,
		bookingDomain.CancelActor(m.CancelledBy),
		m.AdminNotes,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
