package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	eventDomain "github.com/cleanfanatics/service-booking/internal/domain/event"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventLogModel is the GORM model for the event_logs table. Rows are append
// only; there is no update or delete path.
type EventLogModel struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	BookingID     uuid.UUID       `gorm:"type:uuid;index:idx_event_logs_booking_created;not null"`
	EventType     string          `gorm:"not null;size:30;index:idx_event_logs_type_created"`
	PreviousState *string         `gorm:"size:20"`
	NewState      string          `gorm:"not null;size:20"`
	ActorID       uuid.UUID       `gorm:"type:uuid;not null"`
	ActorRole     string          `gorm:"not null;size:20"`
	ActorName     string          `gorm:"size:100"`
	Metadata      json.RawMessage `gorm:"type:jsonb"`
	Description   string          `gorm:"size:500"`
	CreatedAt     time.Time       `gorm:"not null;index:idx_event_logs_booking_created;index:idx_event_logs_type_created"`
}

// TableName returns the table name for the GORM model.
func (EventLogModel) TableName() string {
	return "event_logs"
}

// GormEventRepository is the GORM-based implementation of the event log
// repository.
type GormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository creates a new GormEventRepository.
func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

// Append persists a new event and backfills its assigned ID and timestamp.
func (r *GormEventRepository) Append(ctx context.Context, ev *eventDomain.Event) error {
	model, err := toEventLogModel(ev)
	if err != nil {
		return fmt.Errorf("failed to convert event to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	ev.ID = model.ID
	ev.CreatedAt = model.CreatedAt
	return nil
}

// HistoryByBooking retrieves a booking's events oldest first.
func (r *GormEventRepository) HistoryByBooking(ctx context.Context, bookingID uuid.UUID) ([]eventDomain.Event, error) {
	var models []EventLogModel
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load booking history: %w", err)
	}
	return toDomainEvents(models)
}

// Recent retrieves the newest events across the system, optionally filtered
// to one booking (admin).
func (r *GormEventRepository) Recent(ctx context.Context, limit int, bookingID *uuid.UUID) ([]eventDomain.Event, error) {
	query := r.db.WithContext(ctx).Model(&EventLogModel{})
	if bookingID != nil {
		query = query.Where("booking_id = ?", *bookingID)
	}

	var models []EventLogModel
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent events: %w", err)
	}
	return toDomainEvents(models)
}

// --- Conversion Helpers ---

func toEventLogModel(ev *eventDomain.Event) (*EventLogModel, error) {
	var metadata json.RawMessage
	if len(ev.Metadata) > 0 {
		data, err := json.Marshal(ev.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event metadata: %w", err)
		}
		metadata = data
	}

	return &EventLogModel{
		ID:            ev.ID,
		BookingID:     ev.BookingID,
		EventType:     string(ev.Type),
		PreviousState: ev.PreviousState,
		NewState:      ev.NewState,
		ActorID:       ev.Actor.UserID,
		ActorRole:     string(ev.Actor.Role),
		ActorName:     ev.Actor.Name,
		Metadata:      metadata,
		Description:   ev.Description,
		CreatedAt:     ev.CreatedAt,
	}, nil
}

func toDomainEvents(models []EventLogModel) ([]eventDomain.Event, error) {
	events := make([]eventDomain.Event, len(models))
	for i, m := range models {
		var metadata map[string]any
		if len(m.Metadata) > 0 {
			if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
			}
		}

		events[i] = eventDomain.Event{
			ID:            m.ID,
			BookingID:     m.BookingID,
			Type:          eventDomain.Type(m.EventType),
			PreviousState: m.PreviousState,
			NewState:      m.NewState,
			Actor: eventDomain.Actor{
				UserID: m.ActorID,
				Role:   eventDomain.ActorRole(m.ActorRole),
				Name:   m.ActorName,
			},
			Metadata:    metadata,
			Description: m.Description,
			CreatedAt:   m.CreatedAt,
		}
	}
	return events, nil
}
