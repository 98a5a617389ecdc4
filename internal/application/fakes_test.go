package application

import (
	"context"
	"sort"
	"time"

	"github.com/cleanfanatics/service-booking/internal/domain"
	bookingDomain "github.com/cleanfanatics/service-booking/internal/domain/booking"
	eventDomain "github.com/cleanfanatics/service-booking/internal/domain/event"
	userDomain "github.com/cleanfanatics/service-booking/internal/domain/user"
	"github.com/google/uuid"
)

// memBookingRepo is an in-memory booking repository enforcing the same
// version check as the GORM implementation.
type memBookingRepo struct {
	bookings map[uuid.UUID]*bookingDomain.Booking
	versions map[uuid.UUID]int64
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{
		bookings: make(map[uuid.UUID]*bookingDomain.Booking),
		versions: make(map[uuid.UUID]int64),
	}
}

func (r *memBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	bk, ok := r.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return bk, nil
}

func (r *memBookingRepo) filtered(match func(*bookingDomain.Booking) bool, status *bookingDomain.BookingStatus, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var all []*bookingDomain.Booking
	for _, bk := range r.bookings {
		if !match(bk) {
			continue
		}
		if status != nil && bk.Status() != *status {
			continue
		}
		all = append(all, bk)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt().After(all[j].CreatedAt()) })

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *memBookingRepo) FindByCustomerID(ctx context.Context, customerID uuid.UUID, status *bookingDomain.BookingStatus, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.filtered(func(bk *bookingDomain.Booking) bool { return bk.CustomerID() == customerID }, status, page, limit)
}

func (r *memBookingRepo) FindByProviderID(ctx context.Context, providerID uuid.UUID, status *bookingDomain.BookingStatus, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.filtered(func(bk *bookingDomain.Booking) bool {
		return bk.ProviderID() != nil && *bk.ProviderID() == providerID
	}, status, page, limit)
}

func (r *memBookingRepo) ListAll(ctx context.Context, status *bookingDomain.BookingStatus, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.filtered(func(*bookingDomain.Booking) bool { return true }, status, page, limit)
}

func (r *memBookingRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, bk := range r.bookings {
		counts[string(bk.Status())]++
	}
	return counts, nil
}

func (r *memBookingRepo) CountByProvider(_ context.Context, providerID uuid.UUID) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, bk := range r.bookings {
		if bk.ProviderID() != nil && *bk.ProviderID() == providerID {
			counts[string(bk.Status())]++
		}
	}
	return counts, nil
}

func (r *memBookingRepo) Save(_ context.Context, bk *bookingDomain.Booking) error {
	r.bookings[bk.ID()] = bk
	r.versions[bk.ID()] = bk.Version()
	return nil
}

func (r *memBookingRepo) Update(_ context.Context, bk *bookingDomain.Booking) error {
	stored, ok := r.versions[bk.ID()]
	if !ok {
		return domain.NewNotFoundError("Booking", bk.ID().String())
	}
	if stored != bk.Version()-1 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	r.bookings[bk.ID()] = bk
	r.versions[bk.ID()] = bk.Version()
	return nil
}

// memEventRepo is an in-memory append-only event log.
type memEventRepo struct {
	events []eventDomain.Event
	nextID int64
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{}
}

func (r *memEventRepo) Append(_ context.Context, e *eventDomain.Event) error {
	r.nextID++
	e.ID = r.nextID
	e.CreatedAt = time.Now().UTC()
	r.events = append(r.events, *e)
	return nil
}

func (r *memEventRepo) HistoryByBooking(_ context.Context, bookingID uuid.UUID) ([]eventDomain.Event, error) {
	var out []eventDomain.Event
	for _, e := range r.events {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEventRepo) Recent(_ context.Context, limit int, bookingID *uuid.UUID) ([]eventDomain.Event, error) {
	var out []eventDomain.Event
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.events[i]
		if bookingID != nil && e.BookingID != *bookingID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memEventRepo) byType(bookingID uuid.UUID, t eventDomain.Type) []eventDomain.Event {
	var out []eventDomain.Event
	for _, e := range r.events {
		if e.BookingID == bookingID && e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// memUserRepo is an in-memory user repository with the candidate ordering
// of the real one.
type memUserRepo struct {
	users      map[uuid.UUID]*userDomain.User
	increments map[uuid.UUID]int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		users:      make(map[uuid.UUID]*userDomain.User),
		increments: make(map[uuid.UUID]int),
	}
}

func (r *memUserRepo) add(u *userDomain.User) { r.users[u.ID()] = u }

func (r *memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*userDomain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("User", id.String())
	}
	return u, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*userDomain.User, error) {
	for _, u := range r.users {
		if u.Email() == email {
			return u, nil
		}
	}
	return nil, domain.NewNotFoundError("User", email)
}

func (r *memUserRepo) FindProviderCandidates(_ context.Context, service bookingDomain.ServiceCategory, exclude []uuid.UUID) ([]*userDomain.User, error) {
	excluded := make(map[uuid.UUID]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	var out []*userDomain.User
	for _, u := range r.users {
		if u.Role() != userDomain.RoleProvider || !u.IsActive() || !u.Availability() {
			continue
		}
		if _, skip := excluded[u.ID()]; skip {
			continue
		}
		if !u.OffersService(service) {
			continue
		}
		out = append(out, u)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating() != out[j].Rating() {
			return out[i].Rating() > out[j].Rating()
		}
		if out[i].CompletedJobs() != out[j].CompletedJobs() {
			return out[i].CompletedJobs() > out[j].CompletedJobs()
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

func (r *memUserRepo) ListProviders(_ context.Context, service *bookingDomain.ServiceCategory, onlyAvailable bool) ([]*userDomain.User, error) {
	var out []*userDomain.User
	for _, u := range r.users {
		if u.Role() != userDomain.RoleProvider {
			continue
		}
		if onlyAvailable && !(u.IsActive() && u.Availability()) {
			continue
		}
		if service != nil && !u.OffersService(*service) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rating() > out[j].Rating() })
	return out, nil
}

func (r *memUserRepo) ListByRole(_ context.Context, role *userDomain.Role) ([]*userDomain.User, error) {
	var out []*userDomain.User
	for _, u := range r.users {
		if role != nil && u.Role() != *role {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *memUserRepo) CountByRole(_ context.Context, role userDomain.Role, onlyAvailable bool) (int64, error) {
	var total int64
	for _, u := range r.users {
		if u.Role() != role {
			continue
		}
		if onlyAvailable && !(u.IsActive() && u.Availability()) {
			continue
		}
		total++
	}
	return total, nil
}

func (r *memUserRepo) Save(_ context.Context, u *userDomain.User) error {
	r.users[u.ID()] = u
	return nil
}

func (r *memUserRepo) Update(_ context.Context, u *userDomain.User) error {
	if _, ok := r.users[u.ID()]; !ok {
		return domain.NewNotFoundError("User", u.ID().String())
	}
	r.users[u.ID()] = u
	return nil
}

func (r *memUserRepo) IncrementCompletedJobs(_ context.Context, providerID uuid.UUID) error {
	u, ok := r.users[providerID]
	if !ok {
		return domain.NewNotFoundError("User", providerID.String())
	}
	r.increments[providerID]++
	r.users[providerID] = userDomain.Reconstruct(
		u.ID(), u.Email(), u.PasswordHash(), u.Name(), u.Phone(), u.Role(),
		u.Services(), u.Availability(), u.Rating(), u.CompletedJobs()+1,
		u.Location(), u.IsActive(), u.CreatedAt(), u.UpdatedAt(),
	)
	return nil
}
