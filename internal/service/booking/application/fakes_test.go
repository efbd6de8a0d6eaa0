package application_test

import (
	"context"
	"sync"
	"time"

	"voyago/internal/service/booking/domain"
	"voyago/internal/service/booking/domain/port"
)

// fakeRepo 是 BookingRepository 的进程内实现，记录保存的出箱事件供断言。
type fakeRepo struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking
	events   []*domain.OutboxEvent
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{bookings: make(map[string]*domain.Booking)}
}

func (r *fakeRepo) FindByID(_ context.Context, bookingID string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *fakeRepo) Save(_ context.Context, booking *domain.Booking, events ...*domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *booking
	r.bookings[booking.ID] = &copied
	r.events = append(r.events, events...)
	return nil
}

func (r *fakeRepo) FindExpiredHolding(_ context.Context, now time.Time, limit int) ([]*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Booking
	for _, b := range r.bookings {
		if len(out) >= limit {
			break
		}
		if b.ReservationExpiresAt != nil && b.ReservationExpiresAt.Before(now) && b.Status.IsHolding() {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRepo) ExpireReservation(_ context.Context, bookingID string, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok || !b.Status.IsHolding() {
		return false, nil
	}
	b.Status = domain.StatusCancelled
	b.SagaState = domain.SagaCompensating
	b.CancellationReason = reason
	b.ReservationExpiresAt = nil
	return true, nil
}

func (r *fakeRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *fakeRepo) lastEvent() *domain.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func (r *fakeRepo) get(bookingID string) *domain.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bookings[bookingID]
}

// fakeFlightService 可配置的机票协作方。
type fakeFlightService struct {
	availability port.ValidationResult
	checkErr     error
	reserveOK    bool
	cancelCalls  int
}

func (f *fakeFlightService) ReserveFlight(context.Context, *domain.Booking) (bool, error) {
	return f.reserveOK, nil
}

func (f *fakeFlightService) CancelFlightReservation(context.Context, *domain.Booking) (bool, error) {
	f.cancelCalls++
	return true, nil
}

func (f *fakeFlightService) ConfirmFlightReservation(context.Context, *domain.Booking) (bool, error) {
	return true, nil
}

func (f *fakeFlightService) CheckFlightAvailability(context.Context, *domain.FlightDetails) (port.ValidationResult, error) {
	if f.checkErr != nil {
		return port.ValidationResult{}, f.checkErr
	}
	return f.availability, nil
}

func (f *fakeFlightService) ValidateFlightDetails(context.Context, *domain.FlightDetails) (port.ValidationResult, error) {
	return port.Valid(), nil
}

// fakeHotelService 可配置的酒店协作方。
type fakeHotelService struct {
	availability port.ValidationResult
	reserveOK    bool
	cancelCalls  int
}

func (f *fakeHotelService) ReserveHotel(context.Context, *domain.Booking) (bool, error) {
	return f.reserveOK, nil
}

func (f *fakeHotelService) CancelHotelReservation(context.Context, *domain.Booking) (bool, error) {
	f.cancelCalls++
	return true, nil
}

func (f *fakeHotelService) ConfirmHotelReservation(context.Context, *domain.Booking) (bool, error) {
	return true, nil
}

func (f *fakeHotelService) CheckHotelAvailability(context.Context, *domain.HotelDetails) (port.ValidationResult, error) {
	return f.availability, nil
}

func (f *fakeHotelService) ValidateHotelDetails(context.Context, *domain.HotelDetails) (port.ValidationResult, error) {
	return port.Valid(), nil
}
