package saga_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"voyago/internal/service/booking/application"
	"voyago/internal/service/booking/application/saga"
	"voyago/internal/service/booking/domain"
	"voyago/internal/service/booking/domain/port"
	"voyago/internal/service/booking/lock"
)

type stubRepo struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking
	events   []*domain.OutboxEvent
}

func newStubRepo() *stubRepo {
	return &stubRepo{bookings: make(map[string]*domain.Booking)}
}

func (r *stubRepo) FindByID(_ context.Context, id string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *stubRepo) Save(_ context.Context, booking *domain.Booking, events ...*domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *booking
	r.bookings[booking.ID] = &copied
	r.events = append(r.events, events...)
	return nil
}

func (r *stubRepo) FindExpiredHolding(context.Context, time.Time, int) ([]*domain.Booking, error) {
	return nil, nil
}

func (r *stubRepo) ExpireReservation(context.Context, string, string) (bool, error) {
	return false, nil
}

func (r *stubRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type stubFlight struct {
	reserveOK   bool
	cancelCalls int
}

func (s *stubFlight) ReserveFlight(context.Context, *domain.Booking) (bool, error) {
	return s.reserveOK, nil
}
func (s *stubFlight) CancelFlightReservation(context.Context, *domain.Booking) (bool, error) {
	s.cancelCalls++
	return true, nil
}
func (s *stubFlight) ConfirmFlightReservation(context.Context, *domain.Booking) (bool, error) {
	return true, nil
}
func (s *stubFlight) CheckFlightAvailability(context.Context, *domain.FlightDetails) (port.ValidationResult, error) {
	return port.Valid(), nil
}
func (s *stubFlight) ValidateFlightDetails(context.Context, *domain.FlightDetails) (port.ValidationResult, error) {
	return port.Valid(), nil
}

type stubHotel struct {
	reserveOK   bool
	cancelCalls int
}

func (s *stubHotel) ReserveHotel(context.Context, *domain.Booking) (bool, error) {
	return s.reserveOK, nil
}
func (s *stubHotel) CancelHotelReservation(context.Context, *domain.Booking) (bool, error) {
	s.cancelCalls++
	return true, nil
}
func (s *stubHotel) ConfirmHotelReservation(context.Context, *domain.Booking) (bool, error) {
	return true, nil
}
func (s *stubHotel) CheckHotelAvailability(context.Context, *domain.HotelDetails) (port.ValidationResult, error) {
	return port.Valid(), nil
}
func (s *stubHotel) ValidateHotelDetails(context.Context, *domain.HotelDetails) (port.ValidationResult, error) {
	return port.Valid(), nil
}

type stubPayment struct{ ok bool }

func (s *stubPayment) ProcessPayment(context.Context, *domain.Booking) (bool, error) {
	return s.ok, nil
}
func (s *stubPayment) RefundPayment(context.Context, *domain.Booking) (bool, error) { return true, nil }
func (s *stubPayment) VerifyPaymentStatus(context.Context, string) (bool, error)    { return true, nil }

type stubNotifier struct {
	confirmations int
	cancellations int
}

func (s *stubNotifier) SendBookingConfirmation(context.Context, *domain.Booking) error {
	s.confirmations++
	return nil
}
func (s *stubNotifier) SendBookingCancellation(context.Context, *domain.Booking, string) error {
	s.cancellations++
	return nil
}
func (s *stubNotifier) SendBookingStatusUpdate(context.Context, *domain.Booking) error { return nil }
func (s *stubNotifier) SendPaymentFailure(context.Context, *domain.Booking, string) error {
	return nil
}

type harness struct {
	repo     *stubRepo
	manager  *lock.MemoryManager
	flight   *stubFlight
	hotel    *stubHotel
	payment  *stubPayment
	notifier *stubNotifier
	orch     *saga.Orchestrator
}

func newHarness(flight *stubFlight, hotel *stubHotel, payment *stubPayment) *harness {
	repo := newStubRepo()
	manager := lock.NewMemoryManager(100)
	notifier := &stubNotifier{}
	lockSvc := application.NewInventoryLockService(manager)
	orch := saga.NewOrchestrator(repo, flight, hotel, payment, notifier, lockSvc, otel.Tracer("test"), "CNF")
	return &harness{repo: repo, manager: manager, flight: flight, hotel: hotel, payment: payment, notifier: notifier, orch: orch}
}

func validatedBooking(t *testing.T, repo *stubRepo, bookingType domain.BookingType) *domain.Booking {
	t.Helper()
	booking, err := domain.NewBooking("user-1", bookingType, []byte(`{}`), 100, "USD", time.Hour)
	require.NoError(t, err)
	require.NoError(t, booking.MarkValidated())
	require.NoError(t, repo.Save(context.Background(), booking))
	return booking
}

func TestStartSaga_EmitsInitialCommand(t *testing.T) {
	h := newHarness(&stubFlight{}, &stubHotel{}, &stubPayment{})
	booking, err := domain.NewBooking("user-1", domain.BookingTypeFlight, []byte(`{"flightId":"F1","passengerCount":1}`), 100, "USD", time.Hour)
	require.NoError(t, err)

	require.NoError(t, h.orch.StartSaga(context.Background(), booking))

	types := h.repo.eventTypes()
	assert.Contains(t, types, domain.EventBookingInitiated)
	assert.Contains(t, types, domain.EventValidateInventoryCommand)
	assert.Equal(t, domain.StatusValidationPending, booking.Status)
}

func TestContinueSaga_FlightHappyPathEndsInPaid(t *testing.T) {
	h := newHarness(&stubFlight{reserveOK: true}, &stubHotel{}, &stubPayment{ok: true})
	booking := validatedBooking(t, h.repo, domain.BookingTypeFlight)

	// 校验阶段留下的锁
	_, err := h.manager.Acquire(context.Background(), "flight:F1", lock.ResourceFlight, booking.SagaID, lock.SagaLockTimeout, 1)
	require.NoError(t, err)

	require.NoError(t, h.orch.ContinueBookingSaga(context.Background(), booking))

	assert.Equal(t, domain.StatusPaid, booking.Status)
	assert.Equal(t, domain.SagaCompleted, booking.SagaState)
	assert.NotEmpty(t, booking.ConfirmationNumber)
	assert.Contains(t, h.repo.eventTypes(), domain.EventFlightReserved)
	assert.Contains(t, h.repo.eventTypes(), domain.EventBookingConfirmed)
	assert.Equal(t, 1, h.notifier.confirmations)

	// saga 完成后锁已释放
	locks, err := h.manager.GetLocksByOwner(context.Background(), booking.SagaID)
	require.NoError(t, err)
	assert.Empty(t, locks)
}

// 组合产品的酒店腿失败时，机票预留被逆序取消。
func TestContinueSaga_ComboHotelFailureCompensatesFlight(t *testing.T) {
	flight := &stubFlight{reserveOK: true}
	hotel := &stubHotel{reserveOK: false}
	h := newHarness(flight, hotel, &stubPayment{ok: true})
	booking := validatedBooking(t, h.repo, domain.BookingTypeCombo)

	require.NoError(t, h.orch.ContinueBookingSaga(context.Background(), booking))

	assert.Equal(t, domain.StatusCancelled, booking.Status)
	assert.Equal(t, 1, flight.cancelCalls, "flight leg must be cancelled after hotel failure")
	assert.Contains(t, h.repo.eventTypes(), domain.EventHotelReservationFailed)
	assert.Contains(t, h.repo.eventTypes(), domain.EventFlightReservationCanceled)
	assert.Contains(t, h.repo.eventTypes(), domain.EventBookingCancelled)
	assert.Equal(t, 1, h.notifier.cancellations)
}

func TestContinueSaga_PaymentFailureCompensatesReservations(t *testing.T) {
	flight := &stubFlight{reserveOK: true}
	h := newHarness(flight, &stubHotel{}, &stubPayment{ok: false})
	booking := validatedBooking(t, h.repo, domain.BookingTypeFlight)

	require.NoError(t, h.orch.ContinueBookingSaga(context.Background(), booking))

	assert.Equal(t, domain.StatusCancelled, booking.Status)
	assert.Equal(t, 1, flight.cancelCalls)
	assert.Contains(t, h.repo.eventTypes(), domain.EventFlightReservationCanceled)
	assert.Contains(t, h.repo.eventTypes(), domain.EventBookingCancelled)
}

// 重投的继续命令在预订离开可继续状态后是 no-op。
func TestContinueSaga_IdempotentOnRedelivery(t *testing.T) {
	h := newHarness(&stubFlight{reserveOK: true}, &stubHotel{}, &stubPayment{ok: true})
	booking := validatedBooking(t, h.repo, domain.BookingTypeFlight)

	require.NoError(t, h.orch.ContinueBookingSaga(context.Background(), booking))
	require.Equal(t, domain.StatusPaid, booking.Status)

	eventsBefore := len(h.repo.eventTypes())
	require.NoError(t, h.orch.ContinueBookingSaga(context.Background(), booking))
	assert.Len(t, h.repo.eventTypes(), eventsBefore)
}
