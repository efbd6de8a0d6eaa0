package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"voyago/internal/pkg/mq"
	"voyago/internal/service/booking/application"
	"voyago/internal/service/booking/application/saga"
	"voyago/internal/service/booking/domain"
	"voyago/internal/service/booking/domain/port"
	"voyago/internal/service/booking/infrastructure/adapter"
	"voyago/internal/service/booking/lock"
)

type memoryRepo struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{bookings: make(map[string]*domain.Booking)}
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *memoryRepo) Save(_ context.Context, booking *domain.Booking, _ ...*domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *booking
	r.bookings[booking.ID] = &copied
	return nil
}

func (r *memoryRepo) FindExpiredHolding(context.Context, time.Time, int) ([]*domain.Booking, error) {
	return nil, nil
}

func (r *memoryRepo) ExpireReservation(context.Context, string, string) (bool, error) {
	return false, nil
}

type okFlight struct{}

func (okFlight) ReserveFlight(context.Context, *domain.Booking) (bool, error) { return true, nil }
func (okFlight) CancelFlightReservation(context.Context, *domain.Booking) (bool, error) {
	return true, nil
}
func (okFlight) ConfirmFlightReservation(context.Context, *domain.Booking) (bool, error) {
	return true, nil
}
func (okFlight) CheckFlightAvailability(context.Context, *domain.FlightDetails) (port.ValidationResult, error) {
	return port.Valid(), nil
}
func (okFlight) ValidateFlightDetails(context.Context, *domain.FlightDetails) (port.ValidationResult, error) {
	return port.Valid(), nil
}

type okHotel struct{}

func (okHotel) ReserveHotel(context.Context, *domain.Booking) (bool, error) { return true, nil }
func (okHotel) CancelHotelReservation(context.Context, *domain.Booking) (bool, error) {
	return true, nil
}
func (okHotel) ConfirmHotelReservation(context.Context, *domain.Booking) (bool, error) {
	return true, nil
}
func (okHotel) CheckHotelAvailability(context.Context, *domain.HotelDetails) (port.ValidationResult, error) {
	return port.Valid(), nil
}
func (okHotel) ValidateHotelDetails(context.Context, *domain.HotelDetails) (port.ValidationResult, error) {
	return port.Valid(), nil
}

type okPayment struct{}

func (okPayment) ProcessPayment(context.Context, *domain.Booking) (bool, error) { return true, nil }
func (okPayment) RefundPayment(context.Context, *domain.Booking) (bool, error)  { return true, nil }
func (okPayment) VerifyPaymentStatus(context.Context, string) (bool, error)     { return true, nil }

type quietNotifier struct{}

func (quietNotifier) SendBookingConfirmation(context.Context, *domain.Booking) error { return nil }
func (quietNotifier) SendBookingCancellation(context.Context, *domain.Booking, string) error {
	return nil
}
func (quietNotifier) SendBookingStatusUpdate(context.Context, *domain.Booking) error { return nil }
func (quietNotifier) SendPaymentFailure(context.Context, *domain.Booking, string) error {
	return nil
}

type capturingProducer struct {
	messages []kafka.Message
}

func (p *capturingProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.messages = append(p.messages, msgs...)
	return nil
}

func newTestConsumer(repo domain.BookingRepository, producer mq.Producer) *SelfEventConsumer {
	lockSvc := application.NewInventoryLockService(lock.NewMemoryManager(8))
	orch := saga.NewOrchestrator(repo, okFlight{}, okHotel{}, okPayment{}, quietNotifier{}, lockSvc, otel.Tracer("test"), "CNF")
	return NewSelfEventConsumer(nil, nil, orch, repo, nil, nil, producer, adapter.NewWebhookNotifier(nil, ""), time.Second)
}

// 校验成功事件既推进 saga，也和失败结论一样转发到公共主题。
func TestDispatchForwardsValidationSuccessToPublicTopic(t *testing.T) {
	repo := newMemoryRepo()
	booking, err := domain.NewBooking("user-1", domain.BookingTypeFlight, []byte(`{}`), 100, "USD", time.Hour)
	require.NoError(t, err)
	require.NoError(t, booking.MarkValidated())
	require.NoError(t, repo.Save(context.Background(), booking))

	producer := &capturingProducer{}
	consumer := newTestConsumer(repo, producer)

	payload, err := json.Marshal(domain.BookingEvent{BookingID: booking.ID, SagaID: booking.SagaID})
	require.NoError(t, err)
	env := Envelope{EventType: domain.EventInventoryValidationSucceeded, Payload: payload}

	outcome, err := consumer.dispatch(context.Background(), env, kafka.Message{Key: []byte(booking.ID)})
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeAck, outcome)

	require.Len(t, producer.messages, 1)
	assert.Equal(t, domain.EventInventoryValidationSucceeded, mq.HeaderValue(producer.messages[0], "eventType"))

	saved, err := repo.FindByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, saved.Status)
}

// 结论类事件走默认分支广播，不触碰 saga。
func TestDispatchBroadcastsConclusionEvents(t *testing.T) {
	repo := newMemoryRepo()
	producer := &capturingProducer{}
	consumer := newTestConsumer(repo, producer)

	payload, err := json.Marshal(domain.BookingEvent{BookingID: "b-1", Reason: "no seats left"})
	require.NoError(t, err)
	env := Envelope{EventType: domain.EventInventoryValidationFailed, Payload: payload}

	outcome, err := consumer.dispatch(context.Background(), env, kafka.Message{Key: []byte("b-1")})
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeAck, outcome)
	require.Len(t, producer.messages, 1)
	assert.Equal(t, domain.EventInventoryValidationFailed, mq.HeaderValue(producer.messages[0], "eventType"))
}
