package saga

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"voyago/internal/service/booking/application"
	"voyago/internal/service/booking/domain"
	"voyago/internal/service/booking/lock"
)

type recordingRepo struct {
	events []*domain.OutboxEvent
}

func (r *recordingRepo) FindByID(context.Context, string) (*domain.Booking, error) {
	return nil, domain.ErrBookingNotFound
}

func (r *recordingRepo) Save(_ context.Context, _ *domain.Booking, events ...*domain.OutboxEvent) error {
	r.events = append(r.events, events...)
	return nil
}

func (r *recordingRepo) FindExpiredHolding(context.Context, time.Time, int) ([]*domain.Booking, error) {
	return nil, nil
}

func (r *recordingRepo) ExpireReservation(context.Context, string, string) (bool, error) {
	return false, nil
}

func (r *recordingRepo) eventTypes() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type silentNotifier struct{}

func (silentNotifier) SendBookingConfirmation(context.Context, *domain.Booking) error { return nil }
func (silentNotifier) SendBookingCancellation(context.Context, *domain.Booking, string) error {
	return nil
}
func (silentNotifier) SendBookingStatusUpdate(context.Context, *domain.Booking) error { return nil }
func (silentNotifier) SendPaymentFailure(context.Context, *domain.Booking, string) error {
	return nil
}

// 取消流转非法时补偿把预订置为 FAILED，对外发布的终态事件随之变成 BookingFailed。
func TestCompensateEmitsBookingFailedWhenCancelIllegal(t *testing.T) {
	repo := &recordingRepo{}
	lockSvc := application.NewInventoryLockService(lock.NewMemoryManager(4))
	o := NewOrchestrator(repo, nil, nil, nil, silentNotifier{}, lockSvc, otel.Tracer("test"), "CNF")

	// VALIDATION_PENDING 没有到 CANCELLED 的流转
	booking, err := domain.NewBooking("user-1", domain.BookingTypeFlight, []byte(`{}`), 100, "USD", time.Hour)
	require.NoError(t, err)

	bookingCtx := &BookingContext{Ctx: context.Background(), Booking: booking}
	require.NoError(t, o.compensate(context.Background(), bookingCtx, errors.New("saga aborted")))

	assert.Equal(t, domain.StatusFailed, booking.Status)
	assert.Equal(t, domain.SagaFailed, booking.SagaState)
	assert.Contains(t, repo.eventTypes(), domain.EventBookingFailed)
	assert.NotContains(t, repo.eventTypes(), domain.EventBookingCancelled)
}
