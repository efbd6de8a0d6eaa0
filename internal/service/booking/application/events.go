// internal/service/booking/application/events.go
package application

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"voyago/internal/service/booking/domain"
)

const aggregateTypeBooking = "Booking"

// NewOutboxEvent 为一次预订变更构造出箱行。
// aggregateId 用 bookingId，保证同一预订的事件按创建顺序回流。
func NewOutboxEvent(booking *domain.Booking, eventType string, payload interface{}) (*domain.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal outbox payload for %s", eventType)
	}
	return &domain.OutboxEvent{
		AggregateID:   booking.ID,
		AggregateType: aggregateTypeBooking,
		EventType:     eventType,
		Payload:       data,
		RoutingKey:    booking.ID,
		CreatedAt:     time.Now(),
	}, nil
}

// newBookingEvent 构造统一的对外事件载荷。
func newBookingEvent(booking *domain.Booking, reason string, retryable bool) domain.BookingEvent {
	return domain.BookingEvent{
		BookingID: booking.ID,
		SagaID:    booking.SagaID,
		Status:    booking.Status,
		Reason:    reason,
		Retryable: retryable,
	}
}
