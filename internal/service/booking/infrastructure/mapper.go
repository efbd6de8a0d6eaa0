// internal/service/booking/infrastructure/mapper.go
package infrastructure

import (
	"voyago/internal/service/booking/domain"
)

// ToBookingModel 把领域模型转换为数据库模型
func ToBookingModel(b *domain.Booking) *BookingModel {
	return &BookingModel{
		ID:                   b.ID,
		SagaID:               b.SagaID,
		UserID:               b.UserID,
		BookingType:          string(b.BookingType),
		Status:               string(b.Status),
		SagaState:            string(b.SagaState),
		ProductDetails:       b.ProductDetails,
		TotalAmount:          b.TotalAmount,
		Currency:             b.Currency,
		ReservationExpiresAt: b.ReservationExpiresAt,
		ConfirmationNumber:   b.ConfirmationNumber,
		CancellationReason:   b.CancellationReason,
		Notes:                b.Notes,
		CreatedAt:            b.CreatedAt,
		UpdatedAt:            b.UpdatedAt,
	}
}

// ToDomainBooking 把数据库模型转换为领域模型
func ToDomainBooking(m *BookingModel) *domain.Booking {
	return &domain.Booking{
		ID:                   m.ID,
		SagaID:               m.SagaID,
		UserID:               m.UserID,
		BookingType:          domain.BookingType(m.BookingType),
		Status:               domain.BookingStatus(m.Status),
		SagaState:            domain.SagaState(m.SagaState),
		ProductDetails:       m.ProductDetails,
		TotalAmount:          m.TotalAmount,
		Currency:             m.Currency,
		ReservationExpiresAt: m.ReservationExpiresAt,
		ConfirmationNumber:   m.ConfirmationNumber,
		CancellationReason:   m.CancellationReason,
		Notes:                m.Notes,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// ToOutboxModel 把出箱事件转换为数据库模型
func ToOutboxModel(e *domain.OutboxEvent) *OutboxEventModel {
	return &OutboxEventModel{
		ID:            e.ID,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		EventType:     e.EventType,
		Payload:       e.Payload,
		RoutingKey:    e.RoutingKey,
		Priority:      e.Priority,
		CreatedAt:     e.CreatedAt,
		PublishedAt:   e.PublishedAt,
	}
}

// ToDomainOutboxEvent 把数据库模型转换为出箱事件
func ToDomainOutboxEvent(m *OutboxEventModel) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:            m.ID,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		EventType:     m.EventType,
		Payload:       m.Payload,
		RoutingKey:    m.RoutingKey,
		Priority:      m.Priority,
		CreatedAt:     m.CreatedAt,
		PublishedAt:   m.PublishedAt,
	}
}
