// internal/service/booking/infrastructure/adapter/notification_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"voyago/internal/pkg/logger"
	"voyago/internal/pkg/mq"
	"voyago/internal/service/booking/domain"
)

// NotificationKafkaAdapter 实现了 port.NotificationProducer 接口。
// 通知不是主流程的安全关键操作：发送失败只记日志，永远不向 saga 传播。
type NotificationKafkaAdapter struct {
	writer *kafka.Writer
}

// NewNotificationKafkaAdapter 创建通知生产者适配器。
func NewNotificationKafkaAdapter(writer *kafka.Writer) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

// notificationEvent 是通知主题上的消息格式。
type notificationEvent struct {
	UserID    string `json:"userId"`
	BookingID string `json:"bookingId"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

func (a *NotificationKafkaAdapter) SendBookingConfirmation(ctx context.Context, booking *domain.Booking) error {
	msg := fmt.Sprintf("Your booking %s is confirmed. Confirmation number: %s.", booking.ID, booking.ConfirmationNumber)
	return a.send(ctx, booking, "BOOKING_CONFIRMATION", msg)
}

func (a *NotificationKafkaAdapter) SendBookingCancellation(ctx context.Context, booking *domain.Booking, reason string) error {
	msg := fmt.Sprintf("Your booking %s has been cancelled: %s", booking.ID, reason)
	return a.send(ctx, booking, "BOOKING_CANCELLATION", msg)
}

func (a *NotificationKafkaAdapter) SendBookingStatusUpdate(ctx context.Context, booking *domain.Booking) error {
	msg := fmt.Sprintf("Your booking %s is now %s.", booking.ID, booking.Status)
	return a.send(ctx, booking, "BOOKING_STATUS_UPDATE", msg)
}

func (a *NotificationKafkaAdapter) SendPaymentFailure(ctx context.Context, booking *domain.Booking, reason string) error {
	msg := fmt.Sprintf("Payment for booking %s failed: %s", booking.ID, reason)
	return a.send(ctx, booking, "PAYMENT_FAILURE", msg)
}

func (a *NotificationKafkaAdapter) send(ctx context.Context, booking *domain.Booking, kind, message string) error {
	event := notificationEvent{
		UserID:    booking.UserID,
		BookingID: booking.ID,
		Kind:      kind,
		Message:   message,
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("booking_id", booking.ID).Msg("failed to marshal notification event")
		return nil
	}
	// 按 userId 分区，同一用户的通知保序
	if err := mq.ProduceMessage(ctx, a.writer, []byte(booking.UserID), eventBytes); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("booking_id", booking.ID).Str("kind", kind).Msg("failed to publish notification")
	}
	return nil
}

// Close 关闭底层的 Kafka writer。
func (a *NotificationKafkaAdapter) Close() error {
	return a.writer.Close()
}
