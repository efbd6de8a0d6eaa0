package port

import (
	"context"

	"voyago/internal/service/booking/domain"
)

// NotificationProducer 是通知渠道的出站端口。
// 通知不是主流程的安全关键操作，实现方内部吞掉失败并记录日志。
type NotificationProducer interface {
	SendBookingConfirmation(ctx context.Context, booking *domain.Booking) error
	SendBookingCancellation(ctx context.Context, booking *domain.Booking, reason string) error
	SendBookingStatusUpdate(ctx context.Context, booking *domain.Booking) error
	SendPaymentFailure(ctx context.Context, booking *domain.Booking, reason string) error
}
