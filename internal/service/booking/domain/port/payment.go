package port

import (
	"context"

	"voyago/internal/service/booking/domain"
)

// PaymentService 是支付服务的出站端口。
type PaymentService interface {
	ProcessPayment(ctx context.Context, booking *domain.Booking) (bool, error)
	RefundPayment(ctx context.Context, booking *domain.Booking) (bool, error)
	VerifyPaymentStatus(ctx context.Context, paymentID string) (bool, error)
}
