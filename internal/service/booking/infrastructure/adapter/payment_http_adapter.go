// internal/service/booking/infrastructure/adapter/payment_http_adapter.go
package adapter

import (
	"context"

	"voyago/internal/pkg/httpclient"
	"voyago/internal/service/booking/domain"
)

// PaymentHTTPAdapter 实现了 port.PaymentService 接口。
type PaymentHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

// NewPaymentHTTPAdapter 创建支付服务适配器。
func NewPaymentHTTPAdapter(client *httpclient.Client, baseURL string) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{client: client, baseURL: baseURL}
}

func (a *PaymentHTTPAdapter) ProcessPayment(ctx context.Context, booking *domain.Booking) (bool, error) {
	var resp collaboratorResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/api/payments/process", map[string]interface{}{
		"bookingId": booking.ID,
		"sagaId":    booking.SagaID,
		"amount":    booking.TotalAmount,
		"currency":  booking.Currency,
	}, &resp)
	if err != nil {
		return false, classifyTransportError(err)
	}
	return resp.Success, nil
}

func (a *PaymentHTTPAdapter) RefundPayment(ctx context.Context, booking *domain.Booking) (bool, error) {
	var resp collaboratorResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/api/payments/refund", map[string]interface{}{
		"bookingId": booking.ID,
		"sagaId":    booking.SagaID,
		"amount":    booking.TotalAmount,
		"currency":  booking.Currency,
	}, &resp)
	if err != nil {
		return false, classifyTransportError(err)
	}
	return resp.Success, nil
}

func (a *PaymentHTTPAdapter) VerifyPaymentStatus(ctx context.Context, paymentID string) (bool, error) {
	var resp collaboratorResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/api/payments/verify", map[string]interface{}{
		"paymentId": paymentID,
	}, &resp)
	if err != nil {
		return false, classifyTransportError(err)
	}
	return resp.Success, nil
}
