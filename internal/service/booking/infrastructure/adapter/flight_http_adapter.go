// internal/service/booking/infrastructure/adapter/flight_http_adapter.go
package adapter

import (
	"context"

	"voyago/internal/pkg/httpclient"
	"voyago/internal/service/booking/domain"
	"voyago/internal/service/booking/domain/port"
)

// FlightHTTPAdapter 实现了 port.FlightInventoryService 接口。
type FlightHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

// NewFlightHTTPAdapter 创建机票库存服务适配器。
func NewFlightHTTPAdapter(client *httpclient.Client, baseURL string) *FlightHTTPAdapter {
	return &FlightHTTPAdapter{client: client, baseURL: baseURL}
}

func (a *FlightHTTPAdapter) ReserveFlight(ctx context.Context, booking *domain.Booking) (bool, error) {
	var resp collaboratorResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/api/flights/reserve", reservationRequest(booking), &resp)
	if err != nil {
		return false, classifyTransportError(err)
	}
	return resp.Success, nil
}

func (a *FlightHTTPAdapter) CancelFlightReservation(ctx context.Context, booking *domain.Booking) (bool, error) {
	var resp collaboratorResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/api/flights/cancel", reservationRequest(booking), &resp)
	if err != nil {
		return false, classifyTransportError(err)
	}
	return resp.Success, nil
}

func (a *FlightHTTPAdapter) ConfirmFlightReservation(ctx context.Context, booking *domain.Booking) (bool, error) {
	var resp collaboratorResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/api/flights/confirm", reservationRequest(booking), &resp)
	if err != nil {
		return false, classifyTransportError(err)
	}
	return resp.Success, nil
}

func (a *FlightHTTPAdapter) CheckFlightAvailability(ctx context.Context, details *domain.FlightDetails) (port.ValidationResult, error) {
	var resp collaboratorResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/api/flights/check-availability", details, &resp)
	if err != nil {
		return port.ValidationResult{}, classifyTransportError(err)
	}
	return toValidationResult(resp), nil
}

func (a *FlightHTTPAdapter) ValidateFlightDetails(ctx context.Context, details *domain.FlightDetails) (port.ValidationResult, error) {
	var resp collaboratorResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/api/flights/validate-details", details, &resp)
	if err != nil {
		return port.ValidationResult{}, classifyTransportError(err)
	}
	return toValidationResult(resp), nil
}

// reservationRequest 是预留/取消/确认三类操作的公共请求体。
func reservationRequest(booking *domain.Booking) map[string]interface{} {
	return map[string]interface{}{
		"bookingId":      booking.ID,
		"sagaId":         booking.SagaID,
		"bookingType":    booking.BookingType,
		"productDetails": booking.ProductDetails,
	}
}
