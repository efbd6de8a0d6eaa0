// internal/service/booking/infrastructure/adapter/hotel_http_adapter.go
package adapter

import (
	"context"

	"voyago/internal/pkg/httpclient"
	"voyago/internal/service/booking/domain"
	"voyago/internal/service/booking/domain/port"
)

// HotelHTTPAdapter 实现了 port.HotelInventoryService 接口。
type HotelHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

// NewHotelHTTPAdapter 创建酒店库存服务适配器。
func NewHotelHTTPAdapter(client *httpclient.Client, baseURL string) *HotelHTTPAdapter {
	return &HotelHTTPAdapter{client: client, baseURL: baseURL}
}

func (a *HotelHTTPAdapter) ReserveHotel(ctx context.Context, booking *domain.Booking) (bool, error) {
	var resp collaboratorResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/api/hotels/reserve", reservationRequest(booking), &resp)
	if err != nil {
		return false, classifyTransportError(err)
	}
	return resp.Success, nil
}

func (a *HotelHTTPAdapter) CancelHotelReservation(ctx context.Context, booking *domain.Booking) (bool, error) {
	var resp collaboratorResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/api/hotels/cancel", reservationRequest(booking), &resp)
	if err != nil {
		return false, classifyTransportError(err)
	}
	return resp.Success, nil
}

func (a *HotelHTTPAdapter) ConfirmHotelReservation(ctx context.Context, booking *domain.Booking) (bool, error) {
	var resp collaboratorResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/api/hotels/confirm", reservationRequest(booking), &resp)
	if err != nil {
		return false, classifyTransportError(err)
	}
	return resp.Success, nil
}

func (a *HotelHTTPAdapter) CheckHotelAvailability(ctx context.Context, details *domain.HotelDetails) (port.ValidationResult, error) {
	var resp collaboratorResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/api/hotels/check-availability", details, &resp)
	if err != nil {
		return port.ValidationResult{}, classifyTransportError(err)
	}
	return toValidationResult(resp), nil
}

func (a *HotelHTTPAdapter) ValidateHotelDetails(ctx context.Context, details *domain.HotelDetails) (port.ValidationResult, error) {
	var resp collaboratorResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/api/hotels/validate-details", details, &resp)
	if err != nil {
		return port.ValidationResult{}, classifyTransportError(err)
	}
	return toValidationResult(resp), nil
}
