package port

import (
	"context"

	"voyago/internal/service/booking/domain"
)

// HotelInventoryService 是酒店库存服务的出站端口。
type HotelInventoryService interface {
	ReserveHotel(ctx context.Context, booking *domain.Booking) (bool, error)
	CancelHotelReservation(ctx context.Context, booking *domain.Booking) (bool, error)
	ConfirmHotelReservation(ctx context.Context, booking *domain.Booking) (bool, error)

	CheckHotelAvailability(ctx context.Context, details *domain.HotelDetails) (ValidationResult, error)
	ValidateHotelDetails(ctx context.Context, details *domain.HotelDetails) (ValidationResult, error)
}
