package port

import (
	"context"

	"voyago/internal/service/booking/domain"
)

// FlightInventoryService 是机票库存服务的出站端口。
type FlightInventoryService interface {
	ReserveFlight(ctx context.Context, booking *domain.Booking) (bool, error)
	CancelFlightReservation(ctx context.Context, booking *domain.Booking) (bool, error)
	ConfirmFlightReservation(ctx context.Context, booking *domain.Booking) (bool, error)

	// CheckFlightAvailability 校验给定航班舱位在指定日期是否有足够余量。
	// 网络类故障以 ErrServiceUnavailable 语义返回（结果里 ErrorCode=INVENTORY_SERVICE_UNAVAILABLE）。
	CheckFlightAvailability(ctx context.Context, details *domain.FlightDetails) (ValidationResult, error)
	// ValidateFlightDetails 对产品文档做结构性校验。
	ValidateFlightDetails(ctx context.Context, details *domain.FlightDetails) (ValidationResult, error)
}
