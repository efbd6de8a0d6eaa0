// internal/service/booking/domain/event.go
package domain

import "encoding/json"

// 事件类型常量，outbox 行和自消费分发都以它为键。
const (
	EventValidateInventoryCommand = "ValidateInventoryCommand"

	EventInventoryValidationSucceeded = "InventoryValidationSucceeded"
	EventInventoryValidationFailed    = "InventoryValidationFailed"

	EventBookingInitiated     = "BookingInitiated"
	EventBookingConfirmed     = "BookingConfirmed"
	EventBookingCancelled     = "BookingCancelled"
	EventBookingFailed        = "BookingFailed"
	EventBookingStatusUpdated = "BookingStatusUpdated"

	EventFlightReserved            = "FlightReserved"
	EventFlightReservationFailed   = "FlightReservationFailed"
	EventFlightReservationCanceled = "FlightReservationCancelled"
	EventHotelReserved             = "HotelReserved"
	EventHotelReservationFailed    = "HotelReservationFailed"
	EventHotelReservationCanceled  = "HotelReservationCancelled"
)

// ValidateInventoryCommand 是出箱回流后驱动库存校验的命令。
// ProductDetails 可选，缺省时校验器回退到预订上存储的副本。
type ValidateInventoryCommand struct {
	BookingID      string          `json:"bookingId"`
	BookingType    BookingType     `json:"bookingType"`
	SagaID         string          `json:"sagaId,omitempty"`
	ProductDetails json.RawMessage `json:"productDetails,omitempty"`
}

// BookingEvent 是所有对外事件的统一载荷。
type BookingEvent struct {
	BookingID string        `json:"bookingId"`
	SagaID    string        `json:"sagaId"`
	Status    BookingStatus `json:"status,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Retryable bool          `json:"retryable,omitempty"` // 失败事件专用，标记 "will be retried"
	Detail    string        `json:"detail,omitempty"`
}
