// internal/service/booking/domain/details.go
package domain

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// BookingType 定义了产品类别
type BookingType string

const (
	BookingTypeFlight BookingType = "FLIGHT"
	BookingTypeHotel  BookingType = "HOTEL"
	BookingTypeCombo  BookingType = "COMBO"
)

// FlightDetails 是机票产品明细
type FlightDetails struct {
	FlightID          string `json:"flightId"`
	SeatClass         string `json:"seatClass,omitempty"` // 为空表示不锁舱位粒度
	PassengerCount    int    `json:"passengerCount"`
	DepartureDateTime string `json:"departureDateTime"`
}

// HotelDetails 是酒店产品明细
type HotelDetails struct {
	HotelID      string `json:"hotelId"`
	RoomTypeID   string `json:"roomTypeId,omitempty"` // 为空表示不锁房型粒度
	CheckInDate  string `json:"checkInDate"`
	CheckOutDate string `json:"checkOutDate"`
	RoomCount    int    `json:"roomCount"`
}

// ComboDetails 是机+酒组合产品明细，两腿都必须存在
type ComboDetails struct {
	Flight FlightDetails `json:"flight"`
	Hotel  HotelDetails  `json:"hotel"`
}

// ProductDetails 是按 bookingType 打标签的联合类型，
// 每个已知类型只会有一个分支非 nil。
type ProductDetails struct {
	Type   BookingType
	Flight *FlightDetails
	Hotel  *HotelDetails
	Combo  *ComboDetails
}

// DecodeProductDetails 把外部传入的松散 JSON 文档按 bookingType 解码成类型化明细。
// 未知类型或结构不符时返回错误，调用方把它归为结构性校验失败。
func DecodeProductDetails(bookingType BookingType, doc json.RawMessage) (*ProductDetails, error) {
	if len(doc) == 0 {
		return nil, errors.New("product details document is empty")
	}

	switch bookingType {
	case BookingTypeFlight:
		var d FlightDetails
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, errors.Wrap(err, "decode flight details")
		}
		if d.FlightID == "" || d.PassengerCount <= 0 {
			return nil, errors.New("flight details missing flightId or passengerCount")
		}
		return &ProductDetails{Type: BookingTypeFlight, Flight: &d}, nil

	case BookingTypeHotel:
		var d HotelDetails
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, errors.Wrap(err, "decode hotel details")
		}
		if d.HotelID == "" || d.RoomCount <= 0 {
			return nil, errors.New("hotel details missing hotelId or roomCount")
		}
		return &ProductDetails{Type: BookingTypeHotel, Hotel: &d}, nil

	case BookingTypeCombo:
		var d ComboDetails
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, errors.Wrap(err, "decode combo details")
		}
		if d.Flight.FlightID == "" || d.Flight.PassengerCount <= 0 {
			return nil, errors.New("combo details missing flight leg")
		}
		if d.Hotel.HotelID == "" || d.Hotel.RoomCount <= 0 {
			return nil, errors.New("combo details missing hotel leg")
		}
		return &ProductDetails{Type: BookingTypeCombo, Combo: &d}, nil

	default:
		return nil, errors.Errorf("unknown booking type: %s", bookingType)
	}
}
