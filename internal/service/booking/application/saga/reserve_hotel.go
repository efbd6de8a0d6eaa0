package saga

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"voyago/internal/pkg/logger"
	"voyago/internal/service/booking/application"
	"voyago/internal/service/booking/domain"
)

// HotelReservationHandler 负责酒店预留步骤，只对 HOTEL 和 COMBO 生效。
// 组合产品里它固定排在机票步骤之后。
type HotelReservationHandler struct {
	NextHandler
}

func (h *HotelReservationHandler) Handle(bookingCtx *BookingContext) error {
	booking := bookingCtx.Booking
	if booking.BookingType != domain.BookingTypeHotel && booking.BookingType != domain.BookingTypeCombo {
		return h.executeNext(bookingCtx)
	}

	ctx, span := bookingCtx.Tracer.Start(bookingCtx.Ctx, "saga.ReserveHotel")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", booking.ID))

	booking.SagaState = domain.SagaReservingHotel

	ok, err := bookingCtx.HotelService.ReserveHotel(ctx, booking)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("hotel reservation rejected by inventory service")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "hotel reservation failed")
		bookingCtx.FailedStep = application.StepReserveHotel
		bookingCtx.FailedReason = err.Error()
		return err
	}

	bookingCtx.AddCompensation(func(compCtx context.Context) {
		compCtx, compSpan := bookingCtx.Tracer.Start(compCtx, "saga.compensation.CancelHotelReservation")
		defer compSpan.End()

		if _, err := bookingCtx.HotelService.CancelHotelReservation(compCtx, booking); err != nil {
			compSpan.RecordError(err)
			logger.Ctx(compCtx).Error().Err(err).Str("booking_id", booking.ID).Msg("hotel reservation compensation failed")
			return
		}
		bookingCtx.RecordCancellation(domain.EventHotelReservationCanceled)
	})

	span.AddEvent("hotel reserved")
	return h.executeNext(bookingCtx)
}
