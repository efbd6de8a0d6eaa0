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

// FlightReservationHandler 负责机票预留步骤，只对 FLIGHT 和 COMBO 生效。
type FlightReservationHandler struct {
	NextHandler
}

func (h *FlightReservationHandler) Handle(bookingCtx *BookingContext) error {
	booking := bookingCtx.Booking
	if booking.BookingType != domain.BookingTypeFlight && booking.BookingType != domain.BookingTypeCombo {
		return h.executeNext(bookingCtx)
	}

	ctx, span := bookingCtx.Tracer.Start(bookingCtx.Ctx, "saga.ReserveFlight")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", booking.ID))

	booking.SagaState = domain.SagaReservingFlight

	ok, err := bookingCtx.FlightService.ReserveFlight(ctx, booking)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("flight reservation rejected by inventory service")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "flight reservation failed")
		bookingCtx.FailedStep = application.StepReserveFlight
		bookingCtx.FailedReason = err.Error()
		return err
	}

	// 成功后注册撤销动作：后续步骤失败时取消这张机票预留
	bookingCtx.AddCompensation(func(compCtx context.Context) {
		compCtx, compSpan := bookingCtx.Tracer.Start(compCtx, "saga.compensation.CancelFlightReservation")
		defer compSpan.End()

		if _, err := bookingCtx.FlightService.CancelFlightReservation(compCtx, booking); err != nil {
			// 补偿失败需要记录严重错误，可能需要人工介入
			compSpan.RecordError(err)
			logger.Ctx(compCtx).Error().Err(err).Str("booking_id", booking.ID).Msg("flight reservation compensation failed")
			return
		}
		bookingCtx.RecordCancellation(domain.EventFlightReservationCanceled)
	})

	span.AddEvent("flight reserved")
	return h.executeNext(bookingCtx)
}
