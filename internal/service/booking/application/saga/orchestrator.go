// internal/service/booking/application/saga/orchestrator.go
package saga

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"

	"voyago/internal/pkg/logger"
	"voyago/internal/service/booking/application"
	"voyago/internal/service/booking/domain"
	"voyago/internal/service/booking/domain/port"
	"voyago/internal/service/booking/lock"
)

// Orchestrator 驱动预订 saga：启动、在校验通过后继续推进、失败时逆序补偿。
type Orchestrator struct {
	repo     domain.BookingRepository
	flight   port.FlightInventoryService
	hotel    port.HotelInventoryService
	payment  port.PaymentService
	notifier port.NotificationProducer
	lockSvc  *application.InventoryLockService
	tracer   trace.Tracer

	confirmationPrefix string
}

// NewOrchestrator 创建 saga 编排器。
func NewOrchestrator(
	repo domain.BookingRepository,
	flight port.FlightInventoryService,
	hotel port.HotelInventoryService,
	payment port.PaymentService,
	notifier port.NotificationProducer,
	lockSvc *application.InventoryLockService,
	tracer trace.Tracer,
	confirmationPrefix string,
) *Orchestrator {
	return &Orchestrator{
		repo:               repo,
		flight:             flight,
		hotel:              hotel,
		payment:            payment,
		notifier:           notifier,
		lockSvc:            lockSvc,
		tracer:             tracer,
		confirmationPrefix: confirmationPrefix,
	}
}

// StartSaga 在预订创建时调用一次：
// 把预订和首条校验命令放进同一个事务，保证 saga 一定会被驱动起来。
func (o *Orchestrator) StartSaga(ctx context.Context, booking *domain.Booking) error {
	ctx, span := o.tracer.Start(ctx, "saga.Start")
	defer span.End()

	initiated, err := application.NewOutboxEvent(booking, domain.EventBookingInitiated, domain.BookingEvent{
		BookingID: booking.ID,
		SagaID:    booking.SagaID,
		Status:    booking.Status,
	})
	if err != nil {
		return err
	}

	cmd, err := application.NewOutboxEvent(booking, domain.EventValidateInventoryCommand, domain.ValidateInventoryCommand{
		BookingID:      booking.ID,
		BookingType:    booking.BookingType,
		SagaID:         booking.SagaID,
		ProductDetails: booking.ProductDetails,
	})
	if err != nil {
		return err
	}

	if err := o.repo.Save(ctx, booking, initiated, cmd); err != nil {
		return errors.Wrap(err, "persist booking with initial saga command")
	}

	logger.Ctx(ctx).Info().
		Str("booking_id", booking.ID).
		Str("saga_id", booking.SagaID).
		Str("booking_type", string(booking.BookingType)).
		Msg("booking saga started")
	return nil
}

// ContinueBookingSaga 在库存校验成功后被调用，按固定顺序执行各腿的预留，
// 任何一腿失败都会逆序取消已预留的腿，然后把预订置为取消并通知。
func (o *Orchestrator) ContinueBookingSaga(ctx context.Context, booking *domain.Booking) error {
	ctx, span := o.tracer.Start(ctx, "saga.Continue")
	defer span.End()

	// 幂等守卫：只有校验刚通过的预订才继续，重投是 no-op
	if booking.Status != domain.StatusPending || booking.SagaState != domain.SagaInventoryValidated {
		logger.Ctx(ctx).Info().
			Str("booking_id", booking.ID).
			Str("status", string(booking.Status)).
			Str("saga_state", string(booking.SagaState)).
			Msg("booking not in continuable state, skipping")
		return nil
	}

	bookingCtx := &BookingContext{
		Ctx:           ctx,
		Booking:       booking,
		Tracer:        o.tracer,
		FlightService: o.flight,
		HotelService:  o.hotel,
		PaymentSvc:    o.payment,
		Notifier:      o.notifier,
	}

	// 预留链固定先机票后酒店
	flightStep := &FlightReservationHandler{}
	flightStep.SetNext(&HotelReservationHandler{})

	if err := flightStep.Handle(bookingCtx); err != nil {
		return o.compensate(ctx, bookingCtx, err)
	}

	return o.completeReservations(ctx, bookingCtx)
}

// completeReservations 预留全部成功后：确认预订、执行支付、收尾。
func (o *Orchestrator) completeReservations(ctx context.Context, bookingCtx *BookingContext) error {
	booking := bookingCtx.Booking

	confirmation := o.confirmationPrefix + "-" + strings.ToUpper(uuid.NewString()[:8])
	if err := booking.Confirm(confirmation); err != nil {
		return o.compensate(ctx, bookingCtx, err)
	}

	events, err := o.reservationEvents(booking)
	if err != nil {
		return o.compensate(ctx, bookingCtx, err)
	}
	confirmed, err := application.NewOutboxEvent(booking, domain.EventBookingConfirmed, domain.BookingEvent{
		BookingID: booking.ID,
		SagaID:    booking.SagaID,
		Status:    booking.Status,
		Detail:    confirmation,
	})
	if err != nil {
		return o.compensate(ctx, bookingCtx, err)
	}
	if err := o.repo.Save(ctx, booking, append(events, confirmed)...); err != nil {
		return o.compensate(ctx, bookingCtx, errors.Wrap(err, "persist confirmed booking"))
	}

	return o.processPayment(ctx, bookingCtx)
}

// processPayment 推进支付阶段。支付是关键步骤，失败直接补偿，不做盲目重试。
func (o *Orchestrator) processPayment(ctx context.Context, bookingCtx *BookingContext) error {
	booking := bookingCtx.Booking

	if err := booking.TransitionTo(domain.StatusPaymentPending); err != nil {
		return o.compensate(ctx, bookingCtx, err)
	}
	booking.SagaState = domain.SagaAwaitingPayment

	// 支付等待可能超过默认锁窗口，先把 saga 锁续期
	if err := o.lockSvc.ExtendLocksBySaga(ctx, booking.SagaID, lock.PaymentLockTimeout); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("saga_id", booking.SagaID).Msg("failed to extend saga locks before payment")
	}
	if err := o.repo.Save(ctx, booking); err != nil {
		return o.compensate(ctx, bookingCtx, errors.Wrap(err, "persist payment pending state"))
	}

	ok, err := o.payment.ProcessPayment(ctx, booking)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("payment declined")
		}
		bookingCtx.FailedStep = application.StepProcessPayment
		bookingCtx.FailedReason = err.Error()

		if terr := booking.TransitionTo(domain.StatusPaymentFailed); terr != nil {
			logger.Ctx(ctx).Error().Err(terr).Str("booking_id", booking.ID).Msg("failed to mark payment failure")
		}
		if nerr := o.notifier.SendPaymentFailure(ctx, booking, err.Error()); nerr != nil {
			logger.Ctx(ctx).Warn().Err(nerr).Str("booking_id", booking.ID).Msg("payment failure notification failed")
		}

		strategy := application.ResolveCompensationStrategy(application.StepProcessPayment, "PAYMENT_DECLINED", 0)
		logger.Ctx(ctx).Warn().
			Str("booking_id", booking.ID).
			Str("strategy", string(strategy)).
			Msg("payment failed, compensating")
		return o.compensate(ctx, bookingCtx, err)
	}

	return o.completeSaga(ctx, booking)
}

// completeSaga 支付成功后的收尾：置为 PAID，释放 saga 锁，广播确认。
func (o *Orchestrator) completeSaga(ctx context.Context, booking *domain.Booking) error {
	if err := booking.TransitionTo(domain.StatusPaid); err != nil {
		return err
	}
	booking.SagaState = domain.SagaCompleted

	if _, err := o.lockSvc.ReleaseAllBySaga(ctx, booking.SagaID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("saga_id", booking.SagaID).Msg("failed to release locks after saga completion")
	}

	event, err := application.NewOutboxEvent(booking, domain.EventBookingConfirmed, domain.BookingEvent{
		BookingID: booking.ID,
		SagaID:    booking.SagaID,
		Status:    booking.Status,
		Detail:    booking.ConfirmationNumber,
	})
	if err != nil {
		return err
	}
	if err := o.repo.Save(ctx, booking, event); err != nil {
		return errors.Wrap(err, "persist paid booking")
	}

	if err := o.notifier.SendBookingConfirmation(ctx, booking); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("booking_id", booking.ID).Msg("confirmation notification failed")
	}

	logger.Ctx(ctx).Info().
		Str("booking_id", booking.ID).
		Str("confirmation", booking.ConfirmationNumber).
		Msg("booking saga completed")
	return nil
}

// compensate 逆序执行补偿链，把预订置为取消，释放锁并发布失败事件。
// 补偿路径自身的失败只记录，不再向上传播。
func (o *Orchestrator) compensate(ctx context.Context, bookingCtx *BookingContext, cause error) error {
	booking := bookingCtx.Booking
	booking.SagaState = domain.SagaCompensating

	bookingCtx.TriggerCompensation(ctx)

	reason := cause.Error()
	if cerr := booking.Cancel(reason); cerr != nil {
		logger.Ctx(ctx).Error().Err(cerr).Str("booking_id", booking.ID).Msg("failed to cancel booking during compensation")
		booking.Status = domain.StatusFailed
		booking.SagaState = domain.SagaFailed
	}
	booking.AppendNote("saga compensated: " + reason)

	if _, err := o.lockSvc.ReleaseAllBySaga(ctx, booking.SagaID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("saga_id", booking.SagaID).Msg("failed to release locks during compensation")
	}

	payload := domain.BookingEvent{
		BookingID: booking.ID,
		SagaID:    booking.SagaID,
		Status:    booking.Status,
		Reason:    reason,
	}
	events := make([]*domain.OutboxEvent, 0, 4)
	if failEvent := o.failureEventType(bookingCtx.FailedStep); failEvent != "" {
		if ev, err := application.NewOutboxEvent(booking, failEvent, payload); err == nil {
			events = append(events, ev)
		}
	}
	// 每条被成功撤销的腿都对外宣告一次
	for _, cancelType := range bookingCtx.CancelledEvents() {
		if ev, err := application.NewOutboxEvent(booking, cancelType, payload); err == nil {
			events = append(events, ev)
		}
	}
	terminalType := domain.EventBookingCancelled
	if booking.Status == domain.StatusFailed {
		terminalType = domain.EventBookingFailed
	}
	if ev, err := application.NewOutboxEvent(booking, terminalType, payload); err == nil {
		events = append(events, ev)
	}

	if err := o.repo.Save(ctx, booking, events...); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("booking_id", booking.ID).Msg("failed to persist compensated booking")
		return errors.Wrap(err, "persist compensated booking")
	}

	if nerr := o.notifier.SendBookingCancellation(ctx, booking, reason); nerr != nil {
		logger.Ctx(ctx).Warn().Err(nerr).Str("booking_id", booking.ID).Msg("cancellation notification failed")
	}

	logger.Ctx(ctx).Warn().
		Str("booking_id", booking.ID).
		Str("failed_step", bookingCtx.FailedStep).
		Str("reason", reason).
		Msg("booking saga compensated")
	return nil
}

// reservationEvents 按产品类型生成各腿的预留成功事件。
func (o *Orchestrator) reservationEvents(booking *domain.Booking) ([]*domain.OutboxEvent, error) {
	var events []*domain.OutboxEvent
	payload := domain.BookingEvent{BookingID: booking.ID, SagaID: booking.SagaID, Status: booking.Status}

	if booking.BookingType == domain.BookingTypeFlight || booking.BookingType == domain.BookingTypeCombo {
		ev, err := application.NewOutboxEvent(booking, domain.EventFlightReserved, payload)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if booking.BookingType == domain.BookingTypeHotel || booking.BookingType == domain.BookingTypeCombo {
		ev, err := application.NewOutboxEvent(booking, domain.EventHotelReserved, payload)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func (o *Orchestrator) failureEventType(failedStep string) string {
	switch failedStep {
	case application.StepReserveFlight:
		return domain.EventFlightReservationFailed
	case application.StepReserveHotel:
		return domain.EventHotelReservationFailed
	default:
		return ""
	}
}
