// internal/service/booking/application/saga/context.go
package saga

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"voyago/internal/pkg/logger"
	"voyago/internal/service/booking/domain"
	"voyago/internal/service/booking/domain/port"
)

// BookingContext 在 saga 流程中传递上下文数据，所有外部依赖都是抽象端口。
type BookingContext struct {
	Ctx     context.Context
	Booking *domain.Booking
	Details *domain.ProductDetails
	Tracer  trace.Tracer

	FlightService port.FlightInventoryService
	HotelService  port.HotelInventoryService
	PaymentSvc    port.PaymentService
	Notifier      port.NotificationProducer

	// 每个成功的步骤把自己的撤销动作压进来，失败时按后进先出执行
	compensations []func(ctx context.Context)
	// 补偿中成功撤销的腿对应的事件类型，编排器据此发布撤销事件
	cancelledEvents []string
	compLock        sync.Mutex

	// FailedStep 记录触发补偿的步骤名，用于失败事件和原因说明
	FailedStep   string
	FailedReason string
}

// AddCompensation 注册一个补偿动作，后注册的先执行。
func (c *BookingContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

// TriggerCompensation 逆序执行所有已注册的补偿动作。
func (c *BookingContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	logger.Ctx(ctx).Info().
		Str("booking_id", c.Booking.ID).
		Int("compensations", len(c.compensations)).
		Msg("executing saga compensation chain")
	for _, comp := range c.compensations {
		comp(ctx)
	}
	c.compensations = nil
}

// RecordCancellation 记录一次成功的撤销，eventType 是对应的对外事件类型。
func (c *BookingContext) RecordCancellation(eventType string) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.cancelledEvents = append(c.cancelledEvents, eventType)
}

// CancelledEvents 返回补偿中产生的撤销事件类型。
func (c *BookingContext) CancelledEvents() []string {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	return append([]string(nil), c.cancelledEvents...)
}

// Handler 是 saga 步骤的链式接口。
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(bookingCtx *BookingContext) error
}

// NextHandler 提供链推进的公共实现，各步骤内嵌它。
type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(bookingCtx *BookingContext) error {
	if h.next != nil {
		return h.next.Handle(bookingCtx)
	}
	return nil
}
