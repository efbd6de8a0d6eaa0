// internal/service/booking/interfaces/self_event_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"voyago/internal/pkg/logger"
	"voyago/internal/pkg/mq"
	"voyago/internal/service/booking/application"
	"voyago/internal/service/booking/application/saga"
	"voyago/internal/service/booking/domain"
	"voyago/internal/service/booking/infrastructure/adapter"
	"voyago/internal/service/booking/infrastructure/dedup"
)

// SelfEventConsumer 消费本服务自己发布的出箱事件（listen to yourself）。
// 命令事件驱动校验和 saga 推进，结论事件广播到公共主题。
// 投递语义是 at-least-once：只有处理结论是 ack 时才提交 offset。
type SelfEventConsumer struct {
	reader         *kafka.Reader
	validation     *application.ValidationService
	orchestrator   *saga.Orchestrator
	repo           domain.BookingRepository
	dedupStore     *dedup.Store
	failureHandler *mq.FailureHandler
	broadcast      mq.Producer
	webhook        *adapter.WebhookNotifier

	processingTimeout time.Duration
}

// NewSelfEventConsumer 创建自消费者。
func NewSelfEventConsumer(
	reader *kafka.Reader,
	validation *application.ValidationService,
	orchestrator *saga.Orchestrator,
	repo domain.BookingRepository,
	dedupStore *dedup.Store,
	failureHandler *mq.FailureHandler,
	broadcast mq.Producer,
	webhook *adapter.WebhookNotifier,
	processingTimeout time.Duration,
) *SelfEventConsumer {
	return &SelfEventConsumer{
		reader:            reader,
		validation:        validation,
		orchestrator:      orchestrator,
		repo:              repo,
		dedupStore:        dedupStore,
		failureHandler:    failureHandler,
		broadcast:         broadcast,
		webhook:           webhook,
		processingTimeout: processingTimeout,
	}
}

// Run 阻塞运行消费循环，直到 ctx 取消。
func (c *SelfEventConsumer) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Str("topic", c.reader.Config().Topic).Msg("self event consumer started")
	for {
		// FetchMessage 而不是 ReadMessage，把 offset 提交留给处理结论决定
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Msg("self event consumer shutting down")
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Msg("failed to fetch message, retrying")
			time.Sleep(time.Second)
			continue
		}

		outcome := c.processMessage(ctx, msg)
		if outcome == application.OutcomeAck {
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("failed to commit offset")
			}
		}
		// OutcomeRedeliver：不提交，平台会重投这条消息
	}
}

// processMessage 归一化、去重、分发一条消息，返回 ack/redeliver 结论。
func (c *SelfEventConsumer) processMessage(parentCtx context.Context, msg kafka.Message) application.Outcome {
	// 恢复上游注入的链路上下文，并把 trace_id 绑进 context logger
	carrier := mq.KafkaHeaderCarrier(msg.Headers)
	ctx := otel.GetTextMapPropagator().Extract(parentCtx, &carrier)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ctx = logger.WithTraceID(ctx, sc.TraceID().String())
	}
	ctx, cancel := context.WithTimeout(ctx, c.processingTimeout)
	defer cancel()

	env, ok := NormalizeEnvelope(msg.Value, mq.HeaderValue(msg, "eventType"))
	if !ok {
		// 无法识别的消息形态不是错误：ack 后丢弃
		logger.Ctx(ctx).Warn().
			Int("body_len", len(msg.Value)).
			Msg("unrecognized message envelope, dropping")
		return application.OutcomeAck
	}

	eventID := mq.HeaderValue(msg, "eventId")
	if eventID != "" && c.dedupStore.Seen(ctx, eventID) {
		logger.Ctx(ctx).Info().Str("event_id", eventID).Str("event_type", env.EventType).Msg("duplicate event, dropping")
		return application.OutcomeAck
	}

	outcome, err := c.dispatch(ctx, env, msg)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("event_type", env.EventType).Msg("event processing failed")
	}
	if outcome == application.OutcomeRedeliver && eventID != "" {
		// 重投的消息要能再次通过去重检查
		c.dedupStore.Forget(ctx, eventID)
	}
	return outcome
}

// dispatch 按事件类型把载荷路由给对应的处理入口。
func (c *SelfEventConsumer) dispatch(ctx context.Context, env Envelope, msg kafka.Message) (application.Outcome, error) {
	switch env.EventType {
	case domain.EventValidateInventoryCommand:
		cmd, err := application.DecodeValidateCommand(env.Payload)
		if err != nil {
			// 载荷永远解不出来，移交 DLT 后 ack
			c.failureHandler.Handle(ctx, msg, err)
			return application.OutcomeAck, nil
		}
		return c.validation.HandleValidateInventory(ctx, cmd)

	case domain.EventInventoryValidationSucceeded:
		// 先推进 saga，再和失败结论一样对外广播，外部消费者两种结论都能看到
		outcome, err := c.continueSaga(ctx, env, msg)
		if err != nil || outcome != application.OutcomeAck {
			return outcome, err
		}
		return c.broadcastEvent(ctx, env, msg)

	default:
		// 结论类事件广播给外部消费者，webhook 旁路推送
		return c.broadcastEvent(ctx, env, msg)
	}
}

// continueSaga 在校验成功事件上继续推进 saga。
func (c *SelfEventConsumer) continueSaga(ctx context.Context, env Envelope, msg kafka.Message) (application.Outcome, error) {
	var event domain.BookingEvent
	if err := json.Unmarshal(env.Payload, &event); err != nil {
		c.failureHandler.Handle(ctx, msg, err)
		return application.OutcomeAck, nil
	}

	booking, err := c.repo.FindByID(ctx, event.BookingID)
	if err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			logger.Ctx(ctx).Warn().Str("booking_id", event.BookingID).Msg("booking not found for saga continuation, dropping")
			return application.OutcomeAck, nil
		}
		return application.OutcomeRedeliver, err
	}

	if err := c.orchestrator.ContinueBookingSaga(ctx, booking); err != nil {
		return application.OutcomeRedeliver, err
	}
	return application.OutcomeAck, nil
}

// broadcastEvent 把结论事件转发到公共预订主题。
func (c *SelfEventConsumer) broadcastEvent(ctx context.Context, env Envelope, msg kafka.Message) (application.Outcome, error) {
	if err := mq.ProduceMessage(ctx, c.broadcast, msg.Key, env.Payload,
		kafka.Header{Key: "eventType", Value: []byte(env.EventType)},
	); err != nil {
		return application.OutcomeRedeliver, errors.Wrap(err, "broadcast booking event")
	}

	var event domain.BookingEvent
	if err := json.Unmarshal(env.Payload, &event); err == nil {
		c.webhook.Notify(ctx, env.EventType, event)
	}
	return application.OutcomeAck, nil
}
