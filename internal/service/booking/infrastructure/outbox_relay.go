// internal/service/booking/infrastructure/outbox_relay.go
package infrastructure

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"voyago/internal/pkg/logger"
	"voyago/internal/pkg/mq"
	"voyago/internal/service/booking/domain"
)

const relayBatchSize = 200

var (
	relayedEventsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voyago_outbox_relayed_total",
		Help: "Total outbox events relayed to Kafka, by event type.",
	}, []string{"event_type"})
	relayLagGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voyago_outbox_oldest_unpublished_age_seconds",
		Help: "Age of the oldest unpublished outbox event at sweep time.",
	})
)

// OutboxRelay 轮询出箱表，把未发布的事件转发到自消费主题。
// 消息 Key 用 aggregateId，保证同一预订的事件落在同一分区、按创建顺序回流。
// 发布是 at-least-once：发送成功但标记失败时下一轮会重发，消费侧靠去重兜底。
type OutboxRelay struct {
	outbox   domain.OutboxRepository
	writer   *kafka.Writer
	interval time.Duration
}

// NewOutboxRelay 创建出箱转发器。
func NewOutboxRelay(outbox domain.OutboxRepository, writer *kafka.Writer, interval time.Duration) *OutboxRelay {
	return &OutboxRelay{outbox: outbox, writer: writer, interval: interval}
}

// Run 阻塞运行轮询循环，直到 ctx 取消。
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logger.Ctx(ctx).Info().Dur("interval", r.interval).Msg("outbox relay started")
	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("outbox relay stopped")
			return nil
		case <-ticker.C:
			if err := r.RelayOnce(ctx); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("outbox relay sweep failed")
			}
		}
	}
}

// RelayOnce 执行一轮转发。
func (r *OutboxRelay) RelayOnce(ctx context.Context) error {
	events, err := r.outbox.FindUnpublished(ctx, relayBatchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		relayLagGauge.Set(0)
		return nil
	}
	relayLagGauge.Set(time.Since(events[0].CreatedAt).Seconds())

	published := make([]int64, 0, len(events))
	for _, event := range events {
		body, err := json.Marshal(outboxWireEnvelope{
			EventType:   event.EventType,
			AggregateID: event.AggregateID,
			Payload:     event.Payload,
		})
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Int64("event_id", event.ID).Msg("failed to marshal outbox envelope, skipping")
			continue
		}

		err = mq.ProduceMessage(ctx, r.writer, []byte(event.AggregateID), body,
			kafka.Header{Key: "eventType", Value: []byte(event.EventType)},
			kafka.Header{Key: "aggregateType", Value: []byte(event.AggregateType)},
			kafka.Header{Key: "eventId", Value: []byte(strconv.FormatInt(event.ID, 10))},
		)
		if err != nil {
			// 同一聚合的后续事件不能越过失败的这条，整批在这里截断
			logger.Ctx(ctx).Error().Err(err).Int64("event_id", event.ID).Msg("failed to publish outbox event, stopping batch")
			break
		}
		published = append(published, event.ID)
		relayedEventsCounter.WithLabelValues(event.EventType).Inc()
	}

	if len(published) > 0 {
		if err := r.outbox.MarkPublished(ctx, published); err != nil {
			return err
		}
	}
	return nil
}

// outboxWireEnvelope 是出箱事件在 Kafka 上的外层格式。
type outboxWireEnvelope struct {
	EventType   string          `json:"eventType"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
}
