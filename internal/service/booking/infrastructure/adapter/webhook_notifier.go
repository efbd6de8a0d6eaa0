// internal/service/booking/infrastructure/adapter/webhook_notifier.go
package adapter

import (
	"context"

	"voyago/internal/pkg/httpclient"
	"voyago/internal/pkg/logger"
	"voyago/internal/service/booking/domain"
)

// WebhookNotifier 把预订事件推送到外部 webhook。
// 和分析上报一样属于旁路副作用：所有失败就地吞掉并记录，不影响 saga。
type WebhookNotifier struct {
	client     *httpclient.Client
	webhookURL string
}

// NewWebhookNotifier 创建 webhook 推送器；url 为空时所有调用都是 no-op。
func NewWebhookNotifier(client *httpclient.Client, webhookURL string) *WebhookNotifier {
	return &WebhookNotifier{client: client, webhookURL: webhookURL}
}

// Notify 推送一条事件，永不返回错误。
func (n *WebhookNotifier) Notify(ctx context.Context, eventType string, event domain.BookingEvent) {
	if n.webhookURL == "" {
		return
	}
	body := map[string]interface{}{
		"eventType": eventType,
		"event":     event,
	}
	if err := n.client.PostJSON(ctx, n.webhookURL, body, nil); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("event_type", eventType).Msg("webhook notification failed")
	}
}
