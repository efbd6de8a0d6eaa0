// internal/pkg/mq/failure_handler.go
package mq

import (
	"context"

	"github.com/segmentio/kafka-go"

	"voyago/internal/pkg/logger"
)

// FailureHandler 把无法恢复的消息移交到死信主题。
// 只用于反序列化失败这类永远不会成功的消息；业务性失败由消费者
// 决定 ack 还是重投，不走这里。
type FailureHandler struct {
	dltWriter *kafka.Writer
}

func NewFailureHandler(dltWriter *kafka.Writer) *FailureHandler {
	return &FailureHandler{dltWriter: dltWriter}
}

// Handle 把原始消息连同错误信息写入 DLT。写入失败只记录日志，
// 不再向上传播——调用方已经决定放弃这条消息。
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) {
	headers := append(msg.Headers, kafka.Header{Key: "x-failure-reason", Value: []byte(cause.Error())})
	if err := ProduceMessage(ctx, h.dltWriter, msg.Key, msg.Value, headers...); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("originalError", cause.Error()).
			Msg("Failed to forward message to dead letter topic")
		return
	}
	logger.Ctx(ctx).Warn().Err(cause).Msg("Message forwarded to dead letter topic")
}
