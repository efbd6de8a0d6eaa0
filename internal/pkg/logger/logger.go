// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init 配置全局 zerolog Logger。
// 每个服务在 main 中调用一次，之后通过 Ctx(ctx) 获取带链路信息的 logger。
func Init(serviceName string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zlog.Logger = zerolog.New(os.Stderr).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 从 context 中取出 logger。
// 如果 context 中没有注入过 logger，返回全局 logger，保证永远可用。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zlog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &zlog.Logger
	}
	return l
}

// WithTraceID 把 trace_id 绑定到一个新的 logger 并注入 context。
// 消费者在处理每条消息前调用，后续所有日志自动携带 trace_id。
func WithTraceID(ctx context.Context, traceID string) context.Context {
	l := zlog.With().Str("trace_id", traceID).Logger()
	return l.WithContext(ctx)
}
