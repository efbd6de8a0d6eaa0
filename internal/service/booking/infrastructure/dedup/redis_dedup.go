// internal/service/booking/infrastructure/dedup/redis_dedup.go
package dedup

import (
	"context"
	"fmt"
	"time"

	"voyago/internal/pkg/logger"
	"voyago/internal/pkg/redis"
)

// Store 基于 Redis 做事件去重。
// 出箱转发是 at-least-once，重发的事件在这里被识别出来直接 ack。
// Redis 故障时降级为放行（宁可重复处理，消费侧还有状态幂等守卫兜底）。
type Store struct {
	client    *redis.Client
	retention time.Duration
}

// NewStore 创建去重存储。
func NewStore(client *redis.Client, retention time.Duration) *Store {
	return &Store{client: client, retention: retention}
}

// Seen 判断事件是否已经处理过；第一次见到时登记并返回 false。
func (s *Store) Seen(ctx context.Context, eventID string) bool {
	key := fmt.Sprintf("booking:dedup:%s", eventID)
	ok, err := s.client.SetNX(ctx, key, "1", s.retention)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("event_id", eventID).Msg("dedup check failed, allowing message through")
		return false
	}
	return !ok
}

// Forget 把事件从去重表里移除，处理失败等待重投时调用。
func (s *Store) Forget(ctx context.Context, eventID string) {
	key := fmt.Sprintf("booking:dedup:%s", eventID)
	if err := s.client.Del(ctx, key); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("event_id", eventID).Msg("failed to remove dedup key")
	}
}
