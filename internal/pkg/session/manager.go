// internal/pkg/session/manager.go
package session

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"voyago/internal/pkg/redis"
)

const sessionTTL = 24 * time.Hour

// Manager 维护 "用户 -> 推送网关节点" 的会话映射。
// 预订状态事件经由 router 查询该映射，路由到用户实际连接的网关。
type Manager struct {
	client *redis.Client
}

func NewManager(client *redis.Client) *Manager {
	return &Manager{client: client}
}

func sessionKey(userID string) string {
	return fmt.Sprintf("push:session:{%s}", userID)
}

// SetUserGateway 记录用户当前连接的网关节点。
func (m *Manager) SetUserGateway(ctx context.Context, userID, nodeID string) error {
	return m.client.GetClient().Set(ctx, sessionKey(userID), nodeID, sessionTTL).Err()
}

// GetUserGateway 查询用户所在的网关节点；用户离线时返回空串。
func (m *Manager) GetUserGateway(ctx context.Context, userID string) (string, error) {
	nodeID, err := m.client.GetClient().Get(ctx, sessionKey(userID)).Result()
	if err == goredis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return nodeID, nil
}

// RemoveUserGateway 用户断开连接时清除会话。
func (m *Manager) RemoveUserGateway(ctx context.Context, userID string) error {
	return m.client.GetClient().Del(ctx, sessionKey(userID)).Err()
}
