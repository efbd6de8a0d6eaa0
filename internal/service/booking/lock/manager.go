// internal/service/booking/lock/manager.go
package lock

import (
	"context"
	"time"
)

// ResourceType 定义了锁的资源类别，粗粒度和细粒度共用一张锁表。
type ResourceType string

const (
	ResourceFlight ResourceType = "FLIGHT"
	ResourceSeat   ResourceType = "SEAT"
	ResourceHotel  ResourceType = "HOTEL"
	ResourceRoom   ResourceType = "ROOM"
)

// 锁超时策略：锁必须比需要它的步骤活得久，又要在人为放弃的购物车变成问题之前过期。
const (
	DefaultLockTimeout = 10 * time.Minute
	SagaLockTimeout    = 15 * time.Minute
	PaymentLockTimeout = 5 * time.Minute
)

// Lock 是一条带数量的资源保留记录。
type Lock struct {
	LockID       string
	ResourceKey  string // 例如 "flight:F123" 或 "flight:F123:seats:ECONOMY"
	ResourceType ResourceType
	Owner        string // = sagaId
	Quantity     int
	AcquiredAt   time.Time
	ExpiresAt    time.Time
}

// Active 判断锁在 now 时刻是否仍然有效。
func (l *Lock) Active(now time.Time) bool {
	return l.ExpiresAt.After(now)
}

// Statistics 是清扫器上报的聚合统计。
type Statistics struct {
	ActiveCount     int
	ExpiredCount    int
	AvgHeldDuration time.Duration
}

// Manager 是数量感知的分布式锁管理器。
// 不变式：对任意 (resourceKey, resourceType)，所有未过期锁的数量之和永远不超过容量。
// 容量检查在 Acquire 内部原子完成，管理器自己不维护容量。
type Manager interface {
	// Acquire 原子地检查容量并插入锁记录，expiresAt = now + timeout。
	// 容量耗尽返回 (nil, nil)，不是错误。
	Acquire(ctx context.Context, resourceKey string, resourceType ResourceType, owner string, timeout time.Duration, quantity int) (*Lock, error)

	// Extend 把锁的过期时间向后推 additionalTime，只有当前持有者可以延长。
	// 非持有者调用静默失败，返回 false。
	Extend(ctx context.Context, lockID string, owner string, additionalTime time.Duration) (bool, error)

	// ReleaseAllByOwner 幂等地批量释放一个 saga 持有的全部锁，返回本次释放的条数。
	ReleaseAllByOwner(ctx context.Context, owner string) (int, error)

	// GetLocksByOwner 返回一个 saga 当前持有的未过期锁。
	GetLocksByOwner(ctx context.Context, owner string) ([]*Lock, error)

	// CleanupExpired 删除已过期的锁记录并返回统计，由清扫器周期调用。
	CleanupExpired(ctx context.Context) (Statistics, error)
}
