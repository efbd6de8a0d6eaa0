// internal/service/booking/lock/memory_manager.go
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryManager 是 Manager 的进程内实现，用于测试和没有 MySQL 的本地环境。
// 语义和 GormManager 保持一致：容量原子检查、过期锁不计入占用。
type MemoryManager struct {
	mu              sync.Mutex
	locks           map[string]*Lock // lockId -> lock
	capacities      map[string]int   // resourceKey|resourceType -> capacity
	defaultCapacity int
}

// NewMemoryManager 创建进程内锁管理器。
func NewMemoryManager(defaultCapacity int) *MemoryManager {
	return &MemoryManager{
		locks:           make(map[string]*Lock),
		capacities:      make(map[string]int),
		defaultCapacity: defaultCapacity,
	}
}

// SetCapacity 为一个资源设置容量，覆盖默认值。
func (m *MemoryManager) SetCapacity(resourceKey string, resourceType ResourceType, capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capacities[resourceKey+"|"+string(resourceType)] = capacity
}

// Acquire 见 Manager 接口约定。
func (m *MemoryManager) Acquire(_ context.Context, resourceKey string, resourceType ResourceType, owner string, timeout time.Duration, quantity int) (*Lock, error) {
	if quantity <= 0 {
		quantity = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	capacity, ok := m.capacities[resourceKey+"|"+string(resourceType)]
	if !ok {
		capacity = m.defaultCapacity
	}

	held := 0
	for _, l := range m.locks {
		if l.ResourceKey == resourceKey && l.ResourceType == resourceType && l.Active(now) {
			held += l.Quantity
		}
	}
	if held+quantity > capacity {
		return nil, nil
	}

	l := &Lock{
		LockID:       uuid.NewString(),
		ResourceKey:  resourceKey,
		ResourceType: resourceType,
		Owner:        owner,
		Quantity:     quantity,
		AcquiredAt:   now,
		ExpiresAt:    now.Add(timeout),
	}
	m.locks[l.LockID] = l
	return cloneLock(l), nil
}

// Extend 见 Manager 接口约定。
func (m *MemoryManager) Extend(_ context.Context, lockID string, owner string, additionalTime time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[lockID]
	if !ok || l.Owner != owner || !l.Active(time.Now()) {
		return false, nil
	}
	l.ExpiresAt = l.ExpiresAt.Add(additionalTime)
	return true, nil
}

// ReleaseAllByOwner 见 Manager 接口约定。
func (m *MemoryManager) ReleaseAllByOwner(_ context.Context, owner string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	released := 0
	for id, l := range m.locks {
		if l.Owner == owner {
			delete(m.locks, id)
			released++
		}
	}
	return released, nil
}

// GetLocksByOwner 见 Manager 接口约定。
func (m *MemoryManager) GetLocksByOwner(_ context.Context, owner string) ([]*Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var locks []*Lock
	for _, l := range m.locks {
		if l.Owner == owner && l.Active(now) {
			locks = append(locks, cloneLock(l))
		}
	}
	return locks, nil
}

// CleanupExpired 见 Manager 接口约定。
func (m *MemoryManager) CleanupExpired(_ context.Context) (Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var stats Statistics
	var total time.Duration
	for id, l := range m.locks {
		if !l.Active(now) {
			total += l.ExpiresAt.Sub(l.AcquiredAt)
			delete(m.locks, id)
			stats.ExpiredCount++
		} else {
			stats.ActiveCount++
		}
	}
	if stats.ExpiredCount > 0 {
		stats.AvgHeldDuration = total / time.Duration(stats.ExpiredCount)
	}
	return stats, nil
}

func cloneLock(l *Lock) *Lock {
	copied := *l
	return &copied
}
