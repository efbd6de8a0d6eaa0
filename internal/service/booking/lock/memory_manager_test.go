package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voyago/internal/service/booking/lock"
)

func TestAcquire_CapacityExhaustionReturnsNone(t *testing.T) {
	m := lock.NewMemoryManager(10)
	ctx := context.Background()

	l1, err := m.Acquire(ctx, "flight:F1", lock.ResourceFlight, "saga-1", lock.DefaultLockTimeout, 6)
	require.NoError(t, err)
	require.NotNil(t, l1)

	// 还剩 4 个名额，要 5 个拿不到，但不是错误
	l2, err := m.Acquire(ctx, "flight:F1", lock.ResourceFlight, "saga-2", lock.DefaultLockTimeout, 5)
	require.NoError(t, err)
	assert.Nil(t, l2)

	// 正好 4 个可以
	l3, err := m.Acquire(ctx, "flight:F1", lock.ResourceFlight, "saga-2", lock.DefaultLockTimeout, 4)
	require.NoError(t, err)
	assert.NotNil(t, l3)
}

// 并发获取时活跃锁数量之和永远不超过容量。
func TestAcquire_ConcurrentNeverExceedsCapacity(t *testing.T) {
	const capacity = 50
	m := lock.NewMemoryManager(capacity)
	ctx := context.Background()

	var wg sync.WaitGroup
	granted := make(chan *lock.Lock, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := m.Acquire(ctx, "hotel:H1", lock.ResourceHotel, "saga", lock.DefaultLockTimeout, 3)
			assert.NoError(t, err)
			if l != nil {
				granted <- l
			}
		}()
	}
	wg.Wait()
	close(granted)

	total := 0
	for l := range granted {
		total += l.Quantity
	}
	assert.LessOrEqual(t, total, capacity)
	assert.Greater(t, total, 0)
}

func TestReleaseAllByOwner_Idempotent(t *testing.T) {
	m := lock.NewMemoryManager(100)
	ctx := context.Background()

	_, err := m.Acquire(ctx, "flight:F1", lock.ResourceFlight, "saga-1", lock.DefaultLockTimeout, 1)
	require.NoError(t, err)
	_, err = m.Acquire(ctx, "flight:F1:seats:ECONOMY", lock.ResourceSeat, "saga-1", lock.DefaultLockTimeout, 1)
	require.NoError(t, err)

	released, err := m.ReleaseAllByOwner(ctx, "saga-1")
	require.NoError(t, err)
	assert.Equal(t, 2, released)

	// 第二次调用释放零且不报错
	released, err = m.ReleaseAllByOwner(ctx, "saga-1")
	require.NoError(t, err)
	assert.Zero(t, released)
}

func TestExtend_OnlyOwnerMayExtend(t *testing.T) {
	m := lock.NewMemoryManager(100)
	ctx := context.Background()

	l, err := m.Acquire(ctx, "hotel:H1", lock.ResourceHotel, "saga-1", lock.DefaultLockTimeout, 1)
	require.NoError(t, err)
	require.NotNil(t, l)

	ok, err := m.Extend(ctx, l.LockID, "saga-1", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// 非持有者静默失败
	ok, err = m.Extend(ctx, l.LockID, "someone-else", 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// 不存在的锁同样静默失败
	ok, err = m.Extend(ctx, "no-such-lock", "saga-1", 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpiredLocksFreeCapacity(t *testing.T) {
	m := lock.NewMemoryManager(5)
	ctx := context.Background()

	l, err := m.Acquire(ctx, "flight:F1", lock.ResourceFlight, "saga-1", 10*time.Millisecond, 5)
	require.NoError(t, err)
	require.NotNil(t, l)

	// 占满时拿不到
	blocked, err := m.Acquire(ctx, "flight:F1", lock.ResourceFlight, "saga-2", lock.DefaultLockTimeout, 1)
	require.NoError(t, err)
	assert.Nil(t, blocked)

	time.Sleep(20 * time.Millisecond)

	// 过期锁不再计入占用
	granted, err := m.Acquire(ctx, "flight:F1", lock.ResourceFlight, "saga-2", lock.DefaultLockTimeout, 5)
	require.NoError(t, err)
	assert.NotNil(t, granted)

	// 过期锁也不再出现在持有者名下
	locks, err := m.GetLocksByOwner(ctx, "saga-1")
	require.NoError(t, err)
	assert.Empty(t, locks)
}

func TestCleanupExpired(t *testing.T) {
	m := lock.NewMemoryManager(100)
	ctx := context.Background()

	_, err := m.Acquire(ctx, "flight:F1", lock.ResourceFlight, "saga-1", 10*time.Millisecond, 1)
	require.NoError(t, err)
	_, err = m.Acquire(ctx, "hotel:H1", lock.ResourceHotel, "saga-2", lock.DefaultLockTimeout, 1)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	stats, err := m.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ExpiredCount)
	assert.Equal(t, 1, stats.ActiveCount)
	assert.Greater(t, stats.AvgHeldDuration, time.Duration(0))

	// 清理是一次性的
	stats, err = m.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.ExpiredCount)
}
