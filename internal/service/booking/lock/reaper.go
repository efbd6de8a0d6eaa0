// internal/service/booking/lock/reaper.go
package lock

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"voyago/internal/pkg/logger"
)

var (
	activeLocksGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voyago_locks_active",
		Help: "Number of currently active distributed locks.",
	})
	expiredLocksCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voyago_locks_expired_total",
		Help: "Total number of expired locks removed by the cleanup reaper.",
	})
	lockHeldDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voyago_lock_held_duration_seconds",
		Help:    "Average held duration of locks removed per cleanup sweep.",
		Buckets: prometheus.ExponentialBuckets(30, 2, 8),
	})
)

// Reaper 周期性地清理过期的锁记录。
// 这是崩溃的持有者泄漏锁之后的兜底，没有心跳机制，只有绝对过期。
type Reaper struct {
	manager  Manager
	interval time.Duration
}

// NewReaper 创建锁清扫器。
func NewReaper(manager Manager, interval time.Duration) *Reaper {
	return &Reaper{manager: manager, interval: interval}
}

// Run 阻塞运行清扫循环，直到 ctx 取消。
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logger.Ctx(ctx).Info().Dur("interval", r.interval).Msg("lock cleanup reaper started")
	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("lock cleanup reaper stopped")
			return nil
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	stats, err := r.manager.CleanupExpired(ctx)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("lock cleanup sweep failed")
		return
	}

	activeLocksGauge.Set(float64(stats.ActiveCount))
	if stats.ExpiredCount > 0 {
		expiredLocksCounter.Add(float64(stats.ExpiredCount))
		lockHeldDuration.Observe(stats.AvgHeldDuration.Seconds())
		logger.Ctx(ctx).Info().
			Int("expired", stats.ExpiredCount).
			Int("active", stats.ActiveCount).
			Dur("avg_held", stats.AvgHeldDuration).
			Msg("expired locks cleaned up")
	}
}
