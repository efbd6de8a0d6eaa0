// internal/service/booking/application/expiry_reaper.go
package application

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"voyago/internal/pkg/logger"
	"voyago/internal/service/booking/domain"
)

// ExpiredReason 是保留窗口过期的标准取消原因。
const ExpiredReason = "Reservation window expired"

const expirySweepBatch = 100

var expiredBookingsCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "voyago_bookings_expired_total",
	Help: "Total number of bookings cancelled by the reservation expiry reaper.",
})

// ExpiryReaper 周期性取消保留窗口已过的预订。
// 过期用条件更新实现：只有预订仍处于保留状态时更新才生效，
// 多实例并发清扫时第二个执行者的更新是 no-op。
type ExpiryReaper struct {
	repo     domain.BookingRepository
	lockSvc  *InventoryLockService
	interval time.Duration
}

// NewExpiryReaper 创建预订过期清扫器。
func NewExpiryReaper(repo domain.BookingRepository, lockSvc *InventoryLockService, interval time.Duration) *ExpiryReaper {
	return &ExpiryReaper{repo: repo, lockSvc: lockSvc, interval: interval}
}

// Run 阻塞运行清扫循环，直到 ctx 取消。
func (r *ExpiryReaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logger.Ctx(ctx).Info().Dur("interval", r.interval).Msg("reservation expiry reaper started")
	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("reservation expiry reaper stopped")
			return nil
		case <-ticker.C:
			if _, err := r.SweepOnce(ctx); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("reservation expiry sweep failed")
			}
		}
	}
}

// SweepOnce 执行一轮清扫，返回本轮实际过期的预订数。
func (r *ExpiryReaper) SweepOnce(ctx context.Context) (int, error) {
	candidates, err := r.repo.FindExpiredHolding(ctx, time.Now(), expirySweepBatch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, booking := range candidates {
		ok, err := r.repo.ExpireReservation(ctx, booking.ID, ExpiredReason)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("booking_id", booking.ID).Msg("failed to expire reservation")
			continue
		}
		if !ok {
			// 另一个执行者已经处理过这条预订
			continue
		}
		expired++
		expiredBookingsCounter.Inc()

		if _, err := r.lockSvc.ReleaseAllBySaga(ctx, booking.SagaID); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("saga_id", booking.SagaID).Msg("failed to release locks for expired booking")
		}

		logger.Ctx(ctx).Info().
			Str("booking_id", booking.ID).
			Str("saga_id", booking.SagaID).
			Str("previous_status", string(booking.Status)).
			Msg("reservation expired and cancelled")
	}
	return expired, nil
}
