// internal/service/booking/application/lock_service.go
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"voyago/internal/pkg/logger"
	"voyago/internal/service/booking/domain"
	"voyago/internal/service/booking/lock"
)

// InventoryLockService 封装了校验阶段的锁获取编排：
// 先粗后细（航班 -> 舱位，酒店 -> 房型），组合产品固定先机票后酒店。
// 任何一步失败都要把这次调用里已经拿到的锁退回去。
type InventoryLockService struct {
	manager lock.Manager
}

// NewInventoryLockService 创建库存锁编排服务。
func NewInventoryLockService(manager lock.Manager) *InventoryLockService {
	return &InventoryLockService{manager: manager}
}

// ErrLockUnavailable 表示容量耗尽导致拿不到锁，属于业务失败而非基础设施错误。
var ErrLockUnavailable = errors.New("resource lock unavailable")

// AcquireForBooking 按产品类型获取校验所需的全部锁。
// 返回错误时调用方可以确定本次调用没有留下任何锁。
func (s *InventoryLockService) AcquireForBooking(ctx context.Context, sagaID string, details *domain.ProductDetails) ([]*lock.Lock, error) {
	switch details.Type {
	case domain.BookingTypeFlight:
		return s.acquireFlightLocks(ctx, sagaID, details.Flight)
	case domain.BookingTypeHotel:
		return s.acquireHotelLocks(ctx, sagaID, details.Hotel)
	case domain.BookingTypeCombo:
		return s.acquireComboLocks(ctx, sagaID, details.Combo)
	default:
		return nil, errors.Errorf("unsupported booking type for locking: %s", details.Type)
	}
}

// acquireFlightLocks 先锁航班粗粒度，再按舱位锁细粒度。
// 细粒度失败时释放刚拿到的粗粒度锁。
func (s *InventoryLockService) acquireFlightLocks(ctx context.Context, sagaID string, d *domain.FlightDetails) ([]*lock.Lock, error) {
	coarseKey := fmt.Sprintf("flight:%s", d.FlightID)
	coarse, err := s.manager.Acquire(ctx, coarseKey, lock.ResourceFlight, sagaID, lock.SagaLockTimeout, d.PassengerCount)
	if err != nil {
		return nil, err
	}
	if coarse == nil {
		return nil, errors.Wrapf(ErrLockUnavailable, "flight %s", d.FlightID)
	}
	acquired := []*lock.Lock{coarse}

	if d.SeatClass != "" {
		fineKey := fmt.Sprintf("flight:%s:seats:%s", d.FlightID, d.SeatClass)
		fine, err := s.manager.Acquire(ctx, fineKey, lock.ResourceSeat, sagaID, lock.SagaLockTimeout, d.PassengerCount)
		if err != nil {
			s.releaseQuietly(ctx, sagaID)
			return nil, err
		}
		if fine == nil {
			s.releaseQuietly(ctx, sagaID)
			return nil, errors.Wrapf(ErrLockUnavailable, "flight %s seat class %s", d.FlightID, d.SeatClass)
		}
		acquired = append(acquired, fine)
	}
	return acquired, nil
}

// acquireHotelLocks 先锁酒店粗粒度，再按房型锁细粒度。
func (s *InventoryLockService) acquireHotelLocks(ctx context.Context, sagaID string, d *domain.HotelDetails) ([]*lock.Lock, error) {
	coarseKey := fmt.Sprintf("hotel:%s", d.HotelID)
	coarse, err := s.manager.Acquire(ctx, coarseKey, lock.ResourceHotel, sagaID, lock.SagaLockTimeout, d.RoomCount)
	if err != nil {
		return nil, err
	}
	if coarse == nil {
		return nil, errors.Wrapf(ErrLockUnavailable, "hotel %s", d.HotelID)
	}
	acquired := []*lock.Lock{coarse}

	if d.RoomTypeID != "" {
		fineKey := fmt.Sprintf("hotel:%s:rooms:%s", d.HotelID, d.RoomTypeID)
		fine, err := s.manager.Acquire(ctx, fineKey, lock.ResourceRoom, sagaID, lock.SagaLockTimeout, d.RoomCount)
		if err != nil {
			s.releaseQuietly(ctx, sagaID)
			return nil, err
		}
		if fine == nil {
			s.releaseQuietly(ctx, sagaID)
			return nil, errors.Wrapf(ErrLockUnavailable, "hotel %s room type %s", d.HotelID, d.RoomTypeID)
		}
		acquired = append(acquired, fine)
	}
	return acquired, nil
}

// acquireComboLocks 固定先机票后酒店的顺序。
// 注意：这个顺序是刻意保留的约束，引入反向获取路径前必须先做死锁分析。
func (s *InventoryLockService) acquireComboLocks(ctx context.Context, sagaID string, d *domain.ComboDetails) ([]*lock.Lock, error) {
	flightLocks, err := s.acquireFlightLocks(ctx, sagaID, &d.Flight)
	if err != nil {
		return nil, err
	}

	hotelLocks, err := s.acquireHotelLocks(ctx, sagaID, &d.Hotel)
	if err != nil {
		// 酒店腿失败时必须退回已经拿到的机票锁
		s.releaseQuietly(ctx, sagaID)
		return nil, err
	}
	return append(flightLocks, hotelLocks...), nil
}

// ReleaseAllBySaga 幂等释放一个 saga 的全部锁。
func (s *InventoryLockService) ReleaseAllBySaga(ctx context.Context, sagaID string) (int, error) {
	return s.manager.ReleaseAllByOwner(ctx, sagaID)
}

// ExtendLocksBySaga 把一个 saga 持有的全部锁向后延长。
// 用于长耗时步骤（比如支付等待）开始前续期。
func (s *InventoryLockService) ExtendLocksBySaga(ctx context.Context, sagaID string, additionalTime time.Duration) error {
	locks, err := s.manager.GetLocksByOwner(ctx, sagaID)
	if err != nil {
		return err
	}
	for _, l := range locks {
		ok, err := s.manager.Extend(ctx, l.LockID, sagaID, additionalTime)
		if err != nil {
			return err
		}
		if !ok {
			logger.Ctx(ctx).Warn().Str("lock_id", l.LockID).Str("saga_id", sagaID).Msg("lock extend skipped: not owner or already expired")
		}
	}
	return nil
}

// ValidateLocksActive 在长耗时下游步骤开始前确认预期的锁仍然有效。
func (s *InventoryLockService) ValidateLocksActive(ctx context.Context, sagaID string, expected int) (bool, error) {
	locks, err := s.manager.GetLocksByOwner(ctx, sagaID)
	if err != nil {
		return false, err
	}
	return len(locks) >= expected, nil
}

func (s *InventoryLockService) releaseQuietly(ctx context.Context, sagaID string) {
	if _, err := s.manager.ReleaseAllByOwner(ctx, sagaID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("saga_id", sagaID).Msg("failed to release locks after partial acquisition")
	}
}
