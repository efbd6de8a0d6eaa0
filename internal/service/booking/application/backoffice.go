// internal/service/booking/application/backoffice.go
package application

import (
	"context"

	"github.com/pkg/errors"

	"voyago/internal/pkg/logger"
	"voyago/internal/service/booking/domain"
)

// BackofficeService 提供后台管理的状态覆盖入口。
// 管理路径和 saga 路径共用同一张流转表，不存在绕过状态机的后门。
type BackofficeService struct {
	repo    domain.BookingRepository
	lockSvc *InventoryLockService
}

// NewBackofficeService 创建后台管理服务。
func NewBackofficeService(repo domain.BookingRepository, lockSvc *InventoryLockService) *BackofficeService {
	return &BackofficeService{repo: repo, lockSvc: lockSvc}
}

// OverrideStatus 按流转表把预订推到目标状态，并记录操作说明。
// 进入终态时释放该 saga 的全部锁。
func (s *BackofficeService) OverrideStatus(ctx context.Context, bookingID string, target domain.BookingStatus, note string) (*domain.Booking, error) {
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	previous := booking.Status
	if target == domain.StatusCancelled {
		if err := booking.Cancel(note); err != nil {
			return nil, err
		}
	} else if err := booking.TransitionTo(target); err != nil {
		return nil, err
	}
	if note != "" {
		booking.AppendNote("backoffice: " + note)
	}

	eventType := domain.EventBookingStatusUpdated
	switch target {
	case domain.StatusCancelled:
		eventType = domain.EventBookingCancelled
	case domain.StatusConfirmed:
		eventType = domain.EventBookingConfirmed
	}
	event, err := NewOutboxEvent(booking, eventType, newBookingEvent(booking, note, false))
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, booking, event); err != nil {
		return nil, errors.Wrap(err, "save status override")
	}

	if booking.Status.IsTerminal() {
		if _, err := s.lockSvc.ReleaseAllBySaga(ctx, booking.SagaID); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("saga_id", booking.SagaID).Msg("failed to release locks after status override")
		}
	}

	logger.Ctx(ctx).Info().
		Str("booking_id", booking.ID).
		Str("from", string(previous)).
		Str("to", string(booking.Status)).
		Msg("booking status overridden")
	return booking, nil
}
