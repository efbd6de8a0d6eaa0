// internal/service/booking/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"voyago/internal/service/booking/domain"
)

// GormBookingRepository 是 BookingRepository 和 OutboxRepository 的 GORM 实现。
// Save 把预订行和出箱行放在同一个本地事务里，这是事件发布原子性的唯一保证。
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository 创建 GORM 仓储实例。
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// AutoMigrate 建表，只在服务启动时调用。
func (r *GormBookingRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&BookingModel{}, &OutboxEventModel{})
}

// FindByID 按 bookingId 加载预订。
func (r *GormBookingRepository) FindByID(ctx context.Context, bookingID string) (*domain.Booking, error) {
	var model BookingModel
	err := r.db.WithContext(ctx).Where("id = ?", bookingID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	return ToDomainBooking(&model), nil
}

// Save 在一个事务里保存预订并追加出箱事件。
func (r *GormBookingRepository) Save(ctx context.Context, booking *domain.Booking, events ...*domain.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(ToBookingModel(booking)).Error; err != nil {
			return err
		}
		for _, event := range events {
			model := ToOutboxModel(event)
			if err := tx.Create(model).Error; err != nil {
				return err
			}
			event.ID = model.ID
		}
		return nil
	})
}

// FindExpiredHolding 找出保留窗口已过且仍处于保留状态的预订。
func (r *GormBookingRepository) FindExpiredHolding(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error) {
	var models []BookingModel
	err := r.db.WithContext(ctx).
		Where("reservation_expires_at IS NOT NULL AND reservation_expires_at < ?", now).
		Where("status IN ?", holdingStatusStrings()).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	bookings := make([]*domain.Booking, 0, len(models))
	for i := range models {
		bookings = append(bookings, ToDomainBooking(&models[i]))
	}
	return bookings, nil
}

// ExpireReservation 条件更新：只有预订仍处于保留状态时才置为 CANCELLED。
// RowsAffected == 0 表示别的执行者已经处理过。
func (r *GormBookingRepository) ExpireReservation(ctx context.Context, bookingID string, reason string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND status IN ?", bookingID, holdingStatusStrings()).
		Updates(map[string]interface{}{
			"status":                 string(domain.StatusCancelled),
			"saga_state":             string(domain.SagaCompensating),
			"cancellation_reason":    reason,
			"reservation_expires_at": nil,
			"updated_at":             time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindUnpublished 供出箱转发器按创建顺序轮询未发布的事件。
func (r *GormBookingRepository) FindUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	var models []OutboxEventModel
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	events := make([]*domain.OutboxEvent, 0, len(models))
	for i := range models {
		events = append(events, ToDomainOutboxEvent(&models[i]))
	}
	return events, nil
}

// MarkPublished 把一批事件标记为已发布。
func (r *GormBookingRepository) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&OutboxEventModel{}).
		Where("id IN ?", ids).
		Update("published_at", now).Error
}

func holdingStatusStrings() []string {
	holding := domain.HoldingStatuses()
	out := make([]string, 0, len(holding))
	for _, s := range holding {
		out = append(out, string(s))
	}
	return out
}
