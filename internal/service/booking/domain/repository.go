// internal/service/booking/domain/repository.go
package domain

import (
	"context"
	"time"
)

// OutboxEvent 是和预订变更同事务写入的出箱行，追加后不再更新。
type OutboxEvent struct {
	ID            int64
	AggregateID   string // = bookingId，同一聚合的事件按创建顺序投递
	AggregateType string
	EventType     string
	Payload       []byte
	RoutingKey    string
	Priority      int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// BookingRepository 是预订聚合的出站端口。
// 所有状态变更保存都必须和它的出箱事件放在同一个本地事务里。
type BookingRepository interface {
	FindByID(ctx context.Context, bookingID string) (*Booking, error)
	// Save 在一个事务里保存预订并追加零或多条出箱事件
	Save(ctx context.Context, booking *Booking, events ...*OutboxEvent) error

	// FindExpiredHolding 找出保留窗口已过且仍处于保留状态集合的预订
	FindExpiredHolding(ctx context.Context, now time.Time, limit int) ([]*Booking, error)
	// ExpireReservation 条件更新：仅当预订仍处于保留状态时才置为 CANCELLED。
	// 返回 false 表示别的执行者已经处理过，调用方按 no-op 对待。
	ExpireReservation(ctx context.Context, bookingID string, reason string) (bool, error)
}

// ErrBookingNotFound 由仓储在预订不存在时返回。
var ErrBookingNotFound = bookingNotFoundError{}

type bookingNotFoundError struct{}

func (bookingNotFoundError) Error() string { return "booking not found" }

// OutboxRepository 供出箱转发器轮询未发布的事件。
type OutboxRepository interface {
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []int64) error
}
