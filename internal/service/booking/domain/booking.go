// internal/service/booking/domain/booking.go
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrInvalidTransition 表示请求了状态机不允许的流转。
var ErrInvalidTransition = errors.New("invalid booking status transition")

// Booking 是预订聚合的根实体。
// status 和 sagaState 只允许由编排器/校验器修改，并且永远服从流转表。
type Booking struct {
	ID          string      // 对外稳定主键
	SagaID      string      // 锁和补偿的关联键
	UserID      string
	BookingType BookingType
	Status      BookingStatus
	SagaState   SagaState

	// ProductDetails 存储下单时的产品文档原文，校验器按 bookingType 解码
	ProductDetails json.RawMessage

	TotalAmount int64 // 以最小货币单位存储
	Currency    string

	ReservationExpiresAt *time.Time // 保留窗口截止时间，进入保留状态时设置，终态清空
	ConfirmationNumber   string
	CancellationReason   string
	Notes                string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBooking 创建一个新的预订实例并分配 sagaId。
// 初始状态固定为 VALIDATION_PENDING，旁路开关由校验器在消费命令时短路到 PENDING。
func NewBooking(userID string, bookingType BookingType, details json.RawMessage, totalAmount int64, currency string, reservationTTL time.Duration) (*Booking, error) {
	if userID == "" {
		return nil, errors.New("cannot create booking without userId")
	}
	if bookingType != BookingTypeFlight && bookingType != BookingTypeHotel && bookingType != BookingTypeCombo {
		return nil, errors.Errorf("unsupported booking type: %s", bookingType)
	}

	now := time.Now()
	expiresAt := now.Add(reservationTTL)

	return &Booking{
		ID:                   uuid.NewString(),
		SagaID:               uuid.NewString(),
		UserID:               userID,
		BookingType:          bookingType,
		Status:               StatusValidationPending,
		SagaState:            SagaValidatingInventory,
		ProductDetails:       details,
		TotalAmount:          totalAmount,
		Currency:             currency,
		ReservationExpiresAt: &expiresAt,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// TransitionTo 按流转表推进状态。
// 同状态请求是 no-op；终态流转会清空保留窗口。
func (b *Booking) TransitionTo(target BookingStatus) error {
	if b.Status == target {
		return nil
	}
	if !CanTransition(b.Status, target) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", b.Status, target)
	}
	b.Status = target
	b.UpdatedAt = time.Now()
	if target.IsTerminal() {
		b.ReservationExpiresAt = nil
	}
	return nil
}

// MarkValidated 表示库存校验成功，进入 PENDING 并推进 saga。
func (b *Booking) MarkValidated() error {
	if err := b.TransitionTo(StatusPending); err != nil {
		return err
	}
	b.SagaState = SagaInventoryValidated
	return nil
}

// MarkValidationFailed 表示库存校验终态失败。
func (b *Booking) MarkValidationFailed(reason string) error {
	if err := b.TransitionTo(StatusValidationFailed); err != nil {
		return err
	}
	b.SagaState = SagaFailed
	b.CancellationReason = reason
	return nil
}

// Confirm 确认预订并写入确认号。
func (b *Booking) Confirm(confirmationNumber string) error {
	if err := b.TransitionTo(StatusConfirmed); err != nil {
		return err
	}
	b.ConfirmationNumber = confirmationNumber
	b.SagaState = SagaAwaitingPayment
	return nil
}

// Cancel 取消预订并记录原因。
func (b *Booking) Cancel(reason string) error {
	if err := b.TransitionTo(StatusCancelled); err != nil {
		return err
	}
	b.CancellationReason = reason
	b.SagaState = SagaCompensating
	return nil
}

// AppendNote 把一条人类可读的说明追加到 notes 字段。
func (b *Booking) AppendNote(note string) {
	if b.Notes == "" {
		b.Notes = note
		return
	}
	b.Notes = b.Notes + "; " + note
}
