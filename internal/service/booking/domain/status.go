// internal/service/booking/domain/status.go
package domain

// BookingStatus 定义了预订的生命周期状态
type BookingStatus string

const (
	StatusPending           BookingStatus = "PENDING"            // 库存校验通过，资源已保留，等待确认
	StatusValidationPending BookingStatus = "VALIDATION_PENDING" // 等待异步库存校验
	StatusValidationFailed  BookingStatus = "VALIDATION_FAILED"  // 库存校验终态失败
	StatusPaymentPending    BookingStatus = "PAYMENT_PENDING"    // 等待支付
	StatusPaid              BookingStatus = "PAID"               // 已支付（终态）
	StatusPaymentFailed     BookingStatus = "PAYMENT_FAILED"     // 支付失败，可重试支付
	StatusConfirmed         BookingStatus = "CONFIRMED"          // 预订已确认
	StatusCancelled         BookingStatus = "CANCELLED"          // 已取消（终态）
	StatusFailed            BookingStatus = "FAILED"             // 流程失败
)

// allowedTransitions 是唯一的状态流转真相来源。
// saga 路径和后台管理路径共用这张表。
var allowedTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:           {StatusConfirmed, StatusCancelled},
	StatusConfirmed:         {StatusPaymentPending, StatusPaid, StatusCancelled},
	StatusPaymentPending:    {StatusPaid, StatusPaymentFailed, StatusCancelled},
	StatusPaymentFailed:     {StatusPaymentPending, StatusCancelled},
	StatusValidationPending: {StatusPending, StatusValidationFailed},
	// CANCELLED 和 PAID 是终态，没有出边
}

// CanTransition 判断 from -> to 是否是合法流转。
// 同状态请求视为合法的 no-op，不算一次流转。
func CanTransition(from, to BookingStatus) bool {
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal 判断状态是否为终态。
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusPaid
}

// HoldingStatuses 是占用着资源保留窗口的状态集合，过期清扫器只处理这些状态。
func HoldingStatuses() []BookingStatus {
	return []BookingStatus{StatusPending, StatusValidationPending, StatusPaymentPending}
}

// IsHolding 判断状态是否属于保留窗口集合。
func (s BookingStatus) IsHolding() bool {
	for _, h := range HoldingStatuses() {
		if s == h {
			return true
		}
	}
	return false
}
