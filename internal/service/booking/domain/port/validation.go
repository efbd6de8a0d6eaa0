package port

import "github.com/pkg/errors"

// 库存协作方错误码。SERVICE_UNAVAILABLE 类会被策略解析器归为可重试。
const (
	CodeInventoryServiceUnavailable = "INVENTORY_SERVICE_UNAVAILABLE"
	CodeSeatsUnavailable            = "SEATS_UNAVAILABLE"
	CodeRoomsUnavailable            = "ROOMS_UNAVAILABLE"
	CodeInvalidDetails              = "INVALID_PRODUCT_DETAILS"
	CodeLockAcquisitionFailed       = "LOCK_ACQUISITION_FAILED"
)

// ErrServiceUnavailable 是协作方不可达的哨兵错误，适配器把网络类故障归一到它。
var ErrServiceUnavailable = errors.New("inventory service unavailable")

// ValidationResult 是库存协作方返回的校验结论。
type ValidationResult struct {
	OK        bool
	ErrorCode string
	Message   string
}

// Valid 构造成功结论。
func Valid() ValidationResult {
	return ValidationResult{OK: true}
}

// Invalid 构造终态失败结论。
func Invalid(errorCode, message string) ValidationResult {
	return ValidationResult{OK: false, ErrorCode: errorCode, Message: message}
}

// ServiceUnavailable 构造瞬态不可用结论，对应可重试路径。
func ServiceUnavailable(message string) ValidationResult {
	return ValidationResult{OK: false, ErrorCode: CodeInventoryServiceUnavailable, Message: message}
}
