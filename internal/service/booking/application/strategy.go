// internal/service/booking/application/strategy.go
package application

import (
	"time"

	"voyago/internal/service/booking/domain/port"
)

// CompensationStrategy 是补偿策略解析的结论。
type CompensationStrategy string

const (
	StrategyRetryThenCompensate   CompensationStrategy = "RETRY_THEN_COMPENSATE"
	StrategyCompensateImmediately CompensationStrategy = "COMPENSATE_IMMEDIATELY"
)

const maxRetryAttempts = 3

// saga 步骤名常量，策略解析和失败事件里共用。
const (
	StepValidateInventory = "VALIDATE_INVENTORY"
	StepReserveFlight     = "RESERVE_FLIGHT"
	StepReserveHotel      = "RESERVE_HOTEL"
	StepProcessPayment    = "PROCESS_PAYMENT"
)

// retryableErrorCodes 是瞬态故障类错误码，先重试再补偿。
var retryableErrorCodes = map[string]bool{
	port.CodeInventoryServiceUnavailable: true,
	"TIMEOUT":                            true,
	"CONNECTION_REFUSED":                 true,
	"SERVICE_UNAVAILABLE":                true,
}

// criticalSteps 涉及资金或不可逆外部副作用，失败后立刻补偿，不做盲目重试。
var criticalSteps = map[string]bool{
	StepProcessPayment: true,
}

// ResolveCompensationStrategy 是一个纯分类函数：
// (步骤, 错误码, 已尝试次数) -> 先重试还是立即补偿。
// 不产生任何副作用，便于独立于 saga 做单元测试。
func ResolveCompensationStrategy(stepName, errorCode string, attemptCount int) CompensationStrategy {
	if criticalSteps[stepName] {
		return StrategyCompensateImmediately
	}
	if attemptCount >= maxRetryAttempts {
		return StrategyCompensateImmediately
	}
	if retryableErrorCodes[errorCode] {
		return StrategyRetryThenCompensate
	}
	return StrategyCompensateImmediately
}

// RetryDelay 计算第 attempt 次重试前的指数退避等待时间。
func RetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := time.Second * time.Duration(1<<uint(attempt))
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}
