// internal/service/booking/application/validation_service.go
package application

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"voyago/internal/pkg/logger"
	"voyago/internal/service/booking/domain"
	"voyago/internal/service/booking/domain/port"
)

// Outcome 告诉消费者这条消息该确认还是该重投。
// 用显式结论代替 "靠抛异常阻止 ack" 的写法，两条路径上的锁释放都有保障。
type Outcome int

const (
	OutcomeAck       Outcome = iota // 处理完成或确定丢弃，提交 offset
	OutcomeRedeliver                // 未预期故障，不提交 offset，等平台重投
)

// ValidationService 消费 ValidateInventoryCommand，完成 "锁定 -> 校验 -> 定结论" 的闭环。
// 幂等键是预订状态：只有 VALIDATION_PENDING 的预订会被处理，重投是 no-op。
type ValidationService struct {
	repo    domain.BookingRepository
	lockSvc *InventoryLockService
	flight  port.FlightInventoryService
	hotel   port.HotelInventoryService

	bypassValidation bool
}

// NewValidationService 创建库存校验服务。
// bypassValidation 来自配置，每次校验显式读取注入值，不依赖全局可变状态。
func NewValidationService(repo domain.BookingRepository, lockSvc *InventoryLockService, flight port.FlightInventoryService, hotel port.HotelInventoryService, bypassValidation bool) *ValidationService {
	return &ValidationService{
		repo:             repo,
		lockSvc:          lockSvc,
		flight:           flight,
		hotel:            hotel,
		bypassValidation: bypassValidation,
	}
}

// HandleValidateInventory 处理一条校验命令。
// 只有未预期的基础设施故障才返回 OutcomeRedeliver，所有业务结论都落库后 ack。
func (s *ValidationService) HandleValidateInventory(ctx context.Context, cmd *domain.ValidateInventoryCommand) (Outcome, error) {
	log := logger.Ctx(ctx)

	// 1. 必填字段缺失：记日志后丢弃
	if cmd.BookingID == "" || cmd.BookingType == "" {
		log.Warn().Str("booking_id", cmd.BookingID).Msg("validate inventory command missing required fields, dropping")
		return OutcomeAck, nil
	}

	// 2. 预订不存在或状态已流转：幂等丢弃
	booking, err := s.repo.FindByID(ctx, cmd.BookingID)
	if err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			log.Warn().Str("booking_id", cmd.BookingID).Msg("booking not found for validation command, dropping")
			return OutcomeAck, nil
		}
		return OutcomeRedeliver, errors.Wrap(err, "load booking")
	}
	if booking.Status != domain.StatusValidationPending {
		log.Info().
			Str("booking_id", booking.ID).
			Str("status", string(booking.Status)).
			Msg("booking already left VALIDATION_PENDING, dropping duplicate command")
		return OutcomeAck, nil
	}

	// 3. 旁路开关：直接成功，用于没有真实库存后端的环境
	if s.bypassValidation {
		return s.succeed(ctx, booking)
	}

	// 4. 解析产品明细：命令里的优先，其次是预订上存的副本
	doc := cmd.ProductDetails
	if len(doc) == 0 {
		doc = booking.ProductDetails
	}
	if len(doc) == 0 {
		return s.failTerminal(ctx, booking, port.CodeInvalidDetails, "no product details available")
	}

	// 5. 按 bookingType 解码成类型化明细
	details, err := domain.DecodeProductDetails(cmd.BookingType, doc)
	if err != nil {
		return s.failTerminal(ctx, booking, port.CodeInvalidDetails, err.Error())
	}

	// 6. 先锁后查，关掉 "查完再锁" 的竞态窗口
	if _, err := s.lockSvc.AcquireForBooking(ctx, booking.SagaID, details); err != nil {
		if errors.Is(err, ErrLockUnavailable) {
			// 7. 容量耗尽是业务失败，不再做可用性检查
			return s.failTerminal(ctx, booking, port.CodeLockAcquisitionFailed, err.Error())
		}
		// 基础设施故障走重投，这里还没有拿到锁，但释放一遍保证不留半截
		s.releaseLocks(ctx, booking.SagaID)
		return OutcomeRedeliver, errors.Wrap(err, "acquire inventory locks")
	}

	// 8. 逐腿调用库存协作方，组合产品短路在第一个失败上
	result := s.validateLegs(ctx, details)
	if result.OK {
		// 9. 校验通过：锁继续持有，进入 PENDING
		return s.succeed(ctx, booking)
	}

	// 10. 失败：先释放锁，再做重试/补偿决策。
	// 注意顺序是刻意保留的：即使决策是重试，锁也已经释放，
	// 重试时必须从头重新获取，期间资源可能被并发预订抢走。
	s.releaseLocks(ctx, booking.SagaID)

	strategy := ResolveCompensationStrategy(StepValidateInventory, result.ErrorCode, 0)
	if strategy == StrategyRetryThenCompensate && result.ErrorCode == port.CodeInventoryServiceUnavailable {
		// 状态留在 VALIDATION_PENDING，等待重投或外部重新触发
		event, err := NewOutboxEvent(booking, domain.EventInventoryValidationFailed, domain.BookingEvent{
			BookingID: booking.ID,
			SagaID:    booking.SagaID,
			Status:    booking.Status,
			Reason:    result.Message,
			Retryable: true,
		})
		if err != nil {
			return OutcomeRedeliver, err
		}
		if err := s.repo.Save(ctx, booking, event); err != nil {
			return OutcomeRedeliver, errors.Wrap(err, "save retryable validation failure")
		}
		log.Warn().
			Str("booking_id", booking.ID).
			Str("error_code", result.ErrorCode).
			Msg("inventory validation failed transiently, will be retried")
		return OutcomeAck, nil
	}

	return s.failTerminal(ctx, booking, result.ErrorCode, result.Message)
}

// validateLegs 对每条产品腿做结构校验和业务可用性校验。
func (s *ValidationService) validateLegs(ctx context.Context, details *domain.ProductDetails) port.ValidationResult {
	switch details.Type {
	case domain.BookingTypeFlight:
		return s.validateFlightLeg(ctx, details.Flight)
	case domain.BookingTypeHotel:
		return s.validateHotelLeg(ctx, details.Hotel)
	case domain.BookingTypeCombo:
		if r := s.validateFlightLeg(ctx, &details.Combo.Flight); !r.OK {
			return r
		}
		return s.validateHotelLeg(ctx, &details.Combo.Hotel)
	default:
		return port.Invalid(port.CodeInvalidDetails, "unsupported booking type")
	}
}

func (s *ValidationService) validateFlightLeg(ctx context.Context, d *domain.FlightDetails) port.ValidationResult {
	r, err := s.flight.ValidateFlightDetails(ctx, d)
	if err != nil {
		return classifyCollaboratorError(err)
	}
	if !r.OK {
		return r
	}
	r, err = s.flight.CheckFlightAvailability(ctx, d)
	if err != nil {
		return classifyCollaboratorError(err)
	}
	return r
}

func (s *ValidationService) validateHotelLeg(ctx context.Context, d *domain.HotelDetails) port.ValidationResult {
	r, err := s.hotel.ValidateHotelDetails(ctx, d)
	if err != nil {
		return classifyCollaboratorError(err)
	}
	if !r.OK {
		return r
	}
	r, err = s.hotel.CheckHotelAvailability(ctx, d)
	if err != nil {
		return classifyCollaboratorError(err)
	}
	return r
}

// classifyCollaboratorError 把协作方调用的故障归类：
// 不可达类故障是可重试的 "service unavailable"，其余按不可重试的校验失败处理。
func classifyCollaboratorError(err error) port.ValidationResult {
	if errors.Is(err, port.ErrServiceUnavailable) {
		return port.ServiceUnavailable(err.Error())
	}
	return port.Invalid("VALIDATION_ERROR", err.Error())
}

// succeed 把预订推进到 PENDING 并发布成功事件，锁继续由 saga 持有。
func (s *ValidationService) succeed(ctx context.Context, booking *domain.Booking) (Outcome, error) {
	if err := booking.MarkValidated(); err != nil {
		s.releaseLocks(ctx, booking.SagaID)
		return OutcomeRedeliver, err
	}
	event, err := NewOutboxEvent(booking, domain.EventInventoryValidationSucceeded, newBookingEvent(booking, "", false))
	if err != nil {
		s.releaseLocks(ctx, booking.SagaID)
		return OutcomeRedeliver, err
	}
	if err := s.repo.Save(ctx, booking, event); err != nil {
		s.releaseLocks(ctx, booking.SagaID)
		return OutcomeRedeliver, errors.Wrap(err, "save validated booking")
	}
	logger.Ctx(ctx).Info().
		Str("booking_id", booking.ID).
		Str("saga_id", booking.SagaID).
		Msg("inventory validation succeeded")
	return OutcomeAck, nil
}

// failTerminal 把预订置为 VALIDATION_FAILED 并发布终态失败事件。
// 入口先兜底释放一次锁，重复释放是幂等的。
func (s *ValidationService) failTerminal(ctx context.Context, booking *domain.Booking, errorCode, message string) (Outcome, error) {
	s.releaseLocks(ctx, booking.SagaID)

	if err := booking.MarkValidationFailed(message); err != nil {
		return OutcomeRedeliver, err
	}
	booking.AppendNote("validation failed: " + message)

	payload := newBookingEvent(booking, message, false)
	payload.Detail = errorCode
	event, err := NewOutboxEvent(booking, domain.EventInventoryValidationFailed, payload)
	if err != nil {
		return OutcomeRedeliver, err
	}
	if err := s.repo.Save(ctx, booking, event); err != nil {
		return OutcomeRedeliver, errors.Wrap(err, "save failed booking")
	}
	logger.Ctx(ctx).Warn().
		Str("booking_id", booking.ID).
		Str("error_code", errorCode).
		Str("reason", message).
		Msg("inventory validation failed terminally")
	return OutcomeAck, nil
}

// releaseLocks 在所有失败路径上兜底释放 saga 锁，幂等。
func (s *ValidationService) releaseLocks(ctx context.Context, sagaID string) {
	if _, err := s.lockSvc.ReleaseAllBySaga(ctx, sagaID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("saga_id", sagaID).Msg("failed to release saga locks")
	}
}

// decodeValidateCommand 把归一化后的载荷解析成校验命令。
func DecodeValidateCommand(payload json.RawMessage) (*domain.ValidateInventoryCommand, error) {
	var cmd domain.ValidateInventoryCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, errors.Wrap(err, "decode validate inventory command")
	}
	return &cmd, nil
}
