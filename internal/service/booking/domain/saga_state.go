// internal/service/booking/domain/saga_state.go
package domain

// SagaState 记录 saga 推进到哪一步，和 BookingStatus 一起构成状态机。
type SagaState string

const (
	SagaStarted             SagaState = "STARTED"
	SagaValidatingInventory SagaState = "VALIDATING_INVENTORY"
	SagaInventoryValidated  SagaState = "INVENTORY_VALIDATED"
	SagaReservingFlight     SagaState = "RESERVING_FLIGHT"
	SagaReservingHotel      SagaState = "RESERVING_HOTEL"
	SagaAwaitingPayment     SagaState = "AWAITING_PAYMENT"
	SagaCompleted           SagaState = "COMPLETED"
	SagaCompensating        SagaState = "COMPENSATING"
	SagaFailed              SagaState = "FAILED"
)
