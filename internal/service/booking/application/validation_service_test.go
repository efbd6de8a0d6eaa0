package application_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voyago/internal/service/booking/application"
	"voyago/internal/service/booking/domain"
	"voyago/internal/service/booking/domain/port"
	"voyago/internal/service/booking/lock"
)

func flightDetailsJSON(t *testing.T) json.RawMessage {
	t.Helper()
	doc, err := json.Marshal(domain.FlightDetails{
		FlightID:          "F123",
		SeatClass:         "ECONOMY",
		PassengerCount:    2,
		DepartureDateTime: "2026-10-01T08:00:00Z",
	})
	require.NoError(t, err)
	return doc
}

func comboDetailsJSON(t *testing.T) json.RawMessage {
	t.Helper()
	doc, err := json.Marshal(domain.ComboDetails{
		Flight: domain.FlightDetails{FlightID: "F123", SeatClass: "ECONOMY", PassengerCount: 2, DepartureDateTime: "2026-10-01T08:00:00Z"},
		Hotel:  domain.HotelDetails{HotelID: "H9", RoomTypeID: "DELUXE", CheckInDate: "2026-10-01", CheckOutDate: "2026-10-05", RoomCount: 1},
	})
	require.NoError(t, err)
	return doc
}

func newPendingValidationBooking(t *testing.T, repo *fakeRepo, bookingType domain.BookingType, details json.RawMessage) *domain.Booking {
	t.Helper()
	booking, err := domain.NewBooking("user-1", bookingType, details, 49900, "USD", 30*time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), booking))
	return booking
}

type validationHarness struct {
	repo    *fakeRepo
	manager *lock.MemoryManager
	flight  *fakeFlightService
	hotel   *fakeHotelService
	svc     *application.ValidationService
}

func newValidationHarness(bypass bool, flight *fakeFlightService, hotel *fakeHotelService) *validationHarness {
	repo := newFakeRepo()
	manager := lock.NewMemoryManager(100)
	lockSvc := application.NewInventoryLockService(manager)
	return &validationHarness{
		repo:    repo,
		manager: manager,
		flight:  flight,
		hotel:   hotel,
		svc:     application.NewValidationService(repo, lockSvc, flight, hotel, bypass),
	}
}

func (h *validationHarness) locksFor(t *testing.T, sagaID string) []*lock.Lock {
	t.Helper()
	locks, err := h.manager.GetLocksByOwner(context.Background(), sagaID)
	require.NoError(t, err)
	return locks
}

// Scenario A: 机票可用，预订进入 PENDING，锁保留，成功事件发出。
func TestValidation_FlightAvailable(t *testing.T) {
	h := newValidationHarness(false, &fakeFlightService{availability: port.Valid()}, &fakeHotelService{})
	booking := newPendingValidationBooking(t, h.repo, domain.BookingTypeFlight, flightDetailsJSON(t))

	outcome, err := h.svc.HandleValidateInventory(context.Background(), &domain.ValidateInventoryCommand{
		BookingID:   booking.ID,
		BookingType: domain.BookingTypeFlight,
	})
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeAck, outcome)

	saved := h.repo.get(booking.ID)
	assert.Equal(t, domain.StatusPending, saved.Status)
	assert.Contains(t, h.repo.eventTypes(), domain.EventInventoryValidationSucceeded)

	// 粗粒度 FLIGHT 锁 + 细粒度 SEAT 锁都在 sagaId 名下
	locks := h.locksFor(t, booking.SagaID)
	assert.Len(t, locks, 2)
}

// Scenario B: 舱位不可用是终态失败，锁清零。
func TestValidation_SeatsUnavailable(t *testing.T) {
	h := newValidationHarness(false, &fakeFlightService{
		availability: port.Invalid(port.CodeSeatsUnavailable, "no seats left"),
	}, &fakeHotelService{})
	booking := newPendingValidationBooking(t, h.repo, domain.BookingTypeFlight, flightDetailsJSON(t))

	outcome, err := h.svc.HandleValidateInventory(context.Background(), &domain.ValidateInventoryCommand{
		BookingID:   booking.ID,
		BookingType: domain.BookingTypeFlight,
	})
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeAck, outcome)

	saved := h.repo.get(booking.ID)
	assert.Equal(t, domain.StatusValidationFailed, saved.Status)
	assert.Empty(t, h.locksFor(t, booking.SagaID))
	assert.Contains(t, h.repo.eventTypes(), domain.EventInventoryValidationFailed)

	var event domain.BookingEvent
	require.NoError(t, json.Unmarshal(h.repo.lastEvent().Payload, &event))
	assert.False(t, event.Retryable)
}

// Scenario C: 库存服务不可达，状态留在 VALIDATION_PENDING，锁清零，发出可重试失败事件。
func TestValidation_ServiceUnavailable(t *testing.T) {
	h := newValidationHarness(false, &fakeFlightService{
		checkErr: port.ErrServiceUnavailable,
	}, &fakeHotelService{})
	booking := newPendingValidationBooking(t, h.repo, domain.BookingTypeFlight, flightDetailsJSON(t))

	outcome, err := h.svc.HandleValidateInventory(context.Background(), &domain.ValidateInventoryCommand{
		BookingID:   booking.ID,
		BookingType: domain.BookingTypeFlight,
	})
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeAck, outcome)

	saved := h.repo.get(booking.ID)
	assert.Equal(t, domain.StatusValidationPending, saved.Status)
	assert.Empty(t, h.locksFor(t, booking.SagaID))

	var event domain.BookingEvent
	require.NoError(t, json.Unmarshal(h.repo.lastEvent().Payload, &event))
	assert.True(t, event.Retryable)
}

// 重投的命令在预订离开 VALIDATION_PENDING 后是 no-op。
func TestValidation_DuplicateCommandIsNoop(t *testing.T) {
	h := newValidationHarness(false, &fakeFlightService{availability: port.Valid()}, &fakeHotelService{})
	booking := newPendingValidationBooking(t, h.repo, domain.BookingTypeFlight, flightDetailsJSON(t))

	cmd := &domain.ValidateInventoryCommand{BookingID: booking.ID, BookingType: domain.BookingTypeFlight}
	outcome, err := h.svc.HandleValidateInventory(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, application.OutcomeAck, outcome)

	eventsBefore := len(h.repo.eventTypes())
	locksBefore := len(h.locksFor(t, booking.SagaID))

	// 同一条命令再来一次
	outcome, err = h.svc.HandleValidateInventory(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeAck, outcome)

	assert.Equal(t, domain.StatusPending, h.repo.get(booking.ID).Status)
	assert.Len(t, h.repo.eventTypes(), eventsBefore)
	assert.Len(t, h.locksFor(t, booking.SagaID), locksBefore)
}

// 组合产品的酒店腿锁不到时，机票锁必须一并退回。
func TestValidation_ComboHotelLockFailureReleasesFlightLocks(t *testing.T) {
	h := newValidationHarness(false,
		&fakeFlightService{availability: port.Valid()},
		&fakeHotelService{availability: port.Valid()},
	)
	// 酒店房型容量为零，细粒度锁必然失败
	h.manager.SetCapacity("hotel:H9:rooms:DELUXE", lock.ResourceRoom, 0)

	booking := newPendingValidationBooking(t, h.repo, domain.BookingTypeCombo, comboDetailsJSON(t))

	outcome, err := h.svc.HandleValidateInventory(context.Background(), &domain.ValidateInventoryCommand{
		BookingID:   booking.ID,
		BookingType: domain.BookingTypeCombo,
	})
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeAck, outcome)

	assert.Equal(t, domain.StatusValidationFailed, h.repo.get(booking.ID).Status)
	assert.Empty(t, h.locksFor(t, booking.SagaID), "no flight locks may survive a hotel lock failure")
}

// 缺字段和查不到预订的命令直接丢弃。
func TestValidation_DropsMalformedAndUnknown(t *testing.T) {
	h := newValidationHarness(false, &fakeFlightService{}, &fakeHotelService{})

	outcome, err := h.svc.HandleValidateInventory(context.Background(), &domain.ValidateInventoryCommand{})
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeAck, outcome)

	outcome, err = h.svc.HandleValidateInventory(context.Background(), &domain.ValidateInventoryCommand{
		BookingID:   "no-such-booking",
		BookingType: domain.BookingTypeFlight,
	})
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeAck, outcome)
	assert.Empty(t, h.repo.eventTypes())
}

// 旁路开关打开时不碰协作方和锁，直接进入 PENDING。
func TestValidation_BypassSkipsCollaborators(t *testing.T) {
	h := newValidationHarness(true, &fakeFlightService{checkErr: port.ErrServiceUnavailable}, &fakeHotelService{})
	booking := newPendingValidationBooking(t, h.repo, domain.BookingTypeFlight, flightDetailsJSON(t))

	outcome, err := h.svc.HandleValidateInventory(context.Background(), &domain.ValidateInventoryCommand{
		BookingID:   booking.ID,
		BookingType: domain.BookingTypeFlight,
	})
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeAck, outcome)

	assert.Equal(t, domain.StatusPending, h.repo.get(booking.ID).Status)
	assert.Empty(t, h.locksFor(t, booking.SagaID))
	assert.Contains(t, h.repo.eventTypes(), domain.EventInventoryValidationSucceeded)
}

// 产品明细缺失或解不开时是结构性终态失败。
func TestValidation_MissingDetailsFailsTerminally(t *testing.T) {
	h := newValidationHarness(false, &fakeFlightService{availability: port.Valid()}, &fakeHotelService{})
	booking := newPendingValidationBooking(t, h.repo, domain.BookingTypeFlight, nil)

	outcome, err := h.svc.HandleValidateInventory(context.Background(), &domain.ValidateInventoryCommand{
		BookingID:   booking.ID,
		BookingType: domain.BookingTypeFlight,
	})
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeAck, outcome)
	assert.Equal(t, domain.StatusValidationFailed, h.repo.get(booking.ID).Status)
}
