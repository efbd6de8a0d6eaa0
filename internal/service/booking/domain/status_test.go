package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voyago/internal/service/booking/domain"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct {
		from, to domain.BookingStatus
	}{
		{domain.StatusPending, domain.StatusConfirmed},
		{domain.StatusPending, domain.StatusCancelled},
		{domain.StatusConfirmed, domain.StatusPaymentPending},
		{domain.StatusConfirmed, domain.StatusPaid},
		{domain.StatusConfirmed, domain.StatusCancelled},
		{domain.StatusPaymentPending, domain.StatusPaid},
		{domain.StatusPaymentPending, domain.StatusPaymentFailed},
		{domain.StatusPaymentPending, domain.StatusCancelled},
		{domain.StatusPaymentFailed, domain.StatusPaymentPending},
		{domain.StatusPaymentFailed, domain.StatusCancelled},
		{domain.StatusValidationPending, domain.StatusPending},
		{domain.StatusValidationPending, domain.StatusValidationFailed},
	}
	for _, tt := range allowed {
		assert.True(t, domain.CanTransition(tt.from, tt.to), "%s -> %s should be allowed", tt.from, tt.to)
	}

	rejected := []struct {
		from, to domain.BookingStatus
	}{
		{domain.StatusCancelled, domain.StatusPending},
		{domain.StatusCancelled, domain.StatusConfirmed},
		{domain.StatusPaid, domain.StatusCancelled},
		{domain.StatusPaid, domain.StatusPaymentPending},
		{domain.StatusValidationPending, domain.StatusConfirmed},
		{domain.StatusValidationFailed, domain.StatusPending},
		{domain.StatusPending, domain.StatusPaid},
	}
	for _, tt := range rejected {
		assert.False(t, domain.CanTransition(tt.from, tt.to), "%s -> %s should be rejected", tt.from, tt.to)
	}

	// 同状态请求是合法的 no-op
	assert.True(t, domain.CanTransition(domain.StatusValidationPending, domain.StatusValidationPending))
	assert.True(t, domain.CanTransition(domain.StatusCancelled, domain.StatusCancelled))
}

func TestBookingTransitionClearsExpiryOnTerminal(t *testing.T) {
	booking, err := domain.NewBooking("user-1", domain.BookingTypeFlight, []byte(`{"flightId":"F1","passengerCount":1}`), 100, "USD", time.Hour)
	require.NoError(t, err)
	require.NotNil(t, booking.ReservationExpiresAt)

	require.NoError(t, booking.Cancel("user requested"))
	assert.Equal(t, domain.StatusCancelled, booking.Status)
	assert.Nil(t, booking.ReservationExpiresAt)
	assert.Equal(t, "user requested", booking.CancellationReason)

	// 终态之后任何流转都被拒绝
	err = booking.TransitionTo(domain.StatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestBookingSameStateTransitionIsNoop(t *testing.T) {
	booking, err := domain.NewBooking("user-1", domain.BookingTypeHotel, []byte(`{"hotelId":"H1","roomCount":1}`), 100, "USD", time.Hour)
	require.NoError(t, err)

	before := booking.UpdatedAt
	require.NoError(t, booking.TransitionTo(domain.StatusValidationPending))
	assert.Equal(t, before, booking.UpdatedAt)
}

func TestHoldingStatuses(t *testing.T) {
	assert.True(t, domain.StatusPending.IsHolding())
	assert.True(t, domain.StatusValidationPending.IsHolding())
	assert.True(t, domain.StatusPaymentPending.IsHolding())
	assert.False(t, domain.StatusConfirmed.IsHolding())
	assert.False(t, domain.StatusCancelled.IsHolding())
}

func TestDecodeProductDetails(t *testing.T) {
	details, err := domain.DecodeProductDetails(domain.BookingTypeFlight, []byte(`{"flightId":"F123","seatClass":"ECONOMY","passengerCount":2}`))
	require.NoError(t, err)
	require.NotNil(t, details.Flight)
	assert.Equal(t, "F123", details.Flight.FlightID)

	_, err = domain.DecodeProductDetails(domain.BookingTypeFlight, []byte(`{"passengerCount":2}`))
	assert.Error(t, err)

	_, err = domain.DecodeProductDetails(domain.BookingTypeCombo, []byte(`{"flight":{"flightId":"F1","passengerCount":1}}`))
	assert.Error(t, err, "combo without hotel leg must be rejected")

	_, err = domain.DecodeProductDetails("CRUISE", []byte(`{}`))
	assert.Error(t, err)
}
