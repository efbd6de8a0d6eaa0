package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBookingConfigDurationsFromYAML(t *testing.T) {
	cfg := defaults()
	data := []byte(`
booking:
  bypassValidation: true
  reservationTtl: 45m
  expirySweepInterval: 30s
  confirmationPrefix: "TRV"
`)
	require.NoError(t, yaml.Unmarshal(data, cfg))

	assert.True(t, cfg.Booking.BypassValidation)
	assert.Equal(t, 45*time.Minute, cfg.Booking.ReservationTTL)
	assert.Equal(t, 30*time.Second, cfg.Booking.ExpirySweepInterval)
	assert.Equal(t, "TRV", cfg.Booking.ConfirmationPrefix)

	// 未出现在 YAML 里的键保留默认值
	assert.Equal(t, 5*time.Minute, cfg.Booking.LockCleanupInterval)
	assert.Equal(t, 100, cfg.Booking.DefaultResourceCap)
}

func TestBookingConfigRejectsBadDuration(t *testing.T) {
	cfg := defaults()
	err := yaml.Unmarshal([]byte("booking:\n  reservationTtl: nonsense\n"), cfg)
	require.Error(t, err)
}
