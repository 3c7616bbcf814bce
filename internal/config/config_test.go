package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	d, err := ParseClock("10:30")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Hour+30*time.Minute, d)

	_, err = ParseClock("25:00")
	assert.Error(t, err)
}

func TestLoadReservationPolicyDefaults(t *testing.T) {
	p := LoadReservationPolicy()
	assert.Equal(t, DefaultReservationPolicy().MaxPartySize, p.MaxPartySize)
	assert.Equal(t, 15*time.Minute, p.ConfirmationWindow)
	assert.Equal(t, time.UTC, p.Location)
}

func TestLoadReservationPolicyOverrides(t *testing.T) {
	t.Setenv("RESERVATION_MAX_PARTY_SIZE", "8")
	t.Setenv("RESERVATION_OPEN_FROM", "11:00")
	t.Setenv("RESERVATION_OPEN_UNTIL", "bogus")
	t.Setenv("RESERVATION_SLOT_LENGTH", "15m")
	t.Setenv("RESERVATION_TIMEZONE", "Europe/Berlin")

	p := LoadReservationPolicy()
	assert.Equal(t, 8, p.MaxPartySize)
	assert.Equal(t, 11*time.Hour, p.OpenFrom)
	assert.Equal(t, 22*time.Hour, p.OpenUntil)
	assert.Equal(t, 15*time.Minute, p.SlotLength)
	assert.Equal(t, "Europe/Berlin", p.Location.String())
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "10s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 50*time.Second, c.TTL)
}

func TestEnvBool(t *testing.T) {
	t.Setenv("X_FLAG", "off")
	assert.False(t, envBool("X_FLAG", true))
	t.Setenv("X_FLAG", "maybe")
	assert.True(t, envBool("X_FLAG", true))
}
