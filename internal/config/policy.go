package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// ReservationPolicy holds the booking rules enforced before any remote
// call is made. OpenFrom and OpenUntil are offsets from local midnight.
type ReservationPolicy struct {
	MinAdvance         time.Duration  // minimum lead time before the start
	MaxFuture          time.Duration  // furthest start accepted
	OpenFrom           time.Duration  // earliest daily start
	OpenUntil          time.Duration  // latest daily start
	MaxPartySize       int            // largest party accepted
	DefaultDuration    time.Duration  // sitting length when none is requested
	ConfirmationWindow time.Duration  // PENDING reservations expire after this
	CompletionGrace    time.Duration  // CONFIRMED reservations complete this long after they end
	SlotLength         time.Duration  // quota slot granularity
	Location           *time.Location // zone used for dates, slots and the daily window
}

// DefaultReservationPolicy returns the policy used when nothing is
// configured.
func DefaultReservationPolicy() ReservationPolicy {
	return ReservationPolicy{
		MinAdvance:         60 * time.Minute,
		MaxFuture:          90 * 24 * time.Hour,
		OpenFrom:           10 * time.Hour,
		OpenUntil:          22 * time.Hour,
		MaxPartySize:       20,
		DefaultDuration:    120 * time.Minute,
		ConfirmationWindow: 15 * time.Minute,
		CompletionGrace:    time.Hour,
		SlotLength:         30 * time.Minute,
		Location:           time.UTC,
	}
}

// LoadReservationPolicy overlays RESERVATION_* variables on the defaults.
func LoadReservationPolicy() ReservationPolicy {
	p := DefaultReservationPolicy()
	p.MinAdvance = envDur("RESERVATION_MIN_ADVANCE", p.MinAdvance)
	p.MaxFuture = envDur("RESERVATION_MAX_FUTURE", p.MaxFuture)
	p.MaxPartySize = envInt("RESERVATION_MAX_PARTY_SIZE", p.MaxPartySize)
	p.DefaultDuration = envDur("RESERVATION_DEFAULT_DURATION", p.DefaultDuration)
	p.ConfirmationWindow = envDur("RESERVATION_CONFIRMATION_WINDOW", p.ConfirmationWindow)
	p.CompletionGrace = envDur("RESERVATION_COMPLETION_GRACE", p.CompletionGrace)
	p.SlotLength = envDur("RESERVATION_SLOT_LENGTH", p.SlotLength)
	if v := envStr("RESERVATION_OPEN_FROM", ""); v != "" {
		if d, err := ParseClock(v); err == nil {
			p.OpenFrom = d
		} else {
			log.Printf("config: RESERVATION_OPEN_FROM ignored: %v", err)
		}
	}
	if v := envStr("RESERVATION_OPEN_UNTIL", ""); v != "" {
		if d, err := ParseClock(v); err == nil {
			p.OpenUntil = d
		} else {
			log.Printf("config: RESERVATION_OPEN_UNTIL ignored: %v", err)
		}
	}
	if v := envStr("RESERVATION_TIMEZONE", ""); v != "" {
		if loc, err := time.LoadLocation(v); err == nil {
			p.Location = loc
		} else {
			log.Printf("config: RESERVATION_TIMEZONE ignored: %v", err)
		}
	}
	if p.SlotLength <= 0 {
		p.SlotLength = 30 * time.Minute
	}
	return p
}

// ParseClock converts "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// QuotaConfig defines the values a quota row is created with when a slot is
// booked for the first time.
type QuotaConfig struct {
	DefaultMaxReservations int
	DefaultMaxCapacity     int
	DefaultThreshold       int // percent, 0 disables the soft-full threshold
}

// LoadQuotaConfig reads QUOTA_* variables.
func LoadQuotaConfig() QuotaConfig {
	return QuotaConfig{
		DefaultMaxReservations: envInt("QUOTA_DEFAULT_MAX_RESERVATIONS", 20),
		DefaultMaxCapacity:     envInt("QUOTA_DEFAULT_MAX_CAPACITY", 80),
		DefaultThreshold:       envInt("QUOTA_DEFAULT_THRESHOLD", 0),
	}
}

// Defaults converts the configuration into the values applied to new quota
// rows.
func (q QuotaConfig) Defaults() model.QuotaDefaults {
	d := model.QuotaDefaults{
		MaxReservations: q.DefaultMaxReservations,
		MaxCapacity:     q.DefaultMaxCapacity,
	}
	if q.DefaultThreshold > 0 {
		t := q.DefaultThreshold
		d.ThresholdPercentage = &t
	}
	return d
}
