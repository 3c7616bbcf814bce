package model

import "time"

// ReservationQuota is the per restaurant, per date, per time slot counter
// of reservations and occupied seats. Rows are created lazily and never
// deleted.
type ReservationQuota struct {
	ID                  uint64    // reservation_quotas.id
	RestaurantID        uint64    // reservation_quotas.restaurant_id
	Date                string    // reservation_quotas.quota_date (YYYY-MM-DD)
	TimeSlot            string    // reservation_quotas.time_slot (HH:MM)
	MaxReservations     int       // reservation_quotas.max_reservations
	CurrentReservations int       // reservation_quotas.current_reservations
	MaxCapacity         int       // reservation_quotas.max_capacity
	CurrentCapacity     int       // reservation_quotas.current_capacity
	ThresholdPercentage *int      // reservation_quotas.threshold_percentage (nullable)
	CreatedAt           time.Time // reservation_quotas.created_at
	UpdatedAt           time.Time // reservation_quotas.updated_at
}

// Key returns the unique key of the row.
func (q *ReservationQuota) Key() QuotaKey {
	return QuotaKey{RestaurantID: q.RestaurantID, Date: q.Date, TimeSlot: q.TimeSlot}
}

// OccupancyPercent is the share of seats already committed, 0..100.
func (q *ReservationQuota) OccupancyPercent() int {
	if q.MaxCapacity <= 0 {
		return 100
	}
	return q.CurrentCapacity * 100 / q.MaxCapacity
}

// HasAvailability reports whether another reservation may be taken in the
// slot at all: the reservation count is below its maximum and occupancy is
// below the soft-full threshold when one is configured.
func (q *ReservationQuota) HasAvailability() bool {
	if q.CurrentReservations >= q.MaxReservations {
		return false
	}
	if q.ThresholdPercentage != nil && q.OccupancyPercent() >= *q.ThresholdPercentage {
		return false
	}
	return true
}

// CanAccommodateParty reports whether partySize more seats fit.
func (q *ReservationQuota) CanAccommodateParty(partySize int) bool {
	return q.CurrentCapacity+partySize <= q.MaxCapacity
}

// Apply adjusts the counters in place. Removals are floored at zero.
func (q *ReservationQuota) Apply(partySize int, dir QuotaDirection) {
	switch dir {
	case QuotaAdd:
		q.CurrentReservations++
		q.CurrentCapacity += partySize
	case QuotaRemove:
		q.CurrentReservations = max(q.CurrentReservations-1, 0)
		q.CurrentCapacity = max(q.CurrentCapacity-partySize, 0)
	}
}

// QuotaKey identifies one quota row.
type QuotaKey struct {
	RestaurantID uint64
	Date         string
	TimeSlot     string
}

// QuotaDirection selects whether a commit adds or removes seats.
type QuotaDirection int

const (
	QuotaAdd QuotaDirection = iota + 1
	QuotaRemove
)

func (d QuotaDirection) String() string {
	switch d {
	case QuotaAdd:
		return "ADD"
	case QuotaRemove:
		return "REMOVE"
	}
	return "UNKNOWN"
}

// QuotaDefaults are applied when a slot is touched for the first time
// without an explicitly configured quota.
type QuotaDefaults struct {
	MaxReservations     int
	MaxCapacity         int
	ThresholdPercentage *int
}
