// Package repository holds the MySQL data access for reservations, their
// history and the per-slot quota ledger. Sentinel errors below let the
// service layer tell failure scenarios apart without inspecting driver
// errors.
package repository

import (
	"errors"
	"fmt"

	"github.com/iliyamo/table-reservation/internal/model"
)

// ErrNotFound is returned when a row addressed by id or key does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with an existing row.
var ErrConflict = errors.New("conflict")

// ErrCapacityExceeded is returned when a quota increment would push a slot
// past one of its limits. The row is left untouched.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// QuotaExhaustedError carries the quota row as it was when an increment was
// refused.
type QuotaExhaustedError struct {
	Quota     model.ReservationQuota
	PartySize int
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("quota %d/%s/%s exhausted: reservations %d/%d seats %d+%d/%d",
		e.Quota.RestaurantID, e.Quota.Date, e.Quota.TimeSlot,
		e.Quota.CurrentReservations, e.Quota.MaxReservations,
		e.Quota.CurrentCapacity, e.PartySize, e.Quota.MaxCapacity)
}

func (e *QuotaExhaustedError) Unwrap() error { return ErrCapacityExceeded }
