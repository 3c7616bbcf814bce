package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// QuotaRepo manages reservation_quotas. Increments are a single
// conditional UPDATE so two concurrent commands can never both pass the
// limit check; the row lock taken by the UPDATE serializes them.
type QuotaRepo struct {
	db *sql.DB
}

// NewQuotaRepo returns a new QuotaRepo bound to the given database.
func NewQuotaRepo(db *sql.DB) *QuotaRepo { return &QuotaRepo{db: db} }

const quotaColumns = `id, restaurant_id, quota_date, time_slot, max_reservations, current_reservations,
	max_capacity, current_capacity, threshold_percentage, created_at, updated_at`

// GetByKey returns the quota row for a slot or ErrNotFound.
func (r *QuotaRepo) GetByKey(ctx context.Context, key model.QuotaKey) (*model.ReservationQuota, error) {
	const q = `SELECT ` + quotaColumns + ` FROM reservation_quotas
		WHERE restaurant_id = ? AND quota_date = ? AND time_slot = ?`
	return scanQuota(r.db.QueryRowContext(ctx, q, key.RestaurantID, key.Date, key.TimeSlot))
}

func (r *QuotaRepo) getTx(ctx context.Context, tx *sql.Tx, key model.QuotaKey) (*model.ReservationQuota, error) {
	const q = `SELECT ` + quotaColumns + ` FROM reservation_quotas
		WHERE restaurant_id = ? AND quota_date = ? AND time_slot = ?`
	return scanQuota(tx.QueryRowContext(ctx, q, key.RestaurantID, key.Date, key.TimeSlot))
}

// AdjustTx applies one ADD or REMOVE to the slot. ADD creates the row with
// defaults when the slot was never booked, then increments only if every
// limit still holds afterwards; otherwise it returns a *QuotaExhaustedError.
// REMOVE decrements with a floor of zero and is a no-op on a missing row.
func (r *QuotaRepo) AdjustTx(ctx context.Context, tx *sql.Tx, key model.QuotaKey, partySize int, dir model.QuotaDirection, defaults model.QuotaDefaults, now time.Time) error {
	now = now.UTC()
	switch dir {
	case model.QuotaAdd:
		const ins = `INSERT IGNORE INTO reservation_quotas
			(restaurant_id, quota_date, time_slot, max_reservations, current_reservations,
			 max_capacity, current_capacity, threshold_percentage, created_at, updated_at)
			VALUES (?, ?, ?, ?, 0, ?, 0, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, ins, key.RestaurantID, key.Date, key.TimeSlot,
			defaults.MaxReservations, defaults.MaxCapacity, defaults.ThresholdPercentage, now, now); err != nil {
			return err
		}
		const upd = `UPDATE reservation_quotas
			SET current_reservations = current_reservations + 1,
			    current_capacity = current_capacity + ?,
			    updated_at = ?
			WHERE restaurant_id = ? AND quota_date = ? AND time_slot = ?
			  AND current_reservations + 1 <= max_reservations
			  AND current_capacity + ? <= max_capacity
			  AND (threshold_percentage IS NULL OR current_capacity * 100 < threshold_percentage * max_capacity)`
		result, err := tx.ExecContext(ctx, upd, partySize, now, key.RestaurantID, key.Date, key.TimeSlot, partySize)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			q, err := r.getTx(ctx, tx, key)
			if err != nil {
				return err
			}
			return &QuotaExhaustedError{Quota: *q, PartySize: partySize}
		}
		return nil
	case model.QuotaRemove:
		const upd = `UPDATE reservation_quotas
			SET current_reservations = GREATEST(current_reservations - 1, 0),
			    current_capacity = GREATEST(current_capacity - ?, 0),
			    updated_at = ?
			WHERE restaurant_id = ? AND quota_date = ? AND time_slot = ?`
		_, err := tx.ExecContext(ctx, upd, partySize, now, key.RestaurantID, key.Date, key.TimeSlot)
		return err
	}
	return errors.New("quota: unknown direction")
}

func scanQuota(row *sql.Row) (*model.ReservationQuota, error) {
	var (
		q         model.ReservationQuota
		date      time.Time
		threshold sql.NullInt64
	)
	err := row.Scan(&q.ID, &q.RestaurantID, &date, &q.TimeSlot, &q.MaxReservations, &q.CurrentReservations,
		&q.MaxCapacity, &q.CurrentCapacity, &threshold, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	q.Date = date.Format("2006-01-02")
	if threshold.Valid {
		t := int(threshold.Int64)
		q.ThresholdPercentage = &t
	}
	return &q, nil
}
