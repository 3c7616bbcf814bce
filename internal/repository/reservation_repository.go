package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/table-reservation/internal/model"
)

// ReservationRepo reads and writes the reservations table. All timestamps
// are stored in UTC. Rows are never deleted.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, customer_name, customer_phone, customer_email,
	restaurant_id, table_id, start_time, duration_minutes, party_size, status,
	confirmation_deadline, cancellation_reason, special_requests, reminder_sent,
	created_at, updated_at, confirmed_at, cancelled_at, completed_at`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateTx inserts a new reservation inside the caller's transaction.
// The caller must commit or rollback.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (` + reservationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		res.ID, res.UserID, res.CustomerName, res.CustomerPhone, res.CustomerEmail,
		res.RestaurantID, res.TableID, res.StartTime.UTC(), minutes(res.Duration), res.PartySize, string(res.Status),
		res.ConfirmationDeadline.UTC(), res.CancellationReason, res.SpecialRequests, res.ReminderSent,
		res.CreatedAt.UTC(), res.UpdatedAt.UTC(), utcPtr(res.ConfirmedAt), utcPtr(res.CancelledAt), utcPtr(res.CompletedAt),
	)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// UpdateTx writes every mutable column. confirmation_deadline and
// created_at are never rewritten.
func (r *ReservationRepo) UpdateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `UPDATE reservations SET
		customer_name = ?, customer_phone = ?, customer_email = ?, table_id = ?,
		start_time = ?, duration_minutes = ?, party_size = ?, status = ?,
		cancellation_reason = ?, special_requests = ?, reminder_sent = ?,
		updated_at = ?, confirmed_at = ?, cancelled_at = ?, completed_at = ?
		WHERE id = ?`
	result, err := tx.ExecContext(ctx, q,
		res.CustomerName, res.CustomerPhone, res.CustomerEmail, res.TableID,
		res.StartTime.UTC(), minutes(res.Duration), res.PartySize, string(res.Status),
		res.CancellationReason, res.SpecialRequests, res.ReminderSent,
		res.UpdatedAt.UTC(), utcPtr(res.ConfirmedAt), utcPtr(res.CancelledAt), utcPtr(res.CompletedAt),
		res.ID,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID returns the reservation or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	return scanReservation(row)
}

// LockTx loads the reservation with a row lock held until the transaction
// ends. Concurrent commands on the same reservation serialize here.
func (r *ReservationRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) (*model.Reservation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id)
	return scanReservation(row)
}

// ListExpiredPending returns PENDING reservations whose confirmation
// deadline is before now, oldest deadline first.
func (r *ReservationRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
		WHERE status = 'PENDING' AND confirmation_deadline < ?
		ORDER BY confirmation_deadline ASC LIMIT ?`
	return r.list(ctx, r.db, q, now.UTC(), limit)
}

// ListConfirmedEndedBefore returns CONFIRMED reservations whose end time
// (start + duration) is before cutoff.
func (r *ReservationRepo) ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
		WHERE status = 'CONFIRMED' AND DATE_ADD(start_time, INTERVAL duration_minutes MINUTE) < ?
		ORDER BY start_time ASC LIMIT ?`
	return r.list(ctx, r.db, q, cutoff.UTC(), limit)
}

func (r *ReservationRepo) list(ctx context.Context, db querier, q string, args ...any) ([]*model.Reservation, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (*model.Reservation, error) {
	var (
		res                            model.Reservation
		phone, email, reason, requests sql.NullString
		tableID                        sql.NullInt64
		durationMinutes                int
		status                         string
		confirmedAt, cancelledAt       sql.NullTime
		completedAt                    sql.NullTime
	)
	err := s.Scan(
		&res.ID, &res.UserID, &res.CustomerName, &phone, &email,
		&res.RestaurantID, &tableID, &res.StartTime, &durationMinutes, &res.PartySize, &status,
		&res.ConfirmationDeadline, &reason, &requests, &res.ReminderSent,
		&res.CreatedAt, &res.UpdatedAt, &confirmedAt, &cancelledAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	res.Status, err = model.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("reservation %s: %w", res.ID, err)
	}
	res.Duration = time.Duration(durationMinutes) * time.Minute
	res.CustomerPhone = nullString(phone)
	res.CustomerEmail = nullString(email)
	res.CancellationReason = nullString(reason)
	res.SpecialRequests = nullString(requests)
	if tableID.Valid {
		id := uint64(tableID.Int64)
		res.TableID = &id
	}
	res.ConfirmedAt = nullTime(confirmedAt)
	res.CancelledAt = nullTime(cancelledAt)
	res.CompletedAt = nullTime(completedAt)
	return &res, nil
}

func minutes(d time.Duration) int { return int(d / time.Minute) }

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// isDuplicate reports a MySQL duplicate-key error (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
