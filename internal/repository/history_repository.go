package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/table-reservation/internal/model"
)

// HistoryRepo appends to and reads reservation_history. Entries are never
// updated or deleted.
type HistoryRepo struct {
	db *sql.DB
}

// NewHistoryRepo returns a new HistoryRepo bound to the given database.
func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

// AppendTx inserts h and fills in its generated id.
func (r *HistoryRepo) AppendTx(ctx context.Context, tx *sql.Tx, h *model.ReservationHistory) error {
	const q = `INSERT INTO reservation_history (reservation_id, action, detail, actor, created_at) VALUES (?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, h.ReservationID, string(h.Action), h.Detail, h.Actor, h.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return nil
}

// ListByReservation returns the history of one reservation in insertion order.
func (r *HistoryRepo) ListByReservation(ctx context.Context, reservationID string) ([]model.ReservationHistory, error) {
	const q = `SELECT id, reservation_id, action, detail, actor, created_at
		FROM reservation_history WHERE reservation_id = ? ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ReservationHistory{}
	for rows.Next() {
		var (
			h      model.ReservationHistory
			action string
		)
		if err := rows.Scan(&h.ID, &h.ReservationID, &action, &h.Detail, &h.Actor, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Action = model.HistoryAction(action)
		out = append(out, h)
	}
	return out, rows.Err()
}
