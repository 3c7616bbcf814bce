package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// Tx is the set of writes a command may perform atomically. Every method
// runs on the same *sql.Tx.
type Tx interface {
	InsertReservation(ctx context.Context, r *model.Reservation) error
	UpdateReservation(ctx context.Context, r *model.Reservation) error
	LockReservation(ctx context.Context, id string) (*model.Reservation, error)
	AppendHistory(ctx context.Context, h *model.ReservationHistory) error
	AdjustQuota(ctx context.Context, key model.QuotaKey, partySize int, dir model.QuotaDirection, defaults model.QuotaDefaults, now time.Time) error
}

// Store bundles the repositories behind a single transactional entry
// point.
type Store struct {
	db           *sql.DB
	reservations *ReservationRepo
	history      *HistoryRepo
	quotas       *QuotaRepo
}

// NewStore wires the three repositories onto db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		reservations: NewReservationRepo(db),
		history:      NewHistoryRepo(db),
		quotas:       NewQuotaRepo(db),
	}
}

// InTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Printf("store: rollback failed: %v", rbErr)
			}
		}
	}()

	if err = fn(ctx, &txStore{store: s, tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetReservation returns a reservation or ErrNotFound.
func (s *Store) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	return s.reservations.GetByID(ctx, id)
}

// ListExpiredPending lists PENDING reservations past their deadline.
func (s *Store) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	return s.reservations.ListExpiredPending(ctx, now, limit)
}

// ListConfirmedEndedBefore lists CONFIRMED reservations that ended before cutoff.
func (s *Store) ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Reservation, error) {
	return s.reservations.ListConfirmedEndedBefore(ctx, cutoff, limit)
}

// GetQuota returns the quota row for key or ErrNotFound.
func (s *Store) GetQuota(ctx context.Context, key model.QuotaKey) (*model.ReservationQuota, error) {
	return s.quotas.GetByKey(ctx, key)
}

// ListHistory returns the audit trail of a reservation.
func (s *Store) ListHistory(ctx context.Context, reservationID string) ([]model.ReservationHistory, error) {
	return s.history.ListByReservation(ctx, reservationID)
}

type txStore struct {
	store *Store
	tx    *sql.Tx
}

func (t *txStore) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return t.store.reservations.CreateTx(ctx, t.tx, r)
}

func (t *txStore) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	return t.store.reservations.UpdateTx(ctx, t.tx, r)
}

func (t *txStore) LockReservation(ctx context.Context, id string) (*model.Reservation, error) {
	return t.store.reservations.LockTx(ctx, t.tx, id)
}

func (t *txStore) AppendHistory(ctx context.Context, h *model.ReservationHistory) error {
	return t.store.history.AppendTx(ctx, t.tx, h)
}

func (t *txStore) AdjustQuota(ctx context.Context, key model.QuotaKey, partySize int, dir model.QuotaDirection, defaults model.QuotaDefaults, now time.Time) error {
	return t.store.quotas.AdjustTx(ctx, t.tx, key, partySize, dir, defaults, now)
}
