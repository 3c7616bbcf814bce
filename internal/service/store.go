package service

import (
	"context"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/repository"
)

// Store is the persistence the lifecycle needs. *repository.Store
// implements it.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error)
	ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Reservation, error)
	GetQuota(ctx context.Context, key model.QuotaKey) (*model.ReservationQuota, error)
	ListHistory(ctx context.Context, reservationID string) ([]model.ReservationHistory, error)
}

var _ Store = (*repository.Store)(nil)
