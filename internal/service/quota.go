package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/repository"
)

// QuotaLedger guards per-slot reservation counts and seat capacity.
// CheckAvailability is advisory; Commit is the authoritative, atomic step
// and runs inside the command transaction.
type QuotaLedger struct {
	store    Store
	defaults model.QuotaDefaults
	slot     time.Duration
	loc      *time.Location
}

// NewQuotaLedger returns a ledger that slices time into policy.SlotLength
// slots in policy.Location.
func NewQuotaLedger(store Store, policy config.ReservationPolicy, defaults model.QuotaDefaults) *QuotaLedger {
	l := &QuotaLedger{store: store, defaults: defaults, slot: policy.SlotLength, loc: policy.Location}
	if l.slot <= 0 {
		l.slot = 30 * time.Minute
	}
	if l.loc == nil {
		l.loc = time.UTC
	}
	return l
}

// SlotFor returns the quota key a start time falls into.
func (l *QuotaLedger) SlotFor(restaurantID uint64, start time.Time) model.QuotaKey {
	local := start.In(l.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, l.loc)
	offset := local.Sub(midnight)
	offset -= offset % l.slot
	h, m := int(offset/time.Hour), int(offset%time.Hour/time.Minute)
	return model.QuotaKey{
		RestaurantID: restaurantID,
		Date:         local.Format("2006-01-02"),
		TimeSlot:     fmt.Sprintf("%02d:%02d", h, m),
	}
}

// CheckAvailability fails with a Capacity error when the slot cannot take
// another party of partySize. A slot with no quota row is available; the
// defaults are only enforced by Commit.
func (l *QuotaLedger) CheckAvailability(ctx context.Context, key model.QuotaKey, partySize int) error {
	return l.check(ctx, key, partySize, 0)
}

// CheckAvailabilityExcluding is CheckAvailability for a reservation that
// already holds ownParty seats in the same slot.
func (l *QuotaLedger) CheckAvailabilityExcluding(ctx context.Context, key model.QuotaKey, partySize, ownParty int) error {
	return l.check(ctx, key, partySize, ownParty)
}

func (l *QuotaLedger) check(ctx context.Context, key model.QuotaKey, partySize, ownParty int) error {
	q, err := l.store.GetQuota(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return internalError("load quota", err)
	}
	if ownParty > 0 {
		q.Apply(ownParty, model.QuotaRemove)
	}
	return classifyQuota(q, partySize)
}

// Commit applies ADD or REMOVE for one reservation within tx.
func (l *QuotaLedger) Commit(ctx context.Context, tx repository.Tx, key model.QuotaKey, partySize int, dir model.QuotaDirection, now time.Time) error {
	err := tx.AdjustQuota(ctx, key, partySize, dir, l.defaults, now)
	if err == nil {
		return nil
	}
	var qe *repository.QuotaExhaustedError
	if errors.As(err, &qe) {
		if cerr := classifyQuota(&qe.Quota, partySize); cerr != nil {
			return cerr
		}
		return capacityError(CodeNoSuitableCapacity, "slot capacity exhausted")
	}
	return internalError("quota "+dir.String(), err)
}

// Quota returns the current row for key, or a zero-usage row carrying the
// defaults when the slot was never booked.
func (l *QuotaLedger) Quota(ctx context.Context, key model.QuotaKey) (*model.ReservationQuota, error) {
	q, err := l.store.GetQuota(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return l.fresh(key), nil
	}
	if err != nil {
		return nil, internalError("load quota", err)
	}
	return q, nil
}

func (l *QuotaLedger) fresh(key model.QuotaKey) *model.ReservationQuota {
	return &model.ReservationQuota{
		RestaurantID:        key.RestaurantID,
		Date:                key.Date,
		TimeSlot:            key.TimeSlot,
		MaxReservations:     l.defaults.MaxReservations,
		MaxCapacity:         l.defaults.MaxCapacity,
		ThresholdPercentage: l.defaults.ThresholdPercentage,
	}
}

func classifyQuota(q *model.ReservationQuota, partySize int) error {
	if !q.HasAvailability() {
		return capacityError(CodeRestaurantFullyBooked,
			fmt.Sprintf("restaurant fully booked on %s at %s", q.Date, q.TimeSlot))
	}
	if !q.CanAccommodateParty(partySize) {
		return capacityError(CodeNoSuitableCapacity,
			fmt.Sprintf("only %d seats left on %s at %s", max(q.MaxCapacity-q.CurrentCapacity, 0), q.Date, q.TimeSlot))
	}
	return nil
}
