package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/table-reservation/internal/correlation"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/queue"
)

// releaseTimeout bounds the publish of a release notification.
const releaseTimeout = 5 * time.Second

// TableResolver obtains a table for a reservation from the restaurant
// domain and hands it back when the reservation no longer needs it. It
// only changes the in-memory reservation; persisting TableID is up to the
// caller's transaction.
type TableResolver struct {
	pub     queue.Publisher
	reg     *correlation.Registry[queue.FindAvailableTableResult]
	cache   *TableStatusCache
	clock   clockwork.Clock
	timeout time.Duration
}

// NewTableResolver returns a resolver publishing on pub.
func NewTableResolver(pub queue.Publisher, reg *correlation.Registry[queue.FindAvailableTableResult], cache *TableStatusCache, clock clockwork.Clock, timeout time.Duration) *TableResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TableResolver{pub: pub, reg: reg, cache: cache, clock: clock, timeout: timeout}
}

// FindAndAssign asks for a table seating the party for the reservation's
// interval. It reports true when a table was set on res. A negative answer
// returns false with a nil error; an unanswered request returns a Timeout
// error. Reservations that already hold a table, or are past CONFIRMED,
// are left alone.
func (t *TableResolver) FindAndAssign(ctx context.Context, res *model.Reservation) (bool, error) {
	if res.HasTable() {
		return true, nil
	}
	if res.Status != model.StatusPending && res.Status != model.StatusConfirmed {
		return false, nil
	}
	key := uuid.NewString()
	req := queue.FindAvailableTable{
		CorrelationID: key,
		ReservationID: res.ID,
		RestaurantID:  res.RestaurantID,
		StartTime:     res.StartTime,
		EndTime:       res.EndTime(),
		PartySize:     res.PartySize,
	}
	reply, err := roundTrip(ctx, t.reg, t.pub, queue.TopicFindAvailableTable, key, req, t.timeout, CodeTableSearchTimeout)
	if err != nil {
		return false, err
	}
	if !reply.Success || len(reply.TableIDs) == 0 {
		log.Printf("tables: none found reservation=%s restaurant=%d party=%d reason=%q",
			res.ID, res.RestaurantID, res.PartySize, reply.ErrorMessage)
		return false, nil
	}
	tableID := reply.TableIDs[0]
	res.TableID = &tableID
	t.cache.Set(ctx, tableID, model.TableReserved)
	t.notify(ctx, res.RestaurantID, tableID, model.TableAvailable, model.TableReserved, res.ID)
	return true, nil
}

// Release marks the reservation's table AVAILABLE and clears TableID. It
// never waits for the restaurant side and ignores caller cancellation.
func (t *TableResolver) Release(ctx context.Context, res *model.Reservation) {
	if !res.HasTable() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	tableID := *res.TableID
	old := t.cache.Get(ctx, tableID)
	if old == model.TableUnknown {
		old = model.TableReserved
	}
	t.cache.Set(ctx, tableID, model.TableAvailable)
	t.notify(ctx, res.RestaurantID, tableID, old, model.TableAvailable, res.ID)
	res.TableID = nil
}

func (t *TableResolver) notify(ctx context.Context, restaurantID, tableID uint64, from, to model.TableStatus, reservationID string) {
	evt := queue.TableStatusChanged{
		RestaurantID:  restaurantID,
		TableID:       tableID,
		OldStatus:     string(from),
		NewStatus:     string(to),
		ReservationID: reservationID,
		OccurredAt:    t.clock.Now().UTC(),
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := publishJSON(pubCtx, t.pub, queue.TopicTableStatusChanged, evt); err != nil {
		log.Printf("tables: notify failed table=%d %s->%s: %v", tableID, from, to, err)
	}
}

// HandleFindAvailableTableResult consumes table.find.reply.
func (t *TableResolver) HandleFindAvailableTableResult() queue.HandlerFunc {
	return replyHandler(t.reg, func(r queue.FindAvailableTableResult) string { return r.CorrelationID })
}
