package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/semaphore"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/repository"
)

// ReasonDeadlineExpired is recorded on reservations cancelled by the sweep.
const ReasonDeadlineExpired = "Confirmation deadline expired"

const defaultSweepBatch = 200

// maxReasonLength is the width of the cancellation_reason column.
const maxReasonLength = 255

// CreateRequest is the input of Manager.Create. At least one of
// CustomerPhone and CustomerEmail is required. A zero Duration means the
// policy default.
type CreateRequest struct {
	UserID          uint64
	CustomerName    string    `validate:"required,max=120"`
	CustomerPhone   string    `validate:"omitempty,e164"`
	CustomerEmail   string    `validate:"omitempty,email,max=255"`
	RestaurantID    uint64    `validate:"required"`
	StartTime       time.Time `validate:"required"`
	Duration        time.Duration
	PartySize       int    `validate:"required,gt=0"`
	SpecialRequests string `validate:"max=1000"`
	Actor           string
}

// UpdateRequest changes the timing or size of a reservation. Nil fields
// keep their current value.
type UpdateRequest struct {
	StartTime       *time.Time
	Duration        *time.Duration
	PartySize       *int    `validate:"omitempty,gt=0"`
	SpecialRequests *string `validate:"omitempty,max=1000"`
	Actor           string
}

// SweepResult counts what one sweep changed.
type SweepResult struct {
	Expired   int
	Completed int
}

// ManagerDeps are the collaborators of a Manager.
type ManagerDeps struct {
	Store   Store
	Gateway *Gateway
	Tables  *TableResolver
	Quotas  *QuotaLedger
	Events  *EventPublisher
	Policy  config.ReservationPolicy
	Clock   clockwork.Clock
	// MaxInFlight bounds concurrently executing commands.
	MaxInFlight int
}

// Manager runs the reservation state machine. Each command validates,
// consults the restaurant domain and the quota ledger, obtains a table and
// then persists everything it changed in one transaction. A table obtained
// for a command that does not commit is released again.
type Manager struct {
	store    Store
	gateway  *Gateway
	tables   *TableResolver
	quotas   *QuotaLedger
	events   *EventPublisher
	policy   config.ReservationPolicy
	clock    clockwork.Clock
	sem      *semaphore.Weighted
	validate *validator.Validate
	batch    int
}

// NewManager wires a Manager from deps.
func NewManager(deps ManagerDeps) *Manager {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	inFlight := deps.MaxInFlight
	if inFlight <= 0 {
		inFlight = 64
	}
	return &Manager{
		store:    deps.Store,
		gateway:  deps.Gateway,
		tables:   deps.Tables,
		quotas:   deps.Quotas,
		events:   deps.Events,
		policy:   deps.Policy,
		clock:    clock,
		sem:      semaphore.NewWeighted(int64(inFlight)),
		validate: validator.New(),
		batch:    defaultSweepBatch,
	}
}

func (m *Manager) acquire(ctx context.Context) (func(), error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, timeoutError(CodeBusy, "too many reservations in flight", err)
	}
	return func() { m.sem.Release(1) }, nil
}

// Create books a table. Nothing is persisted unless a table was obtained
// and the quota increment succeeded.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*model.Reservation, error) {
	release, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := m.validateCreate(req); err != nil {
		return nil, err
	}
	if req.Duration == 0 {
		req.Duration = m.policy.DefaultDuration
	}
	if err := m.gateway.ValidateRestaurantExists(ctx, req.RestaurantID); err != nil {
		return nil, err
	}
	now := m.clock.Now()
	if err := m.checkPolicy(req.StartTime, req.PartySize, now); err != nil {
		return nil, err
	}
	if err := m.gateway.ValidateOperatingHours(ctx, req.RestaurantID, req.StartTime); err != nil {
		return nil, err
	}
	key := m.quotas.SlotFor(req.RestaurantID, req.StartTime)
	if err := m.quotas.CheckAvailability(ctx, key, req.PartySize); err != nil {
		return nil, err
	}

	now = m.clock.Now()
	res := &model.Reservation{
		ID:                   uuid.NewString(),
		UserID:               req.UserID,
		CustomerName:         strings.TrimSpace(req.CustomerName),
		CustomerPhone:        optional(req.CustomerPhone),
		CustomerEmail:        optional(req.CustomerEmail),
		RestaurantID:         req.RestaurantID,
		StartTime:            req.StartTime.UTC(),
		Duration:             req.Duration,
		PartySize:            req.PartySize,
		Status:               model.StatusPending,
		ConfirmationDeadline: now.Add(m.policy.ConfirmationWindow).UTC(),
		SpecialRequests:      optional(req.SpecialRequests),
		CreatedAt:            now.UTC(),
		UpdatedAt:            now.UTC(),
	}
	ok, err := m.tables.FindAndAssign(ctx, res)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, capacityError(CodeNoSuitableTables, "no suitable table available")
	}

	actor := actorOf(req.Actor, req.UserID)
	err = m.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := m.quotas.Commit(ctx, tx, key, res.PartySize, model.QuotaAdd, now); err != nil {
			return err
		}
		if err := tx.InsertReservation(ctx, res); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, &model.ReservationHistory{
			ReservationID: res.ID,
			Action:        model.ActionCreated,
			Detail:        fmt.Sprintf("party of %d at %s", res.PartySize, res.StartTime.Format(time.RFC3339)),
			Actor:         actor,
			CreatedAt:     now.UTC(),
		})
	})
	if err != nil {
		m.tables.Release(ctx, res)
		log.Printf("reservations: create failed restaurant=%d party=%d err=%v", req.RestaurantID, req.PartySize, err)
		return nil, internalError("create reservation", err)
	}
	log.Printf("reservations: created id=%s restaurant=%d table=%d", res.ID, res.RestaurantID, *res.TableID)
	m.events.Created(ctx, res)
	return res.Clone(), nil
}

// Confirm moves a PENDING reservation to CONFIRMED before its deadline.
func (m *Manager) Confirm(ctx context.Context, id, actor string) (*model.Reservation, error) {
	release, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.checkConfirmable(res, m.clock.Now()); err != nil {
		return nil, err
	}

	// A reservation without a table gets one more chance here.
	acquired := false
	if !res.HasTable() {
		ok, err := m.tables.FindAndAssign(ctx, res)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, capacityError(CodeNoSuitableTables, "no suitable table available")
		}
		acquired = true
	}

	var out *model.Reservation
	err = m.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := m.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		now := m.clock.Now()
		if err := m.checkConfirmable(cur, now); err != nil {
			return err
		}
		if !cur.HasTable() {
			cur.TableID = res.TableID
		} else if acquired {
			acquired = false
			m.tables.Release(ctx, res)
		}
		cur.Status = model.StatusConfirmed
		cur.ConfirmedAt = utcPtr(now)
		cur.UpdatedAt = now.UTC()
		if err := tx.UpdateReservation(ctx, cur); err != nil {
			return err
		}
		out = cur
		return tx.AppendHistory(ctx, &model.ReservationHistory{
			ReservationID: id,
			Action:        model.ActionConfirmed,
			Detail:        "confirmed",
			Actor:         actor,
			CreatedAt:     now.UTC(),
		})
	})
	if err != nil {
		if acquired {
			m.tables.Release(ctx, res)
		}
		return nil, internalError("confirm reservation", err)
	}
	m.events.Confirmed(ctx, out)
	return out.Clone(), nil
}

func (m *Manager) checkConfirmable(res *model.Reservation, now time.Time) error {
	if res.Status != model.StatusPending {
		return conflictError(fmt.Sprintf("cannot confirm a %s reservation", res.Status))
	}
	if now.After(res.ConfirmationDeadline) {
		return validationError(CodeDeadlinePassed, "confirmation deadline has passed")
	}
	return nil
}

// Cancel cancels a PENDING or CONFIRMED reservation, returns its seats to
// the quota and releases its table.
func (m *Manager) Cancel(ctx context.Context, id, actor, reason string) (*model.Reservation, error) {
	release, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return nil, validationError(CodeInvalidRequest, fmt.Sprintf("reason must be at most %d characters", maxReasonLength))
	}
	if reason == "" {
		reason = truncate("cancelled by "+actor, maxReasonLength)
	}
	res, prev, err := m.cancel(ctx, id, actor, reason, nil)
	if err != nil {
		return nil, err
	}
	m.afterCancel(ctx, res, prev, reason)
	return res, nil
}

func (m *Manager) afterCancel(ctx context.Context, res *model.Reservation, prev model.Status, reason string) {
	log.Printf("reservations: cancelled id=%s from=%s reason=%q", res.ID, prev, reason)
	m.events.Cancelled(ctx, res, prev, reason)
}

// cancel runs the cancel transaction and releases the table afterwards.
// guard, when set, may veto the cancellation after the row is locked; a
// veto returns errSkip.
func (m *Manager) cancel(ctx context.Context, id, actor, reason string, guard func(*model.Reservation) error) (*model.Reservation, model.Status, error) {
	var (
		out  *model.Reservation
		held *model.Reservation
		prev model.Status
	)
	err := m.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := m.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(cur); err != nil {
				return err
			}
		}
		if !model.CanTransition(cur.Status, model.StatusCancelled) {
			return conflictError(fmt.Sprintf("cannot cancel a %s reservation", cur.Status))
		}
		now := m.clock.Now()
		prev = cur.Status
		held = cur.Clone()
		key := m.quotas.SlotFor(cur.RestaurantID, cur.StartTime)
		if err := m.quotas.Commit(ctx, tx, key, cur.PartySize, model.QuotaRemove, now); err != nil {
			return err
		}
		cur.Status = model.StatusCancelled
		cur.CancelledAt = utcPtr(now)
		cur.CancellationReason = &reason
		cur.TableID = nil
		cur.UpdatedAt = now.UTC()
		if err := tx.UpdateReservation(ctx, cur); err != nil {
			return err
		}
		out = cur
		return tx.AppendHistory(ctx, &model.ReservationHistory{
			ReservationID: id,
			Action:        model.ActionCancelled,
			Detail:        fmt.Sprintf("from %s: %s", prev, reason),
			Actor:         actor,
			CreatedAt:     now.UTC(),
		})
	})
	if err != nil {
		return nil, "", internalError("cancel reservation", err)
	}
	m.tables.Release(ctx, held)
	return out.Clone(), prev, nil
}

// Update changes start time, duration, party size or special requests of
// a PENDING or CONFIRMED reservation. A timing change moves the quota from
// the old slot to the new one and swaps the table; on any failure the
// stored reservation is left as it was.
func (m *Manager) Update(ctx context.Context, id string, req UpdateRequest) (*model.Reservation, error) {
	release, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := m.validate.Struct(req); err != nil {
		return nil, validationError(CodeInvalidRequest, describeValidation(err))
	}
	if req.Duration != nil && !wholeMinutes(*req.Duration) {
		return nil, validationError(CodeInvalidRequest, errDurationMessage)
	}
	cur, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !updatable(cur.Status) {
		return nil, conflictError(fmt.Sprintf("cannot update a %s reservation", cur.Status))
	}

	next := cur.Clone()
	if req.StartTime != nil {
		next.StartTime = req.StartTime.UTC()
	}
	if req.Duration != nil {
		next.Duration = *req.Duration
	}
	if req.PartySize != nil {
		next.PartySize = *req.PartySize
	}
	if req.SpecialRequests != nil {
		next.SpecialRequests = optional(*req.SpecialRequests)
	}
	actor := actorOf(req.Actor, cur.UserID)
	timing := !next.StartTime.Equal(cur.StartTime) || next.Duration != cur.Duration || next.PartySize != cur.PartySize
	if !timing {
		return m.updateDetails(ctx, cur, next, actor)
	}

	if err := m.checkPolicy(next.StartTime, next.PartySize, m.clock.Now()); err != nil {
		return nil, err
	}
	if err := m.gateway.ValidateOperatingHours(ctx, cur.RestaurantID, next.StartTime); err != nil {
		return nil, err
	}
	oldKey := m.quotas.SlotFor(cur.RestaurantID, cur.StartTime)
	newKey := m.quotas.SlotFor(cur.RestaurantID, next.StartTime)
	if oldKey == newKey {
		err = m.quotas.CheckAvailabilityExcluding(ctx, newKey, next.PartySize, cur.PartySize)
	} else {
		err = m.quotas.CheckAvailability(ctx, newKey, next.PartySize)
	}
	if err != nil {
		return nil, err
	}

	// Acquire the new table before giving anything up.
	next.TableID = nil
	ok, err := m.tables.FindAndAssign(ctx, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, capacityError(CodeNoSuitableTables, "no suitable table available for the new time")
	}

	detail := fmt.Sprintf("%s party %d -> %s party %d",
		m.clockLabel(cur.StartTime), cur.PartySize, m.clockLabel(next.StartTime), next.PartySize)
	var (
		out  *model.Reservation
		prev *model.Reservation
	)
	err = m.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		locked, err := m.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if !updatable(locked.Status) {
			return conflictError(fmt.Sprintf("cannot update a %s reservation", locked.Status))
		}
		now := m.clock.Now()
		lockedKey := m.quotas.SlotFor(locked.RestaurantID, locked.StartTime)
		if err := m.quotas.Commit(ctx, tx, lockedKey, locked.PartySize, model.QuotaRemove, now); err != nil {
			return err
		}
		if err := m.quotas.Commit(ctx, tx, newKey, next.PartySize, model.QuotaAdd, now); err != nil {
			return err
		}
		prev = locked.Clone()
		upd := locked.Clone()
		upd.StartTime = next.StartTime
		upd.Duration = next.Duration
		upd.PartySize = next.PartySize
		upd.SpecialRequests = next.SpecialRequests
		upd.TableID = next.TableID
		upd.UpdatedAt = now.UTC()
		if err := tx.UpdateReservation(ctx, upd); err != nil {
			return err
		}
		out = upd
		return tx.AppendHistory(ctx, &model.ReservationHistory{
			ReservationID: id,
			Action:        model.ActionModified,
			Detail:        detail,
			Actor:         actor,
			CreatedAt:     now.UTC(),
		})
	})
	if err != nil {
		// The remote side may hand back the table the reservation already holds.
		if !cur.HasTable() || *cur.TableID != *next.TableID {
			m.tables.Release(ctx, next)
		}
		return nil, internalError("update reservation", err)
	}
	if prev.HasTable() && *prev.TableID != *out.TableID {
		m.tables.Release(ctx, prev)
	}
	log.Printf("reservations: modified id=%s %s", id, detail)
	m.events.Modified(ctx, out, detail)
	return out.Clone(), nil
}

// updateDetails persists changes that do not affect quota or table.
func (m *Manager) updateDetails(ctx context.Context, cur, next *model.Reservation, actor string) (*model.Reservation, error) {
	if equalStrings(cur.SpecialRequests, next.SpecialRequests) {
		return cur, nil
	}
	var out *model.Reservation
	err := m.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		locked, err := m.lock(ctx, tx, cur.ID)
		if err != nil {
			return err
		}
		if !updatable(locked.Status) {
			return conflictError(fmt.Sprintf("cannot update a %s reservation", locked.Status))
		}
		now := m.clock.Now()
		locked.SpecialRequests = next.SpecialRequests
		locked.UpdatedAt = now.UTC()
		if err := tx.UpdateReservation(ctx, locked); err != nil {
			return err
		}
		out = locked
		return tx.AppendHistory(ctx, &model.ReservationHistory{
			ReservationID: cur.ID,
			Action:        model.ActionModified,
			Detail:        "special requests changed",
			Actor:         actor,
			CreatedAt:     now.UTC(),
		})
	})
	if err != nil {
		return nil, internalError("update reservation", err)
	}
	m.events.Modified(ctx, out, "special requests changed")
	return out.Clone(), nil
}

// MarkNoShow records that a CONFIRMED party never arrived. The table is
// released; the seats stay counted in the quota.
func (m *Manager) MarkNoShow(ctx context.Context, id, actor string) (*model.Reservation, error) {
	release, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := m.close(ctx, id, model.StatusNoShow, actor, "party did not arrive", nil)
	if err != nil {
		return nil, err
	}
	m.events.NoShow(ctx, res)
	return res, nil
}

// close moves a reservation to COMPLETED or NO_SHOW and releases its
// table. Quota is not touched.
func (m *Manager) close(ctx context.Context, id string, to model.Status, actor, detail string, guard func(*model.Reservation) error) (*model.Reservation, error) {
	var (
		out  *model.Reservation
		held *model.Reservation
	)
	err := m.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := m.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(cur); err != nil {
				return err
			}
		}
		if !model.CanTransition(cur.Status, to) {
			return conflictError(fmt.Sprintf("cannot mark a %s reservation %s", cur.Status, to))
		}
		now := m.clock.Now()
		held = cur.Clone()
		cur.Status = to
		cur.TableID = nil
		cur.UpdatedAt = now.UTC()
		action := model.ActionNoShow
		if to == model.StatusCompleted {
			cur.CompletedAt = utcPtr(now)
			action = model.ActionCompleted
		}
		if err := tx.UpdateReservation(ctx, cur); err != nil {
			return err
		}
		out = cur
		return tx.AppendHistory(ctx, &model.ReservationHistory{
			ReservationID: id,
			Action:        action,
			Detail:        detail,
			Actor:         actor,
			CreatedAt:     now.UTC(),
		})
	})
	if err != nil {
		return nil, internalError("close reservation", err)
	}
	m.tables.Release(ctx, held)
	return out.Clone(), nil
}

// errSkip aborts a sweep transaction for a row that no longer qualifies.
var errSkip = errors.New("skip")

// Sweep expires PENDING reservations past their confirmation deadline and
// completes CONFIRMED reservations that ended more than the grace period
// ago. Failures on one reservation do not stop the others.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	var (
		result SweepResult
		errs   []error
	)
	now := m.clock.Now()

	expired, err := m.store.ListExpiredPending(ctx, now, m.batch)
	if err != nil {
		return result, internalError("list expired reservations", err)
	}
	for _, r := range expired {
		res, prev, err := m.cancel(ctx, r.ID, model.ActorSystem, ReasonDeadlineExpired, func(cur *model.Reservation) error {
			if cur.Status != model.StatusPending || !now.After(cur.ConfirmationDeadline) {
				return errSkip
			}
			return nil
		})
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			log.Printf("sweep: expire id=%s failed: %v", r.ID, err)
			errs = append(errs, err)
			continue
		}
		result.Expired++
		m.afterCancel(ctx, res, prev, ReasonDeadlineExpired)
	}

	cutoff := now.Add(-m.policy.CompletionGrace)
	ended, err := m.store.ListConfirmedEndedBefore(ctx, cutoff, m.batch)
	if err != nil {
		errs = append(errs, internalError("list ended reservations", err))
		return result, errors.Join(errs...)
	}
	for _, r := range ended {
		res, err := m.close(ctx, r.ID, model.StatusCompleted, model.ActorSystem, "sitting ended", func(cur *model.Reservation) error {
			if cur.Status != model.StatusConfirmed || !cur.EndTime().Before(cutoff) {
				return errSkip
			}
			return nil
		})
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			log.Printf("sweep: complete id=%s failed: %v", r.ID, err)
			errs = append(errs, err)
			continue
		}
		result.Completed++
		m.events.Completed(ctx, res)
	}
	if result.Expired > 0 || result.Completed > 0 {
		log.Printf("sweep: expired=%d completed=%d", result.Expired, result.Completed)
	}
	return result, errors.Join(errs...)
}

// Get returns one reservation.
func (m *Manager) Get(ctx context.Context, id string) (*model.Reservation, error) {
	return m.load(ctx, id)
}

// History returns the audit trail of a reservation.
func (m *Manager) History(ctx context.Context, id string) ([]model.ReservationHistory, error) {
	if _, err := m.load(ctx, id); err != nil {
		return nil, err
	}
	h, err := m.store.ListHistory(ctx, id)
	if err != nil {
		return nil, internalError("list history", err)
	}
	return h, nil
}

// Quota returns the ledger row of the slot containing at.
func (m *Manager) Quota(ctx context.Context, restaurantID uint64, at time.Time) (*model.ReservationQuota, error) {
	return m.quotas.Quota(ctx, m.quotas.SlotFor(restaurantID, at))
}

func (m *Manager) load(ctx context.Context, id string) (*model.Reservation, error) {
	res, err := m.store.GetReservation(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError(CodeReservationNotFound, "reservation "+id+" not found")
	}
	if err != nil {
		return nil, internalError("load reservation", err)
	}
	return res, nil
}

func (m *Manager) lock(ctx context.Context, tx repository.Tx, id string) (*model.Reservation, error) {
	res, err := tx.LockReservation(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError(CodeReservationNotFound, "reservation "+id+" not found")
	}
	return res, err
}

func (m *Manager) validateCreate(req CreateRequest) error {
	if err := m.validate.Struct(req); err != nil {
		return validationError(CodeInvalidRequest, describeValidation(err))
	}
	if strings.TrimSpace(req.CustomerPhone) == "" && strings.TrimSpace(req.CustomerEmail) == "" {
		return validationError(CodeInvalidRequest, "a phone number or an email address is required")
	}
	if req.Duration != 0 && !wholeMinutes(req.Duration) {
		return validationError(CodeInvalidRequest, errDurationMessage)
	}
	return nil
}

const errDurationMessage = "duration must be a positive whole number of minutes"

// wholeMinutes reports whether d is at least a minute and has no seconds
// part; durations are stored in minutes.
func wholeMinutes(d time.Duration) bool {
	return d >= time.Minute && d%time.Minute == 0
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// checkPolicy applies the local booking rules to a start time and party.
func (m *Manager) checkPolicy(start time.Time, partySize int, now time.Time) error {
	p := m.policy
	if partySize <= 0 {
		return validationError(CodeInvalidRequest, "party size must be positive")
	}
	if p.MaxPartySize > 0 && partySize > p.MaxPartySize {
		return validationError(CodePartyTooLarge, fmt.Sprintf("party size exceeds %d", p.MaxPartySize))
	}
	if start.Before(now.Add(p.MinAdvance)) {
		return validationError(CodeTooSoon, fmt.Sprintf("reservations must be made at least %s in advance", p.MinAdvance))
	}
	if p.MaxFuture > 0 && start.After(now.Add(p.MaxFuture)) {
		return validationError(CodeTooFarAhead, fmt.Sprintf("reservations cannot be made more than %s ahead", p.MaxFuture))
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	local := start.In(loc)
	tod := local.Sub(time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc))
	if tod < p.OpenFrom || tod > p.OpenUntil {
		return validationError(CodeOutsideDailyWindow, "requested time is outside the daily reservation window")
	}
	return nil
}

func (m *Manager) clockLabel(t time.Time) string {
	loc := m.policy.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

func describeValidation(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func updatable(s model.Status) bool {
	return s == model.StatusPending || s == model.StatusConfirmed
}

func actorOf(actor string, userID uint64) string {
	if actor != "" {
		return actor
	}
	if userID != 0 {
		return strconv.FormatUint(userID, 10)
	}
	return "guest"
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func equalStrings(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func utcPtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
