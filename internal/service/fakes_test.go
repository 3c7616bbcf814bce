package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/correlation"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/queue"
	"github.com/iliyamo/table-reservation/internal/repository"
)

// fakeStore is an in-memory Store. Transactions are serialized by a single
// mutex and rolled back by restoring a snapshot.
type fakeStore struct {
	mu           sync.Mutex
	reservations map[string]*model.Reservation
	quotas       map[model.QuotaKey]model.ReservationQuota
	history      []model.ReservationHistory
	failInsert   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		reservations: make(map[string]*model.Reservation),
		quotas:       make(map[model.QuotaKey]model.ReservationQuota),
	}
}

func (s *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resSnap := make(map[string]*model.Reservation, len(s.reservations))
	for k, v := range s.reservations {
		resSnap[k] = v.Clone()
	}
	quotaSnap := make(map[model.QuotaKey]model.ReservationQuota, len(s.quotas))
	for k, v := range s.quotas {
		quotaSnap[k] = v
	}
	histLen := len(s.history)

	if err := fn(ctx, &fakeTx{s: s}); err != nil {
		s.reservations = resSnap
		s.quotas = quotaSnap
		s.history = s.history[:histLen]
		return err
	}
	return nil
}

func (s *fakeStore) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *fakeStore) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	return s.list(func(r *model.Reservation) bool {
		return r.Status == model.StatusPending && r.ConfirmationDeadline.Before(now)
	}, limit), nil
}

func (s *fakeStore) ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Reservation, error) {
	return s.list(func(r *model.Reservation) bool {
		return r.Status == model.StatusConfirmed && r.EndTime().Before(cutoff)
	}, limit), nil
}

func (s *fakeStore) list(match func(*model.Reservation) bool, limit int) []*model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Reservation
	for _, r := range s.reservations {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *fakeStore) GetQuota(ctx context.Context, key model.QuotaKey) (*model.ReservationQuota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotas[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &q, nil
}

func (s *fakeStore) ListHistory(ctx context.Context, reservationID string) ([]model.ReservationHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ReservationHistory
	for _, h := range s.history {
		if h.ReservationID == reservationID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *fakeStore) put(r *model.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = r.Clone()
}

func (s *fakeStore) putQuota(q model.ReservationQuota) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotas[q.Key()] = q
}

func (s *fakeStore) quota(key model.QuotaKey) (model.ReservationQuota, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotas[key]
	return q, ok
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations)
}

// fakeTx runs with fakeStore.mu held.
type fakeTx struct{ s *fakeStore }

func (t *fakeTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	if t.s.failInsert != nil {
		return t.s.failInsert
	}
	if _, ok := t.s.reservations[r.ID]; ok {
		return repository.ErrConflict
	}
	t.s.reservations[r.ID] = r.Clone()
	return nil
}

func (t *fakeTx) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	if _, ok := t.s.reservations[r.ID]; !ok {
		return repository.ErrNotFound
	}
	t.s.reservations[r.ID] = r.Clone()
	return nil
}

func (t *fakeTx) LockReservation(ctx context.Context, id string) (*model.Reservation, error) {
	r, ok := t.s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.Clone(), nil
}

func (t *fakeTx) AppendHistory(ctx context.Context, h *model.ReservationHistory) error {
	h.ID = uint64(len(t.s.history) + 1)
	t.s.history = append(t.s.history, *h)
	return nil
}

func (t *fakeTx) AdjustQuota(ctx context.Context, key model.QuotaKey, partySize int, dir model.QuotaDirection, defaults model.QuotaDefaults, now time.Time) error {
	q, ok := t.s.quotas[key]
	switch dir {
	case model.QuotaAdd:
		if !ok {
			q = model.ReservationQuota{
				RestaurantID:        key.RestaurantID,
				Date:                key.Date,
				TimeSlot:            key.TimeSlot,
				MaxReservations:     defaults.MaxReservations,
				MaxCapacity:         defaults.MaxCapacity,
				ThresholdPercentage: defaults.ThresholdPercentage,
				CreatedAt:           now,
			}
			t.s.quotas[key] = q
		}
		if !q.HasAvailability() || !q.CanAccommodateParty(partySize) {
			return &repository.QuotaExhaustedError{Quota: q, PartySize: partySize}
		}
	case model.QuotaRemove:
		if !ok {
			return nil
		}
	}
	q.Apply(partySize, dir)
	q.UpdatedAt = now
	t.s.quotas[key] = q
	return nil
}

type published struct {
	topic string
	body  []byte
}

// fakeBroker records every publish and answers requests through
// responders, delivering replies asynchronously to subscribed handlers.
type fakeBroker struct {
	mu         sync.Mutex
	msgs       []published
	handlers   map[string]queue.HandlerFunc
	responders map[string]func(body []byte) (string, any, bool)
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		handlers:   make(map[string]queue.HandlerFunc),
		responders: make(map[string]func([]byte) (string, any, bool)),
	}
}

func (b *fakeBroker) Publish(ctx context.Context, topic string, body []byte) error {
	b.mu.Lock()
	b.msgs = append(b.msgs, published{topic: topic, body: append([]byte(nil), body...)})
	respond := b.responders[topic]
	b.mu.Unlock()
	if respond == nil {
		return nil
	}
	replyTopic, reply, ok := respond(body)
	if !ok {
		return nil
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	b.mu.Lock()
	h := b.handlers[replyTopic]
	b.mu.Unlock()
	if h != nil {
		go func() { _ = h(context.Background(), data) }()
	}
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, topic string, handler queue.HandlerFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBroker) respond(topic string, fn func(body []byte) (string, any, bool)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responders[topic] = fn
}

func (b *fakeBroker) topics(topic string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out [][]byte
	for _, m := range b.msgs {
		if m.topic == topic {
			out = append(out, m.body)
		}
	}
	return out
}

func (b *fakeBroker) tableChanges(t *testing.T) []queue.TableStatusChanged {
	t.Helper()
	var out []queue.TableStatusChanged
	for _, body := range b.topics(queue.TopicTableStatusChanged) {
		var evt queue.TableStatusChanged
		require.NoError(t, json.Unmarshal(body, &evt))
		out = append(out, evt)
	}
	return out
}

// restaurantSide is the scripted behaviour of the remote restaurant domain.
type restaurantSide struct {
	mu          sync.Mutex
	exists      bool
	active      bool
	hoursValid  bool
	hoursReason string
	noTables    bool
	silent      bool
	nextTable   uint64
}

var (
	testStart = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	dinner    = time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)
)

type harness struct {
	store   *fakeStore
	broker  *fakeBroker
	clock   *clockwork.FakeClock
	remote  *restaurantSide
	cache   *TableStatusCache
	ledger  *QuotaLedger
	manager *Manager
}

func newHarness(t *testing.T, defaults model.QuotaDefaults) *harness {
	t.Helper()
	h := &harness{
		store:  newFakeStore(),
		broker: newFakeBroker(),
		clock:  clockwork.NewFakeClockAt(testStart),
		remote: &restaurantSide{exists: true, active: true, hoursValid: true, nextTable: 100},
	}
	policy := config.DefaultReservationPolicy()
	wall := clockwork.NewRealClock()
	restaurants := correlation.NewRegistry[queue.RestaurantValidation]("restaurant-validation", wall, time.Minute)
	hours := correlation.NewRegistry[queue.TimeValidation]("hours-validation", wall, time.Minute)
	tables := correlation.NewRegistry[queue.FindAvailableTableResult]("table-search", wall, time.Minute)

	gw := NewGateway(h.broker, restaurants, hours, 200*time.Millisecond)
	h.cache = NewTableStatusCache(nil, config.TableCacheConfig{})
	resolver := NewTableResolver(h.broker, tables, h.cache, h.clock, 200*time.Millisecond)
	h.ledger = NewQuotaLedger(h.store, policy, defaults)
	h.manager = NewManager(ManagerDeps{
		Store:       h.store,
		Gateway:     gw,
		Tables:      resolver,
		Quotas:      h.ledger,
		Events:      NewEventPublisher(h.broker, h.clock),
		Policy:      policy,
		Clock:       h.clock,
		MaxInFlight: 8,
	})

	ctx := context.Background()
	require.NoError(t, h.broker.Subscribe(ctx, queue.TopicRestaurantValidation, gw.HandleRestaurantValidation()))
	require.NoError(t, h.broker.Subscribe(ctx, queue.TopicTimeValidation, gw.HandleTimeValidation()))
	require.NoError(t, h.broker.Subscribe(ctx, queue.TopicFindAvailableTableReply, resolver.HandleFindAvailableTableResult()))

	r := h.remote
	h.broker.respond(queue.TopicValidateRestaurant, func(body []byte) (string, any, bool) {
		var req queue.ValidateRestaurant
		_ = json.Unmarshal(body, &req)
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.silent {
			return "", nil, false
		}
		return queue.TopicRestaurantValidation, queue.RestaurantValidation{
			CorrelationID: req.CorrelationID, Exists: r.exists, Active: r.active,
		}, true
	})
	h.broker.respond(queue.TopicValidateReservationTime, func(body []byte) (string, any, bool) {
		var req queue.ValidateReservationTime
		_ = json.Unmarshal(body, &req)
		r.mu.Lock()
		defer r.mu.Unlock()
		return queue.TopicTimeValidation, queue.TimeValidation{
			CorrelationID: req.CorrelationID, Valid: r.hoursValid, ErrorMessage: r.hoursReason,
		}, true
	})
	h.broker.respond(queue.TopicFindAvailableTable, func(body []byte) (string, any, bool) {
		var req queue.FindAvailableTable
		_ = json.Unmarshal(body, &req)
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.noTables {
			return queue.TopicFindAvailableTableReply, queue.FindAvailableTableResult{
				CorrelationID: req.CorrelationID, Success: false, ErrorMessage: "no table seats the party",
			}, true
		}
		r.nextTable++
		return queue.TopicFindAvailableTableReply, queue.FindAvailableTableResult{
			CorrelationID: req.CorrelationID, Success: true, TableIDs: []uint64{r.nextTable},
		}, true
	})
	return h
}

func (h *harness) set(fn func(r *restaurantSide)) {
	h.remote.mu.Lock()
	defer h.remote.mu.Unlock()
	fn(h.remote)
}

func createRequest(start time.Time, party int) CreateRequest {
	return CreateRequest{
		UserID:        42,
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		RestaurantID:  7,
		StartTime:     start,
		PartySize:     party,
	}
}

func defaultQuota() model.QuotaDefaults {
	return model.QuotaDefaults{MaxReservations: 20, MaxCapacity: 80}
}
