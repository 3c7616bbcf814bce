package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/service"
)

type stubService struct {
	res     *model.Reservation
	err     error
	created service.CreateRequest
	updated service.UpdateRequest
	calls   []string
	reason  string
	quotaAt time.Time
}

func (s *stubService) record(op string) (*model.Reservation, error) {
	s.calls = append(s.calls, op)
	return s.res, s.err
}

func (s *stubService) Create(_ context.Context, req service.CreateRequest) (*model.Reservation, error) {
	s.created = req
	return s.record("create")
}

func (s *stubService) Confirm(context.Context, string, string) (*model.Reservation, error) {
	return s.record("confirm")
}

func (s *stubService) Cancel(_ context.Context, _, _, reason string) (*model.Reservation, error) {
	s.reason = reason
	return s.record("cancel")
}

func (s *stubService) Update(_ context.Context, _ string, req service.UpdateRequest) (*model.Reservation, error) {
	s.updated = req
	return s.record("update")
}

func (s *stubService) MarkNoShow(context.Context, string, string) (*model.Reservation, error) {
	return s.record("no-show")
}

func (s *stubService) Get(context.Context, string) (*model.Reservation, error) {
	s.calls = append(s.calls, "get")
	if s.res == nil {
		return nil, &service.Error{Kind: service.KindNotFound, Code: service.CodeReservationNotFound, Message: "missing"}
	}
	return s.res, nil
}

func (s *stubService) History(context.Context, string) ([]model.ReservationHistory, error) {
	return []model.ReservationHistory{{Action: model.ActionCreated, Detail: "party of 4", Actor: "42"}}, nil
}

func (s *stubService) Quota(_ context.Context, restaurantID uint64, at time.Time) (*model.ReservationQuota, error) {
	s.quotaAt = at
	return &model.ReservationQuota{RestaurantID: restaurantID, Date: "2026-05-01", TimeSlot: "19:00", MaxReservations: 20, MaxCapacity: 80, CurrentCapacity: 8, CurrentReservations: 2}, nil
}

func sample() *model.Reservation {
	return &model.Reservation{
		ID:           "r-1",
		UserID:       42,
		CustomerName: "Ada",
		RestaurantID: 7,
		StartTime:    time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC),
		Duration:     2 * time.Hour,
		PartySize:    4,
		Status:       model.StatusPending,
	}
}

type caller struct {
	userID uint64
	role   string
}

func do(h echo.HandlerFunc, who caller, method, body string, params map[string]string, query string) *httptest.ResponseRecorder {
	e := echo.New()
	target := "/"
	if query != "" {
		target += "?" + query
	}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for k, v := range params {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}
	c.Set(middleware.CtxUserID, who.userID)
	c.Set(middleware.CtxRole, who.role)
	c.Set(middleware.CtxActor, "actor-"+who.role)
	_ = h(c)
	return rec
}

var (
	customer42 = caller{userID: 42, role: middleware.RoleCustomer}
	customer9  = caller{userID: 9, role: middleware.RoleCustomer}
	staff      = caller{role: middleware.RoleStaff}
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateMapsBody(t *testing.T) {
	svc := &stubService{res: sample()}
	h := NewReservationHandler(svc)

	body := `{"user_id":99,"customer_name":"Ada","customer_email":"ada@example.com","restaurant_id":7,
		"start_time":"2026-05-01T19:00:00Z","duration_minutes":90,"party_size":4}`
	rec := do(h.Create, customer42, http.MethodPost, body, nil, "")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(42), svc.created.UserID, "customers book for themselves")
	assert.Equal(t, 90*time.Minute, svc.created.Duration)
	assert.Equal(t, "actor-CUSTOMER", svc.created.Actor)
	out := decode(t, rec)
	assert.Equal(t, "r-1", out["id"])
	assert.Equal(t, float64(120), out["duration_minutes"])
	assert.Equal(t, "2026-05-01T21:00:00Z", out["end_time"])

	rec = do(h.Create, staff, http.MethodPost, body, nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(99), svc.created.UserID, "staff book on behalf")

	rec = do(h.Create, staff, http.MethodPost, "{bad", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&service.Error{Kind: service.KindValidation, Code: service.CodeTooSoon, Message: "soon"}, http.StatusBadRequest, service.CodeTooSoon},
		{&service.Error{Kind: service.KindNotFound, Code: service.CodeRestaurantNotFound, Message: "no"}, http.StatusNotFound, service.CodeRestaurantNotFound},
		{&service.Error{Kind: service.KindCapacity, Code: service.CodeRestaurantFullyBooked, Message: "full"}, http.StatusConflict, service.CodeRestaurantFullyBooked},
		{&service.Error{Kind: service.KindConflict, Code: service.CodeInvalidTransition, Message: "no"}, http.StatusConflict, service.CodeInvalidTransition},
		{&service.Error{Kind: service.KindTimeout, Code: service.CodeTableSearchTimeout, Message: "slow"}, http.StatusGatewayTimeout, service.CodeTableSearchTimeout},
		{&service.Error{Kind: service.KindTimeout, Code: service.CodeBusy, Message: "busy"}, http.StatusServiceUnavailable, service.CodeBusy},
		{&service.Error{Kind: service.KindInternal, Code: service.CodeInternal, Message: "db", Err: errors.New("secret dsn")}, http.StatusInternalServerError, service.CodeInternal},
		{errors.New("raw"), http.StatusInternalServerError, service.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			svc := &stubService{err: tc.err}
			rec := do(NewReservationHandler(svc).Create, customer42, http.MethodPost, `{}`, nil, "")
			assert.Equal(t, tc.status, rec.Code)
			out := decode(t, rec)
			assert.Equal(t, tc.code, out["code"])
			assert.NotContains(t, rec.Body.String(), "secret dsn")
		})
	}
}

func TestOwnership(t *testing.T) {
	svc := &stubService{res: sample()}
	h := NewReservationHandler(svc)
	params := map[string]string{"id": "r-1"}

	rec := do(h.Get, customer42, http.MethodGet, "", params, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h.Get, customer9, http.MethodGet, "", params, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h.Cancel, customer9, http.MethodPost, "", params, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, svc.calls, "cancel")

	rec = do(h.Confirm, staff, http.MethodPost, "", params, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, svc.calls, "confirm")
}

func TestCancelReasonIsOptional(t *testing.T) {
	svc := &stubService{res: sample()}
	h := NewReservationHandler(svc)
	params := map[string]string{"id": "r-1"}

	rec := do(h.Cancel, customer42, http.MethodPost, "", params, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.reason)

	rec = do(h.Cancel, customer42, http.MethodPost, `{"reason":"plans changed"}`, params, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "plans changed", svc.reason)
}

func TestUpdateConvertsDuration(t *testing.T) {
	svc := &stubService{res: sample()}
	h := NewReservationHandler(svc)

	rec := do(h.Update, customer42, http.MethodPatch, `{"duration_minutes":150,"party_size":6}`, map[string]string{"id": "r-1"}, "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.updated.Duration)
	assert.Equal(t, 150*time.Minute, *svc.updated.Duration)
	require.NotNil(t, svc.updated.PartySize)
	assert.Equal(t, 6, *svc.updated.PartySize)
	assert.Nil(t, svc.updated.StartTime)
}

func TestHistoryAndNoShow(t *testing.T) {
	svc := &stubService{res: sample()}
	h := NewReservationHandler(svc)
	params := map[string]string{"id": "r-1"}

	rec := do(h.History, customer42, http.MethodGet, "", params, "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	entries := out["history"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "CREATED", entries[0].(map[string]any)["action"])

	rec = do(h.NoShow, staff, http.MethodPost, "", params, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, svc.calls, "no-show")
}

func TestQuota(t *testing.T) {
	svc := &stubService{}
	h := NewReservationHandler(svc)

	rec := do(h.Quota, customer42, http.MethodGet, "", map[string]string{"id": "7"}, "at=2026-05-01T19:10:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 5, 1, 19, 10, 0, 0, time.UTC), svc.quotaAt)
	out := decode(t, rec)
	assert.Equal(t, "19:00", out["time_slot"])
	assert.Equal(t, float64(10), out["occupancy_percent"])
	assert.Equal(t, true, out["available"])

	rec = do(h.Quota, customer42, http.MethodGet, "", map[string]string{"id": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(h.Quota, customer42, http.MethodGet, "", map[string]string{"id": "7"}, "at=tomorrow")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealthAndReadiness(t *testing.T) {
	rec := do(Health, caller{}, http.MethodGet, "", nil, "")
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(Ready(pinger{}), caller{}, http.MethodGet, "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(Ready(pinger{err: errors.New("down")}), caller{}, http.MethodGet, "", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
