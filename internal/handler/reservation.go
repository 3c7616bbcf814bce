package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/service"
)

// Reservations is the subset of service.Manager the HTTP layer drives.
type Reservations interface {
	Create(ctx context.Context, req service.CreateRequest) (*model.Reservation, error)
	Confirm(ctx context.Context, id, actor string) (*model.Reservation, error)
	Cancel(ctx context.Context, id, actor, reason string) (*model.Reservation, error)
	Update(ctx context.Context, id string, req service.UpdateRequest) (*model.Reservation, error)
	MarkNoShow(ctx context.Context, id, actor string) (*model.Reservation, error)
	Get(ctx context.Context, id string) (*model.Reservation, error)
	History(ctx context.Context, id string) ([]model.ReservationHistory, error)
	Quota(ctx context.Context, restaurantID uint64, at time.Time) (*model.ReservationQuota, error)
}

var _ Reservations = (*service.Manager)(nil)

// ReservationHandler exposes the reservation lifecycle over HTTP. Customers
// only see their own reservations; STAFF and ADMIN see all of them.
type ReservationHandler struct {
	svc Reservations
}

// NewReservationHandler panics when svc is nil.
func NewReservationHandler(svc Reservations) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{svc: svc}
}

type createBody struct {
	UserID          uint64    `json:"user_id"`
	CustomerName    string    `json:"customer_name"`
	CustomerPhone   string    `json:"customer_phone"`
	CustomerEmail   string    `json:"customer_email"`
	RestaurantID    uint64    `json:"restaurant_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	PartySize       int       `json:"party_size"`
	SpecialRequests string    `json:"special_requests"`
}

type updateBody struct {
	StartTime       *time.Time `json:"start_time"`
	DurationMinutes *int       `json:"duration_minutes"`
	PartySize       *int       `json:"party_size"`
	SpecialRequests *string    `json:"special_requests"`
}

type cancelBody struct {
	Reason string `json:"reason"`
}

type reservationView struct {
	ID                   string     `json:"id"`
	UserID               uint64     `json:"user_id,omitempty"`
	CustomerName         string     `json:"customer_name"`
	CustomerPhone        *string    `json:"customer_phone,omitempty"`
	CustomerEmail        *string    `json:"customer_email,omitempty"`
	RestaurantID         uint64     `json:"restaurant_id"`
	TableID              *uint64    `json:"table_id,omitempty"`
	StartTime            time.Time  `json:"start_time"`
	EndTime              time.Time  `json:"end_time"`
	DurationMinutes      int        `json:"duration_minutes"`
	PartySize            int        `json:"party_size"`
	Status               string     `json:"status"`
	ConfirmationDeadline time.Time  `json:"confirmation_deadline"`
	CancellationReason   *string    `json:"cancellation_reason,omitempty"`
	SpecialRequests      *string    `json:"special_requests,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	ConfirmedAt          *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

func viewOf(r *model.Reservation) reservationView {
	return reservationView{
		ID:                   r.ID,
		UserID:               r.UserID,
		CustomerName:         r.CustomerName,
		CustomerPhone:        r.CustomerPhone,
		CustomerEmail:        r.CustomerEmail,
		RestaurantID:         r.RestaurantID,
		TableID:              r.TableID,
		StartTime:            r.StartTime,
		EndTime:              r.EndTime(),
		DurationMinutes:      int(r.Duration / time.Minute),
		PartySize:            r.PartySize,
		Status:               string(r.Status),
		ConfirmationDeadline: r.ConfirmationDeadline,
		CancellationReason:   r.CancellationReason,
		SpecialRequests:      r.SpecialRequests,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
		ConfirmedAt:          r.ConfirmedAt,
		CancelledAt:          r.CancelledAt,
		CompletedAt:          r.CompletedAt,
	}
}

// Create handles POST /v1/reservations. Staff may book on behalf of a
// customer by passing user_id; everyone else books for themselves.
func (h *ReservationHandler) Create(c echo.Context) error {
	var body createBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "code": service.CodeInvalidRequest})
	}
	userID := middleware.UserID(c)
	if middleware.IsStaff(c) {
		userID = body.UserID
	}
	res, err := h.svc.Create(c.Request().Context(), service.CreateRequest{
		UserID:          userID,
		CustomerName:    body.CustomerName,
		CustomerPhone:   body.CustomerPhone,
		CustomerEmail:   body.CustomerEmail,
		RestaurantID:    body.RestaurantID,
		StartTime:       body.StartTime,
		Duration:        time.Duration(body.DurationMinutes) * time.Minute,
		PartySize:       body.PartySize,
		SpecialRequests: body.SpecialRequests,
		Actor:           middleware.Actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, viewOf(res))
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	res, err := h.owned(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res))
}

// History handles GET /v1/reservations/:id/history.
func (h *ReservationHandler) History(c echo.Context) error {
	res, err := h.owned(c)
	if err != nil {
		return writeError(c, err)
	}
	entries, err := h.svc.History(c.Request().Context(), res.ID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]echo.Map, 0, len(entries))
	for _, e := range entries {
		out = append(out, echo.Map{
			"action":     string(e.Action),
			"detail":     e.Detail,
			"actor":      e.Actor,
			"created_at": e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation_id": res.ID, "history": out})
}

// Confirm handles POST /v1/reservations/:id/confirm.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	res, err := h.owned(c)
	if err != nil {
		return writeError(c, err)
	}
	res, err = h.svc.Confirm(c.Request().Context(), res.ID, middleware.Actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res))
}

// Cancel handles POST /v1/reservations/:id/cancel. The body is optional.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	res, err := h.owned(c)
	if err != nil {
		return writeError(c, err)
	}
	var body cancelBody
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "code": service.CodeInvalidRequest})
		}
	}
	res, err = h.svc.Cancel(c.Request().Context(), res.ID, middleware.Actor(c), body.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res))
}

// Update handles PATCH /v1/reservations/:id.
func (h *ReservationHandler) Update(c echo.Context) error {
	res, err := h.owned(c)
	if err != nil {
		return writeError(c, err)
	}
	var body updateBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "code": service.CodeInvalidRequest})
	}
	req := service.UpdateRequest{
		StartTime:       body.StartTime,
		PartySize:       body.PartySize,
		SpecialRequests: body.SpecialRequests,
		Actor:           middleware.Actor(c),
	}
	if body.DurationMinutes != nil {
		d := time.Duration(*body.DurationMinutes) * time.Minute
		req.Duration = &d
	}
	res, err = h.svc.Update(c.Request().Context(), res.ID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res))
}

// NoShow handles POST /v1/reservations/:id/no-show. Staff only.
func (h *ReservationHandler) NoShow(c echo.Context) error {
	res, err := h.svc.MarkNoShow(c.Request().Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res))
}

// Quota handles GET /v1/restaurants/:id/quota?at=RFC3339. Without at, the
// current slot is returned.
func (h *ReservationHandler) Quota(c echo.Context) error {
	restaurantID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || restaurantID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid restaurant id", "code": service.CodeInvalidRequest})
	}
	at := time.Now().UTC()
	if v := c.QueryParam("at"); v != "" {
		if at, err = time.Parse(time.RFC3339, v); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "at must be RFC3339", "code": service.CodeInvalidRequest})
		}
	}
	q, err := h.svc.Quota(c.Request().Context(), restaurantID, at)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"restaurant_id":        q.RestaurantID,
		"date":                 q.Date,
		"time_slot":            q.TimeSlot,
		"max_reservations":     q.MaxReservations,
		"current_reservations": q.CurrentReservations,
		"max_capacity":         q.MaxCapacity,
		"current_capacity":     q.CurrentCapacity,
		"threshold_percentage": q.ThresholdPercentage,
		"occupancy_percent":    q.OccupancyPercent(),
		"available":            q.HasAvailability(),
	})
}

// owned loads the reservation named by :id. Customers get NotFound for
// reservations that are not theirs.
func (h *ReservationHandler) owned(c echo.Context) (*model.Reservation, error) {
	id := c.Param("id")
	res, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if !middleware.IsStaff(c) && res.UserID != middleware.UserID(c) {
		return nil, &service.Error{Kind: service.KindNotFound, Code: service.CodeReservationNotFound, Message: "reservation " + id + " not found"}
	}
	return res, nil
}

// writeError maps a service failure onto an HTTP status.
func writeError(c echo.Context, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		c.Logger().Errorf("reservations: unclassified error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": service.CodeInternal})
	}
	status := http.StatusInternalServerError
	switch se.Kind {
	case service.KindValidation:
		status = http.StatusBadRequest
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindCapacity, service.KindConflict:
		status = http.StatusConflict
	case service.KindTimeout:
		status = http.StatusGatewayTimeout
		if se.Code == service.CodeBusy {
			status = http.StatusServiceUnavailable
		}
	}
	msg := se.Message
	if se.Kind == service.KindInternal {
		c.Logger().Errorf("reservations: %v", err)
		msg = "internal error"
	}
	return c.JSON(status, echo.Map{"error": msg, "code": se.Code})
}
