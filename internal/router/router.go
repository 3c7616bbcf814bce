package router // package router registers the HTTP routes of the service

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/handler"
	"github.com/iliyamo/table-reservation/internal/middleware"
)

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterReservations registers the reservation lifecycle under /v1. All
// routes require a valid access token; commands that park on broker round
// trips are additionally rate limited.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleCustomer, middleware.RoleStaff, middleware.RoleAdmin),
	)

	g.GET("/reservations/:id", h.Get)
	g.GET("/reservations/:id/history", h.History)
	g.GET("/restaurants/:id/quota", h.Quota)

	g.POST("/reservations", h.Create, limit)
	g.PATCH("/reservations/:id", h.Update, limit)
	g.POST("/reservations/:id/confirm", h.Confirm, limit)
	g.POST("/reservations/:id/cancel", h.Cancel, limit)

	// No-shows are recorded by the floor staff.
	g.POST("/reservations/:id/no-show", h.NoShow, middleware.RequireRole(middleware.RoleStaff, middleware.RoleAdmin))
}
