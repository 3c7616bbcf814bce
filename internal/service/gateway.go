package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/table-reservation/internal/correlation"
	"github.com/iliyamo/table-reservation/internal/queue"
)

// Gateway asks the restaurant domain whether a restaurant exists and is
// active, and whether an instant falls inside its operating hours. Neither
// question is retried.
type Gateway struct {
	pub         queue.Publisher
	restaurants *correlation.Registry[queue.RestaurantValidation]
	hours       *correlation.Registry[queue.TimeValidation]
	timeout     time.Duration
}

// NewGateway returns a gateway publishing on pub. timeout bounds each
// round trip.
func NewGateway(pub queue.Publisher, restaurants *correlation.Registry[queue.RestaurantValidation], hours *correlation.Registry[queue.TimeValidation], timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Gateway{pub: pub, restaurants: restaurants, hours: hours, timeout: timeout}
}

// ValidateRestaurantExists fails with a NotFound error when the restaurant
// is unknown, a Validation error when it is inactive and a Timeout error
// when nobody answers.
func (g *Gateway) ValidateRestaurantExists(ctx context.Context, restaurantID uint64) error {
	key := uuid.NewString()
	req := queue.ValidateRestaurant{CorrelationID: key, RestaurantID: restaurantID}
	reply, err := roundTrip(ctx, g.restaurants, g.pub, queue.TopicValidateRestaurant, key, req, g.timeout, CodeValidationTimeout)
	if err != nil {
		return err
	}
	if !reply.Exists {
		return notFoundError(CodeRestaurantNotFound, fmt.Sprintf("restaurant %d not found", restaurantID))
	}
	if !reply.Active {
		return validationError(CodeRestaurantInactive, fmt.Sprintf("restaurant %d is not active", restaurantID))
	}
	return nil
}

// ValidateOperatingHours fails with OutsideOperatingHours carrying the
// reason given by the restaurant side.
func (g *Gateway) ValidateOperatingHours(ctx context.Context, restaurantID uint64, at time.Time) error {
	key := uuid.NewString()
	req := queue.ValidateReservationTime{CorrelationID: key, RestaurantID: restaurantID, ReservationTime: at}
	reply, err := roundTrip(ctx, g.hours, g.pub, queue.TopicValidateReservationTime, key, req, g.timeout, CodeValidationTimeout)
	if err != nil {
		return err
	}
	if !reply.Valid {
		msg := reply.ErrorMessage
		if msg == "" {
			msg = "outside operating hours"
		}
		return validationError(CodeOutsideOperatingHours, msg)
	}
	return nil
}

// HandleRestaurantValidation consumes restaurant.validate.reply.
func (g *Gateway) HandleRestaurantValidation() queue.HandlerFunc {
	return replyHandler(g.restaurants, func(r queue.RestaurantValidation) string { return r.CorrelationID })
}

// HandleTimeValidation consumes restaurant.hours.reply.
func (g *Gateway) HandleTimeValidation() queue.HandlerFunc {
	return replyHandler(g.hours, func(r queue.TimeValidation) string { return r.CorrelationID })
}
