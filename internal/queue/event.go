// Package queue defines message payloads exchanged over the message broker
// and the broker implementations that carry them.
package queue

import "time"

// Request/reply topics. Requests are answered by the restaurant side on the
// matching reply topic; the correlation id is echoed in the body and is the
// only join key between the two.
const (
	TopicValidateRestaurant      = "restaurant.validate.request"
	TopicRestaurantValidation    = "restaurant.validate.reply"
	TopicValidateReservationTime = "restaurant.hours.request"
	TopicTimeValidation          = "restaurant.hours.reply"
	TopicFindAvailableTable      = "table.find.request"
	TopicFindAvailableTableReply = "table.find.reply"

	// TopicTableStatusChanged carries fire-and-forget table notifications.
	TopicTableStatusChanged = "table.status.changed"
)

// Domain event topics.
const (
	TopicReservationCreated   = "reservation.created"
	TopicReservationConfirmed = "reservation.confirmed"
	TopicReservationCancelled = "reservation.cancelled"
	TopicReservationModified  = "reservation.modified"
	TopicReservationCompleted = "reservation.completed"
	TopicReservationNoShow    = "reservation.no_show"
)

// FindAvailableTable asks the restaurant side for one table that seats at
// least PartySize people during [StartTime, EndTime).
type FindAvailableTable struct {
	CorrelationID string    `json:"correlation_id"`
	ReservationID string    `json:"reservation_id"`
	RestaurantID  uint64    `json:"restaurant_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	PartySize     int       `json:"party_size"`
}

// FindAvailableTableResult is the reply to FindAvailableTable.
type FindAvailableTableResult struct {
	CorrelationID string   `json:"correlation_id"`
	TableIDs      []uint64 `json:"table_ids"`
	Success       bool     `json:"success"`
	ErrorMessage  string   `json:"error_message,omitempty"`
}

// ValidateRestaurant asks whether a restaurant exists and is active.
type ValidateRestaurant struct {
	CorrelationID string `json:"correlation_id"`
	RestaurantID  uint64 `json:"restaurant_id"`
}

// RestaurantValidation is the reply to ValidateRestaurant.
type RestaurantValidation struct {
	CorrelationID string `json:"correlation_id"`
	Exists        bool   `json:"exists"`
	Active        bool   `json:"active"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// ValidateReservationTime asks whether ReservationTime falls inside the
// restaurant's operating hours, break periods included.
type ValidateReservationTime struct {
	CorrelationID   string    `json:"correlation_id"`
	RestaurantID    uint64    `json:"restaurant_id"`
	ReservationTime time.Time `json:"reservation_time"`
}

// TimeValidation is the reply to ValidateReservationTime. ErrorMessage
// explains a negative answer (closed that day, outside hours, in a break).
type TimeValidation struct {
	CorrelationID string `json:"correlation_id"`
	Valid         bool   `json:"valid"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// TableStatusChanged announces a table status transition. It is published
// by this service when it reserves or releases a table and consumed to keep
// the local table status cache warm.
type TableStatusChanged struct {
	RestaurantID  uint64    `json:"restaurant_id"`
	TableID       uint64    `json:"table_id"`
	OldStatus     string    `json:"old_status"`
	NewStatus     string    `json:"new_status"`
	ReservationID string    `json:"reservation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ReservationEvent is published on every reservation state change. The
// event-specific fields are left empty when they do not apply.
type ReservationEvent struct {
	EventType      string    `json:"event_type"`
	ReservationID  string    `json:"reservation_id"`
	RestaurantID   uint64    `json:"restaurant_id"`
	UserID         uint64    `json:"user_id"`
	TableID        *uint64   `json:"table_id,omitempty"`
	StartTime      time.Time `json:"start_time"`
	PartySize      int       `json:"party_size"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
