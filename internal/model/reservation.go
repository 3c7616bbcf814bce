package model

import "time"

// Reservation is a booking for a party at a restaurant. It only becomes
// meaningful once TableID is set, which happens after a successful table
// assignment round trip. ConfirmationDeadline is fixed at creation.
//
// Fields:
//
//	ID                   – opaque identifier (uuid).
//	UserID               – customer account, zero for guest bookings.
//	CustomerName         – name given for the booking.
//	CustomerPhone        – contact phone (nullable).
//	CustomerEmail        – contact email (nullable).
//	RestaurantID         – restaurant being booked.
//	TableID              – assigned table (nullable until resolved).
//	StartTime            – requested start of the sitting.
//	Duration             – length of the sitting.
//	PartySize            – number of guests.
//	Status               – lifecycle state.
//	ConfirmationDeadline – PENDING reservations expire after this instant.
type Reservation struct {
	ID                   string        // reservations.id
	UserID               uint64        // reservations.user_id
	CustomerName         string        // reservations.customer_name
	CustomerPhone        *string       // reservations.customer_phone (nullable)
	CustomerEmail        *string       // reservations.customer_email (nullable)
	RestaurantID         uint64        // reservations.restaurant_id
	TableID              *uint64       // reservations.table_id (nullable)
	StartTime            time.Time     // reservations.start_time
	Duration             time.Duration // reservations.duration_minutes
	PartySize            int           // reservations.party_size
	Status               Status        // reservations.status
	ConfirmationDeadline time.Time     // reservations.confirmation_deadline
	CancellationReason   *string       // reservations.cancellation_reason (nullable)
	SpecialRequests      *string       // reservations.special_requests (nullable)
	ReminderSent         bool          // reservations.reminder_sent
	CreatedAt            time.Time     // reservations.created_at
	UpdatedAt            time.Time     // reservations.updated_at
	ConfirmedAt          *time.Time    // reservations.confirmed_at (nullable)
	CancelledAt          *time.Time    // reservations.cancelled_at (nullable)
	CompletedAt          *time.Time    // reservations.completed_at (nullable)
}

// EndTime is StartTime plus Duration.
func (r *Reservation) EndTime() time.Time {
	return r.StartTime.Add(r.Duration)
}

// HasTable reports whether a table has been assigned.
func (r *Reservation) HasTable() bool {
	return r.TableID != nil
}

// Clone returns a copy that shares no pointers with r.
func (r *Reservation) Clone() *Reservation {
	c := *r
	c.CustomerPhone = cloneString(r.CustomerPhone)
	c.CustomerEmail = cloneString(r.CustomerEmail)
	c.CancellationReason = cloneString(r.CancellationReason)
	c.SpecialRequests = cloneString(r.SpecialRequests)
	c.ConfirmedAt = cloneTime(r.ConfirmedAt)
	c.CancelledAt = cloneTime(r.CancelledAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	if r.TableID != nil {
		id := *r.TableID
		c.TableID = &id
	}
	return &c
}

// ReservationHistory is an append-only audit entry. Actor is a user id or
// ActorSystem.
type ReservationHistory struct {
	ID            uint64        // reservation_history.id
	ReservationID string        // reservation_history.reservation_id
	Action        HistoryAction // reservation_history.action
	Detail        string        // reservation_history.detail
	Actor         string        // reservation_history.actor
	CreatedAt     time.Time     // reservation_history.created_at
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
