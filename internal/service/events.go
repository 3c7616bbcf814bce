package service

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/queue"
)

const eventTimeout = 5 * time.Second

// EventPublisher emits reservation domain events. Publishing is
// best-effort: failures are logged and never fail the command that has
// already committed.
type EventPublisher struct {
	pub   queue.Publisher
	clock clockwork.Clock
}

// NewEventPublisher returns a publisher sending on pub.
func NewEventPublisher(pub queue.Publisher, clock clockwork.Clock) *EventPublisher {
	return &EventPublisher{pub: pub, clock: clock}
}

// Created emits reservation.created.
func (p *EventPublisher) Created(ctx context.Context, res *model.Reservation) {
	p.emit(ctx, queue.TopicReservationCreated, res, "", "")
}

// Confirmed emits reservation.confirmed.
func (p *EventPublisher) Confirmed(ctx context.Context, res *model.Reservation) {
	p.emit(ctx, queue.TopicReservationConfirmed, res, model.StatusPending, "")
}

// Cancelled emits reservation.cancelled with the status the reservation
// was cancelled from.
func (p *EventPublisher) Cancelled(ctx context.Context, res *model.Reservation, prev model.Status, reason string) {
	p.emit(ctx, queue.TopicReservationCancelled, res, prev, reason)
}

// Modified emits reservation.modified. detail describes the change.
func (p *EventPublisher) Modified(ctx context.Context, res *model.Reservation, detail string) {
	p.emit(ctx, queue.TopicReservationModified, res, res.Status, detail)
}

// Completed emits reservation.completed.
func (p *EventPublisher) Completed(ctx context.Context, res *model.Reservation) {
	p.emit(ctx, queue.TopicReservationCompleted, res, model.StatusConfirmed, "")
}

// NoShow emits reservation.no_show.
func (p *EventPublisher) NoShow(ctx context.Context, res *model.Reservation) {
	p.emit(ctx, queue.TopicReservationNoShow, res, model.StatusConfirmed, "")
}

func (p *EventPublisher) emit(ctx context.Context, topic string, res *model.Reservation, prev model.Status, reason string) {
	evt := queue.ReservationEvent{
		EventType:      topic,
		ReservationID:  res.ID,
		RestaurantID:   res.RestaurantID,
		UserID:         res.UserID,
		TableID:        res.TableID,
		StartTime:      res.StartTime,
		PartySize:      res.PartySize,
		Status:         string(res.Status),
		PreviousStatus: string(prev),
		Reason:         reason,
		OccurredAt:     p.clock.Now().UTC(),
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()
	if err := publishJSON(pubCtx, p.pub, topic, evt); err != nil {
		log.Printf("events: publish %s failed reservation=%s: %v", topic, res.ID, err)
	}
}
