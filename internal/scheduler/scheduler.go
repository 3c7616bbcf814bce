// Package scheduler runs the periodic housekeeping of the service: the
// reservation sweep and the cleanup of abandoned correlation keys.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/table-reservation/internal/correlation"
	"github.com/iliyamo/table-reservation/internal/service"
)

// ReservationSweeper is satisfied by *service.Manager.
type ReservationSweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// Scheduler wraps a gocron scheduler. Every job runs in singleton mode so
// a slow run is never overlapped by the next one.
type Scheduler struct {
	inner gocron.Scheduler
}

// New returns a stopped scheduler driven by clock.
func New(clock clockwork.Clock) (*Scheduler, error) {
	opts := []gocron.SchedulerOption{}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		log.Printf("scheduler: init failed: %v", err)
		return nil, err
	}
	return &Scheduler{inner: s}, nil
}

// AddReservationSweep runs sweeper every interval. Each run is bounded by
// timeout.
func (s *Scheduler) AddReservationSweep(interval, timeout time.Duration, sweeper ReservationSweeper) error {
	j, err := s.inner.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if _, err := sweeper.Sweep(ctx); err != nil {
				log.Printf("scheduler: reservation sweep: %v", err)
			}
		}),
		gocron.WithName("reservation-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	log.Printf("scheduler: job %s every %s id=%s", j.Name(), interval, j.ID())
	return nil
}

// AddCorrelationSweep removes abandoned keys from every registry each
// interval.
func (s *Scheduler) AddCorrelationSweep(interval time.Duration, registries ...correlation.Sweeper) error {
	j, err := s.inner.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			for _, r := range registries {
				r.Sweep()
			}
		}),
		gocron.WithName("correlation-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	log.Printf("scheduler: job %s every %s id=%s registries=%d", j.Name(), interval, j.ID(), len(registries))
	return nil
}

// Start begins running jobs.
func (s *Scheduler) Start() { s.inner.Start() }

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error { return s.inner.Shutdown() }

// Jobs is the number of registered jobs.
func (s *Scheduler) Jobs() int { return len(s.inner.Jobs()) }
