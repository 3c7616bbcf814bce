// Package correlation joins asynchronous replies to the goroutine that is
// waiting for them. A caller registers a key before sending its request,
// then parks in Await until Complete delivers the reply, the timeout
// elapses or its context is cancelled. Each key is delivered to at most one
// waiter. Keys that were registered but never awaited are removed by Sweep.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrTimeout is wrapped by *TimeoutError.
	ErrTimeout = errors.New("correlation: reply timeout")
	// ErrUnknownKey is returned by Await for keys that were never
	// registered or have already been consumed.
	ErrUnknownKey = errors.New("correlation: unknown key")
	// ErrDuplicateKey is returned by Register when the key is still pending.
	ErrDuplicateKey = errors.New("correlation: duplicate key")
	// ErrAlreadyAwaited is returned when a second goroutine awaits a key
	// that already has a waiter.
	ErrAlreadyAwaited = errors.New("correlation: key already awaited")
	// ErrCancelled is the default reason passed to waiters by Cancel.
	ErrCancelled = errors.New("correlation: cancelled")
)

// TimeoutError reports which key timed out and after how long.
type TimeoutError struct {
	Key     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("correlation: no reply for %s within %s", e.Key, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

type result[R any] struct {
	reply R
	err   error
}

type pending[R any] struct {
	ch        chan result[R] // capacity 1, written at most once under Registry.mu
	createdAt time.Time
	deadline  time.Time
	waiting   bool
	done      bool
}

// Registry holds pending correlations for one reply type.
type Registry[R any] struct {
	name  string
	clock clockwork.Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]*pending[R]
}

// NewRegistry returns an empty registry. ttl bounds how long a registered
// key may stay without a waiter before Sweep drops it. A nil clock means
// the real clock.
func NewRegistry[R any](name string, clock clockwork.Clock, ttl time.Duration) *Registry[R] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Registry[R]{
		name:    name,
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]*pending[R]),
	}
}

// Name is the label used in logs.
func (r *Registry[R]) Name() string { return r.name }

// Register creates a pending entry for key. It must be called before the
// request carrying key is sent.
func (r *Registry[R]) Register(key string) error {
	if key == "" {
		return fmt.Errorf("correlation: empty key")
	}
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; ok {
		return ErrDuplicateKey
	}
	r.entries[key] = &pending[R]{
		ch:        make(chan result[R], 1),
		createdAt: now,
		deadline:  now.Add(r.ttl),
	}
	return nil
}

// Complete hands reply to the waiter of key. Replies for unknown or
// already completed keys are logged and dropped; false is returned.
func (r *Registry[R]) Complete(key string, reply R) bool {
	return r.finish(key, result[R]{reply: reply}, "reply")
}

// Cancel wakes the waiter of key with reason.
func (r *Registry[R]) Cancel(key string, reason error) bool {
	if reason == nil {
		reason = ErrCancelled
	}
	return r.finish(key, result[R]{err: reason}, "cancel")
}

func (r *Registry[R]) finish(key string, res result[R], what string) bool {
	r.mu.Lock()
	p, ok := r.entries[key]
	if ok && p.done {
		ok = false
	}
	if ok {
		p.done = true
		p.ch <- res
		// Without a waiter the entry stays until Await picks the result up
		// or Sweep drops it.
		if p.waiting {
			delete(r.entries, key)
		}
	}
	r.mu.Unlock()
	if !ok {
		log.Printf("correlation[%s]: dropped %s for unknown key=%s", r.name, what, key)
	}
	return ok
}

// Await blocks until key is completed or cancelled, timeout elapses, or ctx
// is done. A result that arrived before Await is returned immediately. On
// timeout and on context cancellation the entry is removed so a late
// Complete is dropped.
func (r *Registry[R]) Await(ctx context.Context, key string, timeout time.Duration) (R, error) {
	var zero R
	r.mu.Lock()
	p, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		return zero, ErrUnknownKey
	}
	if p.waiting {
		r.mu.Unlock()
		return zero, ErrAlreadyAwaited
	}
	if p.done {
		delete(r.entries, key)
		r.mu.Unlock()
		res := <-p.ch
		return res.reply, res.err
	}
	p.waiting = true
	r.mu.Unlock()

	timer := r.clock.NewTimer(timeout)
	defer timer.Stop()
	return r.wait(ctx, key, p, timer, timeout)
}

func (r *Registry[R]) wait(ctx context.Context, key string, p *pending[R], timer clockwork.Timer, timeout time.Duration) (R, error) {
	select {
	case res := <-p.ch:
		return res.reply, res.err
	case <-timer.Chan():
		return r.abandon(key, p, &TimeoutError{Key: key, Timeout: timeout})
	case <-ctx.Done():
		return r.abandon(key, p, ctx.Err())
	}
}

// abandon removes key unless a result raced in, in which case the result
// wins.
func (r *Registry[R]) abandon(key string, p *pending[R], cause error) (R, error) {
	var zero R
	r.mu.Lock()
	if cur, ok := r.entries[key]; ok && cur == p {
		delete(r.entries, key)
		r.mu.Unlock()
		return zero, cause
	}
	r.mu.Unlock()
	select {
	case res := <-p.ch:
		return res.reply, res.err
	default:
		return zero, cause
	}
}

// Call registers key, runs send and awaits the reply. timeout covers the
// send and the wait together: a send that blocks, for example on a broker
// redial, still ends in a *TimeoutError once timeout has elapsed. send gets
// a context that expires with the call. A failing send cancels the key.
func (r *Registry[R]) Call(ctx context.Context, key string, timeout time.Duration, send func(context.Context) error) (R, error) {
	var zero R
	if err := r.Register(key); err != nil {
		return zero, err
	}
	r.mu.Lock()
	p := r.entries[key]
	p.waiting = true
	r.mu.Unlock()

	timer := r.clock.NewTimer(timeout)
	defer timer.Stop()
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sent := make(chan error, 1)
	go func() { sent <- send(sendCtx) }()

	select {
	case err := <-sent:
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				err = &TimeoutError{Key: key, Timeout: timeout}
			}
			return r.abandon(key, p, err)
		}
	case <-timer.Chan():
		return r.abandon(key, p, &TimeoutError{Key: key, Timeout: timeout})
	case <-ctx.Done():
		return r.abandon(key, p, ctx.Err())
	}
	return r.wait(ctx, key, p, timer, timeout)
}

// Sweep removes entries whose deadline has passed and that nobody is
// waiting on, including completed results nobody came to collect. It
// returns how many were removed.
func (r *Registry[R]) Sweep() int {
	now := r.clock.Now()
	removed := 0
	r.mu.Lock()
	for key, p := range r.entries {
		if p.waiting || now.Before(p.deadline) {
			continue
		}
		delete(r.entries, key)
		removed++
	}
	r.mu.Unlock()
	if removed > 0 {
		log.Printf("correlation[%s]: swept %d stale keys", r.name, removed)
	}
	return removed
}

// Len is the number of pending entries.
func (r *Registry[R]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweeper is implemented by every Registry regardless of its reply type so
// that the scheduler can sweep them together.
type Sweeper interface {
	Name() string
	Sweep() int
	Len() int
}
