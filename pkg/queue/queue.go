// Package queue implements the global request queue: a single serialized
// pipeline pacing every call to the Scripture API.
//
// At most one operation runs at a time. Consecutive dispatches are spaced by
// MinInterval, high priority entries always dequeue before normal ones, and
// all dispatching stops while the shared cooldown is active. A rate limit
// failure from any operation triggers that cooldown.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sternrassler/scripture-client/pkg/apierr"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned for requests that could not run because the queue shut down.
var ErrClosed = errors.New("request queue closed")

// Priority orders requests. High entries always run before Normal ones.
// The zero value is High, so options left unset submit as foreground work.
type Priority int

const (
	High Priority = iota
	Normal
)

// String returns the metric label for p.
func (p Priority) String() string {
	if p == High {
		return "high"
	}
	return "normal"
}

// Operation is a unit of paced work.
type Operation func(ctx context.Context) (any, error)

// Cooldown is the global suspension state consulted before every dispatch.
type Cooldown interface {
	Trigger(ctx context.Context, wait time.Duration) time.Time
	Remaining(ctx context.Context) time.Duration
}

// Config holds queue pacing settings.
type Config struct {
	// MinInterval spaces dispatch starts.
	MinInterval time.Duration

	// BufferDelay is slept after every dispatch, success or failure.
	BufferDelay time.Duration
}

// DefaultConfig returns the default pacing.
func DefaultConfig() Config {
	return Config{
		MinInterval: 6 * time.Second,
		BufferDelay: 200 * time.Millisecond,
	}
}

type request struct {
	id         string
	op         Operation
	priority   Priority
	enqueuedAt time.Time
	ticket     *Ticket
}

// Queue is the global request queue. Create it with New and begin
// processing with Start.
type Queue struct {
	config   Config
	cooldown Cooldown
	logger   zerolog.Logger
	now      func() time.Time

	mu           sync.Mutex
	high         []*request
	normal       []*request
	processing   bool
	ctx          context.Context
	cancel       context.CancelFunc
	closed       bool
	lastDispatch time.Time
	dispatched   int64
	wg           sync.WaitGroup
}

// New creates a queue paced by cfg that suspends while cooldown is active.
func New(cfg Config, cooldown Cooldown) *Queue {
	def := DefaultConfig()
	if cfg.MinInterval < 0 {
		cfg.MinInterval = def.MinInterval
	}
	if cfg.BufferDelay < 0 {
		cfg.BufferDelay = 0
	}
	return &Queue{
		config:   cfg,
		cooldown: cooldown,
		logger:   log.With().Str("component", "request-queue").Logger(),
		now:      time.Now,
	}
}

// Start enables processing. Requests enqueued before Start are held until
// it is called. Cancelling ctx stops the queue like Close.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.ctx != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	go func(ctx context.Context) {
		<-ctx.Done()
		q.Close()
	}(q.ctx)

	q.startLocked()
}

// Enqueue adds op and returns a ticket for its result.
func (q *Queue) Enqueue(priority Priority, op Operation) *Ticket {
	r := &request{
		id:         uuid.NewString(),
		op:         op,
		priority:   priority,
		enqueuedAt: q.now(),
		ticket:     newTicket(),
	}
	r.ticket.ID = r.id

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		r.ticket.resolve(nil, ErrClosed)
		return r.ticket
	}

	if priority == High {
		q.high = append(q.high, r)
	} else {
		q.normal = append(q.normal, r)
	}
	q.updateDepthLocked()

	q.logger.Debug().
		Str("request_id", r.id).
		Str("priority", priority.String()).
		Int("pending", len(q.high)+len(q.normal)).
		Msg("Request enqueued")

	q.startLocked()
	return r.ticket
}

// Promote moves a pending Normal request to the back of the High tier.
// It reports false when the request is not waiting in the Normal tier,
// for example because it was already dispatched.
func (q *Queue) Promote(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, r := range q.normal {
		if r.id != id {
			continue
		}
		q.normal = append(q.normal[:i], q.normal[i+1:]...)
		r.priority = High
		q.high = append(q.high, r)
		q.updateDepthLocked()

		q.logger.Debug().
			Str("request_id", id).
			Int("pending_high", len(q.high)).
			Msg("Request promoted")
		return true
	}
	return false
}

// Submit enqueues op and waits for its typed result.
func Submit[T any](ctx context.Context, q *Queue, priority Priority, op func(ctx context.Context) (T, error)) (T, error) {
	ticket := q.Enqueue(priority, func(ctx context.Context) (any, error) {
		return op(ctx)
	})

	var zero T
	v, err := ticket.Wait(ctx)
	if err != nil {
		return zero, err
	}
	result, _ := v.(T)
	return result, nil
}

// startLocked launches the processing loop if it is not running.
// Caller holds q.mu.
func (q *Queue) startLocked() {
	if q.processing || q.ctx == nil || q.closed {
		return
	}
	if len(q.high)+len(q.normal) == 0 {
		return
	}
	q.processing = true
	q.wg.Add(1)
	go q.process(q.ctx)
}

// process drains the queue. It exits when both tiers are empty.
func (q *Queue) process(ctx context.Context) {
	defer q.wg.Done()

	q.logger.Debug().Msg("Queue processing started")
	for {
		if q.drained() {
			q.logger.Debug().Msg("Queue drained")
			return
		}
		if err := q.waitCooldown(ctx); err != nil {
			q.stopProcessing()
			return
		}
		if err := q.waitInterval(ctx); err != nil {
			q.stopProcessing()
			return
		}

		r := q.dequeue()
		if r == nil {
			return
		}

		q.dispatch(ctx, r)

		if err := sleep(ctx, q.config.BufferDelay); err != nil {
			q.stopProcessing()
			return
		}
	}
}

// waitCooldown sleeps while the cooldown is active.
func (q *Queue) waitCooldown(ctx context.Context) error {
	if q.cooldown == nil {
		return nil
	}
	for {
		remaining := q.cooldown.Remaining(ctx)
		if remaining <= 0 {
			return nil
		}
		q.logger.Info().
			Dur("remaining", remaining).
			Msg("Queue cooling down")
		if err := sleep(ctx, remaining); err != nil {
			return err
		}
	}
}

// waitInterval enforces MinInterval since the last dispatch start.
func (q *Queue) waitInterval(ctx context.Context) error {
	q.mu.Lock()
	last := q.lastDispatch
	q.mu.Unlock()

	if last.IsZero() {
		return nil
	}
	if wait := q.config.MinInterval - q.now().Sub(last); wait > 0 {
		return sleep(ctx, wait)
	}
	return nil
}

// dequeue pops the next request, or clears the processing flag and returns
// nil when the queue is empty.
func (q *Queue) dequeue() *request {
	q.mu.Lock()
	defer q.mu.Unlock()

	var r *request
	switch {
	case len(q.high) > 0:
		r = q.high[0]
		q.high[0] = nil
		q.high = q.high[1:]
	case len(q.normal) > 0:
		r = q.normal[0]
		q.normal[0] = nil
		q.normal = q.normal[1:]
	default:
		q.processing = false
		return nil
	}

	q.lastDispatch = q.now()
	q.dispatched++
	q.updateDepthLocked()
	return r
}

func (q *Queue) dispatch(ctx context.Context, r *request) {
	waited := q.now().Sub(r.enqueuedAt)
	queueWaitSeconds.WithLabelValues(r.priority.String()).Observe(waited.Seconds())

	q.logger.Info().
		Str("request_id", r.id).
		Str("priority", r.priority.String()).
		Dur("queued_for", waited).
		Msg("Dispatching request")

	result, err := r.op(ctx)
	if err == nil {
		queueDispatchedTotal.WithLabelValues("success").Inc()
		r.ticket.resolve(result, nil)
		return
	}

	if wait, ok := apierr.RateLimitWait(err); ok {
		queueDispatchedTotal.WithLabelValues("rate_limited").Inc()
		if q.cooldown != nil {
			q.cooldown.Trigger(ctx, wait)
		}
	} else {
		queueDispatchedTotal.WithLabelValues("error").Inc()
		q.logger.Warn().
			Err(err).
			Str("request_id", r.id).
			Msg("Queued request failed")
	}
	r.ticket.resolve(nil, err)
}

// drained clears the processing flag and reports true when no request is
// pending.
func (q *Queue) drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.high)+len(q.normal) == 0 {
		q.processing = false
		return true
	}
	return false
}

func (q *Queue) stopProcessing() {
	q.mu.Lock()
	q.processing = false
	q.mu.Unlock()
}

func (q *Queue) updateDepthLocked() {
	queueDepth.WithLabelValues("high").Set(float64(len(q.high)))
	queueDepth.WithLabelValues("normal").Set(float64(len(q.normal)))
}

// Close stops processing, rejects pending requests with ErrClosed and waits
// for the running operation to return. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.cancel != nil {
		q.cancel()
	}
	pending := append(q.high, q.normal...)
	q.high, q.normal = nil, nil
	q.updateDepthLocked()
	q.mu.Unlock()

	for _, r := range pending {
		r.ticket.resolve(nil, ErrClosed)
	}
	q.wg.Wait()

	if len(pending) > 0 {
		q.logger.Info().Int("rejected", len(pending)).Msg("Request queue closed with pending requests")
	}
}

// Stats is a snapshot of the queue.
type Stats struct {
	PendingHigh       int           `json:"pending_high"`
	PendingNormal     int           `json:"pending_normal"`
	Processing        bool          `json:"processing"`
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
	Dispatched        int64         `json:"dispatched"`
	LastDispatch      time.Time     `json:"last_dispatch"`
}

// Stats returns the current queue state.
func (q *Queue) Stats(ctx context.Context) Stats {
	q.mu.Lock()
	s := Stats{
		PendingHigh:   len(q.high),
		PendingNormal: len(q.normal),
		Processing:    q.processing,
		Dispatched:    q.dispatched,
		LastDispatch:  q.lastDispatch,
	}
	q.mu.Unlock()

	if q.cooldown != nil {
		s.CooldownRemaining = q.cooldown.Remaining(ctx)
	}
	return s
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
