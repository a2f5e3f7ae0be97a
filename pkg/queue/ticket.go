package queue

import (
	"context"
	"sync"
)

// Ticket is the pending result of an enqueued request.
type Ticket struct {
	// ID identifies the request in logs.
	ID string

	once   sync.Once
	done   chan struct{}
	result any
	err    error
}

func newTicket() *Ticket {
	return &Ticket{done: make(chan struct{})}
}

func (t *Ticket) resolve(result any, err error) {
	t.once.Do(func() {
		t.result = result
		t.err = err
		close(t.done)
	})
}

// Done is closed once the request has completed or was rejected.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the request completes or ctx ends. Abandoning a ticket
// does not cancel its operation.
func (t *Ticket) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
