// README: Buffered event outbox; forwards events on its own goroutine so callers never wait on the broker.
package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"brigade/internal/logger"
)

var (
	ErrOutboxFull   = errors.New("event outbox is full")
	ErrOutboxClosed = errors.New("event outbox is closed")
)

const forwardTimeout = 5 * time.Second

// Outbox never blocks Publish: events are buffered and forwarded in order by Run.
// A full buffer drops the event and reports ErrOutboxFull.
type Outbox struct {
	next Publisher
	log  *logger.Logger

	mu     sync.RWMutex
	closed bool
	events chan Event
}

func NewOutbox(next Publisher, size int, log *logger.Logger) *Outbox {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Outbox{next: next, log: log, events: make(chan Event, size)}
}

// Publish ignores the caller's context; forwarding uses its own deadline.
func (o *Outbox) Publish(_ context.Context, e Event) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrOutboxClosed
	}
	select {
	case o.events <- e:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Run forwards events until Close, then returns once the buffer is drained.
func (o *Outbox) Run() {
	for e := range o.events {
		o.forward(e)
	}
}

func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.events)
	}
}

func (o *Outbox) forward(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
	defer cancel()
	if err := o.next.Publish(ctx, e); err != nil {
		o.log.Error(ctx, "event_forward", "kitchen event not delivered", err, map[string]any{
			"type": e.Type, "order_id": e.OrderID,
		})
	}
}
