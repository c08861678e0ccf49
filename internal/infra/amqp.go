// README: RabbitMQ connection with publisher confirms for kitchen events.
package infra

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrPublishNacked  = errors.New("publish nacked by broker")
	ErrConfirmsClosed = errors.New("confirm channel closed")
)

// AMQP owns one connection and one confirm-mode channel.
// Confirmations are matched to publishes by delivery tag, so a publish abandoned
// on context cancellation never consumes the ack of a later one.
type AMQP struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	mu       sync.Mutex
	confirms *confirmWaiters
}

func NewAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	confirms := newConfirmWaiters()
	go confirms.listen(ch.NotifyPublish(make(chan amqp.Confirmation, 16)))
	return &AMQP{conn: conn, ch: ch, confirms: confirms}, nil
}

func (a *AMQP) Publish(ctx context.Context, exchange, key string, body []byte) error {
	// sequence number and publish must not interleave with another publish
	a.mu.Lock()
	tag := a.ch.GetNextPublishSeqNo()
	wait := a.confirms.register(tag)
	err := a.ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	a.mu.Unlock()
	if err != nil {
		a.confirms.forget(tag)
		return err
	}
	return awaitConfirm(ctx, wait, func() { a.confirms.forget(tag) })
}

func awaitConfirm(ctx context.Context, wait <-chan bool, abandon func()) error {
	select {
	case ack, ok := <-wait:
		if !ok {
			return ErrConfirmsClosed
		}
		if !ack {
			return ErrPublishNacked
		}
		return nil
	case <-ctx.Done():
		abandon()
		return ctx.Err()
	}
}

func (a *AMQP) Close() {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
}

// confirmWaiters routes broker confirmations to the publish that owns the delivery tag.
type confirmWaiters struct {
	mu      sync.Mutex
	pending map[uint64]chan bool
	closed  bool
}

func newConfirmWaiters() *confirmWaiters {
	return &confirmWaiters{pending: make(map[uint64]chan bool)}
}

func (w *confirmWaiters) register(tag uint64) <-chan bool {
	ch := make(chan bool, 1)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		close(ch)
		return ch
	}
	w.pending[tag] = ch
	return ch
}

func (w *confirmWaiters) forget(tag uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, tag)
}

// listen runs until the channel's confirmations are closed; waiters left then get ErrConfirmsClosed.
func (w *confirmWaiters) listen(acks <-chan amqp.Confirmation) {
	for conf := range acks {
		w.mu.Lock()
		ch, ok := w.pending[conf.DeliveryTag]
		delete(w.pending, conf.DeliveryTag)
		w.mu.Unlock()
		if ok {
			ch <- conf.Ack
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for tag, ch := range w.pending {
		close(ch)
		delete(w.pending, tag)
	}
}
