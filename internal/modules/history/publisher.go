// README: Kitchen event publishers (RabbitMQ topic exchange, no-op, in-memory).
package history

import (
	"context"
	"encoding/json"
	"sync"
)

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Broker is satisfied by infra.AMQP.
type Broker interface {
	Publish(ctx context.Context, exchange, key string, body []byte) error
}

// AMQPPublisher routes each event by its type, e.g. "order.delayed".
type AMQPPublisher struct {
	broker   Broker
	exchange string
}

func NewAMQPPublisher(broker Broker, exchange string) *AMQPPublisher {
	return &AMQPPublisher{broker: broker, exchange: exchange}
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.broker.Publish(ctx, p.exchange, string(e.Type), body)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// MemoryPublisher keeps every event in publish order.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *MemoryPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Types lists event types in publish order.
func (p *MemoryPublisher) Types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
