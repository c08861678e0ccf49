package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"brigade/internal/modules/order"
	"brigade/internal/testdb"
	"brigade/internal/types"
)

type fakeBroker struct {
	exchange, key string
	body          []byte
	err           error
}

func (b *fakeBroker) Publish(_ context.Context, exchange, key string, body []byte) error {
	b.exchange, b.key, b.body = exchange, key, body
	return b.err
}

func TestAMQPPublisherRoutesByType(t *testing.T) {
	b := &fakeBroker{}
	p := NewAMQPPublisher(b, "kitchen_events")

	e := Event{Type: EventDelayed, OrderID: "PED1", RestaurantID: "R1", WaitTime: 15, Missing: []string{"bun"}}
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if b.exchange != "kitchen_events" || b.key != "order.delayed" {
		t.Fatalf("routed to %s/%s", b.exchange, b.key)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b.body, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["order_id"] != "PED1" || decoded["wait_time"] != 15.0 {
		t.Fatalf("body = %s", b.body)
	}

	b.err = errors.New("nack")
	if err := p.Publish(context.Background(), e); err == nil {
		t.Fatal("expected broker error")
	}
}

func completedOrder(id types.ID, at time.Time) *order.Order {
	taxpayer := "123456789"
	return &order.Order{
		ID:             id,
		RestaurantID:   "R1",
		Status:         order.StatusCompleted,
		WaitTime:       12.5,
		TaxpayerNumber: &taxpayer,
		Notes:          "no salt",
		ServiceType:    order.ServiceDineIn,
		Proposals:      []types.ID{"PROP1"},
		Menus:          []types.ID{"MENU1"},
		CompletedAt:    &at,
	}
}

type archive interface {
	Archive(ctx context.Context, o *order.Order) error
	ListByRestaurant(ctx context.Context, restaurantID types.ID, limit int) ([]Record, error)
}

func exerciseArchive(t *testing.T, a archive) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	queued := completedOrder("PED0", now)
	queued.Status = order.StatusQueued
	if err := a.Archive(ctx, queued); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("expected ErrNotCompleted, got %v", err)
	}

	if err := a.Archive(ctx, completedOrder("PED1", now.Add(-time.Minute))); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := a.Archive(ctx, completedOrder("PED2", now)); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := a.Archive(ctx, completedOrder("PED2", now)); err != nil {
		t.Fatalf("archive twice: %v", err)
	}

	recs, err := a.ListByRestaurant(ctx, "R1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 || recs[0].OrderID != "PED2" || recs[1].OrderID != "PED1" {
		t.Fatalf("records = %+v", recs)
	}
	if recs[0].TaxpayerNumber == nil || *recs[0].TaxpayerNumber != "123456789" || recs[0].ServiceType != "dine_in" {
		t.Fatalf("record = %+v", recs[0])
	}
	if others, _ := a.ListByRestaurant(ctx, "R2", 10); len(others) != 0 {
		t.Fatalf("unexpected records for R2: %+v", others)
	}
}

func TestMemoryArchive(t *testing.T) {
	exerciseArchive(t, NewMemoryStore())
}

func TestPostgresArchive(t *testing.T) {
	exerciseArchive(t, NewStore(testdb.Open(t)))
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(context.Context, Event) error {
	p.calls++
	return errors.New("broker down")
}

func TestOutboxForwardsInOrder(t *testing.T) {
	sink := &MemoryPublisher{}
	box := NewOutbox(sink, 2, nil)
	ctx := context.Background()

	if err := box.Publish(ctx, Event{Type: EventQueued, OrderID: "PED1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := box.Publish(ctx, Event{Type: EventStarted, OrderID: "PED1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// nothing drains yet, so the third event is dropped instead of blocking
	if err := box.Publish(ctx, Event{Type: EventCompleted, OrderID: "PED1"}); !errors.Is(err, ErrOutboxFull) {
		t.Fatalf("expected ErrOutboxFull, got %v", err)
	}

	done := make(chan struct{})
	go func() {
		box.Run()
		close(done)
	}()
	box.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}

	got := sink.Types()
	if len(got) != 2 || got[0] != EventQueued || got[1] != EventStarted {
		t.Fatalf("forwarded = %v", got)
	}
	if err := box.Publish(ctx, Event{Type: EventHalted}); !errors.Is(err, ErrOutboxClosed) {
		t.Fatalf("expected ErrOutboxClosed, got %v", err)
	}
}

func TestOutboxKeepsGoingAfterForwardError(t *testing.T) {
	next := &failingPublisher{}
	box := NewOutbox(next, 4, nil)
	for i := 0; i < 3; i++ {
		if err := box.Publish(context.Background(), Event{Type: EventQueued}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	box.Close()
	box.Run()
	if next.calls != 3 {
		t.Fatalf("forwarded %d events, want 3", next.calls)
	}
}
