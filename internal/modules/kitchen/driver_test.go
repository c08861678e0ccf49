package kitchen

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"brigade/internal/config"
	"brigade/internal/modules/catalog"
	"brigade/internal/modules/history"
	"brigade/internal/modules/order"
	"brigade/internal/modules/scheduler"
	"brigade/internal/modules/staff"
	"brigade/internal/modules/stock"
	"brigade/internal/types"
)

type countingSleeper struct{ calls atomic.Int32 }

func (s *countingSleeper) Sleep(ctx context.Context, _ time.Duration) error {
	s.calls.Add(1)
	return ctx.Err()
}

type env struct {
	svc     *scheduler.Service
	driver  *Driver
	sleeper *countingSleeper
	pending *order.Pending
	orders  *order.MemoryStore
	stock   *stock.MemoryStore
	staff   *staff.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cat := catalog.NewMemoryStore()
	price, _ := types.NewMoney("9.90")
	cat.PutProposal(catalog.Proposal{
		ID: "PROP1", Name: "Burger", Price: price, Stages: []string{"Grill", "Plate"},
		Ingredients: []catalog.Ingredient{{Name: "bun"}, {Name: "patty"}},
	})

	e := &env{
		sleeper: &countingSleeper{},
		pending: order.NewPending(),
		orders:  order.NewMemoryStore(),
		stock:   stock.NewMemoryStore(),
		staff:   staff.NewMemoryStore(),
	}
	for _, rid := range []types.ID{"R1", "R2"} {
		e.staff.AddRestaurant(staff.Restaurant{ID: rid})
		e.staff.AddEmployee(staff.Employee{ID: rid + "-grill", RestaurantID: rid, Duty: "Grill"})
		e.staff.AddEmployee(staff.Employee{ID: rid + "-plate", RestaurantID: rid, Duty: "Plate"})
	}

	cfg := config.KitchenConfig{StepPacing: time.Millisecond, TickSeconds: 1, RestockQty: 5, DelayPenaltyMin: 5}
	e.svc = scheduler.NewService(scheduler.Deps{
		Pending: e.pending,
		Orders:  e.orders,
		Catalog: cat,
		Stock:   e.stock,
		Staff:   e.staff,
		History: history.NewMemoryStore(),
	}, cfg)
	e.driver = NewDriver(e.svc, cfg, nil).WithSleeper(e.sleeper)
	return e
}

func (e *env) order(t *testing.T, rid types.ID) types.ID {
	t.Helper()
	id := e.pending.Create(rid)
	_ = e.pending.Update(id, rid, func(o *order.Order) error {
		o.Proposals = []types.ID{"PROP1"}
		return nil
	})
	if _, err := e.svc.Register(context.Background(), id, rid); err != nil {
		t.Fatalf("register: %v", err)
	}
	return id
}

func (e *env) status(t *testing.T, id types.ID) order.Status {
	t.Helper()
	o, err := e.orders.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return o.Status
}

func TestRunOrderCompletes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_ = e.stock.Restock(ctx, "R1", []string{"bun", "patty"}, 2)
	id := e.order(t, "R1")

	out, err := e.driver.RunOrder(ctx, "R1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !out.Completed || out.Steps != 2 || out.OrderID != id || out.Delayed != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if got := e.sleeper.calls.Load(); got != 2 {
		t.Fatalf("paced %d times, want 2", got)
	}
	if e.status(t, id) != order.StatusCompleted {
		t.Fatal("order not completed")
	}
}

func TestRunOrderStopsOnDelay(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.order(t, "R1")

	out, err := e.driver.RunOrder(ctx, "R1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Delayed == nil || out.Completed || out.Steps != 0 {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.Delayed.Missing) != 2 {
		t.Fatalf("missing = %v", out.Delayed.Missing)
	}
	if e.status(t, id) != order.StatusQueued {
		t.Fatal("delayed order should be queued again")
	}

	// restocked by the delay, the second run goes through
	out, err = e.driver.RunOrder(ctx, "R1")
	if err != nil || !out.Completed {
		t.Fatalf("second run: %+v %v", out, err)
	}
}

func TestRunOrderErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.driver.RunOrder(ctx, "R1"); !errors.Is(err, scheduler.ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}

	e.staff.AddRestaurant(staff.Restaurant{ID: "R3"})
	_ = e.stock.Restock(ctx, "R3", []string{"bun", "patty"}, 1)
	e.order(t, "R3")
	if _, err := e.driver.RunOrder(ctx, "R3"); !errors.Is(err, scheduler.ErrNoEmployeeForStage) {
		t.Fatalf("expected ErrNoEmployeeForStage, got %v", err)
	}

	if !e.driver.acquire("R1") {
		t.Fatal("acquire")
	}
	if _, err := e.driver.RunOrder(ctx, "R1"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	e.driver.release("R1")
}

func TestDispatchRunsRestaurantsInParallel(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_ = e.stock.Restock(ctx, "R1", []string{"bun", "patty"}, 1)
	_ = e.stock.Restock(ctx, "R2", []string{"bun", "patty"}, 1)
	a := e.order(t, "R1")
	b := e.order(t, "R2")

	if started := e.driver.Dispatch(ctx); started != 2 {
		t.Fatalf("started %d runs, want 2", started)
	}
	e.driver.Wait()

	if e.status(t, a) != order.StatusCompleted || e.status(t, b) != order.StatusCompleted {
		t.Fatal("both orders should be completed")
	}
	if started := e.driver.Dispatch(ctx); started != 0 {
		t.Fatalf("nothing left to dispatch, started %d", started)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.driver.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunOrderContinuesStartedOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_ = e.stock.Restock(ctx, "R1", []string{"bun", "patty"}, 1)
	id := e.order(t, "R1")

	// staff started it by hand
	if _, err := e.svc.StartNext(ctx, "R1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	out, err := e.driver.RunOrder(ctx, "R1")
	if err != nil || !out.Completed || out.OrderID != id {
		t.Fatalf("run: %+v %v", out, err)
	}
}

// contendedKitchen lets another caller process each stage just before the driver does.
type contendedKitchen struct {
	*scheduler.Service
	taken atomic.Int32
}

func (k *contendedKitchen) ProcessCurrentStep(ctx context.Context, restaurantID, employeeID types.ID, step scheduler.ProposalStep, orderID types.ID) (scheduler.StepResult, error) {
	if step.Stage == "Grill" && k.taken.Add(1) == 1 {
		if _, err := k.Service.ProcessCurrentStep(ctx, restaurantID, employeeID, step, orderID); err != nil {
			return scheduler.StepResult{}, err
		}
	}
	return k.Service.ProcessCurrentStep(ctx, restaurantID, employeeID, step, orderID)
}

func TestRunOrderSkipsStageTakenElsewhere(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_ = e.stock.Restock(ctx, "R1", []string{"bun", "patty"}, 1)
	id := e.order(t, "R1")

	k := &contendedKitchen{Service: e.svc}
	d := NewDriver(k, config.KitchenConfig{}, nil).WithSleeper(e.sleeper)
	out, err := d.RunOrder(ctx, "R1")
	if err != nil || !out.Completed {
		t.Fatalf("run: %+v %v", out, err)
	}
	// Grill went to the other caller; the driver only did Plate
	if out.Steps != 1 {
		t.Fatalf("steps = %d, want 1", out.Steps)
	}
	if e.status(t, id) != order.StatusCompleted {
		t.Fatal("order not completed")
	}
}
