// README: Kitchen driver: walks orders through their stages with pacing, one goroutine per restaurant.
package kitchen

import (
	"context"
	"errors"
	"sync"
	"time"

	"brigade/internal/config"
	"brigade/internal/logger"
	"brigade/internal/modules/order"
	"brigade/internal/modules/scheduler"
	"brigade/internal/types"
)

var ErrBusy = errors.New("restaurant is already being driven")

// Kitchen is the part of the scheduler facade the driver needs.
type Kitchen interface {
	StartNext(ctx context.Context, restaurantID types.ID) (scheduler.TrackerSnapshot, error)
	ActiveTracker(restaurantID types.ID) (types.ID, bool)
	GuardedRetrieveNext(restaurantID types.ID) (scheduler.ProposalStep, bool)
	ObtainEmployeeForStage(ctx context.Context, restaurantID types.ID, stageName string) (types.ID, error)
	ProcessCurrentStep(ctx context.Context, restaurantID, employeeID types.ID, step scheduler.ProposalStep, orderID types.ID) (scheduler.StepResult, error)
	Complete(ctx context.Context, restaurantID types.ID) (*order.Order, error)
	Dispatchable() []types.ID
}

type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Outcome summarizes one driven order.
type Outcome struct {
	OrderID   types.ID                     `json:"order_id"`
	Steps     int                          `json:"steps"`
	Completed bool                         `json:"completed"`
	Delayed   *scheduler.OrderDelayedError `json:"delayed,omitempty"`
}

type Driver struct {
	kitchen Kitchen
	sleeper Sleeper
	cfg     config.KitchenConfig
	log     *logger.Logger

	mu      sync.Mutex
	running map[types.ID]bool
	wg      sync.WaitGroup
}

func NewDriver(k Kitchen, cfg config.KitchenConfig, log *logger.Logger) *Driver {
	if log == nil {
		log = logger.Nop()
	}
	return &Driver{
		kitchen: k,
		sleeper: timerSleeper{},
		cfg:     cfg,
		log:     log,
		running: make(map[types.ID]bool),
	}
}

// WithSleeper replaces the pacing clock; tests pass a no-op sleeper.
func (d *Driver) WithSleeper(s Sleeper) *Driver {
	d.sleeper = s
	return d
}

func (d *Driver) acquire(restaurantID types.ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running[restaurantID] {
		return false
	}
	d.running[restaurantID] = true
	return true
}

func (d *Driver) release(restaurantID types.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.running, restaurantID)
}

// RunOrder drives the active order, or starts the next queued one, until it
// completes or is delayed by a stock shortfall. A delay is reported in the
// outcome, not as an error.
func (d *Driver) RunOrder(ctx context.Context, restaurantID types.ID) (Outcome, error) {
	if !d.acquire(restaurantID) {
		return Outcome{}, ErrBusy
	}
	defer d.release(restaurantID)
	return d.runOrder(ctx, restaurantID)
}

func (d *Driver) runOrder(ctx context.Context, restaurantID types.ID) (Outcome, error) {
	var orderID types.ID
	started, err := d.kitchen.StartNext(ctx, restaurantID)
	switch {
	case errors.Is(err, scheduler.ErrActiveOrder):
		id, ok := d.kitchen.ActiveTracker(restaurantID)
		if !ok {
			return Outcome{}, scheduler.ErrNoActiveOrder
		}
		orderID = id
	case err != nil:
		return Outcome{}, err
	default:
		orderID = started.OrderID
	}

	out := Outcome{OrderID: orderID}
	for {
		step, ok := d.kitchen.GuardedRetrieveNext(restaurantID)
		if !ok {
			break
		}
		employeeID, err := d.kitchen.ObtainEmployeeForStage(ctx, restaurantID, step.Stage)
		if err != nil {
			return out, err
		}
		_, err = d.kitchen.ProcessCurrentStep(ctx, restaurantID, employeeID, step, out.OrderID)
		if delayed, ok := scheduler.IsDelayed(err); ok {
			out.Delayed = delayed
			return out, nil
		}
		if errors.Is(err, scheduler.ErrStaleStep) {
			// someone else took this stage; read the next one
			continue
		}
		if err != nil {
			return out, err
		}
		out.Steps++
		if err := d.sleeper.Sleep(ctx, d.cfg.StepPacing); err != nil {
			return out, err
		}
	}

	if _, err := d.kitchen.Complete(ctx, restaurantID); err != nil {
		return out, err
	}
	out.Completed = true
	return out, nil
}

// Dispatch starts a goroutine for every idle restaurant with queued orders.
// Restaurants already being driven are skipped.
func (d *Driver) Dispatch(ctx context.Context) int {
	started := 0
	for _, rid := range d.kitchen.Dispatchable() {
		if !d.acquire(rid) {
			continue
		}
		started++
		d.wg.Add(1)
		go func(rid types.ID) {
			defer d.wg.Done()
			defer d.release(rid)
			out, err := d.runOrder(ctx, rid)
			details := map[string]any{"restaurant_id": rid, "order_id": out.OrderID, "steps": out.Steps}
			switch {
			case err != nil && !errors.Is(err, context.Canceled):
				d.log.Error(ctx, "kitchen_run", "order run stopped", err, details)
			case out.Delayed != nil:
				details["wait_time"] = out.Delayed.NewWaitTime
				d.log.Info(ctx, "kitchen_run", "order delayed", details)
			case out.Completed:
				d.log.Info(ctx, "kitchen_run", "order completed", details)
			}
		}(rid)
	}
	return started
}

// Run dispatches on every tick until ctx is cancelled, then waits for in-flight runs.
func (d *Driver) Run(ctx context.Context) {
	tick := time.Duration(d.cfg.TickSeconds) * time.Second
	if tick <= 0 {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	defer d.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Dispatch(ctx)
		}
	}
}

// Wait blocks until every dispatched run has returned.
func (d *Driver) Wait() {
	d.wg.Wait()
}
