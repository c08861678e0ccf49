// README: Scheduler facade: registration, dispatch, stock-gated stage processing, completion.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"brigade/internal/config"
	"brigade/internal/logger"
	"brigade/internal/modules/history"
	"brigade/internal/modules/order"
	"brigade/internal/types"
)

const (
	defaultRestockQty   = 5
	defaultDelayPenalty = 5.0
)

type StockLedger interface {
	Quantity(ctx context.Context, restaurantID types.ID, ingredient string) (int, bool, error)
	SetQuantity(ctx context.Context, restaurantID types.ID, ingredient string, qty int) error
	Restock(ctx context.Context, restaurantID types.ID, ingredients []string, qty int) error
}

type OrderStore interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	Put(ctx context.Context, o *order.Order) error
	UpdateStatus(ctx context.Context, id types.ID, from, to order.Status, version int) (bool, error)
}

type StaffDirectory interface {
	RestaurantExists(ctx context.Context, id types.ID) (bool, error)
	FindEmployeeByDuty(ctx context.Context, restaurantID types.ID, duty string) (types.ID, bool, error)
}

type Archive interface {
	Archive(ctx context.Context, o *order.Order) error
}

// Deps are the collaborators of the facade; Events and Log are optional.
type Deps struct {
	Pending *order.Pending
	Orders  OrderStore
	Catalog Catalog
	Stock   StockLedger
	Staff   StaffDirectory
	History Archive
	Events  history.Publisher
	Log     *logger.Logger
}

type Service struct {
	pending *order.Pending
	orders  OrderStore
	catalog Catalog
	stock   StockLedger
	staff   StaffDirectory
	history Archive
	events  history.Publisher
	log     *logger.Logger
	cfg     config.KitchenConfig

	mu       sync.Mutex
	sessions map[types.ID]*session
}

func NewService(d Deps, cfg config.KitchenConfig) *Service {
	if cfg.RestockQty <= 0 {
		cfg.RestockQty = defaultRestockQty
	}
	if cfg.DelayPenaltyMin <= 0 {
		cfg.DelayPenaltyMin = defaultDelayPenalty
	}
	if d.Events == nil {
		d.Events = history.NopPublisher{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return &Service{
		pending:  d.Pending,
		orders:   d.Orders,
		catalog:  d.Catalog,
		stock:    d.Stock,
		staff:    d.Staff,
		history:  d.History,
		events:   d.Events,
		log:      d.Log,
		cfg:      cfg,
		sessions: make(map[types.ID]*session),
	}
}

func (s *Service) waitTime(ctx context.Context, orderID types.ID) (float64, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return 0, err
	}
	return o.WaitTime, nil
}

// Register moves a pending order to the order store, estimates its wait time and queues it.
func (s *Service) Register(ctx context.Context, orderID, restaurantID types.ID) (*order.Order, error) {
	o, err := s.pending.Take(orderID, restaurantID)
	if err != nil {
		return nil, err
	}
	o.WaitTime = InitialEstimate(o.ItemCount(), s.busyRestaurants())
	if err := s.orders.Put(ctx, o); err != nil {
		s.pending.Restore(o)
		return nil, fmt.Errorf("store order %s: %w", o.ID, err)
	}

	sess := s.session(restaurantID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := s.transition(ctx, o, order.StatusQueued); err != nil {
		return nil, err
	}
	if err := sess.queue.Enqueue(ctx, o.ID); err != nil {
		return nil, err
	}
	sess.syncDepth()

	s.log.Info(ctx, "order_registered", "order queued", map[string]any{
		"order_id": o.ID, "restaurant_id": restaurantID, "wait_time": o.WaitTime, "items": o.ItemCount(),
	})
	s.publish(ctx, history.Event{Type: history.EventQueued, OrderID: o.ID, RestaurantID: restaurantID, WaitTime: o.WaitTime})
	return o, nil
}

// RegisterNewWaitTime overwrites the stored wait time and re-offers the order to the queue.
// Halted orders come back into the queue this way.
func (s *Service) RegisterNewWaitTime(ctx context.Context, newTime float64, orderID, restaurantID types.ID) error {
	if math.IsNaN(newTime) || math.IsInf(newTime, 0) || newTime < 0 {
		return fmt.Errorf("%w: wait time %v", order.ErrBadRequest, newTime)
	}
	sess := s.session(restaurantID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	o, err := s.reoffer(ctx, sess, newTime, orderID, restaurantID)
	if err != nil {
		return err
	}
	s.publish(ctx, history.Event{Type: history.EventQueued, OrderID: o.ID, RestaurantID: restaurantID, WaitTime: o.WaitTime})
	return nil
}

// reoffer requires sess.mu.
func (s *Service) reoffer(ctx context.Context, sess *session, newTime float64, orderID, restaurantID types.ID) (*order.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.RestaurantID != restaurantID {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if sess.active != nil && sess.active.OrderID() == orderID {
		return nil, ErrActiveOrder
	}
	if !order.CanTransition(o.Status, order.StatusQueued) {
		return nil, fmt.Errorf("%w: %s -> %s", order.ErrInvalidState, o.Status, order.StatusQueued)
	}

	old := o.WaitTime
	o.WaitTime = newTime
	if err := s.orders.Put(ctx, o); err != nil {
		return nil, fmt.Errorf("store order %s: %w", o.ID, err)
	}
	if err := s.transition(ctx, o, order.StatusQueued); err != nil {
		return nil, err
	}
	if err := sess.queue.Enqueue(ctx, o.ID); err != nil {
		return nil, err
	}
	sess.syncDepth()

	s.log.Info(ctx, "order_reoffered", "wait time updated", map[string]any{
		"order_id": o.ID, "restaurant_id": restaurantID, "old_wait_time": old, "wait_time": newTime,
	})
	return o, nil
}

// StartNext makes the head of the wait queue the active order. A tracker paused by a
// stock shortfall is resumed with its stage indices intact. The tracker itself stays
// inside the session; callers get a snapshot taken under the session lock.
func (s *Service) StartNext(ctx context.Context, restaurantID types.ID) (TrackerSnapshot, error) {
	sess := s.session(restaurantID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.active != nil {
		return TrackerSnapshot{}, ErrActiveOrder
	}
	head, ok := sess.queue.Peek()
	if !ok {
		return TrackerSnapshot{}, ErrQueueEmpty
	}
	o, err := s.orders.Get(ctx, head)
	if err != nil {
		return TrackerSnapshot{}, err
	}

	tr, resumed := sess.deferred.Get(head)
	if !resumed {
		tr, err = NewTracker(ctx, o, s.catalog)
		if err != nil {
			return TrackerSnapshot{}, fmt.Errorf("build tracker for %s: %w", head, err)
		}
	}
	if err := s.transition(ctx, o, order.StatusInPreparation); err != nil {
		return TrackerSnapshot{}, err
	}
	if resumed {
		sess.deferred.Take(head)
		sess.queue.Remove(head)
	} else {
		sess.queue.Dequeue()
	}
	sess.syncDepth()
	sess.active = tr

	s.log.Info(ctx, "order_started", "order in preparation", map[string]any{
		"order_id": head, "restaurant_id": restaurantID, "resumed": resumed,
	})
	s.publish(ctx, history.Event{Type: history.EventStarted, OrderID: head, RestaurantID: restaurantID, WaitTime: o.WaitTime})
	return tr.Snapshot(), nil
}

// ProcessCurrentStep performs one stage of the active order. The first stage of each
// proposal is gated on stock; a shortfall restocks, defers the order and returns
// *OrderDelayedError without advancing. A step that no longer matches the tracker
// (another caller already processed it) is rejected with ErrStaleStep.
func (s *Service) ProcessCurrentStep(ctx context.Context, restaurantID, employeeID types.ID, step ProposalStep, orderID types.ID) (StepResult, error) {
	sess := s.session(restaurantID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	tr := sess.active
	if tr == nil || tr.OrderID() != orderID {
		return StepResult{}, fmt.Errorf("%w: order %s", ErrNoActiveOrder, orderID)
	}
	if isStale(tr, step) {
		return StepResult{}, fmt.Errorf("%w: proposal %s stage %d", ErrStaleStep, step.ProposalID, step.StageIndex)
	}

	if step.StageIndex == 0 {
		missing, err := s.missingIngredients(ctx, restaurantID, step.ProposalID)
		if err != nil {
			return StepResult{}, err
		}
		if len(missing) > 0 {
			return StepResult{}, s.delay(ctx, sess, tr, restaurantID, missing)
		}
	}

	if !tr.Advance(step.ProposalID, step.MenuID) {
		s.halt(ctx, sess, restaurantID, ErrStepNotAdvanced)
		return StepResult{}, fmt.Errorf("%w: proposal %s stage %d", ErrStepNotAdvanced, step.ProposalID, step.StageIndex)
	}
	s.log.Debug(ctx, "stage_done", "stage prepared", map[string]any{
		"order_id": orderID, "proposal_id": step.ProposalID, "stage": step.Stage, "employee_id": employeeID,
	})

	done, err := tr.IsProposalComplete(step.ProposalID, step.MenuID)
	if err != nil {
		s.halt(ctx, sess, restaurantID, err)
		return StepResult{}, err
	}
	if done {
		p, err := s.catalog.Proposal(ctx, step.ProposalID)
		if err != nil || !s.registerUsage(ctx, restaurantID, p.IngredientNames()) {
			s.halt(ctx, sess, restaurantID, ErrStockRegistrationFailed)
			return StepResult{}, fmt.Errorf("%w: proposal %s", ErrStockRegistrationFailed, step.ProposalID)
		}
	}
	return StepResult{ProposalDone: done, OrderDone: tr.IsComplete()}, nil
}

// isStale reports a step for a tracked occurrence whose stage has already been processed.
// Steps for occurrences the order does not contain are left to Advance, which halts.
func isStale(tr *Tracker, step ProposalStep) bool {
	if idx, ok := tr.CurrentIndex(step.ProposalID, step.MenuID); ok {
		return idx != step.StageIndex
	}
	done, err := tr.IsProposalComplete(step.ProposalID, step.MenuID)
	return err == nil && done && len(tr.stages[step.ProposalID]) > 0
}

// missingIngredients lists the proposal's ingredients with less than one unit in stock.
func (s *Service) missingIngredients(ctx context.Context, restaurantID, proposalID types.ID) ([]string, error) {
	ok, err := s.staff.RestaurantExists(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRestaurantUnknown, restaurantID)
	}
	p, err := s.catalog.Proposal(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("proposal %s: %w", proposalID, err)
	}

	var missing []string
	seen := make(map[string]bool)
	for _, ing := range p.IngredientNames() {
		if seen[ing] {
			continue
		}
		seen[ing] = true
		qty, found, err := s.stock.Quantity(ctx, restaurantID, ing)
		if err != nil {
			return nil, fmt.Errorf("stock %s: %w", ing, err)
		}
		if !found || qty < 1 {
			missing = append(missing, ing)
		}
	}
	return missing, nil
}

// delay requires sess.mu.
func (s *Service) delay(ctx context.Context, sess *session, tr *Tracker, restaurantID types.ID, missing []string) error {
	if err := s.stock.Restock(ctx, restaurantID, missing, s.cfg.RestockQty); err != nil {
		return fmt.Errorf("restock: %w", err)
	}
	o, err := s.orders.Get(ctx, tr.OrderID())
	if err != nil {
		return err
	}
	newWait := o.WaitTime + s.cfg.DelayPenaltyMin*float64(len(missing))

	sess.deferred.Put(tr)
	sess.active = nil
	if _, err := s.reoffer(ctx, sess, newWait, o.ID, restaurantID); err != nil {
		// keep preparing in place; the order was never moved back to queued
		sess.deferred.Take(tr.OrderID())
		sess.active = tr
		s.log.Error(ctx, "order_delayed", "re-offer failed, order stays in preparation", err, map[string]any{
			"order_id": o.ID, "restaurant_id": restaurantID, "missing": missing,
		})
		return fmt.Errorf("re-offer delayed order %s: %w", o.ID, err)
	}

	s.log.Warn(ctx, "order_delayed", "stock shortfall, order deferred", map[string]any{
		"order_id": o.ID, "restaurant_id": restaurantID, "missing": missing, "wait_time": newWait,
	})
	s.publish(ctx, history.Event{
		Type: history.EventDelayed, OrderID: o.ID, RestaurantID: restaurantID, WaitTime: newWait, Missing: missing,
	})
	return &OrderDelayedError{OrderID: o.ID, NewWaitTime: newWait, Missing: missing}
}

// halt discards the active tracker and marks the order halted. The order is not re-queued.
// Requires sess.mu.
func (s *Service) halt(ctx context.Context, sess *session, restaurantID types.ID, cause error) {
	tr := sess.active
	sess.active = nil
	if tr == nil {
		return
	}
	details := map[string]any{"order_id": tr.OrderID(), "restaurant_id": restaurantID}

	o, err := s.orders.Get(ctx, tr.OrderID())
	if err == nil {
		err = s.transition(ctx, o, order.StatusHalted)
	}
	if err != nil {
		s.log.Error(ctx, "order_halt_status", "could not mark order halted", err, details)
	}
	s.log.Error(ctx, "order_halted", "preparation session discarded", cause, details)
	s.publish(ctx, history.Event{Type: history.EventHalted, OrderID: tr.OrderID(), RestaurantID: restaurantID, Reason: cause.Error()})
}

// RegisterIngredientUsage consumes one unit of every ingredient. It stops at the first
// ingredient without stock; units already consumed in the call are not given back.
func (s *Service) RegisterIngredientUsage(ctx context.Context, restaurantID types.ID, ingredients []string) bool {
	sess := s.session(restaurantID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.registerUsage(ctx, restaurantID, ingredients)
}

// registerUsage requires the restaurant's session lock.
func (s *Service) registerUsage(ctx context.Context, restaurantID types.ID, ingredients []string) bool {
	for _, ing := range ingredients {
		qty, found, err := s.stock.Quantity(ctx, restaurantID, ing)
		if err != nil || !found || qty < 1 {
			s.log.Warn(ctx, "stock_usage", "ingredient unavailable", map[string]any{
				"restaurant_id": restaurantID, "ingredient": ing, "quantity": qty,
			})
			return false
		}
		if err := s.stock.SetQuantity(ctx, restaurantID, ing, qty-1); err != nil {
			s.log.Error(ctx, "stock_usage", "decrement failed", err, map[string]any{
				"restaurant_id": restaurantID, "ingredient": ing,
			})
			return false
		}
	}
	return true
}

// Complete closes the active order once every stage is done and archives it.
func (s *Service) Complete(ctx context.Context, restaurantID types.ID) (*order.Order, error) {
	sess := s.session(restaurantID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	tr := sess.active
	if tr == nil {
		return nil, ErrNoActiveOrder
	}
	if !tr.IsComplete() {
		return nil, ErrOrderIncomplete
	}
	o, err := s.orders.Get(ctx, tr.OrderID())
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, o, order.StatusCompleted); err != nil {
		return nil, err
	}
	sess.active = nil

	details := map[string]any{"order_id": o.ID, "restaurant_id": restaurantID, "wait_time": o.WaitTime}
	if err := s.history.Archive(ctx, o); err != nil {
		s.log.Error(ctx, "order_archive", "archive failed", err, details)
		return o, fmt.Errorf("archive order %s: %w", o.ID, err)
	}
	s.log.Info(ctx, "order_completed", "order completed", details)
	s.publish(ctx, history.Event{Type: history.EventCompleted, OrderID: o.ID, RestaurantID: restaurantID, WaitTime: o.WaitTime})
	return o, nil
}

func (s *Service) GuardedRetrieveNext(restaurantID types.ID) (ProposalStep, bool) {
	sess := s.session(restaurantID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.active == nil {
		return ProposalStep{}, false
	}
	return sess.active.NextStep()
}

// ObtainEmployeeForStage finds the first employee whose duty matches the stage name.
// A miss means the restaurant's staff is misconfigured.
func (s *Service) ObtainEmployeeForStage(ctx context.Context, restaurantID types.ID, stageName string) (types.ID, error) {
	id, ok, err := s.staff.FindEmployeeByDuty(ctx, restaurantID, stageName)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %q in restaurant %s", ErrNoEmployeeForStage, stageName, restaurantID)
	}
	return id, nil
}

func (s *Service) PeekQueue(restaurantID types.ID) (types.ID, bool) {
	sess := s.session(restaurantID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.queue.Peek()
}

// Dequeue drops the head of the queue without starting it.
func (s *Service) Dequeue(restaurantID types.ID) (types.ID, bool) {
	sess := s.session(restaurantID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	id, ok := sess.queue.Dequeue()
	sess.syncDepth()
	return id, ok
}

func (s *Service) ListQueued(restaurantID types.ID) []types.ID {
	sess := s.session(restaurantID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.queue.List()
}

// ActiveTracker returns the id of the order in preparation. The tracker never leaves
// the session; use ActiveSnapshot for its progress.
func (s *Service) ActiveTracker(restaurantID types.ID) (types.ID, bool) {
	sess := s.session(restaurantID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.active == nil {
		return "", false
	}
	return sess.active.OrderID(), true
}

func (s *Service) ActiveSnapshot(restaurantID types.ID) (TrackerSnapshot, bool) {
	sess := s.session(restaurantID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.active == nil {
		return TrackerSnapshot{}, false
	}
	return sess.active.Snapshot(), true
}

// SetActiveTracker replaces the active slot; nil clears it. The session owns t afterwards.
func (s *Service) SetActiveTracker(restaurantID types.ID, t *Tracker) {
	sess := s.session(restaurantID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.active = t
}

func (s *Service) Deferred(restaurantID types.ID) []types.ID {
	sess := s.session(restaurantID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.deferred.IDs()
}

// Dispatchable lists restaurants with queued orders and no order in preparation.
func (s *Service) Dispatchable() []types.ID {
	s.mu.Lock()
	candidates := make(map[types.ID]*session, len(s.sessions))
	for id, sess := range s.sessions {
		if sess.queued.Load() > 0 {
			candidates[id] = sess
		}
	}
	s.mu.Unlock()

	var out []types.ID
	for id, sess := range candidates {
		sess.mu.Lock()
		idle := sess.active == nil && sess.queue.Len() > 0
		sess.mu.Unlock()
		if idle {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// transition applies a status change guarded by the status table and the row version.
func (s *Service) transition(ctx context.Context, o *order.Order, to order.Status) error {
	if !order.CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", order.ErrInvalidState, o.Status, to)
	}
	ok, err := s.orders.UpdateStatus(ctx, o.ID, o.Status, to, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", order.ErrConflict, o.ID)
	}
	now := time.Now()
	o.Status = to
	o.StatusVersion++
	if to == order.StatusQueued && o.RegisteredAt == nil {
		o.RegisteredAt = &now
	}
	if to == order.StatusCompleted {
		o.CompletedAt = &now
	}
	return nil
}

func (s *Service) publish(ctx context.Context, e history.Event) {
	e.At = time.Now().UTC()
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Error(ctx, "event_publish", "kitchen event not published", err, map[string]any{
			"type": e.Type, "order_id": e.OrderID,
		})
	}
}

// IsDelayed reports whether err carries an OrderDelayedError.
func IsDelayed(err error) (*OrderDelayedError, bool) {
	var d *OrderDelayedError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
