// README: Paused trackers waiting for restock, kept in deferral order.
package scheduler

import "brigade/internal/types"

// deferrals holds trackers paused by a stock shortfall, keyed by order id.
type deferrals struct {
	trackers map[types.ID]*Tracker
	order    []types.ID
}

func newDeferrals() *deferrals {
	return &deferrals{trackers: make(map[types.ID]*Tracker)}
}

func (d *deferrals) Put(t *Tracker) {
	id := t.OrderID()
	if _, ok := d.trackers[id]; !ok {
		d.order = append(d.order, id)
	}
	d.trackers[id] = t
}

func (d *deferrals) Get(orderID types.ID) (*Tracker, bool) {
	t, ok := d.trackers[orderID]
	return t, ok
}

func (d *deferrals) Take(orderID types.ID) (*Tracker, bool) {
	t, ok := d.trackers[orderID]
	if !ok {
		return nil, false
	}
	delete(d.trackers, orderID)
	for i, id := range d.order {
		if id == orderID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return t, true
}

// IDs lists deferred orders in the order they were paused.
func (d *deferrals) IDs() []types.ID {
	return append([]types.ID(nil), d.order...)
}
