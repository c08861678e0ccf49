// README: Per-restaurant wait queue ordered by wait time, FIFO on equal wait.
package scheduler

import (
	"container/heap"
	"context"

	"brigade/internal/types"
)

// WaitTimeFunc reads the current wait time of an order, normally from the order store.
type WaitTimeFunc func(ctx context.Context, orderID types.ID) (float64, error)

type queueEntry struct {
	orderID types.ID
	wait    float64
	seq     uint64
	index   int
}

type entryHeap []*queueEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].wait != h[j].wait {
		return h[i].wait < h[j].wait
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*queueEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// WaitQueue is not safe for concurrent use; the owning session serializes access.
type WaitQueue struct {
	key     WaitTimeFunc
	entries entryHeap
	byID    map[types.ID]*queueEntry
	nextSeq uint64
}

func NewWaitQueue(key WaitTimeFunc) *WaitQueue {
	return &WaitQueue{key: key, byID: make(map[types.ID]*queueEntry)}
}

// Enqueue reads the order's wait time through the key function and offers it.
func (q *WaitQueue) Enqueue(ctx context.Context, orderID types.ID) error {
	wait, err := q.key(ctx, orderID)
	if err != nil {
		return err
	}
	q.Offer(orderID, wait)
	return nil
}

// Offer inserts the order, or re-keys it in place when it is already queued.
// A re-keyed order keeps its original sequence for tie-breaking.
func (q *WaitQueue) Offer(orderID types.ID, wait float64) {
	if e, ok := q.byID[orderID]; ok {
		e.wait = wait
		heap.Fix(&q.entries, e.index)
		return
	}
	e := &queueEntry{orderID: orderID, wait: wait, seq: q.nextSeq}
	q.nextSeq++
	heap.Push(&q.entries, e)
	q.byID[orderID] = e
}

func (q *WaitQueue) Peek() (types.ID, bool) {
	if len(q.entries) == 0 {
		return "", false
	}
	return q.entries[0].orderID, true
}

func (q *WaitQueue) Dequeue() (types.ID, bool) {
	if len(q.entries) == 0 {
		return "", false
	}
	e := heap.Pop(&q.entries).(*queueEntry)
	delete(q.byID, e.orderID)
	return e.orderID, true
}

func (q *WaitQueue) Remove(orderID types.ID) bool {
	e, ok := q.byID[orderID]
	if !ok {
		return false
	}
	heap.Remove(&q.entries, e.index)
	delete(q.byID, orderID)
	return true
}

func (q *WaitQueue) Contains(orderID types.ID) bool {
	_, ok := q.byID[orderID]
	return ok
}

// List returns queued order ids in dispatch order.
func (q *WaitQueue) List() []types.ID {
	cp := make(entryHeap, len(q.entries))
	for i, e := range q.entries {
		c := *e
		c.index = i
		cp[i] = &c
	}
	out := make([]types.ID, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, heap.Pop(&cp).(*queueEntry).orderID)
	}
	return out
}

func (q *WaitQueue) Len() int {
	return len(q.entries)
}
