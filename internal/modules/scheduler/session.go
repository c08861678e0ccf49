// README: Per-restaurant scheduling session (queue, active tracker, deferred trackers).
package scheduler

import (
	"sync"
	"sync/atomic"

	"brigade/internal/types"
)

// session is the scheduling state of one restaurant. Every facade call for the
// restaurant holds mu, so at most one order is in preparation at a time.
type session struct {
	mu       sync.Mutex
	queue    *WaitQueue
	active   *Tracker
	deferred *deferrals

	// queued mirrors queue.Len() for lock-free reads across restaurants.
	queued atomic.Int64
}

func (s *session) syncDepth() {
	s.queued.Store(int64(s.queue.Len()))
}

func (s *Service) session(restaurantID types.ID) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[restaurantID]
	if !ok {
		sess = &session{
			queue:    NewWaitQueue(s.waitTime),
			deferred: newDeferrals(),
		}
		s.sessions[restaurantID] = sess
	}
	return sess
}

// busyRestaurants counts restaurants whose wait queue is not empty.
func (s *Service) busyRestaurants() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.queued.Load() > 0 {
			n++
		}
	}
	return n
}
