// Package notify implements the process-wide notification queue of
// spec.md §4.4: a thread-safe FIFO of (user_id, event) pairs produced
// by the buy and expiry paths and drained only by the notifier task.
// No acknowledgement or persistence — a crashed server loses pending
// notifications.
package notify

import (
	"sync"

	"github.com/kinkard/auctionhouse/internal/models"
)

// Notification pairs the recipient with the event to deliver.
type Notification struct {
	UserID uint64
	Event  models.Event
}

// Queue is a mutex-guarded FIFO. The expiry task and the per-connection
// command task may both push; only the notifier task drains.
type Queue struct {
	mu      sync.Mutex
	pending []Notification
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Push appends a notification to the tail of the queue.
func (q *Queue) Push(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, n)
}

// Drain removes and returns every pending notification in FIFO order,
// leaving the queue empty.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	drained := q.pending
	q.pending = nil
	return drained
}
