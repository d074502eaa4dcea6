// ABOUTME: Correlation table mapping request IDs to pending waiters and their deadline timers.
// ABOUTME: Removal and resolution happen in one critical section so a waiter resolves exactly once.

package relay

import (
	"errors"
	"sync"
	"time"
)

// ErrDuplicateID indicates a request ID is already registered.
var ErrDuplicateID = errors.New("request id already registered")

// pendingRequest is one in-flight correlation.
type pendingRequest struct {
	id         string
	waiter     *Waiter
	deadlineAt time.Time
	timer      *time.Timer
}

// Table tracks in-flight requests. All methods are safe for concurrent use.
type Table struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest

	// onExpire is called after a deadline resolves an entry.
	onExpire func(id string)
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{
		pending: make(map[string]*pendingRequest),
	}
}

// Register inserts id and arms its deadline timer. When the timer fires
// while the entry is still present it resolves with ErrorTimeout.
func (t *Table) Register(id string, w *Waiter, deadline time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.pending[id]; exists {
		return ErrDuplicateID
	}

	req := &pendingRequest{
		id:         id,
		waiter:     w,
		deadlineAt: deadline,
	}
	req.timer = time.AfterFunc(time.Until(deadline), func() {
		if t.Resolve(id, timedOut()) && t.onExpire != nil {
			t.onExpire(id)
		}
	})
	t.pending[id] = req
	return nil
}

// Resolve removes id and fulfils its waiter with r. It returns false when
// id is not pending, which means someone else already resolved it.
func (t *Table) Resolve(id string, r Result) bool {
	t.mu.Lock()
	req, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	req.timer.Stop()
	return req.waiter.fulfil(r)
}

// DrainAll removes every entry and fulfils each waiter with r.
// Returns the number of entries drained.
func (t *Table) DrainAll(r Result) int {
	t.mu.Lock()
	drained := t.pending
	t.pending = make(map[string]*pendingRequest)
	t.mu.Unlock()

	for _, req := range drained {
		req.timer.Stop()
		req.waiter.fulfil(r)
	}
	return len(drained)
}

// Len returns the number of pending requests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Has reports whether id is pending.
func (t *Table) Has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[id]
	return ok
}

// Deadline returns the deadline registered for id.
func (t *Table) Deadline(id string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.pending[id]
	if !ok {
		return time.Time{}, false
	}
	return req.deadlineAt, true
}
