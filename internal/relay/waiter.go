// ABOUTME: One-shot waiter a submitting caller blocks on until its request resolves.
// ABOUTME: The first fulfil wins; later fulfils are no-ops and report false.

package relay

import (
	"context"
	"sync"
)

// Waiter is a single-assignment future for a Result.
type Waiter struct {
	once sync.Once
	ch   chan Result

	// observe sees the delivered result once, before any receiver wakes.
	observe func(Result)
}

func newWaiter() *Waiter {
	return &Waiter{ch: make(chan Result, 1)}
}

// fulfil delivers r if nothing has been delivered yet.
func (w *Waiter) fulfil(r Result) bool {
	delivered := false
	w.once.Do(func() {
		if w.observe != nil {
			w.observe(r)
		}
		w.ch <- r
		close(w.ch)
		delivered = true
	})
	return delivered
}

// Done returns a channel that yields the result once and is then closed.
func (w *Waiter) Done() <-chan Result {
	return w.ch
}

// Wait blocks until the result is available or ctx is done.
// Giving up on ctx does not cancel the request; its deadline still resolves it.
func (w *Waiter) Wait(ctx context.Context) (Result, error) {
	select {
	case r := <-w.ch:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
