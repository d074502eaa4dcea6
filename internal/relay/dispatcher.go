// ABOUTME: Dispatcher turns a blocking agent request into a correlated executor message.
// ABOUTME: Every path resolves the returned waiter exactly once, including immediate failures.

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Submit validates req, registers it and sends it to the executor. The
// returned waiter resolves with the reply, a timeout, a disconnect, or an
// immediate failure. Submit never blocks on the executor.
func (r *Relay) Submit(req ActionRequest) *Waiter {
	r.counters.submitted.Add(1)
	w := r.trackedWaiter()

	if err := req.Validate(); err != nil {
		w.fulfil(Failure(err.Error()))
		return w
	}
	if r.selectors != nil {
		if err := r.selectors.Validate(req.Selector); err != nil {
			w.fulfil(Failure(err.Error()))
			return w
		}
	}

	timeout := r.effectiveTimeout(req.Timeout)
	var (
		id   string
		raw  []byte
		peer Peer
	)

	// State check and registration share the hub's read lock, so a
	// disconnect either happens before (absent, nothing registered) or
	// after (the drain resolves this entry).
	err := r.hub.whileConnected(func(p Peer) error {
		peer = p
		id = r.newID()
		var err error
		raw, err = json.Marshal(outboundMessage{
			ID:       id,
			Action:   req.Action,
			Selector: req.Selector,
			Value:    req.Value,
			URL:      req.URL,
			Timeout:  timeout.Milliseconds(),
		})
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		return r.table.Register(id, w, time.Now().Add(timeout))
	})
	switch {
	case errors.Is(err, ErrNotConnected):
		w.fulfil(relayFailure(OutcomeNotConnected, ErrorNotConnected))
		return w
	case errors.Is(err, ErrDuplicateID):
		r.logger.Error("request id collision", "request_id", id)
		w.fulfil(Failure(ErrorDuplicateID))
		return w
	case err != nil:
		w.fulfil(Failure(err.Error()))
		return w
	}

	if err := send(peer, raw); err != nil {
		r.table.Resolve(id, sendFailed(err))
		r.logger.Warn("send to extension failed", "request_id", id, "error", err)
		// Detaching a peer that was already replaced is a no-op.
		r.hub.Detach(peer, err)
		return w
	}

	r.logger.Debug("request sent to extension",
		"request_id", id,
		"action", req.Action,
		"selector", req.Selector,
		"timeout", timeout,
	)
	return w
}

// Execute submits req and waits for its result. If ctx ends first the
// caller stops waiting, but the request stays registered until it resolves.
func (r *Relay) Execute(ctx context.Context, req ActionRequest) (Result, error) {
	return r.Submit(req).Wait(ctx)
}

func (r *Relay) trackedWaiter() *Waiter {
	w := newWaiter()
	w.observe = r.record
	return w
}

func (r *Relay) effectiveTimeout(requested time.Duration) time.Duration {
	t := requested
	if t <= 0 {
		t = r.defaultTimeout
	}
	if r.maxTimeout > 0 && t > r.maxTimeout {
		t = r.maxTimeout
	}
	return t
}
