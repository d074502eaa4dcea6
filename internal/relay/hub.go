// ABOUTME: Owns the single logical connection to the browser-side executor.
// ABOUTME: State transitions to absent drain the correlation table before any event is emitted.

package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNotConnected indicates no executor is attached.
var ErrNotConnected = errors.New("extension not connected")

// State is the executor connection state.
type State int

const (
	StateAbsent State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "absent"
}

// Peer is a live transport to an executor.
type Peer interface {
	// Send writes one raw message. It must be safe to call concurrently.
	Send(raw []byte) error
	// Close tears the transport down. It may be called more than once.
	Close() error
	// RemoteAddr identifies the peer in logs.
	RemoteAddr() string
}

// SendError reports a transport failure while sending to a specific peer.
type SendError struct {
	Peer Peer
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sending to %s: %v", e.Peer.RemoteAddr(), e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// EventKind distinguishes hub notifications.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
)

// Event is emitted after every state transition.
type Event struct {
	Kind    EventKind
	Peer    Peer
	Drained int   // requests failed by the transition (disconnect only)
	Reason  error // cause of the disconnect, nil when replaced
	At      time.Time
}

// Hub is the executor connection manager. Its lock is the outer lock for
// every transition; the table lock nests inside it.
type Hub struct {
	mu          sync.RWMutex
	peer        Peer
	connectedAt time.Time
	closed      bool
	table       *Table
	logger      *slog.Logger

	subMu       sync.Mutex
	subscribers []func(Event)
}

// NewHub creates a Hub that drains table whenever the executor goes away.
func NewHub(table *Table, logger *slog.Logger) *Hub {
	return &Hub{
		table:  table,
		logger: logger,
	}
}

// State returns the current connection state.
func (h *Hub) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.peer == nil {
		return StateAbsent
	}
	return StateConnected
}

// ConnectedSince returns when the current peer attached.
func (h *Hub) ConnectedSince() (time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connectedAt, h.peer != nil
}

// Subscribe registers fn for connected/disconnected events. Events are
// delivered synchronously after the transition completes.
func (h *Hub) Subscribe(fn func(Event)) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.subscribers = append(h.subscribers, fn)
}

func (h *Hub) emit(evt Event) {
	h.subMu.Lock()
	subs := make([]func(Event), len(h.subscribers))
	copy(subs, h.subscribers)
	h.subMu.Unlock()

	for _, fn := range subs {
		fn(evt)
	}
}

// Attach makes p the current executor. A previously attached peer is
// replaced: its pending requests fail with ErrorDisconnected and it is closed.
// After Close, Attach closes p instead.
func (h *Hub) Attach(p Peer) {
	now := time.Now()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = p.Close()
		h.logger.Warn("rejecting executor, relay is closed", "peer", p.RemoteAddr())
		return
	}
	old := h.peer
	drained := 0
	if old != nil {
		drained = h.table.DrainAll(disconnected())
	}
	h.peer = p
	h.connectedAt = now
	h.mu.Unlock()

	if old != nil {
		_ = old.Close()
		h.logger.Warn("executor replaced by new connection",
			"old_peer", old.RemoteAddr(),
			"new_peer", p.RemoteAddr(),
			"drained", drained,
		)
		h.emit(Event{Kind: EventDisconnected, Peer: old, Drained: drained, At: now})
	}

	h.logger.Info("=== EXTENSION CONNECTED ===", "peer", p.RemoteAddr())
	h.emit(Event{Kind: EventConnected, Peer: p, At: now})
}

// Detach flips the state to absent if p is still the current peer,
// failing every pending request. Detaching a stale peer is a no-op.
func (h *Hub) Detach(p Peer, reason error) bool {
	h.mu.Lock()
	if h.peer == nil || h.peer != p {
		h.mu.Unlock()
		return false
	}
	h.peer = nil
	h.connectedAt = time.Time{}
	drained := h.table.DrainAll(disconnected())
	h.mu.Unlock()

	_ = p.Close()
	h.logger.Info("=== EXTENSION DISCONNECTED ===",
		"peer", p.RemoteAddr(),
		"drained", drained,
		"reason", reason,
	)
	h.emit(Event{Kind: EventDisconnected, Peer: p, Drained: drained, Reason: reason, At: time.Now()})
	return true
}

// Close detaches whatever peer is attached and refuses later attaches.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	p := h.peer
	h.mu.Unlock()
	if p != nil {
		h.Detach(p, errors.New("relay shutting down"))
	}
}

// whileConnected runs fn with the state lock held for reading, so no
// transition can interleave. It returns ErrNotConnected when absent.
func (h *Hub) whileConnected(fn func(p Peer) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.peer == nil {
		return ErrNotConnected
	}
	return fn(h.peer)
}

// send writes raw to p, the peer captured at registration. A peer that
// has since been replaced is already closed, so the write fails and the
// drained request is not sent anywhere else.
func send(p Peer, raw []byte) error {
	if err := p.Send(raw); err != nil {
		return &SendError{Peer: p, Err: err}
	}
	return nil
}
