// ABOUTME: Relay wires the correlation table, connection hub, dispatcher and demultiplexer.
// ABOUTME: Exposes a read-only status snapshot for health and status surfaces.

package relay

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SelectorValidator rejects selectors before they are dispatched.
type SelectorValidator interface {
	Validate(selector string) error
}

// Options configures a Relay.
type Options struct {
	// DefaultTimeout applies when a request carries no timeout. Defaults to 30s.
	DefaultTimeout time.Duration
	// MaxTimeout caps per-request timeouts. Zero means no cap.
	MaxTimeout time.Duration
	// Selectors validates selectors eagerly. Nil dispatches them unchecked.
	Selectors SelectorValidator
	// NewID overrides request ID generation (tests only).
	NewID func() string
	Logger *slog.Logger
}

// Relay is the correlation engine between agents and the executor.
type Relay struct {
	table     *Table
	hub       *Hub
	selectors SelectorValidator
	newID     func() string
	logger    *slog.Logger

	defaultTimeout time.Duration
	maxTimeout     time.Duration
	startedAt      time.Time

	counters counters
}

type counters struct {
	submitted    atomic.Int64
	succeeded    atomic.Int64
	failed       atomic.Int64
	rejected     atomic.Int64
	sendFailed   atomic.Int64
	timedOut     atomic.Int64
	disconnected atomic.Int64
	lateReplies  atomic.Int64
	dropped      atomic.Int64
}

// New creates a Relay with no executor attached.
func New(opts Options) *Relay {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	table := NewTable()
	r := &Relay{
		table:          table,
		hub:            NewHub(table, logger.With("component", "hub")),
		selectors:      opts.Selectors,
		newID:          opts.NewID,
		logger:         logger,
		defaultTimeout: opts.DefaultTimeout,
		maxTimeout:     opts.MaxTimeout,
		startedAt:      time.Now(),
	}
	table.onExpire = func(id string) {
		r.logger.Warn("request timed out", "request_id", id)
	}
	return r
}

// Hub returns the executor connection manager.
func (r *Relay) Hub() *Hub { return r.hub }

// Table returns the correlation table.
func (r *Relay) Table() *Table { return r.table }

// Close fails anything in flight and detaches the executor.
func (r *Relay) Close() {
	r.hub.Close()
}

// Status is a read-only snapshot of relay state.
type Status struct {
	ExtensionConnected  bool          `json:"extensionConnected"`
	PendingRequestCount int           `json:"pendingRequests"`
	Uptime              time.Duration `json:"-"`
	UptimeSeconds       float64       `json:"uptime"`
	ConnectedSince      *time.Time    `json:"connectedSince,omitempty"`
	Stats               Stats         `json:"stats"`
}

// Stats are cumulative request counters.
type Stats struct {
	Submitted    int64 `json:"submitted"`
	Succeeded    int64 `json:"succeeded"`
	Failed       int64 `json:"failed"`
	Rejected     int64 `json:"rejected"`
	SendFailed   int64 `json:"sendFailed"`
	TimedOut     int64 `json:"timedOut"`
	Disconnected int64 `json:"disconnected"`
	LateReplies  int64 `json:"lateReplies"`
	Dropped      int64 `json:"dropped"`
}

// Snapshot returns the current status.
func (r *Relay) Snapshot() Status {
	uptime := time.Since(r.startedAt)
	st := Status{
		PendingRequestCount: r.table.Len(),
		Uptime:              uptime,
		UptimeSeconds:       uptime.Seconds(),
		Stats: Stats{
			Submitted:    r.counters.submitted.Load(),
			Succeeded:    r.counters.succeeded.Load(),
			Failed:       r.counters.failed.Load(),
			Rejected:     r.counters.rejected.Load(),
			SendFailed:   r.counters.sendFailed.Load(),
			TimedOut:     r.counters.timedOut.Load(),
			Disconnected: r.counters.disconnected.Load(),
			LateReplies:  r.counters.lateReplies.Load(),
			Dropped:      r.counters.dropped.Load(),
		},
	}
	if since, ok := r.hub.ConnectedSince(); ok {
		st.ExtensionConnected = true
		st.ConnectedSince = &since
	}
	return st
}

// record updates counters for a terminal result.
func (r *Relay) record(res Result) {
	switch res.Outcome() {
	case OutcomeSuccess:
		r.counters.succeeded.Add(1)
	case OutcomeNotConnected:
		r.counters.rejected.Add(1)
	case OutcomeSendFailed:
		r.counters.sendFailed.Add(1)
	case OutcomeTimeout:
		r.counters.timedOut.Add(1)
	case OutcomeDisconnected:
		r.counters.disconnected.Add(1)
	default:
		r.counters.failed.Add(1)
	}
}
