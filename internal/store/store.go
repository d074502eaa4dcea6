// ABOUTME: Store interface and data types for dom-relay persistence
// ABOUTME: Defines ActionRecord, ExtensionSession and the Store interface for history operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ActionRecord is one completed agent request. Values written by write
// actions are never persisted; HasValue records only that one was supplied.
type ActionRecord struct {
	ID          string        `json:"id"`
	Agent       string        `json:"agent,omitempty"` // token subject when auth is enabled
	Action      string        `json:"action"`
	Selector    string        `json:"selector"`
	URL         string        `json:"url,omitempty"`
	HasValue    bool          `json:"hasValue"`
	Success     bool          `json:"success"`
	Outcome     string        `json:"outcome"`
	Error       string        `json:"error,omitempty"`
	ElementType string        `json:"elementType,omitempty"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"durationMs"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// ActionFilter narrows ListActions. Zero fields do not filter.
type ActionFilter struct {
	Action  string
	Outcome string
	Agent   string
	Since   *time.Time
	Limit   int // defaults to 50, capped at 1000
}

// ExtensionSession is one executor connection, from attach to detach.
type ExtensionSession struct {
	ID             string     `json:"id"`
	RemoteAddr     string     `json:"remoteAddr"`
	ConnectedAt    time.Time  `json:"connectedAt"`
	DisconnectedAt *time.Time `json:"disconnectedAt,omitempty"`
	Drained        int        `json:"drained"`
	Reason         string     `json:"reason,omitempty"`
}

// Store persists relay history.
type Store interface {
	SaveAction(ctx context.Context, rec *ActionRecord) error
	GetAction(ctx context.Context, id string) (*ActionRecord, error)
	ListActions(ctx context.Context, filter ActionFilter) ([]*ActionRecord, error)
	PruneActions(ctx context.Context, before time.Time) (int64, error)

	OpenSession(ctx context.Context, sess *ExtensionSession) error
	CloseSession(ctx context.Context, id string, at time.Time, drained int, reason string) error
	ListSessions(ctx context.Context, limit int) ([]*ExtensionSession, error)

	Close() error
}

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	default:
		return n
	}
}
