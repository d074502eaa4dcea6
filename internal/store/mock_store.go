// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	actions  map[string]*ActionRecord
	sessions map[string]*ExtensionSession

	// SaveErr, when set, is returned by SaveAction.
	SaveErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		actions:  make(map[string]*ActionRecord),
		sessions: make(map[string]*ExtensionSession),
	}
}

// SaveAction stores a copy of rec.
func (m *MockStore) SaveAction(ctx context.Context, rec *ActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	r := *rec
	r.DurationMS = r.Duration.Milliseconds()
	m.actions[r.ID] = &r
	return nil
}

// GetAction retrieves an action by ID.
func (m *MockStore) GetAction(ctx context.Context, id string) (*ActionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.actions[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *r
	return &result, nil
}

// ListActions returns matching actions newest first.
func (m *MockStore) ListActions(ctx context.Context, filter ActionFilter) ([]*ActionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*ActionRecord
	for _, r := range m.actions {
		if filter.Action != "" && r.Action != filter.Action {
			continue
		}
		if filter.Outcome != "" && r.Outcome != filter.Outcome {
			continue
		}
		if filter.Agent != "" && r.Agent != filter.Agent {
			continue
		}
		if filter.Since != nil && r.CreatedAt.Before(*filter.Since) {
			continue
		}
		c := *r
		out = append(out, &c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit := clampLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PruneActions deletes actions created before the given time.
func (m *MockStore) PruneActions(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, r := range m.actions {
		if r.CreatedAt.Before(before) {
			delete(m.actions, id)
			n++
		}
	}
	return n, nil
}

// OpenSession records a session.
func (m *MockStore) OpenSession(ctx context.Context, sess *ExtensionSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *sess
	m.sessions[s.ID] = &s
	return nil
}

// CloseSession marks a session disconnected.
func (m *MockStore) CloseSession(ctx context.Context, id string, at time.Time, drained int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.DisconnectedAt = &at
	s.Drained = drained
	s.Reason = reason
	return nil
}

// ListSessions returns sessions newest first.
func (m *MockStore) ListSessions(ctx context.Context, limit int) ([]*ExtensionSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*ExtensionSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt.After(out[j].ConnectedAt)
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store
var _ Store = (*MockStore)(nil)
