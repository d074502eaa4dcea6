// ABOUTME: SQLite implementation for action history
// ABOUTME: Records completed agent requests and extension sessions for auditing

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeFormat sorts lexically in chronological order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SaveAction stores a completed action.
func (s *SQLiteStore) SaveAction(ctx context.Context, rec *ActionRecord) error {
	query := `
		INSERT INTO action_log (
			id, agent, action, selector, url, has_value,
			success, outcome, error, element_type, duration_ms, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Agent,
		rec.Action,
		rec.Selector,
		rec.URL,
		boolToInt(rec.HasValue),
		boolToInt(rec.Success),
		rec.Outcome,
		rec.Error,
		rec.ElementType,
		rec.Duration.Milliseconds(),
		rec.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting action: %w", err)
	}

	s.logger.Debug("saved action",
		"id", rec.ID,
		"action", rec.Action,
		"outcome", rec.Outcome,
	)
	return nil
}

// GetAction retrieves one action by ID.
func (s *SQLiteStore) GetAction(ctx context.Context, id string) (*ActionRecord, error) {
	query := `
		SELECT id, agent, action, selector, url, has_value,
		       success, outcome, error, element_type, duration_ms, created_at
		FROM action_log
		WHERE id = ?
	`

	rec, err := scanAction(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListActions returns actions newest first.
func (s *SQLiteStore) ListActions(ctx context.Context, filter ActionFilter) ([]*ActionRecord, error) {
	query := `
		SELECT id, agent, action, selector, url, has_value,
		       success, outcome, error, element_type, duration_ms, created_at
		FROM action_log
		WHERE 1=1
	`
	args := []any{}

	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, filter.Action)
	}
	if filter.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, filter.Outcome)
	}
	if filter.Agent != "" {
		query += " AND agent = ?"
		args = append(args, filter.Agent)
	}
	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC().Format(timeFormat))
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, clampLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*ActionRecord
	for rows.Next() {
		rec, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action rows: %w", err)
	}

	return records, nil
}

// PruneActions deletes actions created before the given time.
func (s *SQLiteStore) PruneActions(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM action_log WHERE created_at < ?`,
		before.UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning actions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned action history", "deleted", n, "before", before)
	}
	return n, nil
}

// OpenSession records an executor connecting.
func (s *SQLiteStore) OpenSession(ctx context.Context, sess *ExtensionSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extension_sessions (id, remote_addr, connected_at) VALUES (?, ?, ?)`,
		sess.ID,
		sess.RemoteAddr,
		sess.ConnectedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// CloseSession records an executor going away.
func (s *SQLiteStore) CloseSession(ctx context.Context, id string, at time.Time, drained int, reason string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE extension_sessions SET disconnected_at = ?, drained = ?, reason = ? WHERE id = ?`,
		at.UTC().Format(timeFormat),
		drained,
		reason,
		id,
	)
	if err != nil {
		return fmt.Errorf("closing session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSessions returns sessions newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*ExtensionSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, remote_addr, connected_at, disconnected_at, drained, reason
		FROM extension_sessions
		ORDER BY connected_at DESC
		LIMIT ?
	`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*ExtensionSession
	for rows.Next() {
		var (
			sess         ExtensionSession
			connectedAt  string
			disconnected sql.NullString
		)
		if err := rows.Scan(&sess.ID, &sess.RemoteAddr, &connectedAt, &disconnected, &sess.Drained, &sess.Reason); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if sess.ConnectedAt, err = time.Parse(timeFormat, connectedAt); err != nil {
			return nil, fmt.Errorf("parsing connected_at: %w", err)
		}
		if disconnected.Valid {
			t, err := time.Parse(timeFormat, disconnected.String)
			if err != nil {
				return nil, fmt.Errorf("parsing disconnected_at: %w", err)
			}
			sess.DisconnectedAt = &t
		}
		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (*ActionRecord, error) {
	var (
		rec       ActionRecord
		hasValue  int
		success   int
		createdAt string
	)
	err := row.Scan(
		&rec.ID,
		&rec.Agent,
		&rec.Action,
		&rec.Selector,
		&rec.URL,
		&hasValue,
		&success,
		&rec.Outcome,
		&rec.Error,
		&rec.ElementType,
		&rec.DurationMS,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning action: %w", err)
	}

	rec.HasValue = hasValue != 0
	rec.Success = success != 0
	rec.Duration = time.Duration(rec.DurationMS) * time.Millisecond
	rec.CreatedAt, err = time.Parse(timeFormat, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
