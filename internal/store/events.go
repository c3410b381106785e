package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/shiftrule/internal/ir"
)

// WriteEvent appends an event to the audit log.
// Uses ON CONFLICT(session, seq) DO NOTHING so a retried write is harmless.
func (s *Store) WriteEvent(ctx context.Context, ev ir.Event) error {
	if ev.Session == "" {
		return fmt.Errorf("write event: empty session")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (session, seq, kind, scope, subject)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session, seq) DO NOTHING
	`, ev.Session, ev.Seq, string(ev.Kind), string(ev.Scope), ev.Subject)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}

// ReadEvents returns all events for a session ordered by seq.
// Returns an empty slice (not nil) when the session has no events.
func (s *Store) ReadEvents(ctx context.Context, session string) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session, seq, kind, scope, subject
		FROM events
		WHERE session = ?
		ORDER BY seq ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanEvents(rows)
}

// ReadEventsForSubject returns every event about subject across sessions.
// Sessions are time-ordered tokens, so ordering by (session, seq) is
// chronological.
func (s *Store) ReadEventsForSubject(ctx context.Context, subject string) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session, seq, kind, scope, subject
		FROM events
		WHERE subject = ?
		ORDER BY session COLLATE BINARY ASC, seq ASC
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("query events for subject: %w", err)
	}
	return scanEvents(rows)
}

// ListSessions returns all distinct session tokens, oldest first.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT session FROM events
		ORDER BY session COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var session string
		if err := rows.Scan(&session); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// LastSeq returns the highest seq recorded for a session, or 0.
// Used to resume a session's logical clock.
func (s *Store) LastSeq(ctx context.Context, session string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM events WHERE session = ?
	`, session).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

func scanEvents(rows *sql.Rows) ([]ir.Event, error) {
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var (
			ev          ir.Event
			kind, scope string
		)
		if err := rows.Scan(&ev.Session, &ev.Seq, &kind, &scope, &ev.Subject); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = ir.EventKind(kind)
		ev.Scope = ir.Scope(scope)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}
