// Package repository persists sessions and their trace events in SQLite.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Aaryan126/Research-Agent/orchestrator/internal/domain"
)

// SQLiteStore stores sessions and the ordered event log of each session.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			input TEXT NOT NULL,
			iteration INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
		`CREATE TABLE IF NOT EXISTS events (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			data TEXT,
			PRIMARY KEY (session_id, seq),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Added after the first release; SQLite has limited ALTER TABLE support.
	if err := s.ensureColumn("sessions", "updated_ms", "ALTER TABLE sessions ADD COLUMN updated_ms INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_stale ON sessions(status, updated_ms)`); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, mode, input, iteration, status, error, created_at, updated_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.Mode, session.Input, session.Iteration, session.Status,
		nullString(session.Error), session.CreatedAt, session.CreatedAt.UnixMilli())
	return err
}

// GetSession returns the session, or nil when it does not exist.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, mode, input, iteration, status, error, created_at, ended_at FROM sessions WHERE session_id = ?`,
		sessionID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// UpdateSessionProgress records the current iteration and status of a running
// session. Finished sessions are left untouched.
func (s *SQLiteStore) UpdateSessionProgress(ctx context.Context, sessionID string, status domain.SessionStatus, iteration int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, iteration = ?, updated_ms = ? WHERE session_id = ? AND ended_at IS NULL`,
		status, iteration, time.Now().UnixMilli(), sessionID)
	return err
}

// CompleteSession moves a session to a terminal status. It reports false when the
// session had already ended.
func (s *SQLiteStore) CompleteSession(ctx context.Context, sessionID string, status domain.SessionStatus, errMsg string) (bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, error = ?, ended_at = ?, updated_ms = ? WHERE session_id = ? AND ended_at IS NULL`,
		status, nullString(errMsg), now, now.UnixMilli(), sessionID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListStaleSessions returns running sessions that have not progressed for maxAge.
func (s *SQLiteStore) ListStaleSessions(ctx context.Context, maxAge time.Duration, limit int) ([]domain.Session, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, mode, input, iteration, status, error, created_at, ended_at
		FROM sessions
		WHERE ended_at IS NULL
		  AND status IN ('THINKING', 'STREAMING')
		  AND updated_ms < ?
		ORDER BY updated_ms ASC
		LIMIT ?
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateEvent appends one event to a session's log.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (session_id, seq, ts, type, data) VALUES (?, ?, ?, ?, ?)`,
		event.SessionID, event.Seq, event.Ts, event.Type, nullStringBytes(event.Data))
	return err
}

// GetEvents returns a session's events with seq greater than afterSeq, in order.
func (s *SQLiteStore) GetEvents(ctx context.Context, sessionID string, afterSeq int64, limit int) ([]domain.Event, error) {
	query := `SELECT session_id, seq, ts, type, data FROM events WHERE session_id = ? AND seq > ? ORDER BY seq ASC`
	args := []interface{}{sessionID, afterSeq}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var data sql.NullString
		if err := rows.Scan(&event.SessionID, &event.Seq, &event.Ts, &event.Type, &data); err != nil {
			return nil, err
		}
		if data.Valid {
			event.Data = []byte(data.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var session domain.Session
	var errMsg sql.NullString
	var endedAt sql.NullTime
	if err := row.Scan(&session.SessionID, &session.Mode, &session.Input, &session.Iteration,
		&session.Status, &errMsg, &session.CreatedAt, &endedAt); err != nil {
		return nil, err
	}
	session.Error = errMsg.String
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}
	return &session, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
