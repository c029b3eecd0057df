// Package history keeps a local sqlite ledger of coaching sessions and the
// pull-up log.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FitCoach/internal/session"
	"FitCoach/internal/workout"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	function TEXT,
	backend TEXT,
	model TEXT,
	thread_id TEXT,
	run_id TEXT,
	status TEXT,
	error TEXT,
	start_time DATETIME,
	end_time DATETIME
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT,
	role TEXT,
	content TEXT,
	timestamp DATETIME,
	FOREIGN KEY(session_id) REFERENCES sessions(id)
);

CREATE TABLE IF NOT EXISTS pullup_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	reps INTEGER NOT NULL,
	timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pullup_logs_timestamp ON pullup_logs(timestamp);`

// Store is the sqlite-backed history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession writes the session and replaces its messages.
func (s *Store) SaveSession(ctx context.Context, sess *session.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (id, function, backend, model, thread_id, run_id, status, error, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Function, sess.Backend, sess.Model, sess.ThreadID, sess.RunID, sess.Status, sess.Error,
		sess.StartTime.UTC(), sess.EndTime.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sess.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	for _, msg := range sess.Messages {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO messages (session_id, role, content, timestamp) VALUES (?, ?, ?, ?)",
			sess.ID, msg.Role, msg.Content, msg.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadSession loads a session and its messages in order.
func (s *Store) LoadSession(ctx context.Context, id string) (*session.Session, error) {
	sess := &session.Session{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT function, backend, model, thread_id, run_id, status, error, start_time, end_time
		 FROM sessions WHERE id = ?`, id).
		Scan(&sess.Function, &sess.Backend, &sess.Model, &sess.ThreadID, &sess.RunID, &sess.Status, &sess.Error,
			&sess.StartTime, &sess.EndTime)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content, timestamp FROM messages WHERE session_id = ? ORDER BY id",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	sess.Messages = []session.Message{}
	for rows.Next() {
		var msg session.Message
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		sess.Messages = append(sess.Messages, msg)
	}
	return sess, rows.Err()
}

// ListSessions returns the newest sessions without their messages.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]session.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, function, backend, model, thread_id, run_id, status, error, start_time, end_time
		 FROM sessions ORDER BY start_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		var sess session.Session
		if err := rows.Scan(&sess.ID, &sess.Function, &sess.Backend, &sess.Model, &sess.ThreadID, &sess.RunID,
			&sess.Status, &sess.Error, &sess.StartTime, &sess.EndTime); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// AddPullupLog records a set.
func (s *Store) AddPullupLog(ctx context.Context, reps int, at time.Time) (workout.PullupLog, error) {
	if reps <= 0 {
		return workout.PullupLog{}, fmt.Errorf("reps must be positive, got %d", reps)
	}
	res, err := s.db.ExecContext(ctx, "INSERT INTO pullup_logs (reps, timestamp) VALUES (?, ?)", reps, at.UTC())
	if err != nil {
		return workout.PullupLog{}, fmt.Errorf("failed to save pull-up log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return workout.PullupLog{}, fmt.Errorf("failed to read log id: %w", err)
	}
	return workout.PullupLog{ID: id, Reps: reps, Timestamp: at}, nil
}

// PullupLogs returns every log, newest first.
func (s *Store) PullupLogs(ctx context.Context) ([]workout.PullupLog, error) {
	return s.PullupLogsSince(ctx, time.Time{})
}

// PullupLogsSince returns logs at or after since, newest first.
func (s *Store) PullupLogsSince(ctx context.Context, since time.Time) ([]workout.PullupLog, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, reps, timestamp FROM pullup_logs WHERE timestamp >= ? ORDER BY timestamp DESC, id DESC",
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load pull-up logs: %w", err)
	}
	defer rows.Close()

	var logs []workout.PullupLog
	for rows.Next() {
		var l workout.PullupLog
		if err := rows.Scan(&l.ID, &l.Reps, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan pull-up log: %w", err)
		}
		l.Timestamp = l.Timestamp.Local()
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
