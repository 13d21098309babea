package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/docforensics/custodia/internal/dbx"
	"github.com/docforensics/custodia/session/migrations"
)

// ErrNotFound reports an unknown session id.
var ErrNotFound = errors.New("session: not found")

// Store persists session history. Ended sessions are retained for
// reporting and for the anomaly heuristics, which look at a user's most
// recent sessions regardless of process restarts.
type Store interface {
	Upsert(ctx context.Context, s *Session) error
	AddActivity(ctx context.Context, sessionID string, a Activity) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Recent(ctx context.Context, userID string, limit int) ([]*Session, error)
	Activities(ctx context.Context, sessionID string) ([]Activity, error)
	UserIDs(ctx context.Context) ([]string, error)
	Close() error
}

// SQLiteStore is the Store implementation backed by a local SQLite file
// (or ":memory:" for tests).
type SQLiteStore struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the session database at dsn and
// runs the embedded migrations.
func OpenStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open store: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: migrate store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Upsert writes the session row, replacing any previous state.
func (s *SQLiteStore) Upsert(ctx context.Context, sess *Session) error {
	var endTime any
	if sess.EndTime != nil {
		endTime = sess.EndTime.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, ip_address, user_agent, start_time, last_activity, end_time, is_active, activity_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_activity  = excluded.last_activity,
			end_time       = excluded.end_time,
			is_active      = excluded.is_active,
			activity_count = excluded.activity_count
	`, sess.ID, sess.UserID, sess.IP, sess.UserAgent,
		sess.StartTime.UTC().Format(time.RFC3339Nano),
		sess.LastActivity.UTC().Format(time.RFC3339Nano),
		endTime, boolToInt(sess.IsActive), sess.ActivityCount)
	if err != nil {
		return fmt.Errorf("session: upsert %s: %w", sess.ID, err)
	}
	return nil
}

// AddActivity records one activity and bumps the session counters in a
// single transaction.
func (s *SQLiteStore) AddActivity(ctx context.Context, sessionID string, a Activity) error {
	details := "{}"
	if len(a.Details) > 0 {
		b, err := json.Marshal(a.Details)
		if err != nil {
			return fmt.Errorf("session: encode activity details: %w", err)
		}
		details = string(b)
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO activities (session_id, timestamp, action, document_id, details)
			VALUES (?, ?, ?, ?, ?)
		`, sessionID, a.Timestamp.UTC().Format(time.RFC3339Nano), a.Action, a.DocumentID, details); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE sessions
			SET last_activity = ?, activity_count = activity_count + 1
			WHERE id = ?
		`, a.Timestamp.UTC().Format(time.RFC3339Nano), sessionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("session: add activity to %s: %w", sessionID, err)
	}
	return nil
}

// Get returns one session by id, without its activity list. Unknown ids
// yield ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, ip_address, user_agent, start_time, last_activity, end_time, is_active, activity_count
		FROM sessions
		WHERE id = ?
	`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Recent returns the user's most recent sessions, newest first, without
// their activity lists. limit <= 0 returns all of them.
func (s *SQLiteStore) Recent(ctx context.Context, userID string, limit int) ([]*Session, error) {
	query := `
		SELECT id, user_id, ip_address, user_agent, start_time, last_activity, end_time, is_active, activity_count
		FROM sessions
		WHERE user_id = ?
		ORDER BY start_time DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("session: recent sessions for %s: %w", userID, err)
	}
	defer rows.Close()

	out := []*Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: recent sessions for %s: %w", userID, err)
	}
	return out, nil
}

// Activities returns a session's activity log in chronological order.
func (s *SQLiteStore) Activities(ctx context.Context, sessionID string) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, action, document_id, details
		FROM activities
		WHERE session_id = ?
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: activities of %s: %w", sessionID, err)
	}
	defer rows.Close()

	out := []Activity{}
	for rows.Next() {
		var a Activity
		var ts, details string
		if err := rows.Scan(&ts, &a.Action, &a.DocumentID, &details); err != nil {
			return nil, fmt.Errorf("session: scan activity: %w", err)
		}
		if a.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("session: parse activity timestamp: %w", err)
		}
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &a.Details); err != nil {
				return nil, fmt.Errorf("session: decode activity details: %w", err)
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: activities of %s: %w", sessionID, err)
	}
	return out, nil
}

// UserIDs lists every user with at least one recorded session.
func (s *SQLiteStore) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM sessions ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("session: list users: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("session: scan user id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: list users: %w", err)
	}
	return out, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var start, last string
	var end sql.NullString
	var active int
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.IP, &sess.UserAgent, &start, &last, &end, &active, &sess.ActivityCount); err != nil {
		return nil, fmt.Errorf("session: scan session: %w", err)
	}
	var err error
	if sess.StartTime, err = time.Parse(time.RFC3339Nano, start); err != nil {
		return nil, fmt.Errorf("session: parse start_time: %w", err)
	}
	if sess.LastActivity, err = time.Parse(time.RFC3339Nano, last); err != nil {
		return nil, fmt.Errorf("session: parse last_activity: %w", err)
	}
	if end.Valid {
		t, err := time.Parse(time.RFC3339Nano, end.String)
		if err != nil {
			return nil, fmt.Errorf("session: parse end_time: %w", err)
		}
		sess.EndTime = &t
	}
	sess.IsActive = active != 0
	return &sess, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
