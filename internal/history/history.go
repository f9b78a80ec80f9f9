// Package history keeps a local record of update sessions in SQLite so the
// resident host can report when it last checked and what happened.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	appErrors "carelite/internal/errors"
	"carelite/internal/update"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	outcome     TEXT NOT NULL,
	state       TEXT NOT NULL,
	current_ver TEXT NOT NULL DEFAULT '',
	latest_ver  TEXT NOT NULL DEFAULT '',
	staged_path TEXT NOT NULL DEFAULT '',
	error_code  TEXT NOT NULL DEFAULT '',
	error_msg   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS sessions_started ON sessions(started_at);
`

// Entry is one recorded session.
type Entry struct {
	SessionID  string
	Started    time.Time
	Finished   time.Time
	Outcome    string
	State      string
	Current    string
	Latest     string
	StagedPath string
	ErrorCode  string
	Error      string
}

// Store is the session history database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("history: database path is required")
	}
	//nolint:gosec // G301: parent of a per-user database
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", buildDSN(trimmed))
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db, path: trimmed}, nil
}

func buildDSN(path string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(path),
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(3000)")
	q.Add("_pragma", "journal_mode(WAL)")
	u.RawQuery = q.Encode()
	return u.String()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores the result of a finished session. Busy results and results
// without a session id are ignored.
func (s *Store) Record(ctx context.Context, res update.Result) error {
	if res.SessionID == "" || res.Outcome == update.OutcomeBusy {
		return nil
	}
	var code, msg string
	if res.Err != nil {
		code = string(appErrors.CodeOf(res.Err))
		msg = res.Err.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions
			(id, started_at, finished_at, outcome, state, current_ver, latest_ver, staged_path, error_code, error_msg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		res.SessionID,
		res.Started.UnixMilli(),
		res.Finished.UnixMilli(),
		res.Outcome.String(),
		res.State.String(),
		versionString(res.Current),
		versionString(res.Latest),
		res.StagedPath,
		code,
		msg,
	)
	if err != nil {
		return fmt.Errorf("record session %s: %w", res.SessionID, err)
	}
	return nil
}

func versionString(v update.Version) string {
	if v.IsZero() {
		return ""
	}
	return v.String()
}

// Recent returns up to limit sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, outcome, state, current_ver, latest_ver, staged_path, error_code, error_msg
		FROM sessions
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, finished int64
		if err := rows.Scan(&e.SessionID, &started, &finished, &e.Outcome, &e.State,
			&e.Current, &e.Latest, &e.StagedPath, &e.ErrorCode, &e.Error); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		e.Started = time.UnixMilli(started)
		e.Finished = time.UnixMilli(finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastCheck returns when the most recent session that reached the release
// feed finished. ok is false when there is none.
func (s *Store) LastCheck(ctx context.Context) (time.Time, bool, error) {
	var finished sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(finished_at) FROM sessions WHERE outcome != ?
	`, update.OutcomeSkipped.String()).Scan(&finished)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last check: %w", err)
	}
	if !finished.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(finished.Int64), true, nil
}
