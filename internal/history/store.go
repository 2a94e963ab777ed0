package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Session is one finished sync session.
type Session struct {
	ID         string          `json:"id"`
	Trigger    string          `json:"trigger"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Outcome    string          `json:"outcome"`
	Failure    string          `json:"failure,omitempty"`
	Error      string          `json:"error,omitempty"`
	Libraries  []LibraryChange `json:"libraries,omitempty"`
	Steps      []Step          `json:"steps,omitempty"`
}

// Duration is the wall time of the session.
func (s Session) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// ChangedCount returns how many libraries the session re-synced.
func (s Session) ChangedCount() int {
	n := 0
	for _, lib := range s.Libraries {
		if lib.Changed {
			n++
		}
	}
	return n
}

// LibraryChange records the detector's verdict for one library.
type LibraryChange struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Games       int    `json:"games"`
	Fingerprint string `json:"fingerprint"`
	Changed     bool   `json:"changed"`
}

// Step records one orchestrator step.
type Step struct {
	Name     string        `json:"name"`
	Outcome  string        `json:"outcome"`
	Duration time.Duration `json:"duration"`
	Detail   string        `json:"detail,omitempty"`
}

// Store persists sessions in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	store := &Store{db: db, path: path}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts or replaces a session.
func (s *Store) Record(ctx context.Context, session Session) error {
	if strings.TrimSpace(session.ID) == "" {
		return errors.New("session id is required")
	}
	libs, err := marshalOptional(session.Libraries)
	if err != nil {
		return fmt.Errorf("encode libraries: %w", err)
	}
	steps, err := marshalOptional(session.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (
            id, triggered_by, started_at, finished_at, outcome, failure,
            error_message, changed_libraries, libraries_json, steps_json
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.Trigger,
		session.StartedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(session.FinishedAt),
		session.Outcome,
		nullableString(session.Failure),
		nullableString(session.Error),
		session.ChangedCount(),
		libs,
		steps,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const sessionColumns = "id, triggered_by, started_at, finished_at, outcome, failure, error_message, libraries_json, steps_json"

// Recent returns up to limit sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Get returns one session, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// OutcomeCounts tallies sessions by outcome.
func (s *Store) OutcomeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(1) FROM sessions GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// Prune keeps the newest keep sessions and deletes the rest.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id NOT IN (
            SELECT id FROM sessions ORDER BY started_at DESC, id DESC LIMIT ?
        )`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return res.RowsAffected()
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (Session, error) {
	var (
		session    Session
		startedRaw string
		finished   sql.NullString
		failure    sql.NullString
		errMsg     sql.NullString
		libsRaw    sql.NullString
		stepsRaw   sql.NullString
	)
	if err := scanner.Scan(&session.ID, &session.Trigger, &startedRaw, &finished, &session.Outcome, &failure, &errMsg, &libsRaw, &stepsRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	session.StartedAt = parseTime(startedRaw)
	if finished.Valid {
		session.FinishedAt = parseTime(finished.String)
	}
	session.Failure = failure.String
	session.Error = errMsg.String
	if libsRaw.Valid && libsRaw.String != "" {
		if err := json.Unmarshal([]byte(libsRaw.String), &session.Libraries); err != nil {
			return Session{}, fmt.Errorf("decode libraries for %s: %w", session.ID, err)
		}
	}
	if stepsRaw.Valid && stepsRaw.String != "" {
		if err := json.Unmarshal([]byte(stepsRaw.String), &session.Steps); err != nil {
			return Session{}, fmt.Errorf("decode steps for %s: %w", session.ID, err)
		}
	}
	return session, nil
}

func marshalOptional[T any](items []T) (any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
