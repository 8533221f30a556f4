// Package history persists terminal conversion sessions to SQLite so the
// record of past conversions survives restarts.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"shrinkray/internal/config"
	"shrinkray/internal/logging"
	"shrinkray/internal/media"
	"shrinkray/internal/session"
)

// Store manages history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	dbPath := cfg.History.Path
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts a terminal session. Recording the same session twice is a
// no-op so a replayed terminal event cannot duplicate history.
func (s *Store) Record(ctx context.Context, sess *session.Session) (Entry, error) {
	if !sess.State.IsTerminal() {
		return Entry{}, fmt.Errorf("session %s is not terminal (state %s)", sess.ID, sess.State)
	}
	entry := entryFromSession(sess)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO history_entries (
            session_id, request_id, input_path, output_path, state,
            priority, quality, format, failure_message,
            input_bytes, output_bytes, retry_count,
            created_at, started_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.RequestID,
		entry.InputPath,
		nullableString(entry.OutputPath),
		string(entry.State),
		entry.Priority.String(),
		string(entry.Quality),
		string(entry.Format),
		nullableString(entry.FailureMessage),
		entry.InputBytes,
		entry.OutputBytes,
		entry.RetryCount,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(entry.StartedAt),
		entry.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert history entry: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return entry, nil
}

// Get returns the entry for a session id, or nil when it was never recorded.
func (s *Store) Get(ctx context.Context, sessionID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE session_id = ?", sessionID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history entry: %w", err)
	}
	return entry, nil
}

// FindRequest returns the most recent entry recorded for a request id, or
// nil when the request was never recorded. Resubmissions keep the request
// id, so the newest entry carries the highest retry count.
func (s *Store) FindRequest(ctx context.Context, requestID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+" WHERE request_id = ? ORDER BY completed_at DESC, id DESC LIMIT 1",
		requestID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find request entry: %w", err)
	}
	return entry, nil
}

// List returns the most recent entries, newest first. A limit <= 0 returns
// everything.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	query := selectColumns + " ORDER BY completed_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats aggregates the recorded entries. The success rate counts completed
// conversions over every terminal entry and stays zero when history is
// empty.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	entries, err := s.List(ctx, 0)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	var totalRuntime time.Duration
	var runs int
	for _, entry := range entries {
		stats.Total++
		switch entry.State {
		case session.StateCompleted:
			stats.Completed++
		case session.StateFailed:
			stats.Failed++
		case session.StateCancelled:
			stats.Cancelled++
		}
		stats.TotalInputBytes += entry.InputBytes
		stats.TotalOutputBytes += entry.OutputBytes
		if runtime := entry.Runtime(); runtime > 0 {
			totalRuntime += runtime
			runs++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.Total)
	}
	if runs > 0 {
		stats.AverageRuntime = totalRuntime / time.Duration(runs)
	}
	return stats, nil
}

// Clear removes every entry and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM history_entries")
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

// Recorder returns a terminal-session callback that persists each session.
// Failures are logged, never propagated: a broken history database must not
// stall the conversion pipeline.
func (s *Store) Recorder(logger *slog.Logger) func(*session.Session) {
	recordLogger := logging.NewComponentLogger(logger, "history")
	return func(sess *session.Session) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.Record(ctx, sess); err != nil {
			recordLogger.Error("could not record terminal session",
				logging.String(logging.FieldSessionID, sess.ID),
				logging.Error(err))
		}
	}
}

const selectColumns = `SELECT
    id, session_id, request_id, input_path, output_path, state,
    priority, quality, format, failure_message,
    input_bytes, output_bytes, retry_count,
    created_at, started_at, completed_at
FROM history_entries`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry          Entry
		outputPath     sql.NullString
		state          string
		priority       string
		quality        string
		format         string
		failureMessage sql.NullString
		createdAt      string
		startedAt      sql.NullString
		completedAt    string
	)
	err := row.Scan(
		&entry.ID,
		&entry.SessionID,
		&entry.RequestID,
		&entry.InputPath,
		&outputPath,
		&state,
		&priority,
		&quality,
		&format,
		&failureMessage,
		&entry.InputBytes,
		&entry.OutputBytes,
		&entry.RetryCount,
		&createdAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.OutputPath = outputPath.String
	entry.FailureMessage = failureMessage.String
	if parsed, ok := session.ParseState(state); ok {
		entry.State = parsed
	}
	if parsed, ok := media.ParsePriority(priority); ok {
		entry.Priority = parsed
	}
	entry.Quality = media.Quality(quality)
	entry.Format = media.OutputFormat(format)
	entry.CreatedAt = parseTimestamp(createdAt)
	if startedAt.Valid {
		entry.StartedAt = parseTimestamp(startedAt.String)
	}
	entry.CompletedAt = parseTimestamp(completedAt)
	return &entry, nil
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}
