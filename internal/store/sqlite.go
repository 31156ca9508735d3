// ABOUTME: SQLite implementation of AuditStore using modernc.org/sqlite
// ABOUTME: Creates the schema on open and runs in WAL mode

package store

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
)

// SQLiteStore implements AuditStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ AuditStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens the audit database at path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS invocations (
			id          TEXT PRIMARY KEY,
			tool        TEXT NOT NULL,
			transport   TEXT NOT NULL DEFAULT '',
			city        TEXT NOT NULL DEFAULT '',
			outcome     TEXT NOT NULL,
			error_kind  TEXT,
			duration_ms INTEGER NOT NULL,
			created_at  TEXT NOT NULL,

			CHECK (outcome IN ('ok', 'error'))
		);

		CREATE INDEX IF NOT EXISTS idx_invocations_created ON invocations(created_at);
		CREATE INDEX IF NOT EXISTS idx_invocations_tool ON invocations(tool, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Record inserts one invocation.
func (s *SQLiteStore) Record(ctx context.Context, inv *Invocation) error {
	query := `
		INSERT INTO invocations (id, tool, transport, city, outcome, error_kind, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	createdAt := inv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		inv.ID,
		inv.Tool,
		inv.Transport,
		inv.City,
		inv.Outcome,
		nullString(inv.ErrorKind),
		inv.Duration.Milliseconds(),
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting invocation: %w", err)
	}

	s.logger.Debug("recorded invocation",
		"id", inv.ID,
		"tool", inv.Tool,
		"outcome", inv.Outcome,
	)
	return nil
}

// Recent returns the newest invocations first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]*Invocation, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	query := `
		SELECT id, tool, transport, city, outcome, error_kind, duration_ms, created_at
		FROM invocations
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invocation rows: %w", err)
	}
	return out, nil
}

// Get returns one invocation by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Invocation, error) {
	query := `
		SELECT id, tool, transport, city, outcome, error_kind, duration_ms, created_at
		FROM invocations
		WHERE id = ?
	`
	inv, err := scanInvocation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return inv, err
}

// Stats aggregates invocations per tool, ordered by tool name.
func (s *SQLiteStore) Stats(ctx context.Context, filter StatsFilter) ([]*ToolStats, error) {
	query := `
		SELECT
			tool,
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN outcome = 'error' THEN 1 ELSE 0 END), 0) AS errors,
			COALESCE(AVG(duration_ms), 0) AS avg_ms
		FROM invocations
		WHERE 1=1
	`
	args := []any{}

	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
	}
	if filter.Tool != "" {
		query += " AND tool = ?"
		args = append(args, filter.Tool)
	}
	query += " GROUP BY tool ORDER BY tool"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying invocation stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*ToolStats
	for rows.Next() {
		var (
			st    ToolStats
			avgMs float64
		)
		if err := rows.Scan(&st.Tool, &st.Total, &st.Errors, &avgMs); err != nil {
			return nil, fmt.Errorf("scanning stats row: %w", err)
		}
		st.AvgDuration = time.Duration(avgMs * float64(time.Millisecond))
		out = append(out, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stats rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvocation(row rowScanner) (*Invocation, error) {
	var (
		inv        Invocation
		errorKind  sql.NullString
		durationMs int64
		createdAt  string
	)
	if err := row.Scan(&inv.ID, &inv.Tool, &inv.Transport, &inv.City, &inv.Outcome,
		&errorKind, &durationMs, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning invocation: %w", err)
	}
	inv.ErrorKind = errorKind.String
	inv.Duration = time.Duration(durationMs) * time.Millisecond

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	inv.CreatedAt = t
	return &inv, nil
}

// nullString converts empty strings to SQL NULL
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
