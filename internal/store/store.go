// Package store provides SQLite-backed persistence for Relay.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/relay/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store provides access to the Relay SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Set connection pool settings for concurrent access
	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invocations (
		id TEXT PRIMARY KEY,
		tool TEXT NOT NULL,
		origin TEXT NOT NULL,
		server_id TEXT,
		args_hash TEXT NOT NULL,
		status TEXT NOT NULL,
		error_kind TEXT,
		detail TEXT,
		duration_ms INTEGER NOT NULL,
		started_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS servers (
		id TEXT PRIMARY KEY,
		prefix TEXT,
		state TEXT NOT NULL,
		tool_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		connected_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invocations_tool ON invocations(tool);
	CREATE INDEX IF NOT EXISTS idx_invocations_started_at ON invocations(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Invocation Operations ---

// AppendInvocation inserts an audit record for a dispatched tool call.
func (s *Store) AppendInvocation(rec models.InvocationRecord) (*models.InvocationRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO invocations (id, tool, origin, server_id, args_hash, status, error_kind, detail, duration_ms, started_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Tool, rec.Origin, rec.ServerID, rec.ArgsHash, rec.Status, rec.ErrorKind, rec.Detail, rec.DurationMS, rec.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invocation: %w", err)
	}
	return &rec, nil
}

// ListInvocations returns the most recent invocations, optionally filtered by
// tool name.
func (s *Store) ListInvocations(tool string, limit int) ([]models.InvocationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, tool, origin, server_id, args_hash, status, error_kind, detail, duration_ms, started_at FROM invocations`
	var args []interface{}

	if tool != "" {
		query += ` WHERE tool = ?`
		args = append(args, tool)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var recs []models.InvocationRecord
	for rows.Next() {
		var rec models.InvocationRecord
		var serverID, errorKind, detail sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Tool, &rec.Origin, &serverID, &rec.ArgsHash, &rec.Status, &errorKind, &detail, &rec.DurationMS, &rec.StartedAt); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		if serverID.Valid {
			rec.ServerID = serverID.String
		}
		if errorKind.Valid {
			rec.ErrorKind = errorKind.String
		}
		if detail.Valid {
			rec.Detail = detail.String
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// CountInvocations returns how many invocations have been recorded.
func (s *Store) CountInvocations() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM invocations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count invocations: %w", err)
	}
	return n, nil
}

// --- Server Operations ---

// UpsertServer inserts or replaces a server record.
func (s *Store) UpsertServer(rec models.ServerRecord) (*models.ServerRecord, error) {
	now := time.Now().UTC()
	rec.UpdatedAt = now
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	_, err := s.db.Exec(
		`INSERT INTO servers (id, prefix, state, tool_count, last_error, connected_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			prefix = excluded.prefix,
			state = excluded.state,
			tool_count = excluded.tool_count,
			last_error = excluded.last_error,
			connected_at = excluded.connected_at,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Prefix, rec.State, rec.ToolCount, rec.LastError, rec.ConnectedAt, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert server: %w", err)
	}
	return &rec, nil
}

// UpdateServerState updates the connectivity state of a server record.
func (s *Store) UpdateServerState(id, state, lastError string) error {
	_, err := s.db.Exec(
		`UPDATE servers SET state = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		state, lastError, time.Now().UTC(), id,
	)
	return err
}

// GetServer retrieves a server record by ID. Returns nil when not found.
func (s *Store) GetServer(id string) (*models.ServerRecord, error) {
	rec := &models.ServerRecord{}
	var prefix, lastError sql.NullString
	var connectedAt sql.NullTime

	err := s.db.QueryRow(
		`SELECT id, prefix, state, tool_count, last_error, connected_at, created_at, updated_at FROM servers WHERE id = ?`,
		id,
	).Scan(&rec.ID, &prefix, &rec.State, &rec.ToolCount, &lastError, &connectedAt, &rec.CreatedAt, &rec.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query server: %w", err)
	}
	if prefix.Valid {
		rec.Prefix = prefix.String
	}
	if lastError.Valid {
		rec.LastError = lastError.String
	}
	if connectedAt.Valid {
		rec.ConnectedAt = &connectedAt.Time
	}
	return rec, nil
}

// ListServers returns all server records.
func (s *Store) ListServers() ([]models.ServerRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, prefix, state, tool_count, last_error, connected_at, created_at, updated_at FROM servers ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("query servers: %w", err)
	}
	defer rows.Close()

	var recs []models.ServerRecord
	for rows.Next() {
		var rec models.ServerRecord
		var prefix, lastError sql.NullString
		var connectedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &prefix, &rec.State, &rec.ToolCount, &lastError, &connectedAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		if prefix.Valid {
			rec.Prefix = prefix.String
		}
		if lastError.Valid {
			rec.LastError = lastError.String
		}
		if connectedAt.Valid {
			rec.ConnectedAt = &connectedAt.Time
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteServer removes a server record.
func (s *Store) DeleteServer(id string) error {
	_, err := s.db.Exec(`DELETE FROM servers WHERE id = ?`, id)
	return err
}
