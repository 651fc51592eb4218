package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/codemate/internal/domain"
	_ "modernc.org/sqlite"
)

const maxRecentTurns = 100

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_key TEXT NOT NULL,
		route TEXT NOT NULL,
		task_kind TEXT,
		request TEXT NOT NULL,
		response TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_key, id);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordTurn appends a turn and sets its ID.
func (s *SQLiteStore) RecordTurn(ctx context.Context, turn *domain.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	var taskKind interface{}
	if turn.TaskKind != "" {
		taskKind = turn.TaskKind
	}

	res, err := s.db.ExecContext(ctx, `
	INSERT INTO turns (session_key, route, task_kind, request, response, duration_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.SessionKey, string(turn.Route), taskKind, turn.Request, turn.Response,
		turn.DurationMs, turn.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read turn id: %w", err)
	}
	turn.ID = id
	return nil
}

// RecentTurns returns up to limit turns for a session, newest first.
func (s *SQLiteStore) RecentTurns(ctx context.Context, sessionKey string, limit int) ([]domain.Turn, error) {
	if limit <= 0 || limit > maxRecentTurns {
		limit = maxRecentTurns
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_key, route, task_kind, request, response, duration_ms, created_at
		FROM turns WHERE session_key = ?
		ORDER BY id DESC LIMIT ?`, sessionKey, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var route string
		var taskKind sql.NullString
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.SessionKey, &route, &taskKind,
			&t.Request, &t.Response, &t.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.Route = domain.Route(route)
		t.TaskKind = taskKind.String
		t.CreatedAt = time.UnixMilli(createdAt)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

// DeleteSessionTurns removes every turn recorded for a session.
func (s *SQLiteStore) DeleteSessionTurns(ctx context.Context, sessionKey string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE session_key = ?`, sessionKey)
	if err != nil {
		return 0, fmt.Errorf("delete session turns: %w", err)
	}
	return res.RowsAffected()
}

// DeleteTurnsBefore removes turns created before cutoff.
func (s *SQLiteStore) DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired turns: %w", err)
	}
	return res.RowsAffected()
}
