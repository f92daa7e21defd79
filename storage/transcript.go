// Package storage persists conversation transcripts and executed plans in
// SQLite.
//
// Information Hiding:
// - SQLite connection management hidden behind the store type
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"deskhand/command"
	"deskhand/conversation"
)

// TranscriptStore saves and restores per-session conversation history and
// keeps an audit trail of executed plans.
type TranscriptStore struct {
	db *sql.DB
}

// OpenTranscript opens or creates a transcript database at the given path.
// Creates parent directories if they don't exist.
func OpenTranscript(path string) (*TranscriptStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &TranscriptStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// NewTranscriptInMemory creates an in-memory store (useful for testing).
func NewTranscriptInMemory() (*TranscriptStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &TranscriptStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *TranscriptStore) Close() error {
	return s.db.Close()
}

func (s *TranscriptStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			message_index INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			sent_at INTEGER NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE,
			UNIQUE(session_id, message_index)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session
		ON messages(session_id, message_index);

		CREATE TABLE IF NOT EXISTS plans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			request_id TEXT NOT NULL,
			query TEXT NOT NULL,
			description TEXT NOT NULL,
			step_count INTEGER NOT NULL,
			system_query INTEGER NOT NULL DEFAULT 0,
			fallback_mode INTEGER NOT NULL DEFAULT 0,
			plan_json TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_plans_session
		ON plans(session_id, created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *TranscriptStore) ensureSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (session_id) VALUES (?)",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

// Save replaces the stored history for a session with the given messages.
func (s *TranscriptStore) Save(ctx context.Context, sessionID string, history []conversation.Message) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to clear old messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO messages (session_id, message_index, role, content, sent_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, msg := range history {
		if _, err = stmt.ExecContext(ctx, sessionID, i, msg.Role, msg.Content, msg.Timestamp.Unix()); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = datetime('now') WHERE session_id = ?",
		sessionID); err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Load returns the stored history for a session, oldest first. A missing
// session yields an empty slice.
func (s *TranscriptStore) Load(ctx context.Context, sessionID string) ([]conversation.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content, sent_at FROM messages WHERE session_id = ? ORDER BY message_index ASC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []conversation.Message{}
	for rows.Next() {
		var msg conversation.Message
		var sentAt int64
		if err := rows.Scan(&msg.Role, &msg.Content, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Timestamp = time.Unix(sentAt, 0)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// Delete removes a session and its messages and plans.
func (s *TranscriptStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE session_id = ?",
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListSessions lists all session IDs, most recently updated first.
func (s *TranscriptStore) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id FROM sessions ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sessionID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// Exists checks if a session exists.
func (s *TranscriptStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE session_id = ?",
		sessionID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return count > 0, nil
}

// PlanRecord is one row of the executed-plan audit trail.
type PlanRecord struct {
	RequestID    string    `json:"request_id"`
	Query        string    `json:"query"`
	Description  string    `json:"description"`
	StepCount    int       `json:"step_count"`
	SystemQuery  bool      `json:"system_query"`
	FallbackMode bool      `json:"fallback_mode"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecordPlan appends a plan to the session's audit trail. The full plan is
// stored as JSON alongside the queryable provenance columns.
func (s *TranscriptStore) RecordPlan(ctx context.Context, sessionID, requestID, query string, plan *command.Plan) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans
		(session_id, request_id, query, description, step_count, system_query, fallback_mode, plan_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID,
		requestID,
		query,
		plan.Description,
		len(plan.Steps),
		boolToInt(plan.SystemQuery),
		boolToInt(plan.FallbackMode),
		string(planJSON),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record plan: %w", err)
	}
	return nil
}

// RecentPlans returns the newest plan records for a session.
func (s *TranscriptStore) RecentPlans(ctx context.Context, sessionID string, limit int) ([]PlanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, query, description, step_count, system_query, fallback_mode, created_at
		FROM plans
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	records := []PlanRecord{}
	for rows.Next() {
		var r PlanRecord
		var systemQuery, fallbackMode int
		var createdAt int64
		if err := rows.Scan(&r.RequestID, &r.Query, &r.Description, &r.StepCount, &systemQuery, &fallbackMode, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		r.SystemQuery = systemQuery != 0
		r.FallbackMode = fallbackMode != 0
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
