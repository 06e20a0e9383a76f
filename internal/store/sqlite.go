// Package store provides storage backends for CareerPilot.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/PathwayLabs/CareerPilot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists state in a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.SQLiteDSN != "")

	dsn := cfg.SQLiteDSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveConversationState inserts or replaces the conversation state.
func (s *SQLiteStore) SaveConversationState(state models.ConversationState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation state for %s: %w", state.ConversationID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO conversation_states (conversation_id, phase, state_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET
		   phase = excluded.phase, state_json = excluded.state_json, updated_at = excluded.updated_at`,
		state.ConversationID, string(state.Phase), string(payload), state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState failed", "error", err, "conversationID", state.ConversationID)
		return fmt.Errorf("failed to save conversation state for %s: %w", state.ConversationID, err)
	}
	slog.Debug("SQLiteStore SaveConversationState succeeded", "conversationID", state.ConversationID, "phase", state.Phase)
	return nil
}

// GetConversationState returns the conversation state, or nil if absent.
func (s *SQLiteStore) GetConversationState(conversationID string) (*models.ConversationState, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT state_json FROM conversation_states WHERE conversation_id = ?`, conversationID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationState failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query conversation state for %s: %w", conversationID, err)
	}
	return unmarshalConversationState(payload)
}

// ListConversationsByPhase returns every conversation in the given phase.
func (s *SQLiteStore) ListConversationsByPhase(phase models.WorkflowPhase) ([]models.ConversationState, error) {
	rows, err := s.db.Query(
		`SELECT state_json FROM conversation_states WHERE phase = ? ORDER BY conversation_id`, string(phase))
	if err != nil {
		slog.Error("SQLiteStore ListConversationsByPhase query failed", "error", err, "phase", phase)
		return nil, fmt.Errorf("failed to query conversations by phase %s: %w", phase, err)
	}
	defer rows.Close()
	return collectConversationStates(rows)
}

// DeleteConversationState removes the conversation state.
func (s *SQLiteStore) DeleteConversationState(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE conversation_id = ?`, conversationID)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversationState failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to delete conversation state for %s: %w", conversationID, err)
	}
	return nil
}

// SaveReviewRequest inserts or replaces a review request.
func (s *SQLiteStore) SaveReviewRequest(req models.HumanReviewRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal review request %s: %w", req.ID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO review_requests (id, conversation_id, priority, intervention_type, status, request_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status, request_json = excluded.request_json`,
		req.ID, req.ConversationID, string(req.Priority), string(req.Type), req.Status, string(payload), req.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveReviewRequest failed", "error", err, "reviewID", req.ID)
		return fmt.Errorf("failed to save review request %s: %w", req.ID, err)
	}
	slog.Debug("SQLiteStore SaveReviewRequest succeeded", "reviewID", req.ID, "status", req.Status)
	return nil
}

// GetReviewRequest returns a review request, or nil if absent.
func (s *SQLiteStore) GetReviewRequest(id string) (*models.HumanReviewRequest, error) {
	var payload string
	err := s.db.QueryRow(`SELECT request_json FROM review_requests WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetReviewRequest failed", "error", err, "reviewID", id)
		return nil, fmt.Errorf("failed to query review request %s: %w", id, err)
	}
	return unmarshalReviewRequest(payload)
}

// ListPendingReviews returns pending review requests ordered by creation time.
func (s *SQLiteStore) ListPendingReviews() ([]models.HumanReviewRequest, error) {
	rows, err := s.db.Query(
		`SELECT request_json FROM review_requests WHERE status = ? ORDER BY created_at`, models.ReviewStatusPending)
	if err != nil {
		slog.Error("SQLiteStore ListPendingReviews query failed", "error", err)
		return nil, fmt.Errorf("failed to query pending reviews: %w", err)
	}
	defer rows.Close()
	return collectReviewRequests(rows)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
