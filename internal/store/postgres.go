// Package store provides storage backends for CareerPilot.
//
// This file implements the PostgreSQL-backed store for multi-instance
// deployments sharing one database.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/PathwayLabs/CareerPilot/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.PostgresDSN != "")

	dsn := cfg.PostgresDSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// SaveConversationState inserts or replaces the conversation state.
func (s *PostgresStore) SaveConversationState(state models.ConversationState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation state for %s: %w", state.ConversationID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO conversation_states (conversation_id, phase, state_json, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (conversation_id) DO UPDATE SET
		   phase = EXCLUDED.phase, state_json = EXCLUDED.state_json, updated_at = EXCLUDED.updated_at`,
		state.ConversationID, string(state.Phase), string(payload), state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversationState failed", "error", err, "conversationID", state.ConversationID)
		return fmt.Errorf("failed to save conversation state for %s: %w", state.ConversationID, err)
	}
	slog.Debug("PostgresStore SaveConversationState succeeded", "conversationID", state.ConversationID, "phase", state.Phase)
	return nil
}

// GetConversationState returns the conversation state, or nil if absent.
func (s *PostgresStore) GetConversationState(conversationID string) (*models.ConversationState, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT state_json FROM conversation_states WHERE conversation_id = $1`, conversationID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationState failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query conversation state for %s: %w", conversationID, err)
	}
	return unmarshalConversationState(payload)
}

// ListConversationsByPhase returns every conversation in the given phase.
func (s *PostgresStore) ListConversationsByPhase(phase models.WorkflowPhase) ([]models.ConversationState, error) {
	rows, err := s.db.Query(
		`SELECT state_json FROM conversation_states WHERE phase = $1 ORDER BY conversation_id`, string(phase))
	if err != nil {
		slog.Error("PostgresStore ListConversationsByPhase query failed", "error", err, "phase", phase)
		return nil, fmt.Errorf("failed to query conversations by phase %s: %w", phase, err)
	}
	defer rows.Close()
	return collectConversationStates(rows)
}

// DeleteConversationState removes the conversation state.
func (s *PostgresStore) DeleteConversationState(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE conversation_id = $1`, conversationID)
	if err != nil {
		slog.Error("PostgresStore DeleteConversationState failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to delete conversation state for %s: %w", conversationID, err)
	}
	return nil
}

// SaveReviewRequest inserts or replaces a review request.
func (s *PostgresStore) SaveReviewRequest(req models.HumanReviewRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal review request %s: %w", req.ID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO review_requests (id, conversation_id, priority, intervention_type, status, request_json, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status, request_json = EXCLUDED.request_json`,
		req.ID, req.ConversationID, string(req.Priority), string(req.Type), req.Status, string(payload), req.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveReviewRequest failed", "error", err, "reviewID", req.ID)
		return fmt.Errorf("failed to save review request %s: %w", req.ID, err)
	}
	return nil
}

// GetReviewRequest returns a review request, or nil if absent.
func (s *PostgresStore) GetReviewRequest(id string) (*models.HumanReviewRequest, error) {
	var payload string
	err := s.db.QueryRow(`SELECT request_json FROM review_requests WHERE id = $1`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetReviewRequest failed", "error", err, "reviewID", id)
		return nil, fmt.Errorf("failed to query review request %s: %w", id, err)
	}
	return unmarshalReviewRequest(payload)
}

// ListPendingReviews returns pending review requests ordered by creation time.
func (s *PostgresStore) ListPendingReviews() ([]models.HumanReviewRequest, error) {
	rows, err := s.db.Query(
		`SELECT request_json FROM review_requests WHERE status = $1 ORDER BY created_at`, models.ReviewStatusPending)
	if err != nil {
		slog.Error("PostgresStore ListPendingReviews query failed", "error", err)
		return nil, fmt.Errorf("failed to query pending reviews: %w", err)
	}
	defer rows.Close()
	return collectReviewRequests(rows)
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
