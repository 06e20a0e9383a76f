// Package store provides storage backends for CareerPilot.
//
// Conversation state, workflow snapshots, and human review requests are
// persisted at every suspension point so that a paused conversation can be
// resumed by id, including across process restarts. SQLite and PostgreSQL
// backends are provided alongside an in-memory store for tests.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/PathwayLabs/CareerPilot/internal/models"
)

// Store is the persistence interface used by the orchestrator and recovery.
type Store interface {
	// SaveConversationState inserts or replaces the state for its conversation id.
	SaveConversationState(state models.ConversationState) error
	// GetConversationState returns the state for a conversation, or nil if absent.
	GetConversationState(conversationID string) (*models.ConversationState, error)
	// ListConversationsByPhase returns every conversation in the given phase.
	ListConversationsByPhase(phase models.WorkflowPhase) ([]models.ConversationState, error)
	// DeleteConversationState removes a conversation's state.
	DeleteConversationState(conversationID string) error

	// SaveReviewRequest inserts or replaces a review request by id.
	SaveReviewRequest(req models.HumanReviewRequest) error
	// GetReviewRequest returns a review request, or nil if absent.
	GetReviewRequest(id string) (*models.HumanReviewRequest, error)
	// ListPendingReviews returns every review request still awaiting a reviewer.
	ListPendingReviews() ([]models.HumanReviewRequest, error)

	// Close releases backend resources.
	Close() error
}

// Opts holds store configuration options.
type Opts struct {
	SQLiteDSN   string
	PostgresDSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN configures a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.SQLiteDSN = dsn }
}

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.PostgresDSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL DSNs
// use URL or key=value forms; anything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a map-backed Store for tests and DSN-less deployments.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]models.ConversationState
	reviews       map[string]models.HumanReviewRequest
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]models.ConversationState),
		reviews:       make(map[string]models.HumanReviewRequest),
	}
}

// SaveConversationState inserts or replaces the conversation state.
func (s *InMemoryStore) SaveConversationState(state models.ConversationState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[state.ConversationID] = state
	return nil
}

// GetConversationState returns the conversation state, or nil if absent.
func (s *InMemoryStore) GetConversationState(conversationID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.conversations[conversationID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// ListConversationsByPhase returns conversations in the given phase, ordered
// by conversation id for deterministic iteration.
func (s *InMemoryStore) ListConversationsByPhase(phase models.WorkflowPhase) ([]models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ConversationState
	for _, state := range s.conversations {
		if state.Phase == phase {
			out = append(out, state)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out, nil
}

// DeleteConversationState removes the conversation state.
func (s *InMemoryStore) DeleteConversationState(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
	return nil
}

// SaveReviewRequest inserts or replaces a review request.
func (s *InMemoryStore) SaveReviewRequest(req models.HumanReviewRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[req.ID] = req
	return nil
}

// GetReviewRequest returns a review request, or nil if absent.
func (s *InMemoryStore) GetReviewRequest(id string) (*models.HumanReviewRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.reviews[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

// ListPendingReviews returns pending review requests ordered by creation time.
func (s *InMemoryStore) ListPendingReviews() ([]models.HumanReviewRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.HumanReviewRequest
	for _, req := range s.reviews {
		if req.IsOpen() {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
