package escalation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/PathwayLabs/CareerPilot/internal/models"
)

// ReviewerChannel delivers review requests to human reviewers. Submission is
// asynchronous notification: the decision arrives later through the resolve
// path, so the conversation stays parked in its paused phase meanwhile.
type ReviewerChannel interface {
	// SubmitReview notifies reviewers of a pending review request.
	SubmitReview(ctx context.Context, req models.HumanReviewRequest) error
}

// InMemoryChannel is a ReviewerChannel that records submissions in memory.
// Used in tests and as the fallback when no notifier is configured.
type InMemoryChannel struct {
	mu        sync.Mutex
	submitted []models.HumanReviewRequest
}

// NewInMemoryChannel creates an in-memory reviewer channel.
func NewInMemoryChannel() *InMemoryChannel {
	return &InMemoryChannel{}
}

// SubmitReview records the request.
func (c *InMemoryChannel) SubmitReview(ctx context.Context, req models.HumanReviewRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitted = append(c.submitted, req)
	slog.Info("InMemoryChannel.SubmitReview: review request recorded",
		"reviewID", req.ID, "conversationID", req.ConversationID, "priority", req.Priority, "type", req.Type)
	return nil
}

// Submitted returns a copy of the recorded submissions.
func (c *InMemoryChannel) Submitted() []models.HumanReviewRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.HumanReviewRequest, len(c.submitted))
	copy(out, c.submitted)
	return out
}
