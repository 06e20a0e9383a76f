// Package models defines the core data structures for CareerPilot.
//
// It includes the identity/routing profile types, admission-control results,
// workflow state, and human-intervention records shared across modules.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Action describes the outcome of processing one user message.
type Action string

const (
	// ActionRoute means a specialist handled the message and produced a reply.
	ActionRoute Action = "ROUTE"
	// ActionClarify means the conversation paused awaiting a user clarification.
	ActionClarify Action = "CLARIFY"
	// ActionEscalate means the conversation paused awaiting a human reviewer.
	ActionEscalate Action = "ESCALATE"
	// ActionError means processing stopped without a specialist reply.
	ActionError Action = "ERROR"
)

// ConfidenceTier buckets routing certainty into discrete levels.
type ConfidenceTier string

const (
	TierHigh      ConfidenceTier = "HIGH"
	TierMedium    ConfidenceTier = "MEDIUM"
	TierLow       ConfidenceTier = "LOW"
	TierUncertain ConfidenceTier = "UNCERTAIN"
)

// ClarificationType identifies why a clarification round was issued.
type ClarificationType string

const (
	// ClarificationNeeded is issued when the identity confidence is too low to route.
	ClarificationNeeded ClarificationType = "CLARIFICATION_NEEDED"
	// ClarificationMultipleOptions asks the user to choose between competing identities.
	ClarificationMultipleOptions ClarificationType = "MULTIPLE_OPTIONS"
	// ClarificationIdentityConfirmation asks the user to confirm a low-confidence assignment.
	ClarificationIdentityConfirmation ClarificationType = "IDENTITY_CONFIRMATION"
)

// Validation constants shared across components.
const (
	// MaxMessageLength bounds inbound user message size.
	MaxMessageLength = 8192
	// MaxHistoryTurns bounds how many prior turns are retained per conversation.
	MaxHistoryTurns = 100
)

// Error variables for better error handling and testability.
var (
	ErrEmptyMessage          = errors.New("message cannot be empty")
	ErrMessageTooLong        = errors.New("message exceeds maximum length")
	ErrEmptyConversationID   = errors.New("conversation id cannot be empty")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrConversationNotPaused = errors.New("conversation is not paused")
	ErrConversationClosed    = errors.New("conversation is terminated")
	ErrReviewNotFound        = errors.New("review request not found")
	ErrReviewAlreadyResolved = errors.New("review request already resolved")
	ErrHumanReviewTimeout    = errors.New("human review timed out")
)

// ConversationTurn is one utterance in a conversation, user or assistant.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PendingClarification captures a clarification round awaiting a user answer.
type PendingClarification struct {
	ID              string            `json:"id"`
	Type            ClarificationType `json:"type"`
	Prompt          string            `json:"prompt"`
	OriginalMessage string            `json:"original_message"`
	IssuedAt        time.Time         `json:"issued_at"`
}

// ConversationState is the durable, resumable state of one conversation.
// It is persisted at every suspension point so that processing can resume
// by id after a restart without replaying completed work.
type ConversationState struct {
	ConversationID      string                `json:"conversation_id"`
	Phase               WorkflowPhase         `json:"phase"`
	History             []ConversationTurn    `json:"history,omitempty"`
	Workflow            WorkflowState         `json:"workflow"`
	LastProfile         *IdentityProfile      `json:"last_profile,omitempty"`
	LastDecision        *RoutingDecision      `json:"last_decision,omitempty"`
	Pending             *PendingClarification `json:"pending_clarification,omitempty"`
	PendingReviewID     string                `json:"pending_review_id,omitempty"`
	ClarificationRounds int                   `json:"clarification_rounds"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// Validate performs basic integrity checks on a ConversationState.
func (c *ConversationState) Validate() error {
	if c.ConversationID == "" {
		return ErrEmptyConversationID
	}
	if c.Phase != "" && !IsValidWorkflowPhase(c.Phase) {
		return fmt.Errorf("unknown workflow phase %q", c.Phase)
	}
	return c.Workflow.Validate()
}

// AppendTurn records a turn and trims history to MaxHistoryTurns.
func (c *ConversationState) AppendTurn(role, content string, at time.Time) {
	c.History = append(c.History, ConversationTurn{Role: role, Content: content, Timestamp: at})
	if len(c.History) > MaxHistoryTurns {
		c.History = c.History[len(c.History)-MaxHistoryTurns:]
	}
}

// LastUserMessage returns the most recent user turn content, or "".
func (c *ConversationState) LastUserMessage() string {
	for i := len(c.History) - 1; i >= 0; i-- {
		if c.History[i].Role == "user" {
			return c.History[i].Content
		}
	}
	return ""
}

// ProcessResult is the outcome of ProcessMessage or Resume.
type ProcessResult struct {
	Action        Action                `json:"action"`
	Specialist    string                `json:"specialist,omitempty"`
	Reply         string                `json:"reply,omitempty"`
	Decision      *RoutingDecision      `json:"decision,omitempty"`
	Clarification *PendingClarification `json:"clarification,omitempty"`
	Review        *HumanReviewRequest   `json:"review,omitempty"`
	Admission     *AdmissionResult      `json:"admission,omitempty"`
	State         *ConversationState    `json:"state,omitempty"`
}
