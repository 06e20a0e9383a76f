// Package models defines human-intervention structures for CareerPilot.
package models

import "time"

// Priority ranks how urgently a human should look at a conversation.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// InterventionType names the reason class for a human intervention.
type InterventionType string

const (
	InterventionQualityCheck      InterventionType = "QUALITY_CHECK"
	InterventionRoutingValidation InterventionType = "ROUTING_VALIDATION"
	InterventionCrisis            InterventionType = "CRISIS_INTERVENTION"
	InterventionGoalConfirmation  InterventionType = "GOAL_CONFIRMATION"
)

// InterventionDecision is the escalation coordinator's verdict for one step.
type InterventionDecision struct {
	NeedsIntervention bool             `json:"needs_intervention"`
	Priority          Priority         `json:"priority"`
	Type              InterventionType `json:"intervention_type"`
	Score             float64          `json:"score"`
	Reasons           []string         `json:"reasons,omitempty"`
}

// Review request lifecycle states.
const (
	ReviewStatusPending  = "pending"
	ReviewStatusResolved = "resolved"
	ReviewStatusExpired  = "expired"
)

// HumanReviewRequest is the durable record handed to the human-reviewer
// channel when escalation criteria fire.
type HumanReviewRequest struct {
	ID                  string           `json:"id"`
	ConversationID      string           `json:"conversation_id"`
	Priority            Priority         `json:"priority"`
	Type                InterventionType `json:"intervention_type"`
	Reasons             []string         `json:"reasons,omitempty"`
	ConversationSummary string           `json:"conversation_summary"`
	Status              string           `json:"status"`
	Decision            string           `json:"decision,omitempty"`
	ResolvedBy          string           `json:"resolved_by,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	ResolvedAt          *time.Time       `json:"resolved_at,omitempty"`
}

// IsOpen reports whether the request still awaits a reviewer.
func (r *HumanReviewRequest) IsOpen() bool {
	return r.Status == ReviewStatusPending
}
