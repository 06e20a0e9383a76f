// Package recovery restores orchestration state after an application restart.
// Paused conversations and pending human reviews live in the store, so a
// restart only needs to re-verify them and re-page the reviewer channel for
// anything still open.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PathwayLabs/CareerPilot/internal/escalation"
	"github.com/PathwayLabs/CareerPilot/internal/models"
	"github.com/PathwayLabs/CareerPilot/internal/store"
)

// Recoverable is a component that restores its state during startup.
type Recoverable interface {
	RecoverState(ctx context.Context, st store.Store) error
}

// Manager runs all registered recoverables once at startup.
type Manager struct {
	store        store.Store
	recoverables []Recoverable
}

// NewManager creates a recovery manager over the store.
func NewManager(st store.Store) *Manager {
	return &Manager{
		store:        st,
		recoverables: make([]Recoverable, 0),
	}
}

// Register adds a component to recover at startup.
func (m *Manager) Register(r Recoverable) {
	m.recoverables = append(m.recoverables, r)
}

// RecoverAll performs recovery of all registered components.
func (m *Manager) RecoverAll(ctx context.Context) error {
	slog.Info("Manager.RecoverAll: starting application recovery", "components", len(m.recoverables))

	recovered := 0
	failed := 0
	for _, r := range m.recoverables {
		if err := r.RecoverState(ctx, m.store); err != nil {
			slog.Error("Manager.RecoverAll: component recovery failed",
				"error", err, "component", fmt.Sprintf("%T", r))
			failed++
			continue
		}
		recovered++
	}

	slog.Info("Manager.RecoverAll: application recovery completed",
		"recovered", recovered, "errors", failed)
	if failed > 0 {
		return fmt.Errorf("recovery completed with %d errors out of %d components", failed, len(m.recoverables))
	}
	return nil
}

// ReviewRecovery re-pages the reviewer channel for reviews that were still
// pending when the process stopped, and files a fresh review for any
// human-paused conversation whose review record went missing.
type ReviewRecovery struct {
	reviewer escalation.ReviewerChannel
	esc      *escalation.Coordinator
}

// NewReviewRecovery creates the review recovery component.
func NewReviewRecovery(reviewer escalation.ReviewerChannel, esc *escalation.Coordinator) *ReviewRecovery {
	return &ReviewRecovery{reviewer: reviewer, esc: esc}
}

// RecoverState implements Recoverable.
func (r *ReviewRecovery) RecoverState(ctx context.Context, st store.Store) error {
	pending, err := st.ListPendingReviews()
	if err != nil {
		return fmt.Errorf("failed to list pending reviews: %w", err)
	}
	open := make(map[string]bool, len(pending))
	for _, req := range pending {
		open[req.ConversationID] = true
		if err := r.reviewer.SubmitReview(ctx, req); err != nil {
			slog.Error("ReviewRecovery.RecoverState: failed to re-page reviewer",
				"error", err, "reviewID", req.ID, "conversationID", req.ConversationID)
			continue
		}
		slog.Info("ReviewRecovery.RecoverState: re-paged pending review",
			"reviewID", req.ID, "conversationID", req.ConversationID, "priority", req.Priority)
	}

	paused, err := st.ListConversationsByPhase(models.PhasePausedForHuman)
	if err != nil {
		return fmt.Errorf("failed to list human-paused conversations: %w", err)
	}
	for _, state := range paused {
		if open[state.ConversationID] {
			continue
		}
		// Paused conversation with no open review: file one so it is not
		// stranded. This happens when a crash lands between the phase write
		// and the review write.
		decision := models.InterventionDecision{
			NeedsIntervention: true,
			Priority:          models.PriorityHigh,
			Type:              models.InterventionGoalConfirmation,
			Score:             1.0,
			Reasons:           []string{"review record missing after restart"},
		}
		req := r.esc.BuildReviewRequest(state.ConversationID, decision, &state)
		if err := st.SaveReviewRequest(req); err != nil {
			slog.Error("ReviewRecovery.RecoverState: failed to file replacement review",
				"error", err, "conversationID", state.ConversationID)
			continue
		}
		state.PendingReviewID = req.ID
		state.UpdatedAt = time.Now()
		if err := st.SaveConversationState(state); err != nil {
			slog.Error("ReviewRecovery.RecoverState: failed to relink conversation to review",
				"error", err, "conversationID", state.ConversationID)
			continue
		}
		if err := r.reviewer.SubmitReview(ctx, req); err != nil {
			slog.Error("ReviewRecovery.RecoverState: failed to page reviewer for replacement review",
				"error", err, "reviewID", req.ID)
		}
		slog.Warn("ReviewRecovery.RecoverState: filed replacement review for stranded conversation",
			"conversationID", state.ConversationID, "reviewID", req.ID)
	}
	return nil
}

// ClarificationRecovery audits conversations paused on a clarification
// question. A pause survives restarts by design; this only logs how long each
// has been waiting so stale ones are visible in the logs.
type ClarificationRecovery struct {
	now func() time.Time
}

// NewClarificationRecovery creates the clarification audit component.
func NewClarificationRecovery() *ClarificationRecovery {
	return &ClarificationRecovery{now: time.Now}
}

// RecoverState implements Recoverable.
func (c *ClarificationRecovery) RecoverState(ctx context.Context, st store.Store) error {
	paused, err := st.ListConversationsByPhase(models.PhasePausedForClarification)
	if err != nil {
		return fmt.Errorf("failed to list clarification-paused conversations: %w", err)
	}
	for _, state := range paused {
		waiting := time.Duration(0)
		if state.Pending != nil {
			waiting = c.now().Sub(state.Pending.IssuedAt)
		}
		slog.Info("ClarificationRecovery.RecoverState: conversation awaiting clarification answer",
			"conversationID", state.ConversationID, "waiting", waiting.Round(time.Second))
	}
	slog.Info("ClarificationRecovery.RecoverState: clarification audit completed", "count", len(paused))
	return nil
}
