package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/PathwayLabs/CareerPilot/internal/escalation"
	"github.com/PathwayLabs/CareerPilot/internal/models"
	"github.com/PathwayLabs/CareerPilot/internal/store"
)

func pausedConversation(id string) models.ConversationState {
	now := time.Now()
	return models.ConversationState{
		ConversationID: id,
		Phase:          models.PhasePausedForHuman,
		Workflow:       models.WorkflowState{StartTime: now},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestReviewRecovery_RepagesPendingReviews(t *testing.T) {
	st := store.NewInMemoryStore()
	channel := escalation.NewInMemoryChannel()

	conv := pausedConversation("conv1")
	conv.PendingReviewID = "rev1"
	if err := st.SaveConversationState(conv); err != nil {
		t.Fatal(err)
	}
	review := models.HumanReviewRequest{
		ID: "rev1", ConversationID: "conv1",
		Priority: models.PriorityHigh, Type: models.InterventionQualityCheck,
		Status: models.ReviewStatusPending, CreatedAt: time.Now(),
	}
	if err := st.SaveReviewRequest(review); err != nil {
		t.Fatal(err)
	}

	r := NewReviewRecovery(channel, escalation.NewCoordinator())
	if err := r.RecoverState(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	submitted := channel.Submitted()
	if len(submitted) != 1 {
		t.Fatalf("expected 1 re-page, got %d", len(submitted))
	}
	if submitted[0].ID != "rev1" {
		t.Errorf("expected rev1 re-paged, got %q", submitted[0].ID)
	}
}

func TestReviewRecovery_FilesReplacementForStrandedConversation(t *testing.T) {
	st := store.NewInMemoryStore()
	channel := escalation.NewInMemoryChannel()

	// Paused for human but no review record survived.
	if err := st.SaveConversationState(pausedConversation("conv1")); err != nil {
		t.Fatal(err)
	}

	r := NewReviewRecovery(channel, escalation.NewCoordinator())
	if err := r.RecoverState(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, err := st.ListPendingReviews()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected a replacement review filed, got %d", len(pending))
	}
	if pending[0].ConversationID != "conv1" {
		t.Errorf("expected review for conv1, got %q", pending[0].ConversationID)
	}

	state, _ := st.GetConversationState("conv1")
	if state.PendingReviewID != pending[0].ID {
		t.Errorf("expected conversation relinked to review %s, got %q", pending[0].ID, state.PendingReviewID)
	}
	if len(channel.Submitted()) != 1 {
		t.Errorf("expected reviewer paged for replacement, got %d", len(channel.Submitted()))
	}
}

func TestManager_RecoverAllContinuesPastFailures(t *testing.T) {
	st := store.NewInMemoryStore()
	m := NewManager(st)

	calls := 0
	m.Register(failingRecoverable{})
	m.Register(countingRecoverable{calls: &calls})

	err := m.RecoverAll(context.Background())
	if err == nil {
		t.Error("expected aggregate error when a component fails")
	}
	if calls != 1 {
		t.Errorf("expected later components to still run, got %d calls", calls)
	}
}

type failingRecoverable struct{}

func (failingRecoverable) RecoverState(ctx context.Context, st store.Store) error {
	return context.DeadlineExceeded
}

type countingRecoverable struct {
	calls *int
}

func (c countingRecoverable) RecoverState(ctx context.Context, st store.Store) error {
	*c.calls++
	return nil
}

func TestClarificationRecovery_Audit(t *testing.T) {
	st := store.NewInMemoryStore()
	conv := pausedConversation("conv1")
	conv.Phase = models.PhasePausedForClarification
	conv.Pending = &models.PendingClarification{
		ID: "clar_1", Type: models.ClarificationNeeded,
		Prompt: "tell me more", IssuedAt: time.Now().Add(-time.Hour),
	}
	if err := st.SaveConversationState(conv); err != nil {
		t.Fatal(err)
	}

	c := NewClarificationRecovery()
	if err := c.RecoverState(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
