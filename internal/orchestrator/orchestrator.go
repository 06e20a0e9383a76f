// Package orchestrator implements the routing, admission-control, and
// human-steering pipeline. One message flows recognizer → router →
// (clarification) → admission gate → specialist → quality assessment →
// escalation, with workflow limits enforced around every step.
//
// Conversations are effectively single-threaded state machines: steps within
// one conversation run strictly sequentially, and the conversation state is
// persisted at every suspension point so processing can resume by id, not by
// an in-memory continuation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PathwayLabs/CareerPilot/internal/escalation"
	"github.com/PathwayLabs/CareerPilot/internal/identity"
	"github.com/PathwayLabs/CareerPilot/internal/models"
	"github.com/PathwayLabs/CareerPilot/internal/routing"
	"github.com/PathwayLabs/CareerPilot/internal/specialist"
	"github.com/PathwayLabs/CareerPilot/internal/store"
	"github.com/PathwayLabs/CareerPilot/internal/workflow"
	"github.com/google/uuid"
)

// User-facing fallback messages.
const (
	// LimitBreachMessage is shown when a workflow limit forces a human pause.
	LimitBreachMessage = "I'm sorry - I'm going to bring in a member of our team to help from here. Someone will follow up with you shortly."
	// HoldingMessage is shown when a message arrives while a human review is pending.
	HoldingMessage = "A member of our team is reviewing this conversation and will follow up with you soon."
	// ErrorMessage is shown when specialist execution fails.
	ErrorMessage = "I ran into a problem handling that. Could you try again in a moment?"
	// ReconnectMessage is shown after a human reviewer releases a paused conversation.
	ReconnectMessage = "Thanks for your patience - you're reconnected. How can I help you move forward?"
)

// Orchestrator wires the pipeline components together.
type Orchestrator struct {
	store      store.Store
	recognizer *identity.Recognizer
	engine     *routing.Engine
	dialogue   *routing.ConfidenceDialogue
	workflow   *workflow.Manager
	escalation *escalation.Coordinator
	executor   specialist.Executor
	assessor   specialist.Assessor
	reviewer   escalation.ReviewerChannel
	now        func() time.Time
}

// NewOrchestrator creates the pipeline over its collaborators.
func NewOrchestrator(st store.Store, recognizer *identity.Recognizer, engine *routing.Engine, dialogue *routing.ConfidenceDialogue, wf *workflow.Manager, esc *escalation.Coordinator, executor specialist.Executor, assessor specialist.Assessor, reviewer escalation.ReviewerChannel) *Orchestrator {
	slog.Debug("NewOrchestrator: creating orchestrator",
		"hasStore", st != nil,
		"hasRecognizer", recognizer != nil,
		"hasEngine", engine != nil,
		"hasDialogue", dialogue != nil,
		"hasWorkflow", wf != nil,
		"hasEscalation", esc != nil,
		"hasExecutor", executor != nil,
		"hasAssessor", assessor != nil,
		"hasReviewer", reviewer != nil)
	return &Orchestrator{
		store:      st,
		recognizer: recognizer,
		engine:     engine,
		dialogue:   dialogue,
		workflow:   wf,
		escalation: esc,
		executor:   executor,
		assessor:   assessor,
		reviewer:   reviewer,
		now:        time.Now,
	}
}

// ProcessMessage handles one inbound user message for a conversation. An
// empty conversation id starts a new conversation. A message arriving while
// the conversation is paused for clarification is treated as the
// clarification answer.
func (o *Orchestrator) ProcessMessage(ctx context.Context, conversationID, userMessage string) (*models.ProcessResult, error) {
	if userMessage == "" {
		return nil, models.ErrEmptyMessage
	}
	if len(userMessage) > models.MaxMessageLength {
		return nil, models.ErrMessageTooLong
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	state, err := o.loadOrCreate(conversationID)
	if err != nil {
		return nil, err
	}

	slog.Debug("Orchestrator.ProcessMessage: processing message",
		"conversationID", conversationID, "phase", state.Phase, "stepCount", state.Workflow.StepCount)

	switch state.Phase {
	case models.PhasePausedForClarification:
		return o.resumeClarification(ctx, state, userMessage)

	case models.PhasePausedForHuman:
		state.AppendTurn("user", userMessage, o.now())
		// Crisis detection is never deferred, even while a review is pending.
		if kw := o.escalation.DetectCrisis(userMessage); kw != "" {
			return o.handleCrisis(ctx, state, userMessage)
		}
		state.AppendTurn("assistant", HoldingMessage, o.now())
		if err := o.persist(state); err != nil {
			return nil, err
		}
		return &models.ProcessResult{Action: models.ActionEscalate, Reply: HoldingMessage, State: state}, nil

	case models.PhaseTerminated:
		return nil, models.ErrConversationClosed
	}

	state.AppendTurn("user", userMessage, o.now())
	return o.runPipeline(ctx, state, userMessage, userMessage, true)
}

// Resume continues a paused conversation with external input: the user's
// clarification answer, or the human reviewer's decision.
func (o *Orchestrator) Resume(ctx context.Context, conversationID, externalInput string) (*models.ProcessResult, error) {
	if conversationID == "" {
		return nil, models.ErrEmptyConversationID
	}
	state, err := o.store.GetConversationState(conversationID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, models.ErrConversationNotFound
	}

	switch state.Phase {
	case models.PhasePausedForClarification:
		return o.resumeClarification(ctx, state, externalInput)
	case models.PhasePausedForHuman:
		return o.resumeFromHuman(ctx, state, "", externalInput)
	default:
		return nil, models.ErrConversationNotPaused
	}
}

// ResolveReview records a reviewer decision and releases the paused
// conversation back to the automated flow.
func (o *Orchestrator) ResolveReview(ctx context.Context, reviewID, resolvedBy, decision string) (*models.ProcessResult, error) {
	req, err := o.store.GetReviewRequest(reviewID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, models.ErrReviewNotFound
	}
	if !req.IsOpen() {
		return nil, models.ErrReviewAlreadyResolved
	}

	resolvedAt := o.now()
	req.Status = models.ReviewStatusResolved
	req.Decision = decision
	req.ResolvedBy = resolvedBy
	req.ResolvedAt = &resolvedAt
	if err := o.store.SaveReviewRequest(*req); err != nil {
		return nil, err
	}
	slog.Info("Orchestrator.ResolveReview: review resolved",
		"reviewID", reviewID, "conversationID", req.ConversationID, "resolvedBy", resolvedBy)

	state, err := o.store.GetConversationState(req.ConversationID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, models.ErrConversationNotFound
	}
	if state.Phase != models.PhasePausedForHuman {
		// Review resolved for a conversation that already moved on.
		return &models.ProcessResult{Action: models.ActionRoute, Review: req, State: state}, nil
	}
	return o.resumeFromHuman(ctx, state, reviewID, decision)
}

// ExpireStaleReviews marks pending reviews older than maxAge as expired.
// The paused conversations stay paused: timing out a reviewer never releases
// a conversation automatically. Returns the number of reviews expired.
func (o *Orchestrator) ExpireStaleReviews(ctx context.Context, maxAge time.Duration) (int, error) {
	pending, err := o.store.ListPendingReviews()
	if err != nil {
		return 0, err
	}
	cutoff := o.now().Add(-maxAge)
	expired := 0
	for _, req := range pending {
		if req.CreatedAt.After(cutoff) {
			continue
		}
		req.Status = models.ReviewStatusExpired
		if err := o.store.SaveReviewRequest(req); err != nil {
			return expired, err
		}
		expired++
		slog.Warn("Orchestrator.ExpireStaleReviews: review timed out",
			"reviewID", req.ID, "conversationID", req.ConversationID,
			"age", o.now().Sub(req.CreatedAt), "error", models.ErrHumanReviewTimeout)
	}
	return expired, nil
}

// runPipeline executes one routing step. analysisText is what the recognizer
// sees (possibly the original message combined with a clarification answer);
// userMessage is the raw latest message used for crisis scanning and logging.
func (o *Orchestrator) runPipeline(ctx context.Context, state *models.ConversationState, userMessage, analysisText string, allowClarification bool) (*models.ProcessResult, error) {
	// Crisis check runs first and unconditionally.
	if kw := o.escalation.DetectCrisis(userMessage); kw != "" {
		slog.Warn("Orchestrator.runPipeline: crisis detected",
			"conversationID", state.ConversationID, "keyword", kw)
		return o.handleCrisis(ctx, state, userMessage)
	}

	// Frustration is sticky once detected; a reviewer release clears it.
	if !state.Workflow.FrustrationFlag && o.escalation.DetectFrustration(userMessage) {
		state.Workflow.FrustrationFlag = true
		slog.Info("Orchestrator.runPipeline: user frustration detected",
			"conversationID", state.ConversationID)
	}

	if err := o.workflow.CheckDeadline(state.ConversationID, &state.Workflow, &state.Phase); err != nil {
		return o.handleLimitBreach(ctx, state, err)
	}
	if err := o.workflow.RegisterStep(state.ConversationID, &state.Workflow, &state.Phase); err != nil {
		return o.handleLimitBreach(ctx, state, err)
	}

	profile := o.recognizer.Analyze(analysisText)
	state.LastProfile = profile

	decision := o.engine.Route(profile, analysisText)
	state.LastDecision = decision

	if ctype := o.dialogue.NeedsClarification(profile, decision); ctype != "" {
		if !allowClarification {
			// Second ambiguous result after a clarification round: proceed
			// with the engine's fallback instead of looping.
			slog.Info("Orchestrator.runPipeline: still ambiguous after clarification, using fallback",
				"conversationID", state.ConversationID,
				"specialist", decision.SpecialistAssigned,
				"tier", decision.ConfidenceTier)
		} else {
			if err := o.workflow.RegisterConfidenceCheck(state.ConversationID, &state.Workflow, &state.Phase); err != nil {
				return o.handleLimitBreach(ctx, state, err)
			}
			pending := o.dialogue.BuildClarification(ctype, profile, decision, userMessage)
			state.Pending = pending
			state.ClarificationRounds++
			state.Phase = models.PhasePausedForClarification
			state.AppendTurn("assistant", pending.Prompt, o.now())
			if err := o.persist(state); err != nil {
				return nil, err
			}
			slog.Info("Orchestrator.runPipeline: paused for clarification",
				"conversationID", state.ConversationID, "type", ctype, "tier", decision.ConfidenceTier)
			return &models.ProcessResult{
				Action:        models.ActionClarify,
				Specialist:    decision.SpecialistAssigned,
				Reply:         pending.Prompt,
				Decision:      decision,
				Clarification: pending,
				State:         state,
			}, nil
		}
	}

	// Recursion gate: the breach is detected on the attempt past the limit,
	// before dispatch.
	if err := o.workflow.RegisterSpecialistCall(state.ConversationID, decision.SpecialistAssigned, &state.Workflow, &state.Phase); err != nil {
		return o.handleLimitBreach(ctx, state, err)
	}

	result, err := o.executor.Execute(ctx, decision.SpecialistAssigned, userMessage, state)
	if err != nil {
		return o.handleExecutionError(ctx, state, userMessage, decision, err)
	}

	metrics := o.assessor.Assess(result.Content)
	idec := o.escalation.Evaluate(&state.Workflow, userMessage, &metrics, decision)

	var review *models.HumanReviewRequest
	if idec.NeedsIntervention {
		if idec.Priority == models.PriorityHigh || idec.Priority == models.PriorityUrgent {
			// Blocking escalation: hold the specialist reply for review.
			return o.escalateForHuman(ctx, state, idec, LimitBreachMessage)
		}
		// Advisory escalation: notify asynchronously and keep going.
		r, err := o.submitReview(ctx, state, idec)
		if err != nil {
			slog.Error("Orchestrator.runPipeline: advisory review submission failed",
				"error", err, "conversationID", state.ConversationID)
		} else {
			review = r
		}
	}

	state.AppendTurn("assistant", result.Content, o.now())
	state.Phase = models.PhaseActive
	if err := o.persist(state); err != nil {
		return nil, err
	}

	slog.Info("Orchestrator.runPipeline: specialist reply delivered",
		"conversationID", state.ConversationID,
		"specialist", decision.SpecialistAssigned,
		"tier", decision.ConfidenceTier,
		"stepCount", state.Workflow.StepCount)
	return &models.ProcessResult{
		Action:     models.ActionRoute,
		Specialist: decision.SpecialistAssigned,
		Reply:      result.Content,
		Decision:   decision,
		Review:     review,
		State:      state,
	}, nil
}

// resumeClarification re-runs recognition and routing exactly once with the
// original message and the user's answer combined. A still-ambiguous result
// falls through to the default specialist inside the engine rather than
// issuing a second clarification round.
func (o *Orchestrator) resumeClarification(ctx context.Context, state *models.ConversationState, answer string) (*models.ProcessResult, error) {
	pending := state.Pending
	combined := o.dialogue.CombineWithAnswer(pending, answer)
	state.Pending = nil
	state.Phase = models.PhaseActive
	state.AppendTurn("user", answer, o.now())

	slog.Debug("Orchestrator.resumeClarification: resuming with clarification answer",
		"conversationID", state.ConversationID, "rounds", state.ClarificationRounds)
	return o.runPipeline(ctx, state, answer, combined, false)
}

// resumeFromHuman releases a human-paused conversation back to the automated
// flow with a fresh step budget. The last message is not replayed; the next
// user message restarts normal routing.
func (o *Orchestrator) resumeFromHuman(ctx context.Context, state *models.ConversationState, reviewID, decision string) (*models.ProcessResult, error) {
	if reviewID == "" && state.PendingReviewID != "" {
		if req, err := o.store.GetReviewRequest(state.PendingReviewID); err == nil && req != nil && req.IsOpen() {
			resolvedAt := o.now()
			req.Status = models.ReviewStatusResolved
			req.Decision = decision
			req.ResolvedAt = &resolvedAt
			if err := o.store.SaveReviewRequest(*req); err != nil {
				return nil, err
			}
		}
	}

	state.Phase = models.PhaseActive
	state.PendingReviewID = ""
	state.Workflow.StepCount = 0
	state.Workflow.SpecialistCallCounts = make(map[string]int)
	state.Workflow.ConfidenceChecks = 0
	state.Workflow.EmpathyAttempts = 0
	state.Workflow.ErrorCount = 0
	state.Workflow.FrustrationFlag = false
	state.Workflow.StartTime = o.now()
	state.AppendTurn("assistant", ReconnectMessage, o.now())
	if err := o.persist(state); err != nil {
		return nil, err
	}

	slog.Info("Orchestrator.resumeFromHuman: conversation released by reviewer",
		"conversationID", state.ConversationID, "reviewID", reviewID)
	return &models.ProcessResult{Action: models.ActionRoute, Reply: ReconnectMessage, State: state}, nil
}

// handleCrisis escalates immediately with the fixed safety-resource message,
// bypassing clarification and admission control for the notification itself.
func (o *Orchestrator) handleCrisis(ctx context.Context, state *models.ConversationState, userMessage string) (*models.ProcessResult, error) {
	idec := o.escalation.Evaluate(&state.Workflow, userMessage, nil, nil)
	return o.escalateForHuman(ctx, state, idec, escalation.CrisisResponseMessage)
}

// handleLimitBreach reports a workflow limit breach: the conversation is
// already in PAUSED_FOR_HUMAN (the manager tripped it) and a review request
// is filed so a human picks it up.
func (o *Orchestrator) handleLimitBreach(ctx context.Context, state *models.ConversationState, breach error) (*models.ProcessResult, error) {
	slog.Error("Orchestrator.handleLimitBreach: workflow limit breached",
		"conversationID", state.ConversationID, "error", breach)

	var limitErr *models.WorkflowLimitError
	reasons := []string{breach.Error()}
	if errors.As(breach, &limitErr) {
		reasons = []string{fmt.Sprintf("workflow limit breached: kind=%s", limitErr.Kind)}
	}
	idec := models.InterventionDecision{
		NeedsIntervention: true,
		Priority:          models.PriorityHigh,
		Type:              models.InterventionGoalConfirmation,
		Score:             1.0,
		Reasons:           reasons,
	}
	return o.escalateForHuman(ctx, state, idec, LimitBreachMessage)
}

// handleExecutionError handles a failed specialist dispatch. Rate-limit
// rejections are surfaced with their wait-time hint and never retried here;
// other failures count toward the conversation's error budget and may
// themselves trigger escalation.
func (o *Orchestrator) handleExecutionError(ctx context.Context, state *models.ConversationState, userMessage string, decision *models.RoutingDecision, execErr error) (*models.ProcessResult, error) {
	var rle *models.RateLimitError
	if errors.As(execErr, &rle) {
		slog.Info("Orchestrator.handleExecutionError: provider call rejected by admission control",
			"conversationID", state.ConversationID,
			"provider", rle.Provider,
			"reason", rle.Reason,
			"waitTime", rle.WaitTime,
			"strategy", rle.Strategy)
		if err := o.persist(state); err != nil {
			return nil, err
		}
		reply := fmt.Sprintf("I'm handling a lot of requests right now. Please try again in about %d seconds.",
			int(rle.WaitTime.Seconds())+1)
		return &models.ProcessResult{
			Action:   models.ActionError,
			Reply:    reply,
			Decision: decision,
			Admission: &models.AdmissionResult{
				Allowed:  false,
				Provider: rle.Provider,
				Reason:   rle.Reason,
				WaitTime: rle.WaitTime,
				Strategy: rle.Strategy,
			},
			State: state,
		}, nil
	}

	state.Workflow.ErrorCount++
	slog.Error("Orchestrator.handleExecutionError: specialist execution failed",
		"conversationID", state.ConversationID,
		"specialist", decision.SpecialistAssigned,
		"errorCount", state.Workflow.ErrorCount,
		"error", execErr)

	idec := o.escalation.Evaluate(&state.Workflow, userMessage, nil, decision)
	if idec.NeedsIntervention {
		return o.escalateForHuman(ctx, state, idec, LimitBreachMessage)
	}

	// Each apologetic retry invitation counts toward the empathy cap; past
	// it the conversation goes to a human instead of apologizing again.
	if err := o.workflow.RegisterEmpathyAttempt(state.ConversationID, &state.Workflow, &state.Phase); err != nil {
		return o.handleLimitBreach(ctx, state, err)
	}

	state.AppendTurn("assistant", ErrorMessage, o.now())
	if err := o.persist(state); err != nil {
		return nil, err
	}
	return &models.ProcessResult{
		Action:   models.ActionError,
		Reply:    ErrorMessage,
		Decision: decision,
		State:    state,
	}, nil
}

// escalateForHuman files a review request, notifies the reviewer channel,
// parks the conversation in PAUSED_FOR_HUMAN, and replies with the given
// user-facing message.
func (o *Orchestrator) escalateForHuman(ctx context.Context, state *models.ConversationState, idec models.InterventionDecision, reply string) (*models.ProcessResult, error) {
	review, err := o.submitReview(ctx, state, idec)
	if err != nil {
		return nil, err
	}

	state.Phase = models.PhasePausedForHuman
	state.PendingReviewID = review.ID
	state.AppendTurn("assistant", reply, o.now())
	if err := o.persist(state); err != nil {
		return nil, err
	}

	slog.Info("Orchestrator.escalateForHuman: conversation paused for human",
		"conversationID", state.ConversationID,
		"reviewID", review.ID,
		"priority", review.Priority,
		"type", review.Type)
	return &models.ProcessResult{
		Action: models.ActionEscalate,
		Reply:  reply,
		Review: review,
		State:  state,
	}, nil
}

// submitReview persists a review request and notifies the reviewer channel.
// Notification failures are logged, not fatal: the durable request is the
// source of truth and recovery re-pages it.
func (o *Orchestrator) submitReview(ctx context.Context, state *models.ConversationState, idec models.InterventionDecision) (*models.HumanReviewRequest, error) {
	review := o.escalation.BuildReviewRequest(state.ConversationID, idec, state)
	if err := o.store.SaveReviewRequest(review); err != nil {
		return nil, fmt.Errorf("failed to persist review request: %w", err)
	}
	if err := o.reviewer.SubmitReview(ctx, review); err != nil {
		slog.Error("Orchestrator.submitReview: reviewer notification failed",
			"error", err, "reviewID", review.ID, "conversationID", state.ConversationID)
	}
	return &review, nil
}

// loadOrCreate fetches the conversation state, creating a fresh one when the
// id is unknown.
func (o *Orchestrator) loadOrCreate(conversationID string) (*models.ConversationState, error) {
	if conversationID == "" {
		return nil, models.ErrEmptyConversationID
	}
	state, err := o.store.GetConversationState(conversationID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}
	now := o.now()
	return &models.ConversationState{
		ConversationID: conversationID,
		Phase:          models.PhaseActive,
		Workflow:       o.workflow.NewState(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// persist saves the conversation state, stamping UpdatedAt.
func (o *Orchestrator) persist(state *models.ConversationState) error {
	state.UpdatedAt = o.now()
	if err := o.store.SaveConversationState(*state); err != nil {
		slog.Error("Orchestrator.persist: failed to save conversation state",
			"error", err, "conversationID", state.ConversationID)
		return fmt.Errorf("failed to persist conversation %s: %w", state.ConversationID, err)
	}
	return nil
}
