// Package workflow tracks per-conversation progress counters and enforces
// the limits that stop runaway specialist recursion. A breach is a forced
// termination of the automated path, not a retryable error: the conversation
// is moved to PAUSED_FOR_HUMAN and the breach is reported upward.
package workflow

import (
	"log/slog"
	"time"

	"github.com/PathwayLabs/CareerPilot/internal/models"
)

// Manager enforces workflow limits. Counter updates and checks mutate the
// caller's WorkflowState; within one conversation steps are strictly
// sequential, so no additional locking is needed here.
type Manager struct {
	limits models.WorkflowLimits
	now    func() time.Time
}

// NewManager creates a workflow manager with the given limits.
func NewManager(limits models.WorkflowLimits) *Manager {
	return &Manager{limits: limits, now: time.Now}
}

// Limits returns the configured limit set.
func (m *Manager) Limits() models.WorkflowLimits {
	return m.limits
}

// NewState initializes the workflow state for a conversation starting now.
func (m *Manager) NewState() models.WorkflowState {
	return models.WorkflowState{
		SpecialistCallCounts: make(map[string]int),
		StartTime:            m.now(),
	}
}

// RegisterStep checks and increments the step counter ahead of a routing
// decision. The counter is monotonically non-decreasing; a breach trips the
// conversation-local circuit breaker.
func (m *Manager) RegisterStep(conversationID string, state *models.WorkflowState, phase *models.WorkflowPhase) error {
	if state.StepCount >= m.limits.MaxWorkflowSteps {
		return m.trip(conversationID, state, phase, &models.WorkflowLimitError{
			Kind:  models.LimitKindSteps,
			Limit: m.limits.MaxWorkflowSteps,
		})
	}
	state.StepCount++
	return nil
}

// RegisterSpecialistCall checks and increments the per-specialist recursion
// counter before that specialist is dispatched. The recorded count never
// exceeds the limit: the breach is detected on the attempt past it, and that
// attempt is not dispatched.
func (m *Manager) RegisterSpecialistCall(conversationID, specialist string, state *models.WorkflowState, phase *models.WorkflowPhase) error {
	if state.SpecialistCallCounts == nil {
		state.SpecialistCallCounts = make(map[string]int)
	}
	if state.SpecialistCallCounts[specialist] >= m.limits.SpecialistMaxRecursion {
		return m.trip(conversationID, state, phase, &models.WorkflowLimitError{
			Kind:       models.LimitKindRecursion,
			Limit:      m.limits.SpecialistMaxRecursion,
			Specialist: specialist,
		})
	}
	state.SpecialistCallCounts[specialist]++
	return nil
}

// RegisterConfidenceCheck counts one clarification evaluation; exceeding the
// limit trips the breaker rather than looping the dialogue.
func (m *Manager) RegisterConfidenceCheck(conversationID string, state *models.WorkflowState, phase *models.WorkflowPhase) error {
	if state.ConfidenceChecks >= m.limits.ConfidenceCheckLimit {
		return m.trip(conversationID, state, phase, &models.WorkflowLimitError{
			Kind:  models.LimitKindSteps,
			Limit: m.limits.ConfidenceCheckLimit,
		})
	}
	state.ConfidenceChecks++
	return nil
}

// RegisterEmpathyAttempt counts one empathy retry toward its cap.
func (m *Manager) RegisterEmpathyAttempt(conversationID string, state *models.WorkflowState, phase *models.WorkflowPhase) error {
	if state.EmpathyAttempts >= m.limits.EmpathyMaxAttempts {
		return m.trip(conversationID, state, phase, &models.WorkflowLimitError{
			Kind:  models.LimitKindSteps,
			Limit: m.limits.EmpathyMaxAttempts,
		})
	}
	state.EmpathyAttempts++
	return nil
}

// CheckDeadline verifies the wall-clock budget measured from conversation
// start. A conversation past its deadline is cancelled into PAUSED_FOR_HUMAN.
func (m *Manager) CheckDeadline(conversationID string, state *models.WorkflowState, phase *models.WorkflowPhase) error {
	if state.StartTime.IsZero() {
		state.StartTime = m.now()
		return nil
	}
	elapsed := m.now().Sub(state.StartTime)
	if elapsed > m.limits.WorkflowTimeout {
		return m.trip(conversationID, state, phase, &models.WorkflowLimitError{
			Kind:    models.LimitKindTimeout,
			Elapsed: elapsed,
		})
	}
	return nil
}

// CheckLimits runs every passive check (no counter increments): deadline now,
// step headroom, and recursion headroom for the named specialist.
func (m *Manager) CheckLimits(conversationID, specialist string, state *models.WorkflowState, phase *models.WorkflowPhase) error {
	if err := m.CheckDeadline(conversationID, state, phase); err != nil {
		return err
	}
	if state.StepCount > m.limits.MaxWorkflowSteps {
		return m.trip(conversationID, state, phase, &models.WorkflowLimitError{
			Kind:  models.LimitKindSteps,
			Limit: m.limits.MaxWorkflowSteps,
		})
	}
	if specialist != "" && state.SpecialistCallCounts[specialist] > m.limits.SpecialistMaxRecursion {
		return m.trip(conversationID, state, phase, &models.WorkflowLimitError{
			Kind:       models.LimitKindRecursion,
			Limit:      m.limits.SpecialistMaxRecursion,
			Specialist: specialist,
		})
	}
	return nil
}

// trip records a conversation-local circuit-breaker trip: the phase becomes
// PAUSED_FOR_HUMAN and the breach is returned for reporting.
func (m *Manager) trip(conversationID string, state *models.WorkflowState, phase *models.WorkflowPhase, breach *models.WorkflowLimitError) error {
	state.CircuitBreakerTrips++
	if phase != nil {
		*phase = models.PhasePausedForHuman
	}
	slog.Warn("Manager.trip: workflow limit breached, pausing for human",
		"conversationID", conversationID,
		"kind", breach.Kind,
		"specialist", breach.Specialist,
		"stepCount", state.StepCount,
		"trips", state.CircuitBreakerTrips)
	return breach
}
