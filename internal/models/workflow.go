// Package models defines workflow state structures for CareerPilot.
package models

import (
	"fmt"
	"time"
)

// WorkflowPhase is the lifecycle phase of one conversation workflow.
type WorkflowPhase string

const (
	PhaseActive                 WorkflowPhase = "ACTIVE"
	PhasePausedForClarification WorkflowPhase = "PAUSED_FOR_CLARIFICATION"
	PhasePausedForHuman         WorkflowPhase = "PAUSED_FOR_HUMAN"
	PhaseTerminated             WorkflowPhase = "TERMINATED"
)

// IsValidWorkflowPhase checks if the given phase is supported.
func IsValidWorkflowPhase(p WorkflowPhase) bool {
	switch p {
	case PhaseActive, PhasePausedForClarification, PhasePausedForHuman, PhaseTerminated:
		return true
	default:
		return false
	}
}

// WorkflowState tracks progress counters for one conversation. One instance
// exists per conversation; step counts are monotonically non-decreasing.
type WorkflowState struct {
	StepCount            int            `json:"step_count"`
	SpecialistCallCounts map[string]int `json:"specialist_call_counts,omitempty"`
	StartTime            time.Time      `json:"start_time"`
	CircuitBreakerTrips  int            `json:"circuit_breaker_trips"`
	ErrorCount           int            `json:"error_count"`
	FrustrationFlag      bool           `json:"frustration_flag"`
	ConfidenceChecks     int            `json:"confidence_checks"`
	EmpathyAttempts      int            `json:"empathy_attempts"`
}

// Validate checks workflow counter invariants.
func (w *WorkflowState) Validate() error {
	if w.StepCount < 0 {
		return fmt.Errorf("step count %d is negative", w.StepCount)
	}
	for specialist, count := range w.SpecialistCallCounts {
		if count < 0 {
			return fmt.Errorf("call count for specialist %s is negative", specialist)
		}
	}
	return nil
}

// WorkflowLimits is the configurable limit set enforced by the workflow
// state manager.
type WorkflowLimits struct {
	MaxWorkflowSteps       int           `json:"max_workflow_steps"`
	SpecialistMaxRecursion int           `json:"specialist_max_recursion"`
	EmpathyMaxAttempts     int           `json:"empathy_max_attempts"`
	ConfidenceCheckLimit   int           `json:"confidence_check_limit"`
	WorkflowTimeout        time.Duration `json:"workflow_timeout"`
}

// DefaultWorkflowLimits returns the standard limit configuration.
func DefaultWorkflowLimits() WorkflowLimits {
	return WorkflowLimits{
		MaxWorkflowSteps:       25,
		SpecialistMaxRecursion: 8,
		EmpathyMaxAttempts:     3,
		ConfidenceCheckLimit:   5,
		WorkflowTimeout:        30 * time.Second,
	}
}

// Workflow limit breach kinds.
const (
	LimitKindRecursion = "recursion"
	LimitKindSteps     = "steps"
	LimitKindTimeout   = "timeout"
)

// WorkflowLimitError reports a breached workflow limit. It is fatal to the
// automated path: the conversation is forced into PAUSED_FOR_HUMAN.
type WorkflowLimitError struct {
	Kind       string
	Limit      int
	Specialist string
	Elapsed    time.Duration
}

func (e *WorkflowLimitError) Error() string {
	switch e.Kind {
	case LimitKindRecursion:
		return fmt.Sprintf("workflow limit exceeded: specialist %s reached recursion limit %d", e.Specialist, e.Limit)
	case LimitKindTimeout:
		return fmt.Sprintf("workflow limit exceeded: elapsed %s past timeout", e.Elapsed)
	default:
		return fmt.Sprintf("workflow limit exceeded: %s limit %d", e.Kind, e.Limit)
	}
}
