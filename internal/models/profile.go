// Package models defines identity and routing structures for CareerPilot.
package models

import (
	"fmt"
	"time"
)

// IdentityProfile is the structured classification of one inbound message.
// Profiles are created fresh per message and never mutated after creation.
type IdentityProfile struct {
	PrimaryIdentity     string   `json:"primary_identity"`
	SecondaryIdentities []string `json:"secondary_identities,omitempty"`
	ConfidenceScore     float64  `json:"confidence_score"`
	BarriersIdentified  []string `json:"barriers_identified,omitempty"`
	StrengthsIdentified []string `json:"strengths_identified,omitempty"`
	Keywords            []string `json:"keywords,omitempty"`
}

// Validate checks profile invariants.
func (p *IdentityProfile) Validate() error {
	if p.PrimaryIdentity == "" {
		return fmt.Errorf("identity profile missing primary identity")
	}
	if p.ConfidenceScore < 0 || p.ConfidenceScore > 1 {
		return fmt.Errorf("confidence score %f out of range [0,1]", p.ConfidenceScore)
	}
	return nil
}

// RoutingDecision is the immutable result of one routing attempt.
type RoutingDecision struct {
	SpecialistAssigned     string         `json:"specialist_assigned"`
	ConfidenceTier         ConfidenceTier `json:"confidence_tier"`
	Score                  float64        `json:"score"`
	Reasoning              string         `json:"reasoning"`
	AlternativeSpecialists []string       `json:"alternative_specialists,omitempty"`
	ToolsRecommended       []string       `json:"tools_recommended,omitempty"`
	Timestamp              time.Time      `json:"timestamp"`
}

// QualityMetrics is the quality assessor's view of a specialist response.
type QualityMetrics struct {
	ClarityScore       float64 `json:"clarity_score"`
	ActionabilityScore float64 `json:"actionability_score"`
	ConfidenceScore    float64 `json:"confidence_score"`
}
