package routing

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PathwayLabs/CareerPilot/internal/models"
)

// Scoring weights and tier thresholds.
const (
	primaryFocusWeight   = 3.0
	secondaryFocusWeight = 2.0
	thresholdMetWeight   = 1.0
	keywordMatchWeight   = 0.5

	tierHighMin   = 4.0
	tierMediumMin = 2.0
	tierLowMin    = 1.0
)

// Engine scores specialists against identity profiles. Routing is a pure,
// deterministic function of its inputs: identical (profile, message) inputs
// yield identical decisions, including tie-breaks, across process restarts.
type Engine struct {
	specialists []Specialist
	defaultID   string
	now         func() time.Time
}

// NewEngine creates a routing engine over the given ordered specialist table.
// An empty or nil table is tolerated: every decision then falls back to the
// default specialist with an UNCERTAIN tier.
func NewEngine(specialists []Specialist) *Engine {
	return &Engine{
		specialists: specialists,
		defaultID:   DefaultSpecialistID,
		now:         time.Now,
	}
}

// SpecialistByID returns the declared specialist with the given id.
func (e *Engine) SpecialistByID(id string) (Specialist, bool) {
	for _, s := range e.specialists {
		if s.ID == id {
			return s, true
		}
	}
	return Specialist{}, false
}

// Specialists returns the declared table in declaration order.
func (e *Engine) Specialists() []Specialist {
	return e.specialists
}

// scored pairs a specialist with its computed score.
type scored struct {
	specialist Specialist
	score      float64
}

// Route scores every specialist against the profile and message and selects
// the winner. The scan runs in declaration order and keeps the first maximum,
// so equal scores resolve to the earlier declaration. Malformed or empty
// tables never raise upward; they produce an UNCERTAIN decision for the
// default specialist.
func (e *Engine) Route(profile *models.IdentityProfile, message string) *models.RoutingDecision {
	ts := e.now()

	if len(e.specialists) == 0 || profile == nil {
		slog.Warn("Engine.Route: no usable specialist table or profile, using default",
			"specialistCount", len(e.specialists), "hasProfile", profile != nil)
		return &models.RoutingDecision{
			SpecialistAssigned: e.defaultID,
			ConfidenceTier:     models.TierUncertain,
			Reasoning:          "specialist table unavailable; assigned default specialist",
			Timestamp:          ts,
		}
	}

	ranked := make([]scored, 0, len(e.specialists))
	for _, s := range e.specialists {
		ranked = append(ranked, scored{specialist: s, score: scoreSpecialist(s, profile)})
	}

	// First-by-score over declaration order: strictly-greater keeps earlier
	// declarations as winners on ties.
	best := 0
	for i := 1; i < len(ranked); i++ {
		if ranked[i].score > ranked[best].score {
			best = i
		}
	}

	winner := ranked[best]
	tier := tierFor(winner.score)
	assigned := winner.specialist.ID
	tools := winner.specialist.ToolSet
	reasoning := fmt.Sprintf("%s scored %.1f for primary identity %q (tier %s)",
		winner.specialist.ID, winner.score, profile.PrimaryIdentity, tier)

	if tier == models.TierUncertain {
		// Nothing scored: hand the conversation to the default specialist.
		assigned = e.defaultID
		if def, ok := e.SpecialistByID(e.defaultID); ok {
			tools = def.ToolSet
		}
		reasoning = fmt.Sprintf("no specialist scored above %.1f for primary identity %q; assigned default specialist %s",
			tierLowMin, profile.PrimaryIdentity, e.defaultID)
	}

	decision := &models.RoutingDecision{
		SpecialistAssigned:     assigned,
		ConfidenceTier:         tier,
		Score:                  winner.score,
		Reasoning:              reasoning,
		AlternativeSpecialists: alternatives(ranked, best),
		ToolsRecommended:       tools,
		Timestamp:              ts,
	}

	slog.Info("Engine.Route: routing decision",
		"specialist", decision.SpecialistAssigned,
		"tier", decision.ConfidenceTier,
		"score", decision.Score,
		"primaryIdentity", profile.PrimaryIdentity)
	return decision
}

// scoreSpecialist applies the declared weights: +3 for a primary-focus hit,
// +2 per secondary-identity hit, +1 when the profile confidence meets the
// specialist's threshold, +0.5 per keyword matching a capability string.
func scoreSpecialist(s Specialist, profile *models.IdentityProfile) float64 {
	var score float64

	if containsString(s.PrimaryFocus, profile.PrimaryIdentity) {
		score += primaryFocusWeight
	}
	for _, secondary := range profile.SecondaryIdentities {
		if containsString(s.SecondaryFocus, secondary) {
			score += secondaryFocusWeight
		}
	}
	if profile.ConfidenceScore >= s.ConfidenceThreshold {
		score += thresholdMetWeight
	}
	for _, kw := range profile.Keywords {
		if capabilityMatches(s.Capabilities, kw) {
			score += keywordMatchWeight
		}
	}
	return score
}

// tierFor maps a score to its confidence tier.
func tierFor(score float64) models.ConfidenceTier {
	switch {
	case score >= tierHighMin:
		return models.TierHigh
	case score >= tierMediumMin:
		return models.TierMedium
	case score >= tierLowMin:
		return models.TierLow
	default:
		return models.TierUncertain
	}
}

// alternatives returns the next two highest-scoring specialist ids after the
// winner, resolving equal scores by declaration order.
func alternatives(ranked []scored, winnerIdx int) []string {
	var out []string
	taken := map[int]bool{winnerIdx: true}
	for len(out) < 2 {
		best := -1
		for i := range ranked {
			if taken[i] {
				continue
			}
			if best == -1 || ranked[i].score > ranked[best].score {
				best = i
			}
		}
		if best == -1 {
			break
		}
		taken[best] = true
		out = append(out, ranked[best].specialist.ID)
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// capabilityMatches reports whether a profile keyword textually matches any
// capability string (case-insensitive substring in either direction).
func capabilityMatches(capabilities []string, keyword string) bool {
	kw := strings.ToLower(keyword)
	for _, c := range capabilities {
		lc := strings.ToLower(c)
		if strings.Contains(lc, kw) || strings.Contains(kw, lc) {
			return true
		}
	}
	return false
}
