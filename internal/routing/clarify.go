package routing

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/PathwayLabs/CareerPilot/internal/models"
	"github.com/PathwayLabs/CareerPilot/internal/util"
)

// lowProfileConfidence is the identity confidence below which an open-ended
// clarification is requested before routing proceeds.
const lowProfileConfidence = 0.2

// ConfidenceDialogue decides whether a routing attempt needs one round of
// user clarification and builds the clarification prompt. At most one round
// is issued per routing attempt; a second ambiguous result falls back to the
// default specialist instead of looping.
type ConfidenceDialogue struct {
	engine *Engine
	now    func() time.Time
}

// NewConfidenceDialogue creates a clarification dialogue over the engine's
// specialist table.
func NewConfidenceDialogue(engine *Engine) *ConfidenceDialogue {
	return &ConfidenceDialogue{engine: engine, now: time.Now}
}

// NeedsClarification returns the clarification type triggered by this
// profile/decision pair, or "" if routing can proceed. Triggers are checked
// in priority order: low profile confidence, competing identities, then a
// low-confidence tier.
func (d *ConfidenceDialogue) NeedsClarification(profile *models.IdentityProfile, decision *models.RoutingDecision) models.ClarificationType {
	if profile == nil || decision == nil {
		return ""
	}
	if profile.ConfidenceScore < lowProfileConfidence {
		return models.ClarificationNeeded
	}
	if len(profile.SecondaryIdentities) >= 2 {
		return models.ClarificationMultipleOptions
	}
	if decision.ConfidenceTier == models.TierLow {
		return models.ClarificationIdentityConfirmation
	}
	return ""
}

// BuildClarification constructs the pending clarification record for the
// given trigger, including the user-facing prompt.
func (d *ConfidenceDialogue) BuildClarification(ctype models.ClarificationType, profile *models.IdentityProfile, decision *models.RoutingDecision, originalMessage string) *models.PendingClarification {
	pending := &models.PendingClarification{
		ID:              util.GenerateRandomID("clar_", 16),
		Type:            ctype,
		OriginalMessage: originalMessage,
		IssuedAt:        d.now(),
	}

	switch ctype {
	case models.ClarificationNeeded:
		pending.Prompt = "I want to point you to the right person. Could you tell me a bit more about your situation and what kind of work you're looking for?"

	case models.ClarificationMultipleOptions:
		first, second := topTwoIdentities(profile)
		pending.Prompt = fmt.Sprintf(
			"It sounds like a couple of things might apply to you. Which fits best right now: %s or %s?",
			humanizeIdentity(first), humanizeIdentity(second))

	case models.ClarificationIdentityConfirmation:
		name := decision.SpecialistAssigned
		if s, ok := d.engine.SpecialistByID(decision.SpecialistAssigned); ok {
			name = s.DisplayName
		}
		pending.Prompt = fmt.Sprintf(
			"I'm planning to connect you with %s. Does that sound right? (yes/no)", name)

	default:
		pending.Prompt = "Could you tell me more about what you're looking for?"
	}

	slog.Debug("ConfidenceDialogue.BuildClarification: built clarification",
		"type", ctype, "clarificationID", pending.ID)
	return pending
}

// CombineWithAnswer merges the original message with the clarification answer
// for exactly one re-run through recognition and routing.
func (d *ConfidenceDialogue) CombineWithAnswer(pending *models.PendingClarification, answer string) string {
	if pending == nil || pending.OriginalMessage == "" {
		return answer
	}
	return pending.OriginalMessage + "\n" + answer
}

// topTwoIdentities returns the primary identity and the strongest secondary.
func topTwoIdentities(profile *models.IdentityProfile) (string, string) {
	first := profile.PrimaryIdentity
	second := ""
	if len(profile.SecondaryIdentities) > 0 {
		second = profile.SecondaryIdentities[0]
	}
	return first, second
}

// humanizeIdentity renders an identity category for user-facing text.
func humanizeIdentity(category string) string {
	switch category {
	case "veteran":
		return "transitioning from the military"
	case "career_changer":
		return "changing careers"
	case "recent_graduate":
		return "recently finished school"
	case "job_seeker":
		return "actively job hunting"
	case "returning_caregiver":
		return "returning to work after time away"
	case "justice_impacted":
		return "looking for a fresh start"
	case "newcomer":
		return "new to the country"
	default:
		return "exploring options"
	}
}
