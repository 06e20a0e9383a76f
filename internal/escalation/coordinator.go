// Package escalation decides when a conversation needs a human. It combines
// quality metrics, routing confidence, and crisis-keyword detection into an
// intervention decision, and builds the review request that is handed to the
// reviewer channel.
package escalation

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PathwayLabs/CareerPilot/internal/models"
	"github.com/google/uuid"
)

// Scoring contributions for the non-crisis path.
const (
	lowConfidenceWeight  = 0.3 // qualityMetrics.confidence < 0.6
	lowClarityWeight     = 0.2 // qualityMetrics.clarity < 0.5
	errorCountWeight     = 0.4 // state.errorCount > 2
	frustrationWeight    = 0.5 // frustration flag set
	lowRoutingTierWeight = 0.3 // routing decision tier LOW

	interventionThreshold  = 0.5
	highPriorityThreshold  = 0.9
	lowQualityConfidence   = 0.6
	lowQualityClarity      = 0.5
	errorCountTrigger      = 2
)

// crisisKeywords is the fixed safety-critical keyword list. A hit always
// produces an URGENT crisis intervention, regardless of any other signal.
var crisisKeywords = []string{
	"suicide",
	"suicidal",
	"kill myself",
	"end my life",
	"end it all",
	"want to die",
	"hopeless",
	"can't go on",
	"no reason to live",
	"self-harm",
	"hurt myself",
	"harm myself",
}

// frustrationMarkers are phrases that flag user frustration for escalation
// scoring. Once set, the flag is sticky for the conversation until a human
// reviewer releases it.
var frustrationMarkers = []string{
	"frustrated",
	"frustrating",
	"useless",
	"not helping",
	"doesn't help",
	"not listening",
	"waste of time",
	"wasting my time",
	"this is ridiculous",
	"fed up",
	"sick of this",
	"talk to a person",
	"talk to a human",
	"real person",
}

// CrisisResponseMessage is the fixed safety-resource message shown to the
// user on any crisis detection, regardless of pending rate-limit or
// clarification state.
const CrisisResponseMessage = "I'm really glad you told me. You don't have to face this alone. " +
	"Please reach out right now to the 988 Suicide & Crisis Lifeline: call or text 988, " +
	"or chat at 988lifeline.org. If you're in immediate danger, call 911. " +
	"A member of our team has also been notified and will follow up with you."

// Coordinator evaluates escalation criteria. Stateless and safe for
// concurrent use.
type Coordinator struct {
	now func() time.Time
}

// NewCoordinator creates an escalation coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{now: time.Now}
}

// DetectCrisis scans a message against the crisis keyword list and returns
// the first matching keyword, or "".
func (c *Coordinator) DetectCrisis(message string) string {
	lower := strings.ToLower(message)
	for _, kw := range crisisKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

// DetectFrustration reports whether a message reads as user frustration.
func (c *Coordinator) DetectFrustration(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range frustrationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Evaluate produces the intervention decision for one step. The crisis check
// runs first and unconditionally against the latest user message; a match
// bypasses all other scoring. Otherwise signals accumulate additively and
// intervention is needed at a score of 0.5 or above.
func (c *Coordinator) Evaluate(state *models.WorkflowState, latestMessage string, metrics *models.QualityMetrics, decision *models.RoutingDecision) models.InterventionDecision {
	if kw := c.DetectCrisis(latestMessage); kw != "" {
		slog.Warn("Coordinator.Evaluate: crisis keyword detected", "keyword", kw)
		return models.InterventionDecision{
			NeedsIntervention: true,
			Priority:          models.PriorityUrgent,
			Type:              models.InterventionCrisis,
			Score:             1.0,
			Reasons:           []string{fmt.Sprintf("crisis keyword detected: %q", kw)},
		}
	}

	var score float64
	var reasons []string
	itype := models.InterventionQualityCheck
	priority := models.PriorityLow

	if metrics != nil {
		if metrics.ConfidenceScore < lowQualityConfidence {
			score += lowConfidenceWeight
			reasons = append(reasons, fmt.Sprintf("response confidence %.2f below %.2f", metrics.ConfidenceScore, lowQualityConfidence))
		}
		if metrics.ClarityScore < lowQualityClarity {
			score += lowClarityWeight
			reasons = append(reasons, fmt.Sprintf("response clarity %.2f below %.2f", metrics.ClarityScore, lowQualityClarity))
		}
	}
	if state != nil {
		if state.ErrorCount > errorCountTrigger {
			score += errorCountWeight
			reasons = append(reasons, fmt.Sprintf("error count %d exceeds %d", state.ErrorCount, errorCountTrigger))
		}
		if state.FrustrationFlag {
			score += frustrationWeight
			reasons = append(reasons, "user frustration detected")
		}
	}
	if decision != nil && decision.ConfidenceTier == models.TierLow {
		score += lowRoutingTierWeight
		reasons = append(reasons, fmt.Sprintf("routing confidence tier %s", decision.ConfidenceTier))
		itype = models.InterventionRoutingValidation
		priority = models.PriorityMedium
	}

	needs := score >= interventionThreshold
	if needs && priority == models.PriorityLow {
		priority = models.PriorityMedium
	}
	if score >= highPriorityThreshold {
		priority = models.PriorityHigh
	}

	slog.Debug("Coordinator.Evaluate: scored escalation signals",
		"score", score, "needsIntervention", needs, "type", itype, "priority", priority)
	return models.InterventionDecision{
		NeedsIntervention: needs,
		Priority:          priority,
		Type:              itype,
		Score:             score,
		Reasons:           reasons,
	}
}

// BuildReviewRequest turns an intervention decision into the durable record
// consumed by the human-reviewer channel.
func (c *Coordinator) BuildReviewRequest(conversationID string, decision models.InterventionDecision, state *models.ConversationState) models.HumanReviewRequest {
	return models.HumanReviewRequest{
		ID:                  uuid.NewString(),
		ConversationID:      conversationID,
		Priority:            decision.Priority,
		Type:                decision.Type,
		Reasons:             decision.Reasons,
		ConversationSummary: summarize(state),
		Status:              models.ReviewStatusPending,
		CreatedAt:           c.now(),
	}
}

// summarize renders a compact reviewer-facing conversation summary.
func summarize(state *models.ConversationState) string {
	if state == nil {
		return "(no conversation context)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation %s | phase %s | steps %d | breaker trips %d\n",
		state.ConversationID, state.Phase, state.Workflow.StepCount, state.Workflow.CircuitBreakerTrips)
	if state.LastProfile != nil {
		fmt.Fprintf(&b, "Identity: %s (%.2f)", state.LastProfile.PrimaryIdentity, state.LastProfile.ConfidenceScore)
		if len(state.LastProfile.BarriersIdentified) > 0 {
			fmt.Fprintf(&b, " | barriers: %s", strings.Join(state.LastProfile.BarriersIdentified, ", "))
		}
		b.WriteString("\n")
	}
	if state.LastDecision != nil {
		fmt.Fprintf(&b, "Last routing: %s (%s)\n", state.LastDecision.SpecialistAssigned, state.LastDecision.ConfidenceTier)
	}

	const maxSummaryTurns = 6
	turns := state.History
	if len(turns) > maxSummaryTurns {
		turns = turns[len(turns)-maxSummaryTurns:]
	}
	for _, turn := range turns {
		content := turn.Content
		if len(content) > 200 {
			content = content[:197] + "..."
		}
		fmt.Fprintf(&b, "[%s] %s\n", turn.Role, content)
	}
	return strings.TrimRight(b.String(), "\n")
}
