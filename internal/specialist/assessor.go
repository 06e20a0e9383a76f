package specialist

import (
	"log/slog"
	"strings"

	"github.com/PathwayLabs/CareerPilot/internal/models"
)

// Assessor scores the quality of a specialist response.
type Assessor interface {
	Assess(response string) models.QualityMetrics
}

// HeuristicAssessor scores responses from surface features: sentence length
// for clarity, concrete next-step language for actionability, hedging for
// confidence. It exists so the escalation scoring has a real signal without
// a second model call per turn.
type HeuristicAssessor struct{}

// NewHeuristicAssessor creates a heuristic quality assessor.
func NewHeuristicAssessor() *HeuristicAssessor {
	return &HeuristicAssessor{}
}

var actionMarkers = []string{
	"you can", "try ", "apply", "contact", "visit", "sign up", "enroll",
	"next step", "start by", "here's how", "1.", "- ",
}

var hedgeMarkers = []string{
	"i'm not sure", "i am not sure", "i don't know", "it depends",
	"maybe", "possibly", "i cannot", "i can't help",
}

// Assess computes quality metrics for a response.
func (a *HeuristicAssessor) Assess(response string) models.QualityMetrics {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return models.QualityMetrics{}
	}
	lower := strings.ToLower(trimmed)

	metrics := models.QualityMetrics{
		ClarityScore:       clarityScore(trimmed),
		ActionabilityScore: markerScore(lower, actionMarkers, 0.3, 0.25),
		ConfidenceScore:    1.0 - markerScore(lower, hedgeMarkers, 0.0, 0.3),
	}

	slog.Debug("HeuristicAssessor.Assess: scored response",
		"clarity", metrics.ClarityScore,
		"actionability", metrics.ActionabilityScore,
		"confidence", metrics.ConfidenceScore)
	return metrics
}

// clarityScore penalizes very long average sentences and walls of text.
func clarityScore(text string) float64 {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	if len(sentences) == 0 {
		return 0.3
	}
	totalWords := len(strings.Fields(text))
	avg := float64(totalWords) / float64(len(sentences))
	switch {
	case avg <= 20:
		return 0.9
	case avg <= 35:
		return 0.6
	default:
		return 0.3
	}
}

// markerScore returns base plus per-marker increments, capped at 1.
func markerScore(lower string, markers []string, base, perHit float64) float64 {
	score := base
	for _, m := range markers {
		if strings.Contains(lower, m) {
			score += perHit
		}
	}
	if score > 1 {
		return 1
	}
	return score
}
