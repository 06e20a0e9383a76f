package identity

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/PathwayLabs/CareerPilot/internal/models"
)

// Short-message handling: messages below this many words cannot be
// classified and fall back to the general category.
const (
	minClassifiableWords = 3
	shortMessageScore    = 0.1
)

// Recognizer classifies messages against the declarative rule tables.
// A Recognizer is stateless and safe for concurrent use.
type Recognizer struct{}

// NewRecognizer creates a new identity recognizer.
func NewRecognizer() *Recognizer {
	return &Recognizer{}
}

// categoryScore pairs a category with its matcher hit fraction.
type categoryScore struct {
	category string
	score    float64
	priority int
}

// Analyze classifies a message into an IdentityProfile. The profile is
// created fresh per call and never mutated afterwards. Context from prior
// turns may be appended by the caller before analysis.
func (r *Recognizer) Analyze(message string) *models.IdentityProfile {
	trimmed := strings.TrimSpace(message)
	words := strings.Fields(trimmed)

	if len(words) < minClassifiableWords {
		slog.Debug("Recognizer.Analyze: message too short to classify", "words", len(words))
		return &models.IdentityProfile{
			PrimaryIdentity: IdentityGeneral,
			ConfidenceScore: shortMessageScore,
		}
	}

	scores := scoreCategories(identityRules, trimmed)

	primary := IdentityGeneral
	confidence := shortMessageScore
	var secondary []string

	if len(scores) > 0 {
		// Stable sort: score desc, then fixed priority order. The rule table
		// order is the tie-break, so results are identical across runs.
		sort.SliceStable(scores, func(i, j int) bool {
			if scores[i].score != scores[j].score {
				return scores[i].score > scores[j].score
			}
			return scores[i].priority < scores[j].priority
		})
		primary = scores[0].category
		confidence = clamp01(scores[0].score)
		for _, s := range scores[1:] {
			secondary = append(secondary, s.category)
		}
	}

	profile := &models.IdentityProfile{
		PrimaryIdentity:     primary,
		SecondaryIdentities: secondary,
		ConfidenceScore:     confidence,
		BarriersIdentified:  matchCategories(barrierRules, trimmed),
		StrengthsIdentified: matchCategories(strengthRules, trimmed),
		Keywords:            extractKeywords(trimmed),
	}

	slog.Debug("Recognizer.Analyze: classified message",
		"primary", profile.PrimaryIdentity,
		"confidence", profile.ConfidenceScore,
		"secondaryCount", len(profile.SecondaryIdentities),
		"keywords", profile.Keywords)
	return profile
}

// scoreCategories evaluates one rule table and returns every category with a
// score above zero, annotated with its declaration priority.
func scoreCategories(rules []categoryRules, text string) []categoryScore {
	var out []categoryScore
	for i, cr := range rules {
		if len(cr.matchers) == 0 {
			continue
		}
		matched := 0
		for _, m := range cr.matchers {
			if m.MatchString(text) {
				matched++
			}
		}
		if matched > 0 {
			out = append(out, categoryScore{
				category: cr.category,
				score:    float64(matched) / float64(len(cr.matchers)),
				priority: i,
			})
		}
	}
	return out
}

// matchCategories returns the categories of a rule table with at least one
// matcher hit, in declaration order.
func matchCategories(rules []categoryRules, text string) []string {
	var out []string
	for _, cr := range rules {
		for _, m := range cr.matchers {
			if m.MatchString(text) {
				out = append(out, cr.category)
				break
			}
		}
	}
	return out
}

// extractKeywords scans the fixed domain vocabulary, preserving vocabulary order.
func extractKeywords(text string) []string {
	var out []string
	for i, p := range keywordPatterns {
		if p.MatchString(text) {
			out = append(out, keywordVocabulary[i])
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
