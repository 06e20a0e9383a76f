package specialist

import "testing"

func TestAssess_EmptyResponse(t *testing.T) {
	a := NewHeuristicAssessor()
	metrics := a.Assess("   ")
	if metrics.ClarityScore != 0 || metrics.ActionabilityScore != 0 || metrics.ConfidenceScore != 0 {
		t.Errorf("expected zero metrics for empty response, got %+v", metrics)
	}
}

func TestAssess_ActionableResponse(t *testing.T) {
	a := NewHeuristicAssessor()
	metrics := a.Assess("Start by listing your certifications. You can apply directly on the program site. Contact the local union hall next.")

	if metrics.ClarityScore != 0.9 {
		t.Errorf("expected clarity 0.9 for short sentences, got %v", metrics.ClarityScore)
	}
	if metrics.ActionabilityScore <= 0.5 {
		t.Errorf("expected high actionability, got %v", metrics.ActionabilityScore)
	}
	if metrics.ConfidenceScore != 1.0 {
		t.Errorf("expected full confidence with no hedging, got %v", metrics.ConfidenceScore)
	}
}

func TestAssess_HedgedResponse(t *testing.T) {
	a := NewHeuristicAssessor()
	metrics := a.Assess("I'm not sure, it depends on the state. Maybe check locally.")

	// Three hedge markers at 0.3 each leave 0.1 confidence.
	if metrics.ConfidenceScore > 0.2 {
		t.Errorf("expected low confidence for hedged response, got %v", metrics.ConfidenceScore)
	}
}

func TestAssess_WallOfText(t *testing.T) {
	a := NewHeuristicAssessor()
	long := ""
	for i := 0; i < 50; i++ {
		long += "word "
	}
	metrics := a.Assess(long + "end")

	if metrics.ClarityScore != 0.3 {
		t.Errorf("expected clarity 0.3 for one enormous sentence, got %v", metrics.ClarityScore)
	}
}
