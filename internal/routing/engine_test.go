package routing

import (
	"testing"

	"github.com/PathwayLabs/CareerPilot/internal/identity"
	"github.com/PathwayLabs/CareerPilot/internal/models"
)

func veteranProfile() *models.IdentityProfile {
	return &models.IdentityProfile{
		PrimaryIdentity: identity.IdentityVeteran,
		ConfidenceScore: 0.5,
		Keywords:        []string{"solar", "jobs", "clearance"},
	}
}

func TestRoute_VeteranGoesToMarcus(t *testing.T) {
	e := NewEngine(DefaultSpecialists())
	decision := e.Route(veteranProfile(), "Navy veteran with a security clearance looking for solar jobs")

	if decision.SpecialistAssigned != "marcus" {
		t.Errorf("expected specialist marcus, got %q", decision.SpecialistAssigned)
	}
	// +3 primary focus, +1 threshold met, +0.5 each for the jobs and
	// clearance keyword hits against marcus's capabilities.
	if decision.Score != 5.0 {
		t.Errorf("expected score 5.0, got %v", decision.Score)
	}
	if decision.ConfidenceTier != models.TierHigh {
		t.Errorf("expected tier HIGH, got %s", decision.ConfidenceTier)
	}
	if len(decision.AlternativeSpecialists) != 2 {
		t.Fatalf("expected 2 alternatives, got %v", decision.AlternativeSpecialists)
	}
	if decision.AlternativeSpecialists[0] != "sierra" {
		t.Errorf("expected first alternative sierra, got %q", decision.AlternativeSpecialists[0])
	}
	if decision.AlternativeSpecialists[1] != "dana" {
		t.Errorf("expected second alternative dana, got %q", decision.AlternativeSpecialists[1])
	}
	if len(decision.ToolsRecommended) == 0 {
		t.Error("expected tools recommended for marcus")
	}
}

func TestRoute_UnclassifiableFallsToDefault(t *testing.T) {
	e := NewEngine(DefaultSpecialists())
	profile := &models.IdentityProfile{
		PrimaryIdentity: identity.IdentityGeneral,
		ConfidenceScore: 0.1,
	}
	decision := e.Route(profile, "hi")

	if decision.SpecialistAssigned != DefaultSpecialistID {
		t.Errorf("expected default specialist %q, got %q", DefaultSpecialistID, decision.SpecialistAssigned)
	}
	if decision.ConfidenceTier != models.TierUncertain {
		t.Errorf("expected tier UNCERTAIN, got %s", decision.ConfidenceTier)
	}
	if decision.Score != 0 {
		t.Errorf("expected score 0, got %v", decision.Score)
	}
}

func TestRoute_EmptyTableNeverErrors(t *testing.T) {
	e := NewEngine(nil)
	decision := e.Route(veteranProfile(), "anything")

	if decision == nil {
		t.Fatal("expected a decision, got nil")
	}
	if decision.SpecialistAssigned != DefaultSpecialistID {
		t.Errorf("expected default specialist, got %q", decision.SpecialistAssigned)
	}
	if decision.ConfidenceTier != models.TierUncertain {
		t.Errorf("expected tier UNCERTAIN, got %s", decision.ConfidenceTier)
	}
}

func TestRoute_NilProfileFallsToDefault(t *testing.T) {
	e := NewEngine(DefaultSpecialists())
	decision := e.Route(nil, "anything")

	if decision.SpecialistAssigned != DefaultSpecialistID {
		t.Errorf("expected default specialist, got %q", decision.SpecialistAssigned)
	}
	if decision.ConfidenceTier != models.TierUncertain {
		t.Errorf("expected tier UNCERTAIN, got %s", decision.ConfidenceTier)
	}
}

func TestRoute_TieResolvesToEarlierDeclaration(t *testing.T) {
	table := []Specialist{
		{ID: "first", PrimaryFocus: []string{"veteran"}, ConfidenceThreshold: 0.4},
		{ID: "second", PrimaryFocus: []string{"veteran"}, ConfidenceThreshold: 0.4},
	}
	e := NewEngine(table)
	profile := &models.IdentityProfile{PrimaryIdentity: "veteran", ConfidenceScore: 0.5}

	for i := 0; i < 20; i++ {
		decision := e.Route(profile, "same message")
		if decision.SpecialistAssigned != "first" {
			t.Fatalf("run %d: tie resolved to %q, want first", i, decision.SpecialistAssigned)
		}
	}
}

func TestRoute_TierBoundaries(t *testing.T) {
	cases := []struct {
		name       string
		confidence float64
		primary    string
		wantTier   models.ConfidenceTier
	}{
		// Primary hit (+3) plus threshold (+1) lands exactly on the HIGH boundary.
		{name: "high at 4.0", confidence: 0.5, primary: "veteran", wantTier: models.TierHigh},
		// Primary hit only (+3) is MEDIUM.
		{name: "medium at 3.0", confidence: 0.1, primary: "veteran", wantTier: models.TierMedium},
		// Threshold only (+1) is LOW.
		{name: "low at 1.0", confidence: 0.5, primary: "nonexistent", wantTier: models.TierLow},
	}
	table := []Specialist{{ID: "only", PrimaryFocus: []string{"veteran"}, ConfidenceThreshold: 0.4}}
	e := NewEngine(table)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			profile := &models.IdentityProfile{PrimaryIdentity: tc.primary, ConfidenceScore: tc.confidence}
			decision := e.Route(profile, "msg")
			if decision.ConfidenceTier != tc.wantTier {
				t.Errorf("expected tier %s, got %s (score %v)", tc.wantTier, decision.ConfidenceTier, decision.Score)
			}
		})
	}
}

func TestSpecialistByID(t *testing.T) {
	e := NewEngine(DefaultSpecialists())

	s, ok := e.SpecialistByID("marcus")
	if !ok {
		t.Fatal("expected to find marcus")
	}
	if s.DisplayName == "" {
		t.Error("expected display name for marcus")
	}

	if _, ok := e.SpecialistByID("nobody"); ok {
		t.Error("expected lookup miss for unknown id")
	}
}

func TestDefaultSpecialists_TableShape(t *testing.T) {
	table := DefaultSpecialists()
	if len(table) != 7 {
		t.Fatalf("expected 7 specialists, got %d", len(table))
	}

	seen := map[string]bool{}
	foundDefault := false
	for _, s := range table {
		if seen[s.ID] {
			t.Errorf("duplicate specialist id %q", s.ID)
		}
		seen[s.ID] = true
		if s.ID == DefaultSpecialistID {
			foundDefault = true
		}
		if s.ConfidenceThreshold <= 0 || s.ConfidenceThreshold >= 1 {
			t.Errorf("specialist %q: threshold %v out of range", s.ID, s.ConfidenceThreshold)
		}
		if s.SystemPrompt == "" {
			t.Errorf("specialist %q: missing system prompt", s.ID)
		}
	}
	if !foundDefault {
		t.Errorf("default specialist %q missing from table", DefaultSpecialistID)
	}
}
