// Package routing scores specialists against identity profiles and produces
// deterministic routing decisions, including the clarification dialogue used
// when confidence is too low to route directly.
package routing

import "github.com/PathwayLabs/CareerPilot/internal/identity"

// DefaultSpecialistID is the specialist assigned when routing is UNCERTAIN
// or the specialist table is unusable.
const DefaultSpecialistID = "lauren"

// Specialist declares one persona's routing profile. Capabilities are the
// free-text strings matched against profile keywords during scoring.
type Specialist struct {
	ID                  string
	DisplayName         string
	PrimaryFocus        []string
	SecondaryFocus      []string
	ToolSet             []string
	Capabilities        []string
	ConfidenceThreshold float64
	SystemPrompt        string
}

// DefaultSpecialists returns the declared specialist table. Slice order is
// the declaration order used for deterministic tie-breaks; it is never
// re-derived from a map.
func DefaultSpecialists() []Specialist {
	return []Specialist{
		{
			ID:             "marcus",
			DisplayName:    "Marcus (Veteran Transition)",
			PrimaryFocus:   []string{identity.IdentityVeteran},
			SecondaryFocus: []string{identity.IdentityCareerChanger},
			ToolSet:        []string{"skills_translator", "clearance_job_search"},
			Capabilities: []string{
				"military skills translation", "security clearance jobs",
				"veteran hiring programs", "gi bill guidance",
			},
			ConfidenceThreshold: 0.4,
			SystemPrompt:        "You are Marcus, a veteran transition specialist. Translate military experience into civilian terms and point to veteran hiring programs.",
		},
		{
			ID:             "sierra",
			DisplayName:    "Sierra (Clean Energy Pathways)",
			PrimaryFocus:   []string{identity.IdentityCareerChanger},
			SecondaryFocus: []string{identity.IdentityVeteran, identity.IdentityJobSeeker},
			ToolSet:        []string{"training_finder", "apprenticeship_search"},
			Capabilities: []string{
				"solar installation", "wind technician", "clean energy training",
				"apprenticeship pathways",
			},
			ConfidenceThreshold: 0.4,
			SystemPrompt:        "You are Sierra, a clean energy career specialist. Guide users into solar, wind, and renewable energy roles and training.",
		},
		{
			ID:             "dana",
			DisplayName:    "Dana (Resume Specialist)",
			PrimaryFocus:   []string{identity.IdentityRecentGraduate},
			SecondaryFocus: []string{identity.IdentityCareerChanger, identity.IdentityReturningCaregiver},
			ToolSet:        []string{"resume_review", "skills_inventory"},
			Capabilities: []string{
				"resume writing", "cover letters", "employment gap framing",
			},
			ConfidenceThreshold: 0.3,
			SystemPrompt:        "You are Dana, a resume specialist. Help users present their experience effectively on paper.",
		},
		{
			ID:             "felix",
			DisplayName:    "Felix (Interview Coach)",
			PrimaryFocus:   []string{identity.IdentityJobSeeker},
			SecondaryFocus: []string{identity.IdentityRecentGraduate},
			ToolSet:        []string{"mock_interview", "question_bank"},
			Capabilities: []string{
				"interview preparation", "behavioral questions", "salary negotiation",
			},
			ConfidenceThreshold: 0.3,
			SystemPrompt:        "You are Felix, an interview coach. Prepare users for interviews with practice questions and negotiation advice.",
		},
		{
			ID:             "ruth",
			DisplayName:    "Ruth (Second Chances)",
			PrimaryFocus:   []string{identity.IdentityJusticeImpacted, identity.IdentityReturningCaregiver},
			SecondaryFocus: []string{identity.IdentityJobSeeker},
			ToolSet:        []string{"fair_chance_employers", "record_guidance"},
			Capabilities: []string{
				"fair chance hiring", "background check guidance", "returning to work",
			},
			ConfidenceThreshold: 0.3,
			SystemPrompt:        "You are Ruth, a specialist for people returning to the workforce after incarceration or caregiving. Be practical and non-judgmental.",
		},
		{
			ID:             "amir",
			DisplayName:    "Amir (Newcomer Credentials)",
			PrimaryFocus:   []string{identity.IdentityNewcomer},
			SecondaryFocus: []string{identity.IdentityCareerChanger},
			ToolSet:        []string{"credential_evaluation", "visa_guidance"},
			Capabilities: []string{
				"foreign credential evaluation", "work authorization", "english learning resources",
			},
			ConfidenceThreshold: 0.3,
			SystemPrompt:        "You are Amir, a specialist for newcomers. Help with credential recognition and work authorization questions.",
		},
		{
			ID:             DefaultSpecialistID,
			DisplayName:    "Lauren (Career Guide)",
			PrimaryFocus:   []string{identity.IdentityJobSeeker},
			SecondaryFocus: []string{identity.IdentityCareerChanger, identity.IdentityRecentGraduate},
			ToolSet:        []string{"goal_setting", "resource_directory"},
			Capabilities: []string{
				"career exploration", "goal setting", "general guidance",
			},
			ConfidenceThreshold: 0.2,
			SystemPrompt:        "You are Lauren, a general career guide. Help users figure out what they want and hand off to specialists when a clear need emerges.",
		},
	}
}
