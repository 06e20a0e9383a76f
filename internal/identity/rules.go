// Package identity classifies free-text user messages into identity/intent
// profiles using declarative rule tables. Classification is a pure function
// of the input text; no external I/O is performed.
package identity

import "regexp"

// IdentityGeneral is the fallback category for empty or unclassifiable messages.
const IdentityGeneral = "general"

// Identity categories, in fixed priority order. Ties between equal scores are
// broken by position in this list, never by map iteration order.
const (
	IdentityVeteran            = "veteran"
	IdentityCareerChanger      = "career_changer"
	IdentityRecentGraduate     = "recent_graduate"
	IdentityJobSeeker          = "job_seeker"
	IdentityReturningCaregiver = "returning_caregiver"
	IdentityJusticeImpacted    = "justice_impacted"
	IdentityNewcomer           = "newcomer"
)

// categoryRules binds one identity category to its matcher set. Every matcher
// carries an implicit weight of 1; a category's score is the fraction of its
// matchers that hit.
type categoryRules struct {
	category string
	matchers []*regexp.Regexp
}

// identityRules is the declarative identity rule table. Order defines the
// priority used for tie-breaks.
var identityRules = []categoryRules{
	{
		category: IdentityVeteran,
		matchers: compile(
			`(?i)\bveterans?\b`,
			`(?i)\b(navy|army|air force|marines?|coast guard|national guard)\b`,
			`(?i)\bmilitary\b`,
			`(?i)\b(deployment|deployed|active duty)\b`,
			`(?i)\bclearance\b`,
			`(?i)\b(mos|dd-?214|gi bill)\b`,
		),
	},
	{
		category: IdentityCareerChanger,
		matchers: compile(
			`(?i)\bcareer (change|switch|pivot|transition)\b`,
			`(?i)\b(changing|switching) careers?\b`,
			`(?i)\bnew (field|industry|career)\b`,
			`(?i)\bpivot(ing)?\b`,
			`(?i)\btransition(ing)? (into|to|out of)\b`,
		),
	},
	{
		category: IdentityRecentGraduate,
		matchers: compile(
			`(?i)\b(recent(ly)? )?graduat(e|ed|ing)\b`,
			`(?i)\b(college|university|community college)\b`,
			`(?i)\b(bachelor'?s?|associate'?s?|degree)\b`,
			`(?i)\b(student|bootcamp)\b`,
			`(?i)\bentry[- ]level\b`,
		),
	},
	{
		category: IdentityJobSeeker,
		matchers: compile(
			`(?i)\blaid off\b`,
			`(?i)\bunemployed\b`,
			`(?i)\blost my job\b`,
			`(?i)\blooking for (work|a job|jobs|employment)\b`,
			`(?i)\bjob (search|hunting|hunt)\b`,
			`(?i)\bout of work\b`,
		),
	},
	{
		category: IdentityReturningCaregiver,
		matchers: compile(
			`(?i)\b(employment|career|resume) gap\b`,
			`(?i)\bstay[- ]at[- ]home\b`,
			`(?i)\bcaregiv(er|ing)\b`,
			`(?i)\b(returning|going back) to work\b`,
			`(?i)\braising (kids|children|a family)\b`,
		),
	},
	{
		category: IdentityJusticeImpacted,
		matchers: compile(
			`(?i)\b(criminal|felony) record\b`,
			`(?i)\bfelon(y|ies)?\b`,
			`(?i)\bincarcerat(ed|ion)\b`,
			`(?i)\bsecond chance\b`,
			`(?i)\b(parole|probation)\b`,
		),
	},
	{
		category: IdentityNewcomer,
		matchers: compile(
			`(?i)\b(work )?visa\b`,
			`(?i)\bimmigr(ant|ated|ation)\b`,
			`(?i)\b(moved|relocated) to (the )?(us|u\.s\.|united states|america)\b`,
			`(?i)\bforeign (degree|credential|qualification)s?\b`,
			`(?i)\bgreen card\b`,
		),
	},
}

// barrierRules is the second, smaller rule table for barrier detection.
var barrierRules = []categoryRules{
	{category: "transportation", matchers: compile(`(?i)\bno (car|transportation|license)\b`, `(?i)\b(bus|transit) (pass|route)s?\b`)},
	{category: "childcare", matchers: compile(`(?i)\bchild ?care\b`, `(?i)\bno one to watch\b`)},
	{category: "criminal_record", matchers: compile(`(?i)\b(criminal|felony) record\b`, `(?i)\bbackground check\b`)},
	{category: "no_degree", matchers: compile(`(?i)\bno (college )?degree\b`, `(?i)\bnever (went to|finished) college\b`)},
	{category: "employment_gap", matchers: compile(`(?i)\b(employment|resume|work) gap\b`, `(?i)\bhaven'?t worked (in|for|since)\b`)},
	{category: "no_experience", matchers: compile(`(?i)\bno (work )?experience\b`, `(?i)\bnever (had|worked) a\b`)},
	{category: "housing", matchers: compile(`(?i)\b(homeless|housing|shelter|evict)\w*\b`)},
	{category: "health", matchers: compile(`(?i)\b(disability|disabled|chronic|injury|injured)\b`)},
}

// strengthRules detects declared strengths and credentials.
var strengthRules = []categoryRules{
	{category: "leadership", matchers: compile(`(?i)\b(led|leader|leadership|managed|supervised)\b`)},
	{category: "security_clearance", matchers: compile(`(?i)\b(top secret|secret|ts\/sci)? ?clearance\b`)},
	{category: "certification", matchers: compile(`(?i)\bcertif(ied|icate|ication)s?\b`, `(?i)\blicense[ds]?\b`)},
	{category: "technical", matchers: compile(`(?i)\b(technical|technician|electrical|mechanical|it|software)\b`)},
	{category: "teamwork", matchers: compile(`(?i)\bteam(work| player)?\b`)},
	{category: "bilingual", matchers: compile(`(?i)\b(bilingual|spanish|multilingual)\b`)},
	{category: "education", matchers: compile(`(?i)\b(degree|diploma|ged)\b`)},
}

// keywordVocabulary is the fixed domain vocabulary scanned for the flat
// keyword list. Order here is the order keywords appear in the profile.
var keywordVocabulary = []string{
	"solar", "wind", "energy", "renewable", "clean energy",
	"jobs", "career", "work", "training", "apprenticeship",
	"resume", "interview", "salary", "benefits", "certification",
	"clearance", "remote", "relocation", "union", "trade",
}

var keywordPatterns = buildKeywordPatterns()

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

func buildKeywordPatterns() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(keywordVocabulary))
	for _, kw := range keywordVocabulary {
		out = append(out, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`s?\b`))
	}
	return out
}
