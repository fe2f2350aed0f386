package model

// Level is a proficiency level, either claimed in the CV or observed in code.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelExpert       Level = "expert"
	LevelUnknown      Level = "unknown"     // claim present, no explicit wording
	LevelUnspecified  Level = "unspecified" // skill listed with no claim at all
	LevelUnclear      Level = "unclear"     // evidence too weak to judge
)

// levelRank orders levels for comparison and deduplication.
// Unknown/unspecified/unclear all rank zero.
var levelRank = map[Level]int{
	LevelBeginner:     1,
	LevelIntermediate: 2,
	LevelExpert:       3,
}

// Rank returns the ordinal strength of a level (0 for unknown-like levels).
func (l Level) Rank() int {
	return levelRank[l]
}

// NormalizeLevel maps free-form oracle output to a recognized level,
// falling back to the given default.
func NormalizeLevel(s string, fallback Level) Level {
	switch Level(s) {
	case LevelBeginner, LevelIntermediate, LevelExpert,
		LevelUnknown, LevelUnspecified, LevelUnclear:
		return Level(s)
	}
	return fallback
}

// SkillClaim is a single verifiable skill assertion extracted from the CV.
// Claims are produced once per run and never mutated afterwards.
type SkillClaim struct {
	Skill        string `json:"skill"`
	ClaimText    string `json:"claim_text,omitempty"` // exact CV phrasing, if available
	ClaimedLevel Level  `json:"claimed_level"`
	Source       string `json:"source,omitempty"` // skills|projects|experience|summary|keywords|other
}

// LevelClaim is the claimed proficiency for one skill with its verbatim quote.
type LevelClaim struct {
	ClaimedLevel Level  `json:"claimed_level"`
	Quote        string `json:"quote,omitempty"`
}
