package model

// Scan modes for repository analysis.
const (
	ScanDeep    = "deep"    // archive downloaded, chunked, embedded, oracle-judged
	ScanShallow = "shallow" // metadata-only heuristic scoring
)

// Authenticity labels returned by the judge.
const (
	LabelOriginal      = "original"
	LabelTutorialClone = "tutorial_clone"
	LabelCopyPaste     = "copy_paste"
	LabelAIGenerated   = "ai_generated"
	LabelTemplateBased = "template_based"
	LabelUnclear       = "unclear"
)

// RepoDecision is the verified authenticity verdict for one repository.
type RepoDecision struct {
	ScanMode          string         `json:"scan_mode"`
	AuthenticityScore float64        `json:"authenticity_score"` // 0..100, higher = more likely original
	Labels            []string       `json:"labels"`
	Confidence        float64        `json:"confidence"` // 0..1
	Signals           map[string]any `json:"signals,omitempty"`
	Evidence          []Evidence     `json:"evidence"`
	Notes             string         `json:"notes,omitempty"`
}

// SkillDecision is the inflation verdict for one skill claim.
type SkillDecision struct {
	ClaimedLevel  Level      `json:"claimed_level"`
	ObservedLevel Level      `json:"observed_level"`
	Overclaim     bool       `json:"overclaim"`
	Severity      float64    `json:"severity"`   // 0..1, how inflated
	Confidence    float64    `json:"confidence"` // 0..1
	Evidence      []Evidence `json:"evidence"`
	Notes         string     `json:"notes,omitempty"`
}

// Support statuses for the skill-evidence map.
const (
	StatusSupported   = "supported"
	StatusUnsupported = "unsupported"
)

// SkillSupport records whether code evidence backs one claimed skill.
type SkillSupport struct {
	Status     string     `json:"status"` // supported|unsupported
	Fake       bool       `json:"fake"`
	Confidence float64    `json:"confidence"`
	Evidence   []Evidence `json:"evidence"`
}

// Evidence strength levels used by the interview agent.
const (
	EvidenceNone     = "none"
	EvidenceWeak     = "weak"
	EvidenceModerate = "moderate"
	EvidenceStrong   = "strong"
)

// SkillQuestions holds the tailored interview material for one skill.
type SkillQuestions struct {
	ClaimedLevel  Level    `json:"claimed_level"`
	ClaimQuote    string   `json:"claim_quote,omitempty"`
	EvidenceLevel string   `json:"evidence_level"` // none|weak|moderate|strong
	Overclaim     bool     `json:"overclaim"`
	Rationale     string   `json:"rationale,omitempty"`
	Theoretical   []string `json:"theoretical"`
	Practical     []string `json:"practical"`
	Debugging     []string `json:"debugging"`
	FocusAreas    []string `json:"focus_areas,omitempty"`
}

// SummaryPoint is one entry of the interview summary.
type SummaryPoint struct {
	Skill         string `json:"skill"`
	ClaimedLevel  Level  `json:"claimed_level"`
	EvidenceLevel string `json:"evidence_level"`
	Overclaim     bool   `json:"overclaim,omitempty"`
}

// InterviewSummary orders skills by how much interview scrutiny they need.
type InterviewSummary struct {
	WeakPoints   []SummaryPoint `json:"weak_points"`
	StrongPoints []SummaryPoint `json:"strong_points"`
}

// SkillMapScores aggregates the skill-evidence map.
type SkillMapScores struct {
	TotalSkillsCount int     `json:"total_skills_count"`
	RealSkillsCount  int     `json:"real_skills_count"`
	FakeSkillsCount  int     `json:"fake_skills_count"`
	AllSkillsAvg     float64 `json:"all_skills_avg"`
	RealSkillsAvg    float64 `json:"real_skills_avg"`
}

// RunMeta is the per-run metadata counter block. Every report carries one so
// that downgraded or degraded runs remain explainable.
type RunMeta struct {
	LoadedAt            int64  `json:"loaded_at,omitempty"`
	AssembledAt         int64  `json:"assembled_at,omitempty"`
	GitHubUserFound     bool   `json:"github_user_found"`
	ReferencedRepoCount int    `json:"referenced_repo_count,omitempty"`
	ClaimsCount         int    `json:"claims_count,omitempty"`
	SkillCount          int    `json:"skill_count,omitempty"`
	PagesFetched        int    `json:"pages_fetched,omitempty"`
	RateLimited         bool   `json:"rate_limited,omitempty"`
	ReposTotalSeen      int    `json:"repos_total_seen,omitempty"`
	ReposDeepSelected   int    `json:"repos_deep_selected,omitempty"`
	Chunks              int    `json:"chunks,omitempty"`
	ZipFailures         int    `json:"zip_failures,omitempty"`
	ZipParseFailures    int    `json:"zip_parse_failures,omitempty"`
	CacheHits           int    `json:"cache_hits,omitempty"`
	EmbeddingDim        int    `json:"embedding_dim,omitempty"`
	SkillsJudged        int    `json:"skills_judged,omitempty"`
	JudgedReposTotal    int    `json:"judged_repos_total,omitempty"`
	JudgedReposDeep     int    `json:"judged_repos_deep,omitempty"`
	JudgedReposShallow  int    `json:"judged_repos_shallow,omitempty"`
	Notes               string `json:"notes,omitempty"`
}

// AddNote appends a metadata note, separating entries with a space.
func (m *RunMeta) AddNote(note string) {
	if note == "" {
		return
	}
	if m.Notes != "" {
		m.Notes += " "
	}
	m.Notes += note
}

// AuthenticityReport is the assembled output of the project authenticity run.
type AuthenticityReport struct {
	GitHubUser               string                  `json:"github_user,omitempty"`
	OverallAuthenticityScore float64                 `json:"overall_authenticity_score"`
	Repos                    map[string]RepoDecision `json:"repos"`
	Meta                     RunMeta                 `json:"meta"`
}

// InflationReport is the assembled output of the skill inflation run.
type InflationReport struct {
	GitHubUser                 string                   `json:"github_user,omitempty"`
	OverallSkillInflationScore float64                  `json:"overall_skill_inflation_score"` // higher = more inflation
	OverclaimCount             int                      `json:"overclaim_count"`
	Skills                     map[string]SkillDecision `json:"skills"`
	Meta                       RunMeta                  `json:"meta"`
}

// SkillMapReport is the assembled output of the skill-evidence map run.
type SkillMapReport struct {
	GitHubUser string                  `json:"github_user,omitempty"`
	Skills     map[string]SkillSupport `json:"skills"`
	Scores     SkillMapScores          `json:"scores"`
	Meta       RunMeta                 `json:"meta"`
}

// InterviewReport is the assembled output of the interview questions run.
type InterviewReport struct {
	GitHubUser string                    `json:"github_user,omitempty"`
	Skills     map[string]SkillQuestions `json:"skills"`
	Summary    InterviewSummary          `json:"summary"`
	Meta       RunMeta                   `json:"meta"`
}
