package agents

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/repovet/repovet/internal/config"
	"github.com/repovet/repovet/internal/extract"
	"github.com/repovet/repovet/internal/judge"
	"github.com/repovet/repovet/internal/llm"
	"github.com/repovet/repovet/internal/model"
)

const levelClaimSystem = "You extract claimed proficiency levels from a CV. " +
	"Be strict: only mark beginner/intermediate/expert if explicitly stated or strongly implied " +
	"by wording like 'expert', 'advanced', 'senior', 'proficient', 'familiar', etc. " +
	"Return JSON only."

const questionSystem = "You generate personalized interview questions based on a claimed skill and code evidence. " +
	"Be practical and grounded in the provided snippets. Return JSON only."

const (
	maxQuestionsPerCategory = 6
	maxFocusAreas           = 8
	maxSummaryPoints        = 12
	maxCVLines              = 220
	minCVLineLen            = 8
)

// RunInterview produces per-skill interview question sets grounded in the
// candidate's code, plus a summary ordering skills by how much scrutiny
// they deserve.
func (e *Engine) RunInterview(ctx context.Context, cv map[string]any) (*model.InterviewReport, error) {
	ac := e.cfg.Agents.Interview
	st := &State{CV: cv}

	p := NewPipeline("interview", e.log,
		stageLoad(),
		Stage{Name: "extract", Run: func(ctx context.Context, st *State) error {
			st.Username = extract.Username(st.CV)
			st.Meta.GitHubUserFound = st.Username != ""

			skills := extract.Skills(st.CV)
			if ac.MaxSkills > 0 && len(skills) > ac.MaxSkills {
				skills = skills[:ac.MaxSkills]
			}
			st.Skills = skills
			st.Meta.SkillCount = len(skills)
			return nil
		}},
		Stage{Name: "collect", Run: func(ctx context.Context, st *State) error {
			if err := e.collectRepos(ctx, st, ac, false, "No GitHub username found; questions will be CV-only."); err != nil {
				return err
			}
			e.selectDeep(st, ac.MaxReposDeep, func(r model.RepoMeta) float64 {
				s := 0.0
				if !r.Fork {
					s += 50
				}
				s += math.Min(120, float64(r.Size)/150)
				s += math.Min(12, float64(r.StargazersCount)/3)
				return s
			})
			return nil
		}},
		Stage{Name: "deep_index", Run: func(ctx context.Context, st *State) error {
			return e.deepIndex(ctx, st, ac)
		}},
		Stage{Name: "claims", Run: func(ctx context.Context, st *State) error {
			claims, err := e.extractLevelClaims(ctx, st.Skills, st.CV)
			if err != nil {
				return err
			}
			st.LevelClaims = claims
			return nil
		}},
		Stage{Name: "generate", Run: func(ctx context.Context, st *State) error {
			return e.generateQuestions(ctx, st, ac)
		}},
		Stage{Name: "summary", Run: func(ctx context.Context, st *State) error {
			st.Summary = interviewSummary(st.Questions)
			return nil
		}},
		Stage{Name: "assemble", Run: func(ctx context.Context, st *State) error {
			st.Meta.AssembledAt = time.Now().Unix()
			return nil
		}},
	)

	if err := p.Run(ctx, st); err != nil {
		return nil, err
	}

	return &model.InterviewReport{
		GitHubUser: st.Username,
		Skills:     st.Questions,
		Summary:    st.Summary,
		Meta:       st.Meta,
	}, nil
}

// extractLevelClaims infers the claimed proficiency for each skill from CV
// wording alone. Quotes must be verbatim CV lines; levels default to
// unspecified.
func (e *Engine) extractLevelClaims(ctx context.Context, skills []string, cv map[string]any) (map[string]model.LevelClaim, error) {
	var lines []string
	for _, s := range extract.Strings(cv) {
		s = strings.TrimSpace(s)
		if len(s) >= minCVLineLen {
			lines = append(lines, s)
		}
	}
	sort.SliceStable(lines, func(i, j int) bool { return len(lines[i]) > len(lines[j]) })
	if len(lines) > maxCVLines {
		lines = lines[:maxCVLines]
	}

	payload := map[string]any{
		"skills":   skills,
		"cv_lines": lines,
		"levels":   []string{"beginner", "intermediate", "expert", "unspecified"},
		"rules": []string{
			"Use only the provided CV lines.",
			"If a skill has no explicit proficiency wording, set level=unspecified and quote=''.",
			"If you find a claim, quote must be copied verbatim from a provided CV line.",
			"Return JSON: { skill: {claimed_level, quote} } for each skill.",
		},
	}

	raw, err := e.oracle.Complete(ctx, levelClaimSystem, payload)
	if err != nil {
		return nil, fmt.Errorf("extract level claims: %w", err)
	}
	data := llm.ParseJSONObject(raw)

	out := make(map[string]model.LevelClaim, len(skills))
	for _, sk := range skills {
		claim := model.LevelClaim{ClaimedLevel: model.LevelUnspecified}
		if obj, ok := data[sk].(map[string]any); ok {
			level := model.NormalizeLevel(strings.ToLower(judge.String(obj, "claimed_level", "")), model.LevelUnspecified)
			if level == model.LevelUnknown || level == model.LevelUnclear {
				level = model.LevelUnspecified
			}
			claim.ClaimedLevel = level
			claim.Quote = truncateStr(strings.TrimSpace(judge.String(obj, "quote", "")), 260)
		}
		out[sk] = claim
	}
	return out, nil
}

func (e *Engine) generateQuestions(ctx context.Context, st *State, ac config.AgentConfig) error {
	st.Questions = make(map[string]model.SkillQuestions, len(st.Skills))

	type result struct {
		skill string
		q     model.SkillQuestions
	}
	results := make([]result, len(st.Skills))
	var mu sync.Mutex
	e.forEachBounded(ctx, len(st.Skills), func(i int) {
		sk := st.Skills[i]
		claim := st.LevelClaims[sk]
		q := e.questionsForSkill(ctx, st, sk, claim, ac)
		mu.Lock()
		results[i] = result{skill: sk, q: q}
		mu.Unlock()
	})

	for _, r := range results {
		if r.skill != "" {
			st.Questions[r.skill] = r.q
		}
	}
	st.Meta.SkillsJudged = len(st.Questions)
	return nil
}

// scoredSnippet is what the question generator sees: an evidence snippet
// plus its retrieval similarity, so the oracle knows how relevant each one is.
type scoredSnippet struct {
	judge.Snippet
	Score float64 `json:"score"`
}

// questionsForSkill retrieves code along two axes (core usage, and error
// handling and debugging) and asks the oracle for tailored question sets.
// With no indexed code the oracle works from the CV claim alone.
func (e *Engine) questionsForSkill(ctx context.Context, st *State, skill string, claim model.LevelClaim, ac config.AgentConfig) model.SkillQuestions {
	var snippets []scoredSnippet

	if st.Index.Len() > 0 {
		coreSims, err := st.Index.Similarities(ctx, e.oracle,
			fmt.Sprintf("%s: core logic, implementation details, usage in code, libraries, architecture", skill))
		if err != nil {
			e.log.Warn("question retrieval failed", zap.String("skill", skill), zap.Error(err))
			coreSims = nil
		}
		if coreSims != nil {
			debugSims, err := st.Index.Similarities(ctx, e.oracle,
				fmt.Sprintf("%s: errors, debugging, edge cases, performance, reliability, tests", skill))
			if err != nil {
				debugSims = nil
			}

			kCore := ac.TopSnippets - 4
			if kCore < 6 {
				kCore = 6
			}
			idxCore := topIndices(coreSims, 0, len(coreSims), kCore)
			var idxDebug []int
			if debugSims != nil {
				idxDebug = topIndices(debugSims, 0, len(debugSims), 4)
			}
			idxAll := mergeIndices(ac.TopSnippets, idxCore, idxDebug)

			contexts := make([]model.Chunk, 0, len(idxAll))
			for _, i := range idxAll {
				contexts = append(contexts, st.Index.Chunk(i))
			}
			plain, _ := judge.BuildSnippets(contexts, ac.SnippetCap)
			for j, sn := range plain {
				snippets = append(snippets, scoredSnippet{
					Snippet: sn,
					Score:   round4(coreSims[idxAll[j]]),
				})
			}
			sort.SliceStable(snippets, func(a, b int) bool { return snippets[a].Score > snippets[b].Score })
		}
	}

	payload := map[string]any{
		"skill":         skill,
		"claimed_level": claim.ClaimedLevel,
		"claim_quote":   claim.Quote,
		"snippets":      snippets,
		"output_schema": map[string]any{
			"claimed_level":  "beginner|intermediate|expert|unspecified",
			"claim_quote":    "string",
			"evidence_level": "none|weak|moderate|strong",
			"overclaim":      "boolean",
			"rationale":      "short string",
			"theoretical":    []string{"..."},
			"practical":      []string{"..."},
			"debugging":      []string{"..."},
			"focus_areas":    []string{"..."},
		},
		"rules": []string{
			"Use the snippets to infer what the candidate likely did with this skill; do not require keyword matches.",
			"Evidence level: none if snippets irrelevant; weak if only superficial usage; moderate if meaningful usage; strong if core logic.",
			"Overclaim: true if claimed_level is high but evidence_level is weak/none.",
			"Generate 3-5 questions per category (theoretical/practical/debugging).",
			"Questions should match the claimed_level (harder for expert), but if overclaim=true, include at least 2 'expose weak understanding' questions.",
			"Keep questions specific and interview-usable. Avoid huge multi-part questions.",
		},
	}

	raw, err := e.oracle.Complete(ctx, questionSystem, payload)
	data := llm.ParseJSONObject(raw)
	if err != nil || data == nil {
		if err != nil {
			e.log.Warn("question generation failed", zap.String("skill", skill), zap.Error(err))
		}
		data = map[string]any{}
	}

	level := model.NormalizeLevel(strings.ToLower(judge.String(data, "claimed_level", string(claim.ClaimedLevel))), model.LevelUnspecified)
	if level == model.LevelUnknown || level == model.LevelUnclear {
		level = model.LevelUnspecified
	}

	evidenceLevel := strings.ToLower(judge.String(data, "evidence_level", model.EvidenceNone))
	switch evidenceLevel {
	case model.EvidenceNone, model.EvidenceWeak, model.EvidenceModerate, model.EvidenceStrong:
	default:
		evidenceLevel = model.EvidenceNone
	}

	return model.SkillQuestions{
		ClaimedLevel:  level,
		ClaimQuote:    truncateStr(judge.String(data, "claim_quote", claim.Quote), 260),
		EvidenceLevel: evidenceLevel,
		Overclaim:     judge.Bool(data, "overclaim"),
		Rationale:     truncateStr(strings.TrimSpace(judge.String(data, "rationale", "")), 260),
		Theoretical:   cleanList(judge.Strings(data, "theoretical", maxQuestionsPerCategory)),
		Practical:     cleanList(judge.Strings(data, "practical", maxQuestionsPerCategory)),
		Debugging:     cleanList(judge.Strings(data, "debugging", maxQuestionsPerCategory)),
		FocusAreas:    cleanList(judge.Strings(data, "focus_areas", maxFocusAreas)),
	}
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// interviewSummary splits skills into weak and strong points. Weak points
// are sorted overclaims first, then skills with no evidence at all.
func interviewSummary(bySkill map[string]model.SkillQuestions) model.InterviewSummary {
	type entry struct {
		skill string
		q     model.SkillQuestions
	}
	var weak, strong []entry

	skills := make([]string, 0, len(bySkill))
	for sk := range bySkill {
		skills = append(skills, sk)
	}
	sort.Strings(skills)

	for _, sk := range skills {
		q := bySkill[sk]
		if q.EvidenceLevel == model.EvidenceNone || q.EvidenceLevel == model.EvidenceWeak || q.Overclaim {
			weak = append(weak, entry{sk, q})
		} else {
			strong = append(strong, entry{sk, q})
		}
	}

	sort.SliceStable(weak, func(i, j int) bool {
		if weak[i].q.Overclaim != weak[j].q.Overclaim {
			return weak[i].q.Overclaim
		}
		iNone := weak[i].q.EvidenceLevel == model.EvidenceNone
		jNone := weak[j].q.EvidenceLevel == model.EvidenceNone
		return iNone && !jNone
	})

	summary := model.InterviewSummary{
		WeakPoints:   []model.SummaryPoint{},
		StrongPoints: []model.SummaryPoint{},
	}
	for i, e := range weak {
		if i >= maxSummaryPoints {
			break
		}
		summary.WeakPoints = append(summary.WeakPoints, model.SummaryPoint{
			Skill:         e.skill,
			ClaimedLevel:  e.q.ClaimedLevel,
			EvidenceLevel: e.q.EvidenceLevel,
			Overclaim:     e.q.Overclaim,
		})
	}
	for i, e := range strong {
		if i >= maxSummaryPoints {
			break
		}
		summary.StrongPoints = append(summary.StrongPoints, model.SummaryPoint{
			Skill:         e.skill,
			ClaimedLevel:  e.q.ClaimedLevel,
			EvidenceLevel: e.q.EvidenceLevel,
		})
	}
	return summary
}
