package agents

import (
	"context"
	"fmt"
	"math"
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

const claimExtractSystem = "You extract skill claims from a CV JSON.\n" +
	"A skill claim may include level wording like beginner/intermediate/expert/senior/advanced.\n" +
	"Return JSON only.\n" +
	"Do NOT invent skills not present.\n" +
	"If no explicit level is stated, claimed_level must be 'unknown'.\n"

const skillAssessSystem = "You are a conservative evaluator for skill inflation.\n" +
	"Goal: determine observed proficiency level from code usage evidence.\n" +
	"Do NOT rely on the skill word appearing literally.\n" +
	"Infer from patterns, APIs, configs, architecture, complexity, depth.\n" +
	"Return JSON only. Evidence excerpts must be copied verbatim from snippets.\n" +
	"Be cautious: if evidence is weak, observed_level='unclear'.\n"

// RunInflation compares every skill claim in the CV against what the
// candidate's code actually shows and flags overclaims.
func (e *Engine) RunInflation(ctx context.Context, cv map[string]any) (*model.InflationReport, error) {
	ac := e.cfg.Agents.Inflation
	st := &State{CV: cv}

	p := NewPipeline("inflation", e.log,
		stageLoad(),
		Stage{Name: "extract", Run: func(ctx context.Context, st *State) error {
			st.Username = extract.Username(st.CV)
			st.Meta.GitHubUserFound = st.Username != ""

			claims, err := e.extractClaims(ctx, st.CV)
			if err != nil {
				return err
			}
			st.Claims = claims
			st.Meta.ClaimsCount = len(claims)
			return nil
		}},
		Stage{Name: "collect", Run: func(ctx context.Context, st *State) error {
			if err := e.collectRepos(ctx, st, ac, false, "No GitHub username found; cannot compare claims against code."); err != nil {
				return err
			}
			e.selectDeep(st, ac.MaxReposDeep, func(r model.RepoMeta) float64 {
				s := 0.0
				if !r.Fork {
					s += 30
				}
				s += math.Min(60, float64(r.Size)/200)
				s += math.Min(10, float64(r.StargazersCount)/5)
				return s
			})
			return nil
		}},
		Stage{Name: "deep_index", Run: func(ctx context.Context, st *State) error {
			return e.deepIndex(ctx, st, ac)
		}},
		Stage{Name: "judge_skills", Run: func(ctx context.Context, st *State) error {
			return e.judgeClaims(ctx, st, ac)
		}},
		Stage{Name: "assemble", Run: func(ctx context.Context, st *State) error {
			st.Meta.AssembledAt = time.Now().Unix()
			return nil
		}},
	)

	if err := p.Run(ctx, st); err != nil {
		return nil, err
	}

	score, overclaims := e.overallInflation(st)
	return &model.InflationReport{
		GitHubUser:                 st.Username,
		OverallSkillInflationScore: score,
		OverclaimCount:             overclaims,
		Skills:                     st.SkillDecisions,
		Meta:                       st.Meta,
	}, nil
}

// extractClaims asks the oracle to lift skill claims out of the CV with
// their exact wording. Duplicate skills keep the strongest claimed level.
func (e *Engine) extractClaims(ctx context.Context, cv map[string]any) ([]model.SkillClaim, error) {
	payload := map[string]any{
		"cv_json": cv,
		"output_schema": map[string]any{
			"claims": []map[string]any{{
				"skill":         "string (canonical name)",
				"claim_text":    "string (exact phrase from CV if possible)",
				"claimed_level": "beginner|intermediate|expert|unknown",
				"source":        "skills|projects|experience|summary|keywords|other",
			}},
		},
		"rules": []string{
			"If the CV says 'expert in X' => claimed_level='expert'.",
			"If the CV says 'advanced X' or 'senior' => claimed_level='expert'.",
			"If the CV says 'familiar with X' or 'basic X' => claimed_level='beginner'.",
			"If the CV only lists the skill name => claimed_level='unknown'.",
			"Prefer fewer, cleaner skills. Deduplicate.",
		},
	}

	raw, err := e.oracle.Complete(ctx, claimExtractSystem, payload)
	if err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}
	data := llm.ParseJSONObject(raw)
	if data == nil {
		return nil, nil
	}

	list, _ := data["claims"].([]any)
	if len(list) > 200 {
		list = list[:200]
	}

	best := make(map[string]model.SkillClaim)
	var order []string
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		skill := strings.TrimSpace(judge.String(obj, "skill", ""))
		if skill == "" {
			continue
		}
		level := model.NormalizeLevel(strings.ToLower(strings.TrimSpace(judge.String(obj, "claimed_level", ""))), model.LevelUnknown)
		if level == model.LevelUnspecified || level == model.LevelUnclear {
			level = model.LevelUnknown
		}
		source := strings.TrimSpace(judge.String(obj, "source", "other"))
		if len(source) > 30 {
			source = source[:30]
		}
		claim := model.SkillClaim{
			Skill:        skill,
			ClaimText:    strings.TrimSpace(judge.String(obj, "claim_text", "")),
			ClaimedLevel: level,
			Source:       source,
		}

		key := strings.ToLower(skill)
		prev, seen := best[key]
		if !seen {
			order = append(order, key)
			best[key] = claim
		} else if claim.ClaimedLevel.Rank() > prev.ClaimedLevel.Rank() {
			best[key] = claim
		}
	}

	out := make([]model.SkillClaim, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out, nil
}

func (e *Engine) judgeClaims(ctx context.Context, st *State, ac config.AgentConfig) error {
	st.SkillDecisions = make(map[string]model.SkillDecision, len(st.Claims))

	if st.Index.Len() == 0 {
		for _, c := range st.Claims {
			st.SkillDecisions[c.Skill] = model.SkillDecision{
				ClaimedLevel:  c.ClaimedLevel,
				ObservedLevel: model.LevelUnclear,
				Overclaim:     false,
				Severity:      0,
				Confidence:    0,
				Evidence:      []model.Evidence{},
				Notes:         "No code indexed; cannot compare against GitHub usage.",
			}
		}
		st.Meta.AddNote("Deep index missing; decisions set to unclear.")
		return nil
	}

	// a small shared pool of random chunks keeps retrieval from fixating on
	// one repository
	randPool := e.sampleIndices(0, st.Index.Len(), 2)

	type result struct {
		skill string
		d     model.SkillDecision
	}
	results := make([]result, len(st.Claims))
	var mu sync.Mutex
	e.forEachBounded(ctx, len(st.Claims), func(i int) {
		claim := st.Claims[i]
		d := e.assessClaim(ctx, st, claim, randPool, ac)
		mu.Lock()
		results[i] = result{skill: claim.Skill, d: d}
		mu.Unlock()
	})

	for _, r := range results {
		if r.skill != "" {
			st.SkillDecisions[r.skill] = r.d
		}
	}
	st.Meta.SkillsJudged = len(st.SkillDecisions)
	return nil
}

func (e *Engine) assessClaim(ctx context.Context, st *State, claim model.SkillClaim, randPool []int, ac config.AgentConfig) model.SkillDecision {
	query := fmt.Sprintf(
		"Evidence of real usage of skill '%s': configs, imports, APIs, deployment, infra, modules, tests, scripts, pipelines, nontrivial implementation details. Not just mention.",
		claim.Skill)

	sims, err := st.Index.Similarities(ctx, e.oracle, query)
	if err != nil {
		e.log.Warn("claim retrieval failed", zap.String("skill", claim.Skill), zap.Error(err))
		return model.SkillDecision{
			ClaimedLevel:  claim.ClaimedLevel,
			ObservedLevel: model.LevelUnclear,
			Evidence:      []model.Evidence{},
			Notes:         "Retrieval failed; cannot assess.",
		}
	}

	k := ac.TopSnippets - 2
	if k < 10 {
		k = 10
	}
	idx := mergeIndices(ac.TopSnippets, topIndices(sims, 0, len(sims), k), randPool)
	contexts := make([]model.Chunk, 0, len(idx))
	for _, i := range idx {
		contexts = append(contexts, st.Index.Chunk(i))
	}

	snippets, lookup := judge.BuildSnippets(contexts, ac.SnippetCap)

	payload := map[string]any{
		"skill":         claim.Skill,
		"claim_text":    claim.ClaimText,
		"claimed_level": claim.ClaimedLevel,
		"snippets":      snippets,
		"output_schema": map[string]any{
			"observed_level": "beginner|intermediate|expert|unclear",
			"overclaim":      "boolean",
			"confidence":     "0..1",
			"evidence": []map[string]any{{
				"repo":      "string",
				"file":      "string",
				"lines":     "string",
				"excerpt":   "verbatim substring from snippet (<=200 chars)",
				"reasoning": "one sentence",
			}},
			"notes": "short string",
		},
		"rules": []string{
			"Beginner evidence: only minimal configs, trivial scripts, basic usage with defaults, small snippets.",
			"Intermediate evidence: integrates components, nontrivial configuration, error handling, structured modules, tests or CI.",
			"Expert evidence: advanced patterns, scalable architecture, operators/controllers, deep infra, robust deployment, custom tooling, performance/security considerations.",
			"If claimed_level is 'unknown', set overclaim=false unless evidence strongly contradicts a claim_text.",
			"If you mark overclaim=true, explain why observed is below claimed.",
			"Evidence must match repo/file/lines exactly as provided.",
		},
	}

	raw, err := e.oracle.Complete(ctx, skillAssessSystem, payload)
	data := llm.ParseJSONObject(raw)
	if err != nil || data == nil {
		if err != nil {
			e.log.Warn("claim judge failed", zap.String("skill", claim.Skill), zap.Error(err))
		}
		data = map[string]any{}
	}

	observed := model.NormalizeLevel(strings.ToLower(strings.TrimSpace(judge.String(data, "observed_level", ""))), model.LevelUnclear)
	if observed == model.LevelUnknown || observed == model.LevelUnspecified {
		observed = model.LevelUnclear
	}
	conf := judge.Clamp01(judge.Float(data, "confidence", 0))
	overclaim := judge.Bool(data, "overclaim")
	notes := truncateStr(judge.String(data, "notes", ""), 240)

	verified := judge.VerifyEvidence(judge.ParseEvidence(data["evidence"], "", 4), lookup)
	if verified == nil {
		verified = []model.Evidence{}
	}

	if overclaim && len(verified) == 0 {
		overclaim = false
		conf = 0
		notes = truncateStr(notes+" (downgraded: no verifiable evidence)", 240)
	}

	severity := 0.0
	claimedRank := claim.ClaimedLevel.Rank()
	observedRank := observed.Rank()
	switch {
	case claimedRank > 0 && observedRank > 0 && claimedRank > observedRank:
		if claimedRank-observedRank == 1 {
			severity = e.cfg.Scoring.GapOneSeverity
		} else {
			severity = e.cfg.Scoring.GapTwoSeverity
		}
	case overclaim && claimedRank > 0 && observedRank == 0:
		// unclear evidence but the judge still flagged an overclaim (rare)
		severity = e.cfg.Scoring.GapOneSeverity
	}

	return model.SkillDecision{
		ClaimedLevel:  claim.ClaimedLevel,
		ObservedLevel: observed,
		Overclaim:     overclaim,
		Severity:      judge.Clamp01(severity),
		Confidence:    conf,
		Evidence:      verified,
		Notes:         notes,
	}
}

// overallInflation is the confidence-weighted mean severity scaled to
// 0..100. Every claim keeps a floor weight so a run full of zero-confidence
// verdicts still averages instead of dividing by nothing.
func (e *Engine) overallInflation(st *State) (float64, int) {
	sevSum, weightSum := 0.0, 0.0
	overclaims := 0
	for _, d := range st.SkillDecisions {
		w := math.Max(e.cfg.Scoring.MinClaimWeight, d.Confidence)
		sevSum += d.Severity * w
		weightSum += w
		if d.Overclaim {
			overclaims++
		}
	}
	if weightSum < 1e-9 {
		return 0, overclaims
	}
	return math.Round(sevSum/weightSum*100*100) / 100, overclaims
}
