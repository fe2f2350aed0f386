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

const skillMapSystem = "You evaluate whether a claimed skill is supported by code evidence.\n" +
	"Be conservative: supported only if snippets strongly imply real usage.\n" +
	"Do NOT require the skill phrase to appear. Infer from libraries, architecture, APIs, patterns.\n" +
	"You MUST cite evidence only from provided snippets (repo/file/lines must match exactly).\n" +
	"Return JSON only."

// RunSkillMap classifies every skill listed in the CV as supported or
// unsupported by the candidate's code, with verified citations for the
// supported ones.
func (e *Engine) RunSkillMap(ctx context.Context, cv map[string]any) (*model.SkillMapReport, error) {
	ac := e.cfg.Agents.SkillMap
	st := &State{CV: cv}

	p := NewPipeline("skillmap", e.log,
		stageLoad(),
		Stage{Name: "extract", Run: func(ctx context.Context, st *State) error {
			st.Skills = extract.Skills(st.CV)
			st.Username = extract.Username(st.CV)
			st.Meta.GitHubUserFound = st.Username != ""
			st.Meta.SkillCount = len(st.Skills)
			return nil
		}},
		Stage{Name: "collect_index", Run: func(ctx context.Context, st *State) error {
			// only the most recently pushed repos are indexed here; the
			// listing itself is the selection
			limited := ac
			limited.MaxReposTotal = ac.MaxReposDeep
			if err := e.collectRepos(ctx, st, limited, false, "No GitHub username found; cannot verify skills."); err != nil {
				return err
			}
			e.selectDeep(st, ac.MaxReposDeep, nil)
			return e.deepIndex(ctx, st, ac)
		}},
		Stage{Name: "judge", Run: func(ctx context.Context, st *State) error {
			return e.judgeSkillSupport(ctx, st, ac)
		}},
		Stage{Name: "assemble", Run: func(ctx context.Context, st *State) error {
			st.Meta.AssembledAt = time.Now().Unix()
			return nil
		}},
	)

	if err := p.Run(ctx, st); err != nil {
		return nil, err
	}

	return &model.SkillMapReport{
		GitHubUser: st.Username,
		Skills:     st.Support,
		Scores:     skillMapScores(st.Support),
		Meta:       st.Meta,
	}, nil
}

func (e *Engine) judgeSkillSupport(ctx context.Context, st *State, ac config.AgentConfig) error {
	st.Support = make(map[string]model.SkillSupport, len(st.Skills))

	if st.Index.Len() == 0 {
		for _, sk := range st.Skills {
			st.Support[sk] = model.SkillSupport{
				Status:     model.StatusUnsupported,
				Fake:       true,
				Confidence: 0,
				Evidence:   []model.Evidence{},
			}
		}
		st.Meta.AddNote("No indexed code; cannot verify.")
		return nil
	}

	type result struct {
		skill string
		s     model.SkillSupport
	}
	results := make([]result, len(st.Skills))
	var mu sync.Mutex
	e.forEachBounded(ctx, len(st.Skills), func(i int) {
		sk := st.Skills[i]
		s := e.judgeOneSkill(ctx, st, sk, ac)
		mu.Lock()
		results[i] = result{skill: sk, s: s}
		mu.Unlock()
	})

	for _, r := range results {
		if r.skill != "" {
			st.Support[r.skill] = r.s
		}
	}
	st.Meta.SkillsJudged = len(st.Support)
	return nil
}

// judgeOneSkill retrieves code for one skill and asks the oracle for a
// verdict. An unsupported first pass gets one retry with a different query
// phrasing in case retrieval missed; the better verdict wins.
func (e *Engine) judgeOneSkill(ctx context.Context, st *State, skill string, ac config.AgentConfig) model.SkillSupport {
	first := e.judgeSkillQuery(ctx, st, skill,
		fmt.Sprintf("Evidence of skill: %s. Real usage in code, imports, APIs, architecture.", skill), ac)
	if first.Status == model.StatusSupported {
		return first
	}

	second := e.judgeSkillQuery(ctx, st, skill,
		fmt.Sprintf("%s implementation, usage examples, libraries, patterns. Find strongest code proof.", skill), ac)
	if second.Status == model.StatusSupported || second.Confidence > first.Confidence {
		return second
	}
	return first
}

func (e *Engine) judgeSkillQuery(ctx context.Context, st *State, skill, query string, ac config.AgentConfig) model.SkillSupport {
	unsupported := model.SkillSupport{
		Status:     model.StatusUnsupported,
		Fake:       true,
		Confidence: 0,
		Evidence:   []model.Evidence{},
	}

	hits, err := st.Index.Search(ctx, e.oracle, query, ac.TopSnippets)
	if err != nil {
		e.log.Warn("skill retrieval failed", zap.String("skill", skill), zap.Error(err))
		return unsupported
	}
	contexts := make([]model.Chunk, 0, len(hits))
	for _, h := range hits {
		contexts = append(contexts, h.Chunk)
	}

	snippets, lookup := judge.BuildSnippets(contexts, ac.SnippetCap)

	payload := map[string]any{
		"skill":    skill,
		"snippets": snippets,
		"output_schema": map[string]any{
			"status":     "supported|unsupported",
			"confidence": "0..1",
			"evidence": []map[string]any{{
				"repo":      "repo from snippet",
				"file":      "file from snippet",
				"lines":     "lines from snippet",
				"excerpt":   "a short literal substring from that snippet (<=200 chars)",
				"reasoning": "one sentence",
			}},
		},
		"rules": []string{
			"If unsupported, evidence must be empty.",
			"If supported, include 1-3 evidence items.",
			"Excerpt MUST be copied verbatim from the snippet.",
		},
	}

	raw, err := e.oracle.Complete(ctx, skillMapSystem, payload)
	data := llm.ParseJSONObject(raw)
	if err != nil || data == nil {
		if err != nil {
			e.log.Warn("skill judge failed", zap.String("skill", skill), zap.Error(err))
		}
		return unsupported
	}

	supported := strings.EqualFold(judge.String(data, "status", model.StatusUnsupported), model.StatusSupported)
	conf := judge.Clamp01(judge.Float(data, "confidence", 0))

	verified := judge.VerifyEvidence(judge.ParseEvidence(data["evidence"], "", 3), lookup)

	// a supported verdict with no verifiable citation is worthless
	if !supported || len(verified) == 0 {
		return unsupported
	}
	return model.SkillSupport{
		Status:     model.StatusSupported,
		Fake:       false,
		Confidence: conf,
		Evidence:   verified,
	}
}

func skillMapScores(skills map[string]model.SkillSupport) model.SkillMapScores {
	total := len(skills)
	totalSum, realSum := 0.0, 0.0
	real := 0

	for _, s := range skills {
		totalSum += s.Confidence
		if !s.Fake {
			realSum += s.Confidence
			real++
		}
	}

	scores := model.SkillMapScores{
		TotalSkillsCount: total,
		RealSkillsCount:  real,
		FakeSkillsCount:  total - real,
	}
	if total > 0 {
		scores.AllSkillsAvg = math.Round(totalSum/float64(total)*10000) / 10000
	}
	if real > 0 {
		scores.RealSkillsAvg = math.Round(realSum/float64(real)*10000) / 10000
	}
	return scores
}
