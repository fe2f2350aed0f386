package agents

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/repovet/repovet/internal/config"
	"github.com/repovet/repovet/internal/extract"
	"github.com/repovet/repovet/internal/judge"
	"github.com/repovet/repovet/internal/llm"
	"github.com/repovet/repovet/internal/model"
)

const authenticitySystem = "You are a conservative code authenticity evaluator for public portfolio projects.\n" +
	"Estimate likelihood the project is original vs tutorial clone / copy-paste / AI-generated.\n" +
	"Do NOT make absolute accusations; speak in likelihood terms.\n" +
	"You MUST cite evidence only from provided snippets. Excerpts must be copied verbatim.\n" +
	"Return JSON only."

var negativeLabels = map[string]bool{
	model.LabelTutorialClone: true,
	model.LabelCopyPaste:     true,
	model.LabelAIGenerated:   true,
}

// RunAuthenticity analyzes every repository the candidate exposes and
// scores how likely each is their own work. CV-referenced repos are pulled
// in even when they live under another account.
func (e *Engine) RunAuthenticity(ctx context.Context, cv map[string]any) (*model.AuthenticityReport, error) {
	ac := e.cfg.Agents.Authenticity
	st := &State{CV: cv}

	p := NewPipeline("authenticity", e.log,
		stageLoad(),
		Stage{Name: "extract", Run: func(ctx context.Context, st *State) error {
			st.Username = extract.Username(st.CV)
			st.Referenced = extract.ReferencedRepos(st.CV)
			st.Meta.GitHubUserFound = st.Username != ""
			st.Meta.ReferencedRepoCount = len(st.Referenced)
			return nil
		}},
		Stage{Name: "collect", Run: func(ctx context.Context, st *State) error {
			if err := e.collectRepos(ctx, st, ac, true, "No GitHub username found; cannot analyze authenticity."); err != nil {
				return err
			}
			refSet := make(map[string]bool, len(st.Referenced))
			for _, slug := range st.Referenced {
				refSet[slug] = true
			}
			e.selectDeep(st, ac.MaxReposDeep, func(r model.RepoMeta) float64 {
				s := 0.0
				if refSet[splitFull(r.FullName)] {
					s += 1000
				}
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
		e.stageFeatures(),
		Stage{Name: "judge", Run: func(ctx context.Context, st *State) error {
			return e.judgeAuthenticity(ctx, st, ac)
		}},
		Stage{Name: "assemble", Run: func(ctx context.Context, st *State) error {
			st.Meta.AssembledAt = time.Now().Unix()
			return nil
		}},
	)

	if err := p.Run(ctx, st); err != nil {
		return nil, err
	}

	return &model.AuthenticityReport{
		GitHubUser:               st.Username,
		OverallAuthenticityScore: e.overallAuthenticity(st),
		Repos:                    st.RepoDecisions,
		Meta:                     st.Meta,
	}, nil
}

func (e *Engine) judgeAuthenticity(ctx context.Context, st *State, ac config.AgentConfig) error {
	st.RepoDecisions = make(map[string]model.RepoDecision, len(st.ReposAll))

	deepSet := make(map[string]bool, len(st.ReposDeep))
	for _, r := range st.ReposDeep {
		deepSet[r.FullName] = true
	}

	for _, r := range st.ReposAll {
		if r.FullName == "" || deepSet[r.FullName] {
			continue
		}
		score, labels, conf, notes := shallowScore(r)
		st.RepoDecisions[r.FullName] = model.RepoDecision{
			ScanMode:          model.ScanShallow,
			AuthenticityScore: score,
			Labels:            labels,
			Confidence:        conf,
			Signals:           st.Signals[r.FullName],
			Evidence:          []model.Evidence{},
			Notes:             notes,
		}
	}

	if st.Index.Len() == 0 {
		st.Meta.AddNote("Deep index missing; only shallow scoring used.")
		e.countJudged(st)
		return nil
	}

	coreSims, err := st.Index.Similarities(ctx, e.oracle,
		"core business logic, main functionality, algorithms, model training, API routes, custom code")
	if err != nil {
		return err
	}

	// snippet selection is serial so the sampler stays race-free; only the
	// oracle calls fan out
	type job struct {
		repo     model.RepoMeta
		contexts []model.Chunk
	}
	var jobs []job
	for _, r := range st.ReposDeep {
		span, ok := st.Slices[r.FullName]
		if !ok || span[1] <= span[0] {
			continue
		}
		a, b := span[0], span[1]

		kCore := ac.TopSnippets - 4
		if kCore < 6 {
			kCore = 6
		}
		idxCore := topIndices(coreSims, a, b, kCore)

		type bs struct {
			score float64
			i     int
		}
		boiler := make([]bs, 0, b-a)
		for i := a; i < b; i++ {
			boiler = append(boiler, bs{boilerplateScore(st.Chunks[i].Text), i})
		}
		sort.SliceStable(boiler, func(x, y int) bool { return boiler[x].score > boiler[y].score })
		var idxBoiler []int
		for i := 0; i < 2 && i < len(boiler); i++ {
			idxBoiler = append(idxBoiler, boiler[i].i)
		}

		idxRand := e.sampleIndices(a, b, 2)

		idxAll := mergeIndices(ac.TopSnippets, idxCore, idxBoiler, idxRand)
		contexts := make([]model.Chunk, 0, len(idxAll))
		for _, i := range idxAll {
			contexts = append(contexts, st.Chunks[i])
		}
		jobs = append(jobs, job{repo: r, contexts: contexts})
	}

	results := make([]model.RepoDecision, len(jobs))
	var mu sync.Mutex
	e.forEachBounded(ctx, len(jobs), func(i int) {
		d := e.judgeRepoDeep(ctx, jobs[i].repo, st.Signals[jobs[i].repo.FullName], jobs[i].contexts, ac)
		mu.Lock()
		results[i] = d
		mu.Unlock()
	})

	for i, j := range jobs {
		st.RepoDecisions[j.repo.FullName] = results[i]
	}

	e.countJudged(st)
	return nil
}

func (e *Engine) countJudged(st *State) {
	st.Meta.JudgedReposTotal = len(st.RepoDecisions)
	deep, shallow := 0, 0
	for _, d := range st.RepoDecisions {
		if d.ScanMode == model.ScanDeep {
			deep++
		} else {
			shallow++
		}
	}
	st.Meta.JudgedReposDeep = deep
	st.Meta.JudgedReposShallow = shallow
}

// judgeRepoDeep asks the oracle for a verdict on one deep-scanned repo and
// applies the evidence gate: a negative label without a verified citation
// collapses to unclear with zero confidence.
func (e *Engine) judgeRepoDeep(ctx context.Context, r model.RepoMeta, signals map[string]any, contexts []model.Chunk, ac config.AgentConfig) model.RepoDecision {
	snippets, lookup := judge.BuildSnippets(contexts, ac.SnippetCap)

	payload := map[string]any{
		"repo": r.FullName,
		"repo_meta": map[string]any{
			"is_fork":     r.Fork,
			"created_at":  r.CreatedAt,
			"pushed_at":   r.PushedAt,
			"language":    r.Language,
			"size_kb":     r.Size,
			"stargazers":  r.StargazersCount,
			"forks":       r.ForksCount,
			"description": r.Description,
			"homepage":    r.Homepage,
		},
		"signals":  signals,
		"snippets": snippets,
		"output_schema": map[string]any{
			"authenticity_score": "0..100 (higher = more likely original work)",
			"labels":             "list among: original, tutorial_clone, copy_paste, ai_generated, template_based, unclear",
			"confidence":         "0..1",
			"evidence": []map[string]any{{
				"repo":      "must equal repo",
				"file":      "file from snippets",
				"lines":     "lines from snippets",
				"excerpt":   "verbatim substring from snippet (<=200 chars)",
				"reasoning": "one sentence",
			}},
			"notes": "short string",
		},
		"rules": []string{
			"If you use labels tutorial_clone/copy_paste/ai_generated, include >=1 evidence item.",
			"If you label original with confidence >=0.6, include >=1 evidence item showing custom logic.",
			"Evidence must match (repo,file,lines) exactly as provided.",
		},
	}

	raw, err := e.oracle.Complete(ctx, authenticitySystem, payload)
	data := llm.ParseJSONObject(raw)
	if err != nil || data == nil {
		if err != nil {
			e.log.Warn("authenticity judge failed", zap.String("repo", r.FullName), zap.Error(err))
		}
		data = map[string]any{}
	}

	score := judge.Clamp(judge.Float(data, "authenticity_score", 50), 0, 100)
	labels := judge.Strings(data, "labels", 6)
	if len(labels) == 0 {
		labels = []string{model.LabelUnclear}
	}
	conf := judge.Clamp01(judge.Float(data, "confidence", 0.5))
	notes := truncateStr(judge.String(data, "notes", ""), 240)

	verified := judge.VerifyEvidence(judge.ParseEvidence(data["evidence"], r.FullName, 4), lookup)
	if verified == nil {
		verified = []model.Evidence{}
	}

	hasNegative := false
	for _, l := range labels {
		if negativeLabels[l] {
			hasNegative = true
			break
		}
	}
	if hasNegative && len(verified) == 0 {
		labels = []string{model.LabelUnclear}
		conf = 0
	}

	d := model.RepoDecision{
		ScanMode:          model.ScanDeep,
		AuthenticityScore: score,
		Labels:            labels,
		Confidence:        conf,
		Signals:           signals,
		Evidence:          verified,
		Notes:             notes,
	}

	if e.cfg.Scoring.PenalizeForks && r.Fork && d.AuthenticityScore > 70 {
		d.AuthenticityScore = math.Max(0, d.AuthenticityScore-e.cfg.Scoring.ForkPenalty)
		if !containsStr(d.Labels, model.LabelTemplateBased) {
			d.Labels = append(d.Labels, model.LabelTemplateBased)
		}
		d.Notes = truncateStr(d.Notes, 220)
	}

	return d
}

// overallAuthenticity is the weighted mean over all judged repos: deep
// scans weigh more than shallow ones, CV-referenced repos get a boost.
func (e *Engine) overallAuthenticity(st *State) float64 {
	refSet := make(map[string]bool, len(st.Referenced))
	for _, slug := range st.Referenced {
		refSet[slug] = true
	}

	scoreSum, weightSum := 0.0, 0.0
	for full, d := range st.RepoDecisions {
		w := 1.0
		if d.ScanMode == model.ScanDeep {
			w = e.cfg.Scoring.DeepScanWeight
		}
		if refSet[splitFull(full)] {
			w += e.cfg.Scoring.ReferencedBoost
		}
		scoreSum += d.AuthenticityScore * w
		weightSum += w
	}
	if weightSum < 1e-9 {
		return 0
	}
	return math.Round(scoreSum/weightSum*100) / 100
}

func truncateStr(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func containsStr(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
