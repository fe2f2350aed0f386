package agents

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"math"
	"regexp"
	"strings"

	"github.com/repovet/repovet/internal/judge"
	"github.com/repovet/repovet/internal/model"
)

var (
	tokenRe      = regexp.MustCompile(`[A-Za-z_]\w{2,}`)
	nontrivialRe = regexp.MustCompile(`\b(def|class|function|export\s+default|public\s+class)\b`)
)

const simhashTokenCap = 1200

// simhash64 fingerprints a chunk for near-duplicate detection. Identical
// token bags hash identically, so copied boilerplate across files shows up
// as repeated fingerprints.
func simhash64(text string) uint64 {
	tokens := tokenRe.FindAllString(text, -1)
	if len(tokens) == 0 {
		return 0
	}
	if len(tokens) > simhashTokenCap {
		tokens = tokens[:simhashTokenCap]
	}

	var counts [64]int
	for _, t := range tokens {
		sum := md5.Sum([]byte(t))
		h := binary.BigEndian.Uint64(sum[8:16])
		for i := 0; i < 64; i++ {
			if (h>>i)&1 == 1 {
				counts[i]++
			} else {
				counts[i]--
			}
		}
	}

	var out uint64
	for i := 0; i < 64; i++ {
		if counts[i] > 0 {
			out |= 1 << i
		}
	}
	return out
}

// boilerplateScore estimates how much of a chunk is configuration or
// generated scaffolding rather than written logic, in [0,1].
func boilerplateScore(text string) float64 {
	low := strings.ToLower(text)
	score := 0.0
	if strings.Contains(low, "eslint") || strings.Contains(low, "prettier") || strings.Contains(low, "tsconfig") {
		score += 0.25
	}
	if strings.Contains(low, "docker") || strings.Contains(low, "compose") {
		score += 0.15
	}
	punct := 0
	for _, ch := range text {
		switch ch {
		case '{', '}', '[', ']', ':', ',', '"':
			punct++
		}
	}
	denom := len(text)
	if denom < 1 {
		denom = 1
	}
	p := float64(punct) / float64(denom) * 20
	if p > 0.25 {
		p = 0.25
	}
	score += p
	if len(text) < 350 {
		score += 0.1
	}
	return judge.Clamp01(score)
}

// stageFeatures computes mechanical per-repo signals from metadata and, for
// deep-scanned repos, from the indexed chunks: internal duplication rate,
// mean boilerplate score, and the share of chunks with definition-level
// logic. Signals travel to the oracle alongside the snippets and also land
// in the report for the reader.
func (e *Engine) stageFeatures() Stage {
	return Stage{Name: "features", Run: func(ctx context.Context, st *State) error {
		deepSet := make(map[string]bool, len(st.ReposDeep))
		for _, r := range st.ReposDeep {
			deepSet[splitFull(r.FullName)] = true
		}
		refSet := make(map[string]bool, len(st.Referenced))
		for _, slug := range st.Referenced {
			refSet[slug] = true
		}

		simByChunk := make([]uint64, len(st.Chunks))
		simCounts := make(map[uint64]int, len(st.Chunks))
		boilerByChunk := make([]float64, len(st.Chunks))
		for i, c := range st.Chunks {
			h := simhash64(c.Text)
			simByChunk[i] = h
			simCounts[h]++
			boilerByChunk[i] = boilerplateScore(c.Text)
		}

		st.Signals = make(map[string]map[string]any, len(st.ReposAll))
		for _, r := range st.ReposAll {
			if r.FullName == "" {
				continue
			}
			norm := splitFull(r.FullName)

			scanMode := model.ScanShallow
			if deepSet[norm] {
				scanMode = model.ScanDeep
			}
			base := map[string]any{
				"referenced_in_cv": refSet[norm],
				"is_fork":          r.Fork,
				"stars":            r.StargazersCount,
				"forks":            r.ForksCount,
				"watchers":         r.WatchersCount,
				"size_kb":          r.Size,
				"open_issues":      r.OpenIssuesCount,
				"has_pages":        r.HasPages,
				"has_wiki":         r.HasWiki,
				"archived":         r.Archived,
				"disabled":         r.Disabled,
				"created_at":       r.CreatedAt,
				"pushed_at":        r.PushedAt,
				"updated_at":       r.UpdatedAt,
				"language":         r.Language,
				"description":      r.Description,
				"homepage":         r.Homepage,
				"scan_mode":        scanMode,
			}

			if span, ok := st.Slices[r.FullName]; ok && span[1] > span[0] {
				a, b := span[0], span[1]
				dupes := 0
				defHits := 0
				boilerSum := 0.0
				files := make(map[string]bool)
				for i := a; i < b; i++ {
					if simCounts[simByChunk[i]] > 1 {
						dupes++
					}
					boilerSum += boilerByChunk[i]
					files[st.Chunks[i].File] = true
					if nontrivialRe.MatchString(st.Chunks[i].Text) {
						defHits++
					}
				}
				n := b - a
				base["chunks_indexed"] = n
				base["file_count_indexed"] = len(files)
				base["duplication_rate_internal"] = round4(float64(dupes) / float64(n))
				base["boilerplate_score"] = round4(boilerSum / float64(n))
				base["nontrivial_logic_rate"] = round4(float64(defHits) / float64(n))
			}

			st.Signals[r.FullName] = base
		}
		return nil
	}}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

var tutorialWords = []string{"tutorial", "course", "bootcamp", "practice", "lab", "assignment", "homework"}

// shallowScore grades a repository from metadata alone. It only produces
// weak hints; the confidence stays low so deep-scanned verdicts dominate
// the overall score.
func shallowScore(r model.RepoMeta) (float64, []string, float64, string) {
	labels := []string{model.LabelUnclear}
	conf := 0.15
	score := 50.0
	notes := "Shallow scan (metadata only)."

	if r.Fork {
		labels = []string{model.LabelTemplateBased}
		conf = 0.35
		score = 35.0
		notes = "Repo is a fork (often derived from others)."
	}

	name := strings.ToLower(r.Name)
	desc := strings.ToLower(r.Description)
	for _, w := range tutorialWords {
		if strings.Contains(name, w) || strings.Contains(desc, w) {
			labels = []string{model.LabelTutorialClone}
			conf = math.Max(conf, 0.35)
			score = math.Min(score, 40.0)
			notes = "Repo name/description suggests tutorial/course material (shallow hint)."
			break
		}
	}

	if r.Size <= 25 {
		score = math.Min(score, 35.0)
		conf = math.Max(conf, 0.25)
		notes = "Repo is very small (shallow hint)."
	}

	if r.StargazersCount >= 5 || r.HasPages || r.HasWiki {
		score = math.Max(score, 55.0)
		conf = math.Max(conf, 0.2)
	}

	return judge.Clamp(score, 0, 100), labels, judge.Clamp01(conf), notes
}
