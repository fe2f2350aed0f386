package agents

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/repovet/repovet/internal/cache"
	"github.com/repovet/repovet/internal/config"
	"github.com/repovet/repovet/internal/extract"
	"github.com/repovet/repovet/internal/github"
	"github.com/repovet/repovet/internal/index"
	"github.com/repovet/repovet/internal/llm"
	"github.com/repovet/repovet/internal/model"
)

// Fetcher is the GitHub surface the engine needs. *github.Client satisfies
// it; tests substitute a stub.
type Fetcher interface {
	ListRepos(ctx context.Context, user string, max int) ([]model.RepoMeta, model.FetchMeta, error)
	GetRepo(ctx context.Context, fullName string) (*model.RepoMeta, error)
	DownloadZipball(ctx context.Context, fullName, branch string) ([]byte, error)
}

var _ Fetcher = (*github.Client)(nil)

// Engine carries the shared machinery every agent runs on: the GitHub
// client, the oracle, the archive cache, and configuration.
type Engine struct {
	github Fetcher
	oracle llm.Oracle
	cache  cache.Cache
	cfg    *config.Config
	log    *zap.Logger
	rng    *rand.Rand
}

// NewEngine wires an engine from its dependencies.
func NewEngine(gh Fetcher, oracle llm.Oracle, c cache.Cache, cfg *config.Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		github: gh,
		oracle: oracle,
		cache:  c,
		cfg:    cfg,
		log:    log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// stageLoad stamps the run start.
func stageLoad() Stage {
	return Stage{Name: "load", Run: func(ctx context.Context, st *State) error {
		st.Meta.LoadedAt = time.Now().Unix()
		return nil
	}}
}

// collectRepos lists the candidate's public repositories. When
// includeReferenced is set, repositories the CV links to are fetched
// individually and merged in, so a referenced repo under another account
// still gets judged. Without a username this is a no-op; the judge stages
// then degrade to empty reports.
func (e *Engine) collectRepos(ctx context.Context, st *State, ac config.AgentConfig, includeReferenced bool, missingNote string) error {
	if st.Username == "" {
		st.Meta.AddNote(missingNote)
		return nil
	}

	repos, fm, err := e.github.ListRepos(ctx, st.Username, ac.MaxReposTotal)
	if err != nil {
		return err
	}
	st.Meta.PagesFetched = fm.PagesFetched
	st.Meta.RateLimited = fm.RateLimited

	var extra []model.RepoMeta
	if includeReferenced {
		for _, slug := range st.Referenced {
			r, err := e.github.GetRepo(ctx, slug)
			if err != nil {
				e.log.Warn("referenced repo fetch failed", zap.String("repo", slug), zap.Error(err))
				continue
			}
			if r != nil {
				extra = append(extra, *r)
			}
		}
	}

	merged := make(map[string]model.RepoMeta, len(repos)+len(extra))
	var order []string
	for _, r := range append(extra, repos...) {
		parts := splitFull(r.FullName)
		if parts == "" {
			continue
		}
		if _, seen := merged[parts]; !seen {
			order = append(order, parts)
		}
		merged[parts] = r
	}

	all := make([]model.RepoMeta, 0, len(merged))
	for _, k := range order {
		all = append(all, merged[k])
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PushedAt > all[j].PushedAt
	})

	st.ReposAll = all
	st.Meta.ReposTotalSeen = len(all)
	return nil
}

func splitFull(full string) string {
	i := strings.Index(full, "/")
	if i <= 0 || i == len(full)-1 {
		return ""
	}
	return extract.NormalizeRepo(full[:i], full[i+1:])
}

// selectDeep ranks repositories and keeps the top k for archive analysis.
// A nil rank keeps the existing order (most recently pushed first).
func (e *Engine) selectDeep(st *State, k int, rank func(model.RepoMeta) float64) {
	ranked := make([]model.RepoMeta, len(st.ReposAll))
	copy(ranked, st.ReposAll)
	if rank != nil {
		sort.SliceStable(ranked, func(i, j int) bool {
			return rank(ranked[i]) > rank(ranked[j])
		})
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	st.ReposDeep = ranked[:k]
	st.Meta.ReposDeepSelected = len(st.ReposDeep)
}

// fetchArchive returns a repository zipball, from cache when fresh. The
// bool reports whether the bytes came from cache.
func (e *Engine) fetchArchive(ctx context.Context, full, branch string) ([]byte, bool, error) {
	key := cache.ArchiveKey(full, branch)
	if e.cache != nil {
		if data, ok := e.cache.Get(key); ok {
			return data, true, nil
		}
	}

	data, err := e.github.DownloadZipball(ctx, full, branch)
	if err != nil {
		return nil, false, err
	}
	if e.cache != nil {
		if err := e.cache.Set(key, data, e.cfg.Cache.TTL); err != nil {
			e.log.Warn("archive cache write failed", zap.String("repo", full), zap.Error(err))
		}
	}
	return data, false, nil
}

// deepIndex downloads the deep repositories, chunks their source, and
// embeds every chunk into one index. Per-repo chunk ranges are recorded so
// later stages can retrieve within a single repository. Failures on
// individual repos are counted, not fatal.
func (e *Engine) deepIndex(ctx context.Context, st *State, ac config.AgentConfig) error {
	st.Slices = make(map[string][2]int)
	if len(st.ReposDeep) == 0 {
		return nil
	}

	for _, r := range st.ReposDeep {
		if r.FullName == "" {
			continue
		}
		if len(st.Chunks) >= ac.MaxTotalChunks {
			break
		}

		data, hit, err := e.fetchArchive(ctx, r.FullName, r.Branch())
		if err != nil {
			st.Meta.ZipFailures++
			e.log.Warn("archive fetch failed", zap.String("repo", r.FullName), zap.Error(err))
			continue
		}
		if hit {
			st.Meta.CacheHits++
		}
		if len(data) > ac.MaxArchiveBytes {
			st.Meta.ZipFailures++
			e.log.Warn("archive too large", zap.String("repo", r.FullName), zap.Int("bytes", len(data)))
			continue
		}

		start := len(st.Chunks)
		repoChunks, err := index.BuildChunks(data, r.FullName, index.ChunkParams{
			MaxFiles:     ac.MaxFiles,
			MaxFileBytes: ac.MaxFileBytes,
			MaxBytes:     ac.MaxArchiveBytes,
			MaxChunks:    ac.MaxTotalChunks - start,
			MaxLines:     ac.ChunkMaxLines,
			Overlap:      ac.ChunkOverlap,
		})
		if err != nil {
			st.Meta.ZipParseFailures++
			e.log.Warn("archive unreadable", zap.String("repo", r.FullName), zap.Error(err))
			continue
		}
		st.Chunks = append(st.Chunks, repoChunks...)
		st.Slices[r.FullName] = [2]int{start, len(st.Chunks)}
	}

	st.Meta.Chunks = len(st.Chunks)
	if len(st.Chunks) == 0 {
		return nil
	}

	ix, err := index.Build(ctx, e.oracle, st.Chunks)
	if err != nil {
		return err
	}
	st.Index = ix
	st.Meta.EmbeddingDim = ix.Dim()
	return nil
}

// forEachBounded fans fn out over n items with at most the configured
// number of judge workers in flight.
func (e *Engine) forEachBounded(ctx context.Context, n int, fn func(i int)) {
	workers := e.cfg.Concurrency.JudgeWorkers
	if workers < 1 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}

// topIndices returns the k highest-similarity chunk indexes within
// [start, end), highest first, ties in index order.
func topIndices(sims []float64, start, end, k int) []int {
	if start < 0 {
		start = 0
	}
	if end > len(sims) {
		end = len(sims)
	}
	if start >= end || k <= 0 {
		return nil
	}

	idx := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		idx = append(idx, i)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return sims[idx[a]] > sims[idx[b]]
	})
	if k > len(idx) {
		k = len(idx)
	}
	return idx[:k]
}

// sampleIndices draws up to k distinct indexes from [start, end).
func (e *Engine) sampleIndices(start, end, k int) []int {
	n := end - start
	if n <= 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	perm := e.rng.Perm(n)
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = start + perm[i]
	}
	return out
}

// mergeIndices concatenates index lists, dropping duplicates and keeping
// first-seen order, capped at max.
func mergeIndices(max int, lists ...[]int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, list := range lists {
		for _, i := range list {
			if seen[i] || len(out) >= max {
				continue
			}
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}
