package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/repovet/repovet/internal/llm"
	"github.com/repovet/repovet/internal/model"
)

const normEpsilon = 1e-9

// Index holds embedded chunks for similarity search. It is built once per
// run and read concurrently by the judging workers.
type Index struct {
	chunks  []model.Chunk
	vectors [][]float32
	norms   []float64
	dim     int
}

// Build embeds all chunks and returns a searchable index. No chunks means
// a nil index, which every search method treats as empty.
func Build(ctx context.Context, oracle llm.Oracle, chunks []model.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := oracle.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	norms := make([]float64, len(vectors))
	for i, v := range vectors {
		norms[i] = norm(v)
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}

	return &Index{chunks: chunks, vectors: vectors, norms: norms, dim: dim}, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.chunks)
}

// Dim returns the embedding dimensionality.
func (ix *Index) Dim() int {
	if ix == nil {
		return 0
	}
	return ix.dim
}

// Chunk returns the i-th indexed chunk.
func (ix *Index) Chunk(i int) model.Chunk {
	return ix.chunks[i]
}

// Similarities embeds the query and returns the cosine similarity of every
// indexed chunk to it, in index order. Callers that need ranked subsets
// (per-repository slices, merged multi-query pools) select over this.
func (ix *Index) Similarities(ctx context.Context, oracle llm.Oracle, query string) ([]float64, error) {
	if ix.Len() == 0 {
		return nil, nil
	}

	qvecs, err := oracle.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qvecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(qvecs))
	}

	q := qvecs[0]
	qnorm := norm(q)
	sims := make([]float64, len(ix.chunks))
	for i := range ix.chunks {
		sims[i] = cosine(q, qnorm, ix.vectors[i], ix.norms[i])
	}
	return sims, nil
}

// ScoredChunk is one search hit.
type ScoredChunk struct {
	Chunk model.Chunk
	Score float64
}

// Search embeds the query and returns the k most similar chunks by cosine
// similarity, highest first. Ties keep index order so results are stable.
func (ix *Index) Search(ctx context.Context, oracle llm.Oracle, query string, k int) ([]ScoredChunk, error) {
	if ix.Len() == 0 || k <= 0 {
		return nil, nil
	}

	qvecs, err := oracle.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qvecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(qvecs))
	}
	return ix.topK(qvecs[0], k), nil
}

func (ix *Index) topK(query []float32, k int) []ScoredChunk {
	qnorm := norm(query)

	scored := make([]ScoredChunk, len(ix.chunks))
	for i := range ix.chunks {
		scored[i] = ScoredChunk{
			Chunk: ix.chunks[i],
			Score: cosine(query, qnorm, ix.vectors[i], ix.norms[i]),
		}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}

func cosine(a []float32, anorm float64, b []float32, bnorm float64) float64 {
	if anorm < normEpsilon || bnorm < normEpsilon {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	dot := 0.0
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (anorm * bnorm)
}

func norm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
