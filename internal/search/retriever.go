// Package search ranks stored chunks against a natural language query.
package search

import (
	"context"
	"math"
	"sort"
	"strings"

	cerrors "github.com/Anabaai/code-search/internal/errors"
	"github.com/Anabaai/code-search/internal/store"
)

// Ranking constants.
const (
	// LexicalBoost is added to the score of chunks containing the
	// query as a literal substring. Exact-text hits outrank
	// semantically similar paraphrases.
	LexicalBoost = 0.1

	// ScoreEpsilon is the floor a boosted score must exceed to be
	// returned, and the margin within which two scores count as tied;
	// ties order deterministically by location.
	ScoreEpsilon = 0.01

	// MaxPerFile caps results from a single file so one file cannot
	// crowd out the rest of the repository.
	MaxPerFile = 3

	// recallFactor over-fetches from the vector store so the per-file
	// cap still leaves enough candidates to fill the limit.
	recallFactor = 3
)

// Result is one ranked search hit.
type Result struct {
	FilePath   string
	ChunkIndex int
	Content    string
	LineStart  int
	LineEnd    int
	Score      float64
}

// VectorSearcher is the store-side retrieval surface.
type VectorSearcher interface {
	Search(ctx context.Context, query []float32, k int) ([]store.ScoredChunk, error)
}

// QueryEmbedder turns a query into a vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever runs semantic retrieval with lexical boosting and per-file
// diversity.
type Retriever struct {
	store    VectorSearcher
	embedder QueryEmbedder
}

// NewRetriever creates a Retriever over the given store and embedder.
func NewRetriever(s VectorSearcher, e QueryEmbedder) *Retriever {
	return &Retriever{store: s, embedder: e}
}

// Retrieve returns up to limit ranked results for query. A blank query
// is a validation error; limit 0 returns no results without touching
// the store.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, cerrors.InvalidQuery("query must not be empty")
	}
	if limit < 0 {
		return nil, cerrors.New(cerrors.ErrCodeInvalidLimit, "limit must not be negative", nil)
	}
	if limit == 0 {
		return []Result{}, nil
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := r.store.Search(ctx, vector, limit*recallFactor)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	loweredQuery := strings.ToLower(strings.TrimSpace(query))
	for _, h := range hits {
		score := h.Score
		if strings.Contains(strings.ToLower(h.Content), loweredQuery) {
			score += LexicalBoost
		}
		if score > 1 {
			score = 1
		}
		results = append(results, Result{
			FilePath:   h.FilePath,
			ChunkIndex: h.ChunkIndex,
			Content:    h.Content,
			LineStart:  h.LineStart,
			LineEnd:    h.LineEnd,
			Score:      score,
		})
	}

	results = filterByScore(results, ScoreEpsilon)
	sortResults(results)
	results = capPerFile(results, MaxPerFile)

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// filterByScore drops results scoring at or below floor.
func filterByScore(results []Result, floor float64) []Result {
	kept := results[:0]
	for _, res := range results {
		if res.Score > floor {
			kept = append(kept, res)
		}
	}
	return kept
}

// sortResults orders by descending score; scores within ScoreEpsilon
// are tied and order by file path, start line, then chunk index.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if math.Abs(a.Score-b.Score) > ScoreEpsilon {
			return a.Score > b.Score
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.LineStart != b.LineStart {
			return a.LineStart < b.LineStart
		}
		return a.ChunkIndex < b.ChunkIndex
	})
}

// capPerFile keeps at most max results per file, preserving order.
func capPerFile(results []Result, max int) []Result {
	perFile := make(map[string]int)
	kept := results[:0]
	for _, res := range results {
		if perFile[res.FilePath] >= max {
			continue
		}
		perFile[res.FilePath]++
		kept = append(kept, res)
	}
	return kept
}
