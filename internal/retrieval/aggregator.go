// Package retrieval turns questions into scored, deduplicated citations.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vectorindex"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Embedder embeds query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs KNN queries against the vector index.
type Searcher interface {
	Search(ctx context.Context, vec []float32, k int) ([]*vectorindex.Hit, error)
}

// Lookup resolves hits to stored chunks and sources.
type Lookup interface {
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	GetSource(ctx context.Context, id string) (*models.Source, error)
}

// Aggregator retrieves evidence for a question: embed, KNN search, threshold
// filter, hydrate citations, and optionally aggregate per source.
type Aggregator struct {
	embedder       Embedder
	index          Searcher
	lookup         Lookup
	scoreThreshold float64
	minCitations   int
	logger         *zap.Logger
}

// NewAggregator creates an aggregator. scoreThreshold filters weak hits and
// feeds the evidence gate; minCitations is the gate's count floor.
func NewAggregator(embedder Embedder, index Searcher, lookup Lookup, scoreThreshold float64, minCitations int, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		embedder:       embedder,
		index:          index,
		lookup:         lookup,
		scoreThreshold: scoreThreshold,
		minCitations:   minCitations,
		logger:         logger,
	}
}

// Search returns up to topK citations for query, sorted by descending score.
// Hits below the score threshold are dropped; hits whose chunk or source can
// no longer be resolved are logged and skipped.
func (a *Aggregator) Search(ctx context.Context, query string, topK int) ([]*models.Citation, error) {
	timer := utils.NewStageTimer()

	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	timer.Mark("embed")

	hits, err := a.index.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	timer.Mark("knn")

	citations := a.hydrate(ctx, hits)
	timer.Mark("hydrate")

	a.logger.Debug("retrieval complete",
		zap.Int("hits", len(hits)),
		zap.Int("citations", len(citations)),
		zap.Duration("elapsed", timer.Elapsed()))
	return citations, nil
}

// SearchAggregated retrieves 2x topK candidates, keeps only the best-scoring
// citation per source, and returns at most topK of them sorted by descending
// score. Useful when the answer should draw on distinct documents.
func (a *Aggregator) SearchAggregated(ctx context.Context, query string, topK int) ([]*models.Citation, error) {
	citations, err := a.Search(ctx, query, topK*2)
	if err != nil {
		return nil, err
	}

	bestPerSource := make(map[string]*models.Citation)
	for _, c := range citations {
		if cur, ok := bestPerSource[c.SourceID]; !ok || c.Score > cur.Score {
			bestPerSource[c.SourceID] = c
		}
	}

	aggregated := make([]*models.Citation, 0, len(bestPerSource))
	for _, c := range bestPerSource {
		aggregated = append(aggregated, c)
	}
	sort.SliceStable(aggregated, func(i, j int) bool {
		return aggregated[i].Score > aggregated[j].Score
	})
	if len(aggregated) > topK {
		aggregated = aggregated[:topK]
	}
	return aggregated, nil
}

// EvidenceInsufficient reports whether the citations are too weak to ground
// an answer: fewer than minCitations, or mean score below the threshold.
func (a *Aggregator) EvidenceInsufficient(citations []*models.Citation) bool {
	if len(citations) < a.minCitations {
		return true
	}
	var sum float64
	for _, c := range citations {
		sum += c.Score
	}
	return sum/float64(len(citations)) < a.scoreThreshold
}

func (a *Aggregator) hydrate(ctx context.Context, hits []*vectorindex.Hit) []*models.Citation {
	citations := make([]*models.Citation, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < a.scoreThreshold {
			continue
		}
		chunk, err := a.lookup.GetChunk(ctx, hit.ChunkID)
		if err != nil {
			a.logger.Warn("hit references unknown chunk", zap.String("chunk", hit.ChunkID), zap.Error(err))
			continue
		}
		source, err := a.lookup.GetSource(ctx, chunk.SourceID)
		if err != nil {
			a.logger.Warn("chunk references unknown source", zap.String("source", chunk.SourceID), zap.Error(err))
			continue
		}
		snippet := utils.Truncate(chunk.Text, models.SnippetLength)
		citation, err := models.NewCitation(chunk.ID, source.ID, source.Title, chunk.ChunkIndex, snippet, hit.Score, chunk.Location())
		if err != nil {
			a.logger.Warn("invalid citation", zap.String("chunk", chunk.ID), zap.Error(err))
			continue
		}
		citations = append(citations, citation)
	}
	return citations
}
