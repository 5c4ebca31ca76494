package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vectorindex"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type stubSearcher struct {
	hits []*vectorindex.Hit
	k    int
}

func (s *stubSearcher) Search(_ context.Context, _ []float32, k int) ([]*vectorindex.Hit, error) {
	s.k = k
	return s.hits, nil
}

type stubLookup struct {
	chunks  map[string]*models.Chunk
	sources map[string]*models.Source
}

func (s *stubLookup) GetChunk(_ context.Context, id string) (*models.Chunk, error) {
	c, ok := s.chunks[id]
	if !ok {
		return nil, errors.New("chunk not found")
	}
	return c, nil
}

func (s *stubLookup) GetSource(_ context.Context, id string) (*models.Source, error) {
	src, ok := s.sources[id]
	if !ok {
		return nil, errors.New("source not found")
	}
	return src, nil
}

func fixture(hits []*vectorindex.Hit) (*stubSearcher, *stubLookup) {
	lookup := &stubLookup{chunks: map[string]*models.Chunk{}, sources: map[string]*models.Source{}}
	for _, h := range hits {
		lookup.chunks[h.ChunkID] = &models.Chunk{
			ID:         h.ChunkID,
			SourceID:   h.SourceID,
			ChunkIndex: h.ChunkIndex,
			Text:       "text of " + h.ChunkID,
		}
		lookup.sources[h.SourceID] = &models.Source{ID: h.SourceID, Title: "title " + h.SourceID}
	}
	return &stubSearcher{hits: hits}, lookup
}

func hit(chunkID, sourceID string, score float64) *vectorindex.Hit {
	return &vectorindex.Hit{ChunkID: chunkID, SourceID: sourceID, Score: score}
}

func TestSearchFiltersBelowThreshold(t *testing.T) {
	searcher, lookup := fixture([]*vectorindex.Hit{
		hit("c1", "s1", 0.9),
		hit("c2", "s1", 0.3),
		hit("c3", "s2", 0.6),
	})
	a := NewAggregator(stubEmbedder{}, searcher, lookup, 0.5, 2, nil)

	citations, err := a.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(citations) != 2 {
		t.Fatalf("citations = %d, want 2", len(citations))
	}
	for _, c := range citations {
		if c.Score < 0.5 {
			t.Errorf("citation below threshold survived: %+v", c)
		}
	}
	if citations[0].SourceTitle != "title s1" || citations[0].Snippet != "text of c1" {
		t.Errorf("citation 0 = %+v", citations[0])
	}
}

func TestSearchSkipsUnresolvableHits(t *testing.T) {
	searcher, lookup := fixture([]*vectorindex.Hit{hit("c1", "s1", 0.9)})
	searcher.hits = append(searcher.hits, hit("ghost", "s1", 0.8))
	a := NewAggregator(stubEmbedder{}, searcher, lookup, 0.5, 2, nil)

	citations, err := a.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(citations) != 1 || citations[0].ChunkID != "c1" {
		t.Errorf("citations = %+v", citations)
	}
}

func TestSearchAggregatedDedupesPerSource(t *testing.T) {
	searcher, lookup := fixture([]*vectorindex.Hit{
		hit("c1", "s1", 0.9),
		hit("c2", "s1", 0.8),
		hit("c3", "s2", 0.7),
		hit("c4", "s2", 0.85),
	})
	a := NewAggregator(stubEmbedder{}, searcher, lookup, 0.5, 2, nil)

	citations, err := a.SearchAggregated(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("SearchAggregated: %v", err)
	}
	if searcher.k != 6 {
		t.Errorf("candidate fetch k = %d, want 2x topK = 6", searcher.k)
	}
	if len(citations) != 2 {
		t.Fatalf("citations = %d, want 2 (one per source)", len(citations))
	}
	if citations[0].ChunkID != "c1" || citations[1].ChunkID != "c4" {
		t.Errorf("expected best chunk per source in descending order, got %s, %s",
			citations[0].ChunkID, citations[1].ChunkID)
	}
}

func TestSearchAggregatedLimitsToTopK(t *testing.T) {
	var hits []*vectorindex.Hit
	for i := 0; i < 6; i++ {
		hits = append(hits, hit(
			fmt.Sprintf("c%d", i),
			fmt.Sprintf("s%d", i),
			0.9-float64(i)*0.05,
		))
	}
	searcher, lookup := fixture(hits)
	a := NewAggregator(stubEmbedder{}, searcher, lookup, 0.5, 2, nil)

	citations, err := a.SearchAggregated(context.Background(), "q", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(citations) != 3 {
		t.Errorf("citations = %d, want 3", len(citations))
	}
	for i := 1; i < len(citations); i++ {
		if citations[i].Score > citations[i-1].Score {
			t.Error("citations not sorted by descending score")
		}
	}
}

func TestEvidenceInsufficient(t *testing.T) {
	a := NewAggregator(stubEmbedder{}, &stubSearcher{}, &stubLookup{}, 0.5, 2, nil)

	cite := func(score float64) *models.Citation {
		return &models.Citation{ChunkID: "c", SourceID: "s", Score: score}
	}

	if !a.EvidenceInsufficient(nil) {
		t.Error("no citations should be insufficient")
	}
	if !a.EvidenceInsufficient([]*models.Citation{cite(0.9)}) {
		t.Error("one citation below the count floor should be insufficient")
	}
	if !a.EvidenceInsufficient([]*models.Citation{cite(0.5), cite(0.3)}) {
		t.Error("mean 0.4 below threshold should be insufficient")
	}
	if a.EvidenceInsufficient([]*models.Citation{cite(0.6), cite(0.5)}) {
		t.Error("two citations with mean 0.55 should be sufficient")
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider down")
}

func TestSearchEmbedFailure(t *testing.T) {
	searcher, lookup := fixture(nil)
	a := NewAggregator(failingEmbedder{}, searcher, lookup, 0.5, 2, nil)
	if _, err := a.Search(context.Background(), "q", 5); err == nil {
		t.Error("embed failure should propagate")
	}
}
