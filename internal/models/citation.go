package models

import "fmt"

// SnippetLength is the maximum snippet size carried on a citation.
const SnippetLength = 200

// Citation is a scored piece of evidence supporting an answer.
type Citation struct {
	ChunkID     string   `json:"chunk_id"`
	SourceID    string   `json:"source_id"`
	SourceTitle string   `json:"source_title"`
	ChunkIndex  int      `json:"chunk_index"`
	Snippet     string   `json:"snippet"`
	Score       float64  `json:"score"`
	Location    Location `json:"location"`
}

// NewCitation builds a validated citation. Chunk and source IDs must be
// non-empty and score must lie in [0,1].
func NewCitation(chunkID, sourceID, sourceTitle string, chunkIndex int, snippet string, score float64, loc Location) (*Citation, error) {
	if chunkID == "" {
		return nil, fmt.Errorf("citation: empty chunk ID")
	}
	if sourceID == "" {
		return nil, fmt.Errorf("citation: empty source ID")
	}
	if score < 0 || score > 1 {
		return nil, fmt.Errorf("citation: score %f out of range [0,1]", score)
	}
	return &Citation{
		ChunkID:     chunkID,
		SourceID:    sourceID,
		SourceTitle: sourceTitle,
		ChunkIndex:  chunkIndex,
		Snippet:     snippet,
		Score:       score,
		Location:    loc,
	}, nil
}
