package vectorindex

import (
	"testing"

	"go.uber.org/zap"
)

func TestParseFlatReply(t *testing.T) {
	raw := []interface{}{
		int64(2),
		"chunk:abc",
		[]interface{}{
			"chunk_id", "abc",
			"source_id", "s1",
			"chunk_index", "0",
			"text", "hello world",
			"__score", "0.25",
		},
		"chunk:def",
		[]interface{}{
			"chunk_id", "def",
			"source_id", "s2",
			"chunk_index", "3",
			"text", []byte("bytes text"),
			"__score", "0.5",
		},
	}
	hits := parseSearchReply(raw, zap.NewNop())
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ChunkID != "abc" || hits[0].SourceID != "s1" || hits[0].Text != "hello world" {
		t.Errorf("hit 0 = %+v", hits[0])
	}
	if hits[0].Score != 0.75 {
		t.Errorf("hit 0 score = %f, want 0.75 (1 - 0.25)", hits[0].Score)
	}
	if hits[1].ChunkIndex != 3 || hits[1].Text != "bytes text" || hits[1].Score != 0.5 {
		t.Errorf("hit 1 = %+v", hits[1])
	}
}

func TestParseKeyedReplyWithNestedDocs(t *testing.T) {
	raw := []interface{}{
		"total_results", int64(1),
		"results", []interface{}{
			[]interface{}{
				"id", "chunk:abc",
				"extra_attributes", []interface{}{
					"chunk_id", "abc",
					"source_id", "s1",
					"__score", "0.4",
				},
				"values", []interface{}{},
			},
		},
	}
	hits := parseSearchReply(raw, zap.NewNop())
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].DocID != "chunk:abc" || hits[0].ChunkID != "abc" {
		t.Errorf("hit = %+v", hits[0])
	}
	if hits[0].Score != 0.6 {
		t.Errorf("score = %f", hits[0].Score)
	}
}

func TestParseMapReply(t *testing.T) {
	raw := map[string]interface{}{
		"total_results": int64(1),
		"results": []interface{}{
			map[string]interface{}{
				"id": "chunk:x",
				"extra_attributes": map[string]interface{}{
					"chunk_id": "x",
					"text":     "t",
					"__score":  "0.1",
				},
			},
		},
	}
	hits := parseSearchReply(raw, zap.NewNop())
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].ChunkID != "x" || hits[0].Score != 0.9 {
		t.Errorf("hit = %+v", hits[0])
	}
}

func TestParseSkipsMalformedEntries(t *testing.T) {
	raw := []interface{}{
		int64(2),
		"chunk:good",
		[]interface{}{"chunk_id", "good", "__score", "0.2"},
		"chunk:bad",
		[]interface{}{"chunk_id", "bad"}, // no score
	}
	hits := parseSearchReply(raw, zap.NewNop())
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].ChunkID != "good" {
		t.Errorf("hit = %+v", hits[0])
	}
}

func TestParseClampsScores(t *testing.T) {
	raw := []interface{}{
		int64(2),
		"chunk:far",
		[]interface{}{"chunk_id", "far", "__score", "1.7"},
		"chunk:near",
		[]interface{}{"chunk_id", "near", "__score", "-0.2"},
	}
	hits := parseSearchReply(raw, zap.NewNop())
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Score != 0 {
		t.Errorf("distance 1.7 should clamp to similarity 0, got %f", hits[0].Score)
	}
	if hits[1].Score != 1 {
		t.Errorf("distance -0.2 should clamp to similarity 1, got %f", hits[1].Score)
	}
}

func TestParseSkipsVectorField(t *testing.T) {
	raw := []interface{}{
		int64(1),
		"chunk:v",
		[]interface{}{
			"vector", []byte{0x00, 0x01, 0x02},
			"chunk_id", "v",
			"__score", "0.3",
		},
	}
	hits := parseSearchReply(raw, zap.NewNop())
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
}

func TestParseEmptyReply(t *testing.T) {
	hits := parseSearchReply([]interface{}{int64(0)}, zap.NewNop())
	if hits == nil || len(hits) != 0 {
		t.Errorf("empty reply should give empty non-nil slice, got %v", hits)
	}
	hits = parseSearchReply(nil, zap.NewNop())
	if len(hits) != 0 {
		t.Errorf("nil reply should give no hits")
	}
}

func TestParseMissingChunkIDFallsBackToDocID(t *testing.T) {
	raw := []interface{}{
		int64(1),
		"chunk:fallback-id",
		[]interface{}{"__score", "0.0", "text", "t"},
	}
	hits := parseSearchReply(raw, zap.NewNop())
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].ChunkID != "fallback-id" {
		t.Errorf("chunk ID = %q", hits[0].ChunkID)
	}
	if hits[0].Score != 1 {
		t.Errorf("distance 0 should give similarity 1, got %f", hits[0].Score)
	}
}
