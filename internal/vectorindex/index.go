package vectorindex

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

// KeyPrefix namespaces chunk hashes in Redis; the index is bound to it.
const KeyPrefix = "chunk:"

// scoreAlias is the name the KNN clause assigns to the raw distance.
const scoreAlias = "__score"

// Hit is a single vector search result. Score is a similarity in [0,1],
// higher is more similar.
type Hit struct {
	DocID      string
	ChunkID    string
	SourceID   string
	ChunkIndex int
	Text       string
	Score      float64
}

// Index is a RediSearch HNSW vector index over chunk hashes.
type Index struct {
	rdb        *redis.Client
	name       string
	dimensions int
	ttl        time.Duration
	logger     *zap.Logger
}

// New creates an index handle. Chunk hashes expire after ttl when ttl > 0.
func New(rdb *redis.Client, name string, dimensions int, ttl time.Duration, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{rdb: rdb, name: name, dimensions: dimensions, ttl: ttl, logger: logger}
}

// Dimensions returns the index's vector dimensionality.
func (ix *Index) Dimensions() int {
	return ix.dimensions
}

// Ensure creates the index if it does not exist. Safe to call on every
// startup and concurrently from multiple nodes.
func (ix *Index) Ensure(ctx context.Context) error {
	if err := ix.rdb.Do(ctx, "FT.INFO", ix.name).Err(); err == nil {
		return nil
	}
	err := ix.rdb.Do(ctx,
		"FT.CREATE", ix.name, "ON", "HASH", "PREFIX", "1", KeyPrefix,
		"SCHEMA",
		"chunk_id", "TAG",
		"source_id", "TAG",
		"chunk_index", "NUMERIC",
		"text", "TEXT",
		"vector", "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(ix.dimensions),
		"DISTANCE_METRIC", "COSINE",
	).Err()
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create index %s: %w", ix.name, err)
	}
	ix.logger.Info("vector index created", zap.String("index", ix.name), zap.Int("dimensions", ix.dimensions))
	return nil
}

// Write stores a chunk and its vector as a hash under KeyPrefix+chunk.ID.
func (ix *Index) Write(ctx context.Context, chunk *models.Chunk, vec []float32) error {
	if len(vec) != ix.dimensions {
		return fmt.Errorf("vector has %d dimensions, index expects %d", len(vec), ix.dimensions)
	}
	key := KeyPrefix + chunk.ID
	err := ix.rdb.HSet(ctx, key, map[string]interface{}{
		"chunk_id":    chunk.ID,
		"source_id":   chunk.SourceID,
		"chunk_index": chunk.ChunkIndex,
		"text":        chunk.Text,
		"vector":      EncodeVector(vec),
	}).Err()
	if err != nil {
		return fmt.Errorf("write chunk %s: %w", chunk.ID, err)
	}
	if ix.ttl > 0 {
		if err := ix.rdb.Expire(ctx, key, ix.ttl).Err(); err != nil {
			ix.logger.Warn("failed to set chunk TTL", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// Remove deletes the hashes for the given chunk IDs.
func (ix *Index) Remove(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	keys := make([]string, len(chunkIDs))
	for i, id := range chunkIDs {
		keys[i] = KeyPrefix + id
	}
	return ix.rdb.Del(ctx, keys...).Err()
}

// Drop removes the index and all indexed hashes. Missing indexes are not an error.
func (ix *Index) Drop(ctx context.Context) error {
	err := ix.rdb.Do(ctx, "FT.DROPINDEX", ix.name, "DD").Err()
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "unknown index") {
		return nil
	}
	return err
}

// Search runs a KNN query for the k nearest chunks. The raw cosine distance
// reported by RediSearch is converted to a similarity (1 - distance, clamped
// to [0,1]). Malformed reply entries are logged and skipped; no parseable
// hits yields an empty slice, not an error.
func (ix *Index) Search(ctx context.Context, vec []float32, k int) ([]*Hit, error) {
	if len(vec) != ix.dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d", len(vec), ix.dimensions)
	}
	if k < 1 {
		k = 1
	}
	query := fmt.Sprintf("*=>[KNN %d @vector $query_vector AS %s]", k, scoreAlias)
	raw, err := ix.rdb.Do(ctx,
		"FT.SEARCH", ix.name, query,
		"PARAMS", "2", "query_vector", EncodeVector(vec),
		"RETURN", "5", "chunk_id", "source_id", "chunk_index", "text", scoreAlias,
		"SORTBY", scoreAlias,
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("search index %s: %w", ix.name, err)
	}
	return parseSearchReply(raw, ix.logger), nil
}
