package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

// Embedder converts chunk text to vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IndexWriter is the slice of the vector index the vectorizer needs.
type IndexWriter interface {
	Ensure(ctx context.Context) error
	Write(ctx context.Context, chunk *models.Chunk, vector []float32) error
	Drop(ctx context.Context) error
}

// Vectorizer embeds pending chunks and writes them to the vector index,
// updating the vectorized flag in batches.
type Vectorizer struct {
	store     Store
	embedder  Embedder
	index     IndexWriter
	batchSize int
	logger    *zap.Logger
}

// NewVectorizer creates a vectorizer processing batchSize chunks per flag update.
func NewVectorizer(store Store, embedder Embedder, index IndexWriter, batchSize int, logger *zap.Logger) *Vectorizer {
	if batchSize < 1 {
		batchSize = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vectorizer{
		store:     store,
		embedder:  embedder,
		index:     index,
		batchSize: batchSize,
		logger:    logger,
	}
}

// VectorizeChunks embeds and indexes the given chunks. Per-chunk failures are
// logged and skipped; the flag update covers only chunks that made it into
// the index. Returns how many chunks were vectorized.
func (v *Vectorizer) VectorizeChunks(ctx context.Context, chunks []*models.Chunk) (int, error) {
	total := 0
	for start := 0; start < len(chunks); start += v.batchSize {
		end := start + v.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		var done []string
		for _, chunk := range batch {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			vector, err := v.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				v.logger.Warn("embedding failed, skipping chunk", zap.String("chunk_id", chunk.ID), zap.Error(err))
				continue
			}
			if err := v.index.Write(ctx, chunk, vector); err != nil {
				v.logger.Warn("index write failed, skipping chunk", zap.String("chunk_id", chunk.ID), zap.Error(err))
				continue
			}
			done = append(done, chunk.ID)
		}
		if len(done) > 0 {
			if err := v.store.MarkVectorized(ctx, done, true); err != nil {
				return total, fmt.Errorf("mark chunks vectorized: %w", err)
			}
			total += len(done)
		}
	}
	if total < len(chunks) {
		v.logger.Warn("vectorization incomplete", zap.Int("done", total), zap.Int("total", len(chunks)))
	}
	return total, nil
}

// VectorizePending drains the unvectorized backlog in batches. Stops when a
// full batch makes no progress so a dead model provider cannot spin forever.
func (v *Vectorizer) VectorizePending(ctx context.Context) (int, error) {
	total := 0
	for {
		chunks, err := v.store.ListUnvectorized(ctx, v.batchSize)
		if err != nil {
			return total, fmt.Errorf("list unvectorized chunks: %w", err)
		}
		if len(chunks) == 0 {
			return total, nil
		}
		done, err := v.VectorizeChunks(ctx, chunks)
		total += done
		if err != nil {
			return total, err
		}
		if done == 0 {
			return total, fmt.Errorf("vectorization stalled with %d chunks pending", len(chunks))
		}
	}
}

// Rebuild drops and recreates the vector index, then re-embeds every chunk.
// Returns how many chunks were vectorized.
func (v *Vectorizer) Rebuild(ctx context.Context) (int, error) {
	if err := v.index.Drop(ctx); err != nil {
		return 0, fmt.Errorf("drop index: %w", err)
	}
	if err := v.index.Ensure(ctx); err != nil {
		return 0, fmt.Errorf("recreate index: %w", err)
	}
	if err := v.store.MarkAllUnvectorized(ctx); err != nil {
		return 0, fmt.Errorf("reset vectorized flags: %w", err)
	}
	v.logger.Info("index dropped, re-vectorizing all chunks")
	return v.VectorizePending(ctx)
}
