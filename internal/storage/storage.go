// Package storage defines the persistence interface for sources, chunks, and
// query behaviors.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Storage defines source, chunk, and behavior persistence operations.
type Storage interface {
	// Source operations
	CreateSource(ctx context.Context, src *models.Source) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	GetSourceByHash(ctx context.Context, contentHash string) (*models.Source, error)
	ListSources(ctx context.Context, offset, limit int) ([]*models.Source, error)
	DeleteSource(ctx context.Context, id string) error

	// Chunk operations
	BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	GetChunksBySourceID(ctx context.Context, sourceID string) ([]*models.Chunk, error)
	ListUnvectorized(ctx context.Context, limit int) ([]*models.Chunk, error)
	MarkVectorized(ctx context.Context, ids []string, vectorized bool) error
	MarkAllUnvectorized(ctx context.Context) error
	DeleteChunksBySourceID(ctx context.Context, sourceID string) error

	// Behavior recording
	RecordQuery(ctx context.Context, b *models.QueryBehavior) error

	// Stats
	CountSources(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
