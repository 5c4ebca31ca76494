package gateway

import (
	"context"

	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

// EmbeddingClient embeds text through the provider with caching and retry.
// Cache keys are SHA-256 hashes of whitespace-normalized text, so texts that
// differ only in whitespace share one cache entry and one provider call.
type EmbeddingClient struct {
	provider EmbeddingProvider
	cache    Cache
	retry    *RetryPolicy
	logger   *zap.Logger
}

// NewEmbeddingClient creates a client. cache may be nil to disable caching.
func NewEmbeddingClient(provider EmbeddingProvider, cache Cache, retry *RetryPolicy, logger *zap.Logger) *EmbeddingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingClient{provider: provider, cache: cache, retry: retry, logger: logger}
}

// Embed returns the embedding for text. A cache hit makes no provider call.
// On provider failure the error is never masked with a zero vector.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	norm := utils.NormalizeText(text)
	key := utils.HashBytes([]byte(norm))

	if c.cache != nil {
		if vec, ok := c.cache.Get(ctx, key); ok {
			c.logger.Debug("embedding cache hit", zap.String("key", key))
			return vec, nil
		}
	}

	var vec []float32
	err := c.retry.Execute(ctx, "embed", func() error {
		v, err := c.provider.Embed(ctx, norm)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Put(ctx, key, vec)
	}
	return vec, nil
}

// EmbedBatch embeds each text in order, failing on the first error.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, 0, len(texts))
	for _, t := range texts {
		vec, err := c.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, vec)
	}
	return vecs, nil
}

// Dimensions returns the provider's embedding dimensionality.
func (c *EmbeddingClient) Dimensions() int {
	return c.provider.Dimensions()
}
