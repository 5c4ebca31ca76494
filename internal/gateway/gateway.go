// Package gateway provides access to the external embedding and chat model
// provider, with retry, caching, and error classification.
package gateway

import "context"

// EmbeddingProvider produces vector embeddings for text.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// ChatProvider generates a completion for a system and user prompt pair.
type ChatProvider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
