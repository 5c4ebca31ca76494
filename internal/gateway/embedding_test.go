package gateway

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProvider struct {
	calls int
	vec   []float32
	err   error
}

func (f *fakeProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeProvider) Dimensions() int { return len(f.vec) }

func newTestClient(p *fakeProvider, cache Cache) *EmbeddingClient {
	return NewEmbeddingClient(p, cache, NewRetryPolicy(2, time.Millisecond, 0, nil), nil)
}

func TestEmbedCachesResult(t *testing.T) {
	p := &fakeProvider{vec: []float32{0.1, 0.2}}
	c := newTestClient(p, NewMemoryCache())
	ctx := context.Background()

	v1, err := c.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	v2, err := c.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1 (second call should hit cache)", p.calls)
	}
	if len(v1) != 2 || len(v2) != 2 {
		t.Errorf("vectors = %v, %v", v1, v2)
	}
}

func TestEmbedNormalizesBeforeHashing(t *testing.T) {
	p := &fakeProvider{vec: []float32{0.5}}
	c := newTestClient(p, NewMemoryCache())
	ctx := context.Background()

	if _, err := c.Embed(ctx, "hello   world"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Embed(ctx, "  hello\nworld "); err != nil {
		t.Fatal(err)
	}
	if p.calls != 1 {
		t.Errorf("whitespace variants should share a cache entry, calls = %d", p.calls)
	}
}

func TestEmbedProviderFailure(t *testing.T) {
	p := &fakeProvider{err: &ProviderError{Status: 500}}
	c := newTestClient(p, NewMemoryCache())

	vec, err := c.Embed(context.Background(), "text")
	if vec != nil {
		t.Error("failure must not yield a vector")
	}
	var mu *ModelUnavailableError
	if !errors.As(err, &mu) {
		t.Errorf("expected ModelUnavailableError, got %v", err)
	}
	if p.calls != 2 {
		t.Errorf("provider calls = %d, want 2 (one retry)", p.calls)
	}
}

func TestEmbedWithoutCache(t *testing.T) {
	p := &fakeProvider{vec: []float32{1}}
	c := newTestClient(p, nil)
	if _, err := c.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if _, err := c.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2 with caching disabled", p.calls)
	}
}

func TestEmbedBatch(t *testing.T) {
	p := &fakeProvider{vec: []float32{1, 2}}
	c := newTestClient(p, NewMemoryCache())
	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b", "a"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("len = %d", len(vecs))
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2 (duplicate should hit cache)", p.calls)
	}
}
