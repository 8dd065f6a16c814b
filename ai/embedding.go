package ai

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/poiesic/lumina/core"
)

// CheckEmbedding rejects vectors that must never stand in for a real
// embedding: empty, zero-norm, or of the wrong dimension when dim > 0.
func CheckEmbedding(vec []float32, dim int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty embedding", core.ErrEmbeddingUnavailable)
	}
	if dim > 0 && len(vec) != dim {
		return fmt.Errorf("%w: %w: got %d, want %d", core.ErrEmbeddingUnavailable, core.ErrDimensionMismatch, len(vec), dim)
	}
	for _, v := range vec {
		if v != 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: zero-norm embedding", core.ErrEmbeddingUnavailable)
}

// CachedEmbedder memoizes single-text embeddings. Queries repeat far more
// often than ingested chunks, so only EmbedText is cached.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with an LRU cache holding up to size vectors.
func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding cache: %w", core.ErrConfiguration, err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// EmbedText returns the cached vector for text or computes and stores it.
func (c *CachedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := c.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, vec)
	return vec, nil
}

// EmbedTexts passes through to the wrapped embedder.
func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedTexts(ctx, texts)
}

// Len reports the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}
