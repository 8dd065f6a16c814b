package index

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/lumina/ai/mock"
	"github.com/poiesic/lumina/ai/sparse"
	"github.com/poiesic/lumina/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRetriever(t *testing.T) {
	h, enc := newTestHybrid(t)
	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		r, err := NewRetriever(h, embedder, enc, 0)
		require.NoError(t, err)
		assert.Equal(t, DefaultTopK, r.topK)
	})

	t.Run("nil hybrid", func(t *testing.T) {
		_, err := NewRetriever(nil, embedder, enc, 3)
		assert.Equal(t, ErrHybridRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewRetriever(h, nil, enc, 3)
		assert.Equal(t, ErrEmbedderRequired, err)
	})

	t.Run("nil encoder", func(t *testing.T) {
		_, err := NewRetriever(h, embedder, nil, 3)
		assert.Equal(t, ErrSparseEncoderRequired, err)
	})

	t.Run("vocabulary mismatch", func(t *testing.T) {
		other, err := sparse.NewEncoder(sparse.WithVocabularySize(1024))
		require.NoError(t, err)
		_, err = NewRetriever(h, embedder, other, 3)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})
}

func TestRetriever_Retrieve(t *testing.T) {
	ctx := context.Background()
	h, enc := newTestHybrid(t)
	embedder := mock.NewMockEmbedder()

	texts := []string{
		"We build custom software for logistics companies.",
		"Pricing starts at $10 per month for the basic plan.",
		"Our office is located in Portland.",
	}
	dense, err := embedder.EmbedTexts(ctx, texts)
	require.NoError(t, err)
	for i, text := range texts {
		_, err := h.Upsert(ctx, "acme", makeRecord(t, enc, "acme", "https://acme.test", i, text, dense[i]))
		require.NoError(t, err)
	}

	r, err := NewRetriever(h, embedder, enc, 2)
	require.NoError(t, err)

	t.Run("returns top k for tenant", func(t *testing.T) {
		results, err := r.Retrieve(ctx, "acme", "how much does the basic plan cost? pricing")
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Contains(t, results[0].Record.Text, "Pricing")
	})

	t.Run("unknown tenant", func(t *testing.T) {
		results, err := r.Retrieve(ctx, "globex", "pricing")
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("embedding failure", func(t *testing.T) {
		failing := mock.NewMockEmbedder()
		failing.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.Join(core.ErrEmbeddingUnavailable, errors.New("connection refused"))
		}
		r, err := NewRetriever(h, failing, enc, 2)
		require.NoError(t, err)

		_, err = r.Retrieve(ctx, "acme", "pricing")
		assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	})

	t.Run("zero vector is rejected", func(t *testing.T) {
		zero := mock.NewMockEmbedder()
		zero.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return make([]float32, mock.DefaultDimension), nil
		}
		r, err := NewRetriever(h, zero, enc, 2)
		require.NoError(t, err)

		_, err = r.Retrieve(ctx, "acme", "pricing")
		assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	})
}
