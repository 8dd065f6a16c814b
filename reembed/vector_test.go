package reembed

import (
	"testing"

	"github.com/poiesic/lumina/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVector(t *testing.T) {
	t.Run("scales to unit length", func(t *testing.T) {
		in := []float32{1, 2, 2}
		out, err := NormalizeVector(in)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float32{1.0 / 3, 2.0 / 3, 2.0 / 3}, out, 1e-6)
		assert.Equal(t, []float32{1, 2, 2}, in, "input is not modified")
	})

	t.Run("already unit", func(t *testing.T) {
		out, err := NormalizeVector([]float32{0, 1, 0})
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 1, 0}, out)
	})

	t.Run("negative components", func(t *testing.T) {
		out, err := NormalizeVector([]float32{-3, 4})
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float32{-0.6, 0.8}, out, 1e-6)
	})

	t.Run("zero vector", func(t *testing.T) {
		_, err := NormalizeVector([]float32{0, 0, 0})
		assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	})

	t.Run("empty vector", func(t *testing.T) {
		_, err := NormalizeVector(nil)
		assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	})
}
