package reembed

import (
	"fmt"
	"math"

	"github.com/poiesic/lumina/core"
)

// NormalizeVector returns v scaled to unit length. Zero and empty vectors
// cannot stand in for an embedding and are rejected.
func NormalizeVector(v []float32) ([]float32, error) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil, fmt.Errorf("%w: zero-norm embedding", core.ErrEmbeddingUnavailable)
	}

	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out, nil
}
