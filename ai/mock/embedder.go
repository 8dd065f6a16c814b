package mock

import (
	"context"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultDimension is the vector length produced by MockEmbedder.
const DefaultDimension = 384

// MockEmbedder stands in for ai.Embedder. Unset Func fields fall back to
// DeterministicVector so identical text always maps to the identical vector.
type MockEmbedder struct {
	EmbedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the length of generated vectors.
	Dimension int

	mu       sync.Mutex
	calls    int
	embedded []string
}

// NewMockEmbedder returns a *MockEmbedder producing DefaultDimension vectors.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Dimension: DefaultDimension}
}

func (m *MockEmbedder) record(texts ...string) {
	m.mu.Lock()
	m.calls++
	m.embedded = append(m.embedded, texts...)
	m.mu.Unlock()
}

// EmbedText embeds a single text.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.record(text)
	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return DeterministicVector(text, m.Dimension), nil
}

// EmbedTexts embeds a batch in input order.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.record(texts...)
	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = DeterministicVector(text, m.Dimension)
	}
	return out, nil
}

// CallCount returns how many EmbedText and EmbedTexts calls were made.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Embedded returns every text passed to the embedder, in call order.
func (m *MockEmbedder) Embedded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.embedded...)
}

// Reset clears recorded calls and injected behavior.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	m.calls = 0
	m.embedded = nil
	m.mu.Unlock()
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

// DeterministicVector derives a unit-length, strictly positive vector from
// the xxhash of text. Distinct texts give distinct vectors with
// overwhelming probability.
func DeterministicVector(text string, dim int) []float32 {
	state := xxhash.Sum64String(text)
	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		// splitmix64
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z ^= z >> 31

		v := float64(z>>11)/float64(1<<53) + 0.001
		vec[i] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	scale := 1 / math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * scale)
	}
	return vec
}
