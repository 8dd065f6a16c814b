package reembed

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/lumina/ai/sparse"
	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/storage"
	"github.com/poiesic/lumina/storage/badger"
	"github.com/stretchr/testify/require"
)

// mockEmbedder returns unnormalized 3-dimensional vectors by default.
type mockEmbedder struct {
	embedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
	calls          int
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.embedTextsFunc != nil {
		return m.embedTextsFunc(ctx, texts)
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1.0, 2.0, 2.0} // magnitude = 3.0
	}
	return result, nil
}

func setupTestDB(t *testing.T) storage.IndexRepository {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos.Index
}

func newEncoder(t *testing.T) *sparse.Encoder {
	t.Helper()
	enc, err := sparse.NewEncoder()
	require.NoError(t, err)
	return enc
}

// seedRecords writes n records for tenant with 2-dimensional vectors and
// empty sparse vectors, one Upsert per record so Seq follows position.
func seedRecords(t *testing.T, repo storage.IndexRepository, tenant string, n int) []*core.VectorRecord {
	t.Helper()
	ctx := context.Background()
	var out []*core.VectorRecord
	for i := range n {
		url := fmt.Sprintf("https://%s.test/page", tenant)
		written, err := repo.Upsert(ctx, tenant, &core.VectorRecord{
			ID:        core.UnitID(url, i),
			TenantID:  tenant,
			SourceURL: url,
			Text:      fmt.Sprintf("unit %d about pricing", i),
			Position:  i,
			Dense:     []float32{1, 0},
		})
		require.NoError(t, err)
		out = append(out, written...)
	}
	require.NoError(t, repo.SaveIndexMeta(ctx, &storage.IndexMeta{Dimension: 2, VocabularyID: "old-vocab"}))
	return out
}

func loadAll(t *testing.T, repo storage.IndexRepository, tenant string) []*core.VectorRecord {
	t.Helper()
	records, err := NewRecordIterator(repo, 10).Load(context.Background(), tenant)
	require.NoError(t, err)
	return records
}
