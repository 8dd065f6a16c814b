package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/poiesic/lumina/ai/sparse"
	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/storage"
	"github.com/poiesic/lumina/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHybrid(t *testing.T, opts ...Option) (*Hybrid, *sparse.Encoder) {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	encoder, err := sparse.NewEncoder()
	require.NoError(t, err)

	h, err := Open(context.Background(), repos.Index, 0, encoder.VocabularyID(), opts...)
	require.NoError(t, err)
	return h, encoder
}

func makeRecord(t *testing.T, enc *sparse.Encoder, tenant, url string, pos int, text string, dense []float32) *core.VectorRecord {
	t.Helper()
	sv, err := enc.EncodeDocument(text)
	require.NoError(t, err)
	return &core.VectorRecord{
		ID:        core.UnitID(url, pos),
		TenantID:  tenant,
		SourceURL: url,
		Text:      text,
		Position:  pos,
		Dense:     dense,
		Sparse:    sv,
	}
}

func queryFor(t *testing.T, enc *sparse.Encoder, tenant, text string, dense []float32) Query {
	t.Helper()
	sv, err := enc.EncodeQuery(text)
	require.NoError(t, err)
	return Query{Tenant: tenant, Dense: dense, Sparse: sv}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	t.Run("nil repository", func(t *testing.T) {
		_, err := Open(ctx, nil, 3, "vocab")
		assert.Equal(t, ErrIndexRepositoryRequired, err)
	})

	t.Run("empty vocabulary", func(t *testing.T) {
		_, err := Open(ctx, repos.Index, 3, "")
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("invalid weights", func(t *testing.T) {
		_, err := Open(ctx, repos.Index, 3, "vocab", WithWeights(0, 0))
		assert.ErrorIs(t, err, core.ErrConfiguration)

		_, err = Open(ctx, repos.Index, 3, "vocab", WithWeights(-1, 1))
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		h, err := Open(ctx, repos.Index, 3, "vocab", WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, h)
	})

	t.Run("metadata written on first write and checked on reopen", func(t *testing.T) {
		h, err := Open(ctx, repos.Index, 0, "vocab", WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.Equal(t, 0, h.Dimension())

		_, err = h.Upsert(ctx, "acme", &core.VectorRecord{
			ID: 1, TenantID: "acme", SourceURL: "https://acme.test", Text: "hello", Dense: []float32{1, 0, 0},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, h.Dimension())

		reopened, err := Open(ctx, repos.Index, 0, "vocab")
		require.NoError(t, err)
		assert.Equal(t, 3, reopened.Dimension())

		_, err = Open(ctx, repos.Index, 3, "vocab")
		require.NoError(t, err)

		_, err = Open(ctx, repos.Index, 768, "vocab")
		assert.ErrorIs(t, err, core.ErrConfiguration)
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)

		_, err = Open(ctx, repos.Index, 3, "other-vocab")
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})
}

func TestHybrid_Upsert(t *testing.T) {
	ctx := context.Background()
	h, enc := newTestHybrid(t)

	t.Run("writes records", func(t *testing.T) {
		n, err := h.Upsert(ctx, "acme",
			makeRecord(t, enc, "acme", "https://acme.test/a", 0, "first", []float32{1, 0}),
			makeRecord(t, enc, "acme", "https://acme.test/a", 1, "second", []float32{0, 1}),
		)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("no records", func(t *testing.T) {
		n, err := h.Upsert(ctx, "acme")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("empty tenant", func(t *testing.T) {
		_, err := h.Upsert(ctx, "", makeRecord(t, enc, "acme", "u", 0, "x", []float32{1, 0}))
		assert.ErrorIs(t, err, core.ErrEmptyTenant)
	})

	t.Run("wrong dimension", func(t *testing.T) {
		_, err := h.Upsert(ctx, "acme", makeRecord(t, enc, "acme", "u", 0, "x", []float32{1, 0, 0}))
		assert.ErrorIs(t, err, core.ErrInvalidRecord)
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})

	t.Run("tenant mismatch is not an availability failure", func(t *testing.T) {
		_, err := h.Upsert(ctx, "globex", makeRecord(t, enc, "acme", "u", 0, "x", []float32{1, 0}))
		require.Error(t, err)
		assert.NotErrorIs(t, err, core.ErrIndexUnavailable)
	})
}

func TestHybrid_ReplaceSource(t *testing.T) {
	ctx := context.Background()
	h, enc := newTestHybrid(t)
	url := "https://acme.test/pricing"

	_, err := h.Upsert(ctx, "acme",
		makeRecord(t, enc, "acme", url, 0, "old one", []float32{1, 0}),
		makeRecord(t, enc, "acme", url, 1, "old two", []float32{1, 0}),
		makeRecord(t, enc, "acme", url, 2, "old three", []float32{1, 0}),
		makeRecord(t, enc, "acme", "https://acme.test/about", 0, "about us", []float32{0, 1}),
	)
	require.NoError(t, err)

	n, err := h.ReplaceSource(ctx, "acme", url, makeRecord(t, enc, "acme", url, 0, "new pricing", []float32{1, 0}))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RecordsByTenant["acme"])

	results, err := h.Query(ctx, Query{Tenant: "acme", Dense: []float32{1, 0}, TopK: 10})
	require.NoError(t, err)
	var texts []string
	for _, r := range results {
		texts = append(texts, r.Record.Text)
	}
	assert.ElementsMatch(t, []string{"new pricing", "about us"}, texts)

	t.Run("empty url", func(t *testing.T) {
		_, err := h.ReplaceSource(ctx, "acme", "")
		assert.ErrorIs(t, err, core.ErrInvalidRecord)
	})

	t.Run("record from another source", func(t *testing.T) {
		_, err := h.ReplaceSource(ctx, "acme", url, makeRecord(t, enc, "acme", "https://elsewhere", 0, "x", []float32{1, 0}))
		require.Error(t, err)
		assert.NotErrorIs(t, err, core.ErrIndexUnavailable)
	})
}

func TestHybrid_Query(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown tenant is empty", func(t *testing.T) {
		h, _ := newTestHybrid(t)
		results, err := h.Query(ctx, Query{Tenant: "nobody", Dense: []float32{1, 0}})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("empty tenant", func(t *testing.T) {
		h, _ := newTestHybrid(t)
		_, err := h.Query(ctx, Query{Dense: []float32{1, 0}})
		assert.ErrorIs(t, err, core.ErrEmptyTenant)
	})

	t.Run("tenant isolation", func(t *testing.T) {
		h, enc := newTestHybrid(t)
		_, err := h.Upsert(ctx, "acme", makeRecord(t, enc, "acme", "https://shared.test", 0, "acme pricing", []float32{1, 0}))
		require.NoError(t, err)
		_, err = h.Upsert(ctx, "globex", makeRecord(t, enc, "globex", "https://shared.test", 0, "globex pricing", []float32{1, 0}))
		require.NoError(t, err)

		for _, tenant := range []string{"acme", "globex"} {
			results, err := h.Query(ctx, queryFor(t, enc, tenant, "pricing", []float32{1, 0}))
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, tenant, results[0].Record.TenantID)
			assert.Equal(t, tenant+" pricing", results[0].Record.Text)
		}
	})

	t.Run("pricing question ranks pricing unit first", func(t *testing.T) {
		h, enc := newTestHybrid(t)
		same := []float32{0.5, 0.5}
		_, err := h.Upsert(ctx, "acme",
			makeRecord(t, enc, "acme", "https://acme.test", 0, "Our team has twenty years of experience.", same),
			makeRecord(t, enc, "acme", "https://acme.test", 1, "Pricing starts at $10 per month for the basic plan.", same),
			makeRecord(t, enc, "acme", "https://acme.test", 2, "Contact support any time by phone.", same),
		)
		require.NoError(t, err)

		results, err := h.Query(ctx, queryFor(t, enc, "acme", "What is your pricing?", same))
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Contains(t, results[0].Record.Text, "Pricing")
		assert.Greater(t, results[0].SparseScore, results[1].SparseScore)
	})

	t.Run("results are ordered and bounded by top k", func(t *testing.T) {
		h, enc := newTestHybrid(t)
		vectors := [][]float32{{1, 0}, {0.8, 0.2}, {0.5, 0.5}, {0.2, 0.8}, {0, 1}}
		for i, v := range vectors {
			_, err := h.Upsert(ctx, "acme", makeRecord(t, enc, "acme", "https://acme.test", i, "unit", v))
			require.NoError(t, err)
		}

		results, err := h.Query(ctx, Query{Tenant: "acme", Dense: []float32{1, 0}, TopK: 3})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, 0, results[0].Record.Position)
		assert.Equal(t, 1, results[1].Record.Position)
		assert.Equal(t, 2, results[2].Record.Position)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	})

	t.Run("default top k", func(t *testing.T) {
		h, enc := newTestHybrid(t)
		for i := 0; i < DefaultTopK+3; i++ {
			_, err := h.Upsert(ctx, "acme", makeRecord(t, enc, "acme", "https://acme.test", i, "unit", []float32{1, 1}))
			require.NoError(t, err)
		}
		results, err := h.Query(ctx, Query{Tenant: "acme", Dense: []float32{1, 1}})
		require.NoError(t, err)
		assert.Len(t, results, DefaultTopK)
	})

	t.Run("ties prefer newer records", func(t *testing.T) {
		h, enc := newTestHybrid(t)
		older := makeRecord(t, enc, "acme", "https://acme.test/old", 0, "identical text", []float32{1, 0})
		newer := makeRecord(t, enc, "acme", "https://acme.test/new", 0, "identical text", []float32{1, 0})
		_, err := h.Upsert(ctx, "acme", older)
		require.NoError(t, err)
		_, err = h.Upsert(ctx, "acme", newer)
		require.NoError(t, err)

		results, err := h.Query(ctx, queryFor(t, enc, "acme", "identical", []float32{1, 0}))
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, results[0].Score, results[1].Score)
		assert.Equal(t, "https://acme.test/new", results[0].Record.SourceURL)
	})

	t.Run("deterministic", func(t *testing.T) {
		h, enc := newTestHybrid(t)
		for i, text := range []string{"alpha plan", "beta plan", "gamma plan", "delta"} {
			_, err := h.Upsert(ctx, "acme", makeRecord(t, enc, "acme", "https://acme.test", i, text, []float32{float32(i), 1}))
			require.NoError(t, err)
		}
		q := queryFor(t, enc, "acme", "plan", []float32{1, 1})

		first, err := h.Query(ctx, q)
		require.NoError(t, err)
		for range 5 {
			again, err := h.Query(ctx, q)
			require.NoError(t, err)
			require.Len(t, again, len(first))
			for i := range first {
				assert.Equal(t, first[i].Record.ID, again[i].Record.ID)
				assert.Equal(t, first[i].Score, again[i].Score)
			}
		}
	})

	t.Run("scores do not depend on vector magnitude", func(t *testing.T) {
		h, enc := newTestHybrid(t)
		_, err := h.Upsert(ctx, "acme",
			makeRecord(t, enc, "acme", "https://acme.test", 0, "pricing plans", []float32{0.3, 0.7}),
			makeRecord(t, enc, "acme", "https://acme.test", 1, "company history", []float32{0.9, 0.1}),
		)
		require.NoError(t, err)

		q := queryFor(t, enc, "acme", "pricing", []float32{0.4, 0.6})
		base, err := h.Query(ctx, q)
		require.NoError(t, err)

		q.Dense = []float32{40, 60}
		for i := range q.Sparse.Values {
			q.Sparse.Values[i] *= 25
		}
		scaled, err := h.Query(ctx, q)
		require.NoError(t, err)

		require.Len(t, scaled, len(base))
		for i := range base {
			assert.Equal(t, base[i].Record.ID, scaled[i].Record.ID)
			assert.InDelta(t, base[i].Score, scaled[i].Score, 1e-5)
		}
	})

	t.Run("scores are bounded by the weights", func(t *testing.T) {
		h, enc := newTestHybrid(t, WithWeights(0.5, 0.5))
		_, err := h.Upsert(ctx, "acme", makeRecord(t, enc, "acme", "https://acme.test", 0, "pricing", []float32{1, 0}))
		require.NoError(t, err)

		results, err := h.Query(ctx, queryFor(t, enc, "acme", "pricing", []float32{1, 0}))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 1.0, results[0].Score, 1e-5)

		results, err = h.Query(ctx, queryFor(t, enc, "acme", "unrelated", []float32{-1, 0}))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Zero(t, results[0].Score)
	})

	t.Run("rare terms outweigh common ones", func(t *testing.T) {
		h, enc := newTestHybrid(t)
		same := []float32{1, 0}
		// The rare unit is the oldest, so a tie would rank it last.
		_, err := h.Upsert(ctx, "acme", makeRecord(t, enc, "acme", "https://acme.test", 0, "plumbing", same))
		require.NoError(t, err)
		for i := 1; i <= 4; i++ {
			_, err := h.Upsert(ctx, "acme", makeRecord(t, enc, "acme", "https://acme.test", i, "service", same))
			require.NoError(t, err)
		}

		q := queryFor(t, enc, "acme", "plumbing service", same)
		q.DenseWeight, q.SparseWeight = 0, 1
		results, err := h.Query(ctx, q)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "plumbing", results[0].Record.Text)
		assert.Greater(t, results[0].SparseScore, 2*results[1].SparseScore)
	})

	t.Run("query terms absent from the tenant are ignored", func(t *testing.T) {
		h, enc := newTestHybrid(t)
		_, err := h.Upsert(ctx, "acme", makeRecord(t, enc, "acme", "https://acme.test", 0, "pricing", []float32{1, 0}))
		require.NoError(t, err)

		results, err := h.Query(ctx, queryFor(t, enc, "acme", "pricing zeppelin", []float32{1, 0}))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 1.0, results[0].SparseScore, 1e-5)
	})

	t.Run("query weights override index weights", func(t *testing.T) {
		h, enc := newTestHybrid(t)
		_, err := h.Upsert(ctx, "acme",
			makeRecord(t, enc, "acme", "https://acme.test", 0, "pricing", []float32{0, 1}),
			makeRecord(t, enc, "acme", "https://acme.test", 1, "history", []float32{1, 0}),
		)
		require.NoError(t, err)

		q := queryFor(t, enc, "acme", "pricing", []float32{1, 0})
		q.DenseWeight, q.SparseWeight = 0, 1
		results, err := h.Query(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, "pricing", results[0].Record.Text)

		q.DenseWeight, q.SparseWeight = 1, 0
		results, err = h.Query(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, "history", results[0].Record.Text)
	})

	t.Run("query dimension mismatch", func(t *testing.T) {
		h, enc := newTestHybrid(t)
		_, err := h.Upsert(ctx, "acme", makeRecord(t, enc, "acme", "https://acme.test", 0, "x", []float32{1, 0}))
		require.NoError(t, err)

		_, err = h.Query(ctx, Query{Tenant: "acme", Dense: []float32{1, 0, 0}})
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})
}

type recordingMonitor struct {
	started  bool
	scanned  int
	finished []*core.SearchResult
}

func (m *recordingMonitor) Start(_ Query)                       { m.started = true }
func (m *recordingMonitor) AfterScan(scanned, _ int)            { m.scanned = scanned }
func (m *recordingMonitor) Finish(results []*core.SearchResult) { m.finished = results }

func TestHybrid_QueryWithMonitor(t *testing.T) {
	ctx := context.Background()
	h, enc := newTestHybrid(t)
	for i := range 4 {
		_, err := h.Upsert(ctx, "acme", makeRecord(t, enc, "acme", "https://acme.test", i, "unit", []float32{1, float32(i)}))
		require.NoError(t, err)
	}

	monitor := &recordingMonitor{}
	results, err := h.QueryWithMonitor(ctx, Query{Tenant: "acme", Dense: []float32{1, 0}, TopK: 2}, monitor)
	require.NoError(t, err)

	assert.True(t, monitor.started)
	assert.Equal(t, 4, monitor.scanned)
	assert.Equal(t, results, monitor.finished)
}

func TestHybrid_DeleteAndStats(t *testing.T) {
	ctx := context.Background()
	h, enc := newTestHybrid(t)
	_, err := h.Upsert(ctx, "acme",
		makeRecord(t, enc, "acme", "https://acme.test/a", 0, "a", []float32{1, 0}),
		makeRecord(t, enc, "acme", "https://acme.test/b", 0, "b", []float32{1, 0}),
	)
	require.NoError(t, err)
	_, err = h.Upsert(ctx, "globex", makeRecord(t, enc, "globex", "https://globex.test", 0, "g", []float32{1, 0}))
	require.NoError(t, err)

	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRecords)
	assert.Equal(t, 2, stats.Dimension)
	assert.Equal(t, enc.VocabularyID(), stats.VocabularyID)

	n, err := h.DeleteSource(ctx, "acme", "https://acme.test/a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = h.DeleteTenant(ctx, "globex")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err = h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRecords)
	assert.Equal(t, 1, stats.RecordsByTenant["acme"])

	_, err = h.DeleteTenant(ctx, "")
	assert.ErrorIs(t, err, core.ErrEmptyTenant)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
		contains    string
	}{
		{"tenant mismatch passes through", storage.ErrTenantMismatch, false, ""},
		{"cancellation passes through", context.Canceled, false, ""},
		{"batch too large", fmt.Errorf("%w: 9000 records", storage.ErrBatchTooLarge), true, "chunking.size"},
		{"other storage failure", errors.New("disk full"), true, "writing records"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := writeError(tt.err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(err, core.ErrIndexUnavailable))
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}
