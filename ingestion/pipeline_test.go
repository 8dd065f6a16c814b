package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/ai/mock"
	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/fetch"
	"github.com/poiesic/lumina/index"
	"github.com/poiesic/lumina/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pricingPage = `<html><head><title>Acme</title><script>var x = 1;</script></head>
<body>
<nav>Home | About | Blog</nav>
<main>
<h1>Acme Consulting</h1>
<p>We build custom software for logistics companies.</p>
<h2>Pricing</h2>
<p>Pricing starts at $10 per month for the basic plan.</p>
<h2>Contact</h2>
<p>Call our office in Portland.</p>
</main>
<footer>Copyright Acme</footer>
</body></html>`

// fakeFetcher serves canned markup per URL.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls int

	// FetchFunc overrides the canned pages if set.
	FetchFunc func(ctx context.Context, url string) (*fetch.Page, error)
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*fetch.Page, error) {
	f.mu.Lock()
	f.calls++
	markup, ok := f.pages[url]
	fn := f.FetchFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, url)
	}
	if !ok {
		return nil, fmt.Errorf("%w: 404 Not Found", core.ErrFetch)
	}
	return &fetch.Page{URL: url, FinalURL: url, HTML: markup}, nil
}

func (f *fakeFetcher) set(url, markup string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = markup
}

type testEnv struct {
	fetcher  *fakeFetcher
	hybrid   *index.Hybrid
	provider ai.AIProvider
	pipeline *Pipeline
}

func setupPipeline(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	provider := mock.NewMockProvider()
	hybrid, err := index.Open(context.Background(), repos.Index, 0, provider.SparseEncoder().VocabularyID())
	require.NoError(t, err)

	fetcher := newFakeFetcher(map[string]string{"https://acme.test/": pricingPage})
	opts = append([]Option{WithChunking(60, 10)}, opts...)
	p, err := NewPipeline(fetcher, hybrid, provider, opts...)
	require.NoError(t, err)

	return &testEnv{fetcher: fetcher, hybrid: hybrid, provider: provider, pipeline: p}
}

func (e *testEnv) count(t *testing.T, tenant string) int {
	t.Helper()
	stats, err := e.hybrid.Stats(context.Background())
	require.NoError(t, err)
	return stats.RecordsByTenant[tenant]
}

func TestNewPipeline(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	provider := mock.NewMockProvider()
	hybrid, err := index.Open(context.Background(), repos.Index, 0, provider.SparseEncoder().VocabularyID())
	require.NoError(t, err)
	fetcher := newFakeFetcher(nil)

	t.Run("valid configuration", func(t *testing.T) {
		p, err := NewPipeline(fetcher, hybrid, provider)
		require.NoError(t, err)
		assert.NotNil(t, p)
		assert.Equal(t, DefaultBatchSize, p.batchSize)
		assert.GreaterOrEqual(t, p.concurrency, 1)
	})

	t.Run("with options", func(t *testing.T) {
		p, err := NewPipeline(fetcher, hybrid, provider,
			WithBatchSize(0), WithConcurrency(-3), WithLogger(nil), WithChunking(200, 20))
		require.NoError(t, err)
		assert.Equal(t, 1, p.batchSize)
		assert.Equal(t, 1, p.concurrency)
		assert.Equal(t, 200, p.splitter.Target())
	})

	t.Run("invalid chunking", func(t *testing.T) {
		_, err := NewPipeline(fetcher, hybrid, provider, WithChunking(50, 50))
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("nil fetcher", func(t *testing.T) {
		_, err := NewPipeline(nil, hybrid, provider)
		assert.Equal(t, ErrFetcherRequired, err)
	})

	t.Run("nil hybrid", func(t *testing.T) {
		_, err := NewPipeline(fetcher, nil, provider)
		assert.Equal(t, ErrHybridRequired, err)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewPipeline(fetcher, hybrid, nil)
		assert.Equal(t, ErrAIProviderRequired, err)
	})

	t.Run("vocabulary mismatch", func(t *testing.T) {
		other, err := index.Open(context.Background(), repos.Index, 0, "some-other-vocabulary")
		require.NoError(t, err)
		_, err = NewPipeline(fetcher, other, provider)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})
}

func TestIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("indexes a page", func(t *testing.T) {
		env := setupPipeline(t)

		result, err := env.pipeline.Ingest(ctx, Request{URL: "https://acme.test/", Tenant: "acme"})
		require.NoError(t, err)

		assert.Equal(t, "https://acme.test/", result.URL)
		assert.Equal(t, "acme", result.Tenant)
		assert.Greater(t, result.ChunksCreated, 1)
		assert.Equal(t, result.ChunksCreated, result.Stored)
		assert.Equal(t, []Stage{
			StageFetching, StageNormalizing, StageChunking, StageEmbedding, StageIndexing, StageDone,
		}, result.Stages)
		assert.Equal(t, result.Stored, env.count(t, "acme"))
	})

	t.Run("pricing question finds pricing unit", func(t *testing.T) {
		env := setupPipeline(t)
		_, err := env.pipeline.Ingest(ctx, Request{URL: "https://acme.test/", Tenant: "acme"})
		require.NoError(t, err)

		retriever, err := index.NewRetriever(env.hybrid, env.provider.Embedder(), env.provider.SparseEncoder(), 3)
		require.NoError(t, err)
		results, err := retriever.Retrieve(ctx, "acme", "What is your pricing?")
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Contains(t, results[0].Record.Text, "Pricing")
		for _, r := range results {
			assert.NotContains(t, r.Record.Text, "var x")
			assert.NotContains(t, r.Record.Text, "Home | About")
		}
	})

	t.Run("re-ingest leaves one set", func(t *testing.T) {
		env := setupPipeline(t)
		first, err := env.pipeline.Ingest(ctx, Request{URL: "https://acme.test/", Tenant: "acme"})
		require.NoError(t, err)

		env.fetcher.set("https://acme.test/", "<main><p>We moved.</p></main>")
		second, err := env.pipeline.Ingest(ctx, Request{URL: "https://acme.test/", Tenant: "acme"})
		require.NoError(t, err)

		assert.Greater(t, first.Stored, second.Stored)
		assert.Equal(t, 1, second.Stored)
		assert.Equal(t, 1, env.count(t, "acme"))

		again, err := env.pipeline.Ingest(ctx, Request{URL: "https://acme.test/", Tenant: "acme"})
		require.NoError(t, err)
		assert.Equal(t, 1, again.Stored)
		assert.Equal(t, 1, env.count(t, "acme"))
	})

	t.Run("same url for two tenants", func(t *testing.T) {
		env := setupPipeline(t)
		a, err := env.pipeline.Ingest(ctx, Request{URL: "https://acme.test/", Tenant: "acme"})
		require.NoError(t, err)
		b, err := env.pipeline.Ingest(ctx, Request{URL: "https://acme.test/", Tenant: "globex"})
		require.NoError(t, err)

		assert.Equal(t, a.Stored, env.count(t, "acme"))
		assert.Equal(t, b.Stored, env.count(t, "globex"))
	})

	t.Run("empty tenant uses default", func(t *testing.T) {
		env := setupPipeline(t)
		result, err := env.pipeline.Ingest(ctx, Request{URL: " https://acme.test/ "})
		require.NoError(t, err)
		assert.Equal(t, core.DefaultTenantID, result.Tenant)
		assert.Equal(t, "https://acme.test/", result.URL)
		assert.Equal(t, result.Stored, env.count(t, core.DefaultTenantID))
	})

	t.Run("observer sees every stage", func(t *testing.T) {
		env := setupPipeline(t)
		var seen []Stage
		result, err := env.pipeline.IngestWithObserver(ctx, Request{URL: "https://acme.test/", Tenant: "acme"},
			func(stage Stage) { seen = append(seen, stage) })
		require.NoError(t, err)
		assert.Equal(t, result.Stages, seen)
	})
}

func TestIngest_Failures(t *testing.T) {
	ctx := context.Background()

	// seed ingests the page once so failures can be checked against prior state.
	seed := func(t *testing.T, env *testEnv) int {
		result, err := env.pipeline.Ingest(ctx, Request{URL: "https://acme.test/", Tenant: "acme"})
		require.NoError(t, err)
		return result.Stored
	}

	assertStageError := func(t *testing.T, err error, stage Stage, sentinel error) {
		t.Helper()
		require.Error(t, err)
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, stage, stageErr.Stage)
		assert.Equal(t, "acme", stageErr.Tenant)
		assert.ErrorIs(t, err, sentinel)
	}

	t.Run("invalid url", func(t *testing.T) {
		env := setupPipeline(t)
		result, err := env.pipeline.Ingest(ctx, Request{URL: "ftp://acme.test/", Tenant: "acme"})
		assertStageError(t, err, StageFetching, core.ErrFetch)
		assert.Equal(t, []Stage{StageFetching, StageFailed}, result.Stages)
		assert.Zero(t, env.fetcher.calls)
	})

	t.Run("fetch failure keeps prior records", func(t *testing.T) {
		env := setupPipeline(t)
		stored := seed(t, env)

		env.fetcher.FetchFunc = func(ctx context.Context, url string) (*fetch.Page, error) {
			return nil, errors.New("connection reset")
		}
		result, err := env.pipeline.Ingest(ctx, Request{URL: "https://acme.test/", Tenant: "acme"})
		assertStageError(t, err, StageFetching, core.ErrFetch)
		assert.Equal(t, StageFailed, result.Stages[len(result.Stages)-1])
		assert.Equal(t, stored, env.count(t, "acme"))
	})

	t.Run("empty extraction keeps prior records", func(t *testing.T) {
		env := setupPipeline(t)
		stored := seed(t, env)

		env.fetcher.set("https://acme.test/", "<html><body><script>only()</script></body></html>")
		_, err := env.pipeline.Ingest(ctx, Request{URL: "https://acme.test/", Tenant: "acme"})
		assertStageError(t, err, StageNormalizing, core.ErrExtractionEmpty)
		assert.Equal(t, stored, env.count(t, "acme"))
	})

	t.Run("embedding failure mid document writes nothing", func(t *testing.T) {
		env := setupPipeline(t, WithBatchSize(1))
		stored := seed(t, env)

		embedder := env.provider.(*mock.MockProvider).GetMockEmbedder()
		calls := 0
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("upstream 503")
			}
			return [][]float32{mock.DeterministicVector(texts[0], mock.DefaultDimension)}, nil
		}
		env.fetcher.set("https://acme.test/", "<main><p>"+longParagraph(5)+"</p></main>")

		_, err := env.pipeline.Ingest(ctx, Request{URL: "https://acme.test/", Tenant: "acme"})
		assertStageError(t, err, StageEmbedding, core.ErrEmbeddingUnavailable)
		assert.Equal(t, 2, calls)
		assert.Equal(t, stored, env.count(t, "acme"))
	})

	t.Run("zero vector is rejected", func(t *testing.T) {
		env := setupPipeline(t)
		embedder := env.provider.(*mock.MockProvider).GetMockEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range out {
				out[i] = make([]float32, mock.DefaultDimension)
			}
			return out, nil
		}

		_, err := env.pipeline.Ingest(ctx, Request{URL: "https://acme.test/", Tenant: "acme"})
		assertStageError(t, err, StageEmbedding, core.ErrEmbeddingUnavailable)
		assert.Zero(t, env.count(t, "acme"))
	})

	t.Run("short embedding batch", func(t *testing.T) {
		env := setupPipeline(t)
		embedder := env.provider.(*mock.MockProvider).GetMockEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{mock.DeterministicVector("x", mock.DefaultDimension)}, nil
		}

		_, err := env.pipeline.Ingest(ctx, Request{URL: "https://acme.test/", Tenant: "acme"})
		assertStageError(t, err, StageEmbedding, core.ErrEmbeddingUnavailable)
	})

	t.Run("cancelled context", func(t *testing.T) {
		env := setupPipeline(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := env.pipeline.Ingest(cctx, Request{URL: "https://acme.test/", Tenant: "acme"})
		assertStageError(t, err, StageFetching, context.Canceled)
		assert.Zero(t, env.fetcher.calls)
	})
}

func TestIngestAll(t *testing.T) {
	env := setupPipeline(t, WithConcurrency(2), WithLogger(slog.Default()))
	env.fetcher.set("https://acme.test/about", "<article><h1>About</h1><p>Family owned since 1999.</p></article>")

	outcomes := env.pipeline.IngestAll(context.Background(), []Request{
		{URL: "https://acme.test/", Tenant: "acme"},
		{URL: "https://acme.test/missing", Tenant: "acme"},
		{URL: "https://acme.test/about", Tenant: "acme"},
	})
	require.Len(t, outcomes, 3)

	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, "https://acme.test/", outcomes[0].Result.URL)

	assert.ErrorIs(t, outcomes[1].Err, core.ErrFetch)
	assert.Equal(t, "https://acme.test/missing", outcomes[1].Result.URL)

	assert.NoError(t, outcomes[2].Err)
	assert.Equal(t, outcomes[0].Result.Stored+outcomes[2].Result.Stored, env.count(t, "acme"))
}

func TestStage(t *testing.T) {
	assert.Equal(t, "embedding", StageEmbedding.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
	assert.True(t, StageDone.Terminal())
	assert.True(t, StageFailed.Terminal())
	assert.False(t, StageIndexing.Terminal())

	err := &StageError{URL: "https://acme.test/", Tenant: "acme", Stage: StageIndexing, Err: core.ErrIndexUnavailable}
	assert.Contains(t, err.Error(), "indexing")
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)
}

// longParagraph returns n sentences that together exceed the test chunk size.
func longParagraph(n int) string {
	s := ""
	for i := range n {
		s += fmt.Sprintf("Sentence number %d talks about consulting services in depth. ", i)
	}
	return s
}
