package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/chunk"
	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/fetch"
	"github.com/poiesic/lumina/index"
)

// DefaultBatchSize is the number of units embedded per request.
const DefaultBatchSize = 32

// Request names a page to ingest for a tenant.
type Request struct {
	URL    string
	Tenant string // empty selects core.DefaultTenantID
}

// Result describes the outcome of one ingestion.
type Result struct {
	URL           string
	Tenant        string
	ChunksCreated int
	Stored        int
	Stages        []Stage // every stage entered, ending in StageDone or StageFailed
	Duration      time.Duration
}

// Outcome pairs a Result with its error for batch ingestion.
type Outcome struct {
	Result *Result
	Err    error
}

// StageFunc observes stage transitions of a single ingestion.
type StageFunc func(stage Stage)

// Pipeline orchestrates the ingestion of web pages into a hybrid index.
// A Pipeline is safe for concurrent use; documents are independent.
type Pipeline struct {
	fetcher     fetch.Fetcher
	hybrid      *index.Hybrid
	splitter    *chunk.Splitter
	batchSize   int
	concurrency int
	processors  []processor
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithChunking sets the unit target size and overlap in characters.
// Default is chunk.DefaultTarget and chunk.DefaultOverlap.
func WithChunking(target, overlap int) Option {
	return func(p *Pipeline) error {
		splitter, err := chunk.New(target, overlap)
		if err != nil {
			return err
		}
		p.splitter = splitter
		return nil
	}
}

// WithBatchSize sets how many units are embedded per request.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithConcurrency sets how many documents IngestAll processes at once.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.concurrency = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline writing to hybrid.
func NewPipeline(fetcher fetch.Fetcher, hybrid *index.Hybrid, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if hybrid == nil {
		return nil, ErrHybridRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	// Default concurrency
	concurrency := runtime.NumCPU() / 2
	if concurrency < 1 {
		concurrency = 1
	}

	splitter, err := chunk.New(chunk.DefaultTarget, chunk.DefaultOverlap)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		fetcher:     fetcher,
		hybrid:      hybrid,
		splitter:    splitter,
		batchSize:   DefaultBatchSize,
		concurrency: concurrency,
		logger:      slog.Default().With("component", "ingestion"),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			return nil, optErr
		}
	}

	encoder := provider.SparseEncoder()
	if encoder.VocabularyID() != hybrid.VocabularyID() {
		return nil, fmt.Errorf("%w: encoder vocabulary %q does not match index %q",
			core.ErrConfiguration, encoder.VocabularyID(), hybrid.VocabularyID())
	}

	// Create processors after options are applied (so they get final config)
	p.processors = []processor{
		&fetchProcessor{fetcher: fetcher, logger: p.logger},
		&normalizeProcessor{},
		&chunkProcessor{splitter: p.splitter},
		&embeddingProcessor{
			embedder:  provider.Embedder(),
			encoder:   encoder,
			batchSize: p.batchSize,
			dimension: hybrid.Dimension,
			logger:    p.logger.With("processor", "embeddings"),
		},
		&indexProcessor{hybrid: hybrid},
	}
	return p, nil
}

// Ingest runs one document through every stage. The returned Result is
// never nil and records the stages entered; on failure the error is a
// *StageError and the index is unchanged.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	return p.IngestWithObserver(ctx, req, nil)
}

// IngestWithObserver is Ingest with a callback invoked on every stage entry.
func (p *Pipeline) IngestWithObserver(ctx context.Context, req Request, observe StageFunc) (*Result, error) {
	doc := &document{
		url:    strings.TrimSpace(req.URL),
		tenant: strings.TrimSpace(req.Tenant),
	}
	if doc.tenant == "" {
		doc.tenant = core.DefaultTenantID
	}
	result := &Result{URL: doc.url, Tenant: doc.tenant}
	start := time.Now()
	enter := func(stage Stage) {
		result.Stages = append(result.Stages, stage)
		if observe != nil {
			observe(stage)
		}
	}

	p.logger.Info("ingesting", "url", doc.url, "tenant", doc.tenant)
	for _, proc := range p.processors {
		stage := proc.stage()
		enter(stage)

		err := ctx.Err()
		if err == nil {
			err = proc.process(ctx, doc)
		}
		if err != nil {
			enter(StageFailed)
			result.Duration = time.Since(start)
			p.logger.Error("ingestion failed", "url", doc.url, "tenant", doc.tenant, "stage", stage, "err", err)
			return result, &StageError{URL: doc.url, Tenant: doc.tenant, Stage: stage, Err: err}
		}
	}
	enter(StageDone)

	result.ChunksCreated = len(doc.units)
	result.Stored = doc.stored
	result.Duration = time.Since(start)
	p.logger.Info("ingested", "url", doc.url, "tenant", doc.tenant,
		"chunks", result.ChunksCreated, "stored", result.Stored, "duration", result.Duration)
	return result, nil
}

// IngestAll ingests reqs with bounded parallelism. Documents fail
// independently; outcomes are returned in request order.
func (p *Pipeline) IngestAll(ctx context.Context, reqs []Request) []Outcome {
	outcomes := make([]Outcome, len(reqs))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			result, err := p.Ingest(ctx, req)
			outcomes[i] = Outcome{Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
