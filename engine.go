// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package lumina wires the storage, AI, index, ingestion and conversation
// packages into one Engine built from a config.Config.
package lumina

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/ai/openai"
	"github.com/poiesic/lumina/config"
	"github.com/poiesic/lumina/conversation"
	"github.com/poiesic/lumina/fetch"
	"github.com/poiesic/lumina/index"
	"github.com/poiesic/lumina/ingestion"
	"github.com/poiesic/lumina/reembed"
	"github.com/poiesic/lumina/server"
	"github.com/poiesic/lumina/storage"
	"github.com/poiesic/lumina/storage/badger"
	"github.com/poiesic/lumina/storage/sqlite"
)

// Engine owns the open stores and the AI provider.
type Engine struct {
	cfg      *config.Config
	repos    *badger.Repositories
	store    *sqlite.Store // nil unless sessions live in SQLite
	sessions storage.SessionRepository
	leads    storage.LeadRepository
	provider ai.AIProvider
	fetcher  fetch.Fetcher
	logger   *slog.Logger

	mu     sync.Mutex
	hybrid *index.Hybrid
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	provider ai.AIProvider
	fetcher  fetch.Fetcher
	inMemory bool
}

// WithProvider replaces the OpenAI-compatible provider built from the config.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithFetcher replaces the fetcher built from the config.
func WithFetcher(fetcher fetch.Fetcher) EngineOption {
	return func(o *engineOptions) {
		o.fetcher = fetcher
	}
}

// WithInMemory keeps every store in memory. Nothing is written to DataDir.
func WithInMemory() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// NewEngine opens the stores named by cfg and creates the AI provider.
// The index itself is opened lazily by Index, so that a re-embedding run
// can proceed while the stored index still has its old shape.
func NewEngine(cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var (
		repos *badger.Repositories
		err   error
	)
	if options.inMemory {
		repos, err = badger.NewMemoryRepositories()
	} else {
		repos, err = badger.OpenRepositories(cfg.IndexPath(), false)
	}
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		repos:    repos,
		sessions: repos.Sessions,
		leads:    repos.Leads,
		logger:   slog.Default().With("component", "engine"),
	}

	if cfg.Storage.Sessions == config.SessionsSQLite {
		path := cfg.SQLitePath()
		if options.inMemory {
			path = sqlite.MemoryPath
		}
		store, err := sqlite.NewStore(path)
		if err != nil {
			repos.Close()
			return nil, err
		}
		e.store = store
		e.sessions = store.Sessions()
		e.leads = store.Leads()
	}

	e.provider = options.provider
	if e.provider == nil {
		provider, err := openai.NewProvider(cfg.Provider(), cfg.AI.EmbeddingCache)
		if err != nil {
			e.closeStores()
			return nil, err
		}
		e.provider = provider
	}

	e.fetcher = options.fetcher
	if e.fetcher == nil {
		fetcher, err := newFetcher(cfg)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.fetcher = fetcher
	}
	return e, nil
}

// newFetcher builds a plain HTTP fetcher, preceded by the rendering
// service when one is configured.
func newFetcher(cfg *config.Config) (fetch.Fetcher, error) {
	opts := func(timeout time.Duration) []fetch.Option {
		o := []fetch.Option{fetch.WithTimeout(timeout)}
		if cfg.Ingestion.RateLimit > 0 {
			o = append(o, fetch.WithRateLimit(cfg.Ingestion.RateLimit, cfg.Ingestion.RateBurst))
		}
		return o
	}
	plain, err := fetch.NewHTTPFetcher(opts(cfg.Ingestion.FetchTimeout)...)
	if err != nil {
		return nil, err
	}
	if cfg.Ingestion.RenderEndpoint == "" {
		return plain, nil
	}
	rendered, err := fetch.NewRenderFetcher(cfg.Ingestion.RenderEndpoint, opts(cfg.Ingestion.RenderTimeout)...)
	if err != nil {
		return nil, err
	}
	return fetch.NewFallbackFetcher(rendered, plain), nil
}

// Close releases the provider and every store.
func (e *Engine) Close() error {
	var errs []error
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := e.closeStores(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) closeStores() error {
	var errs []error
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Error("error closing sqlite store", "err", err)
			errs = append(errs, err)
		}
	}
	if err := e.repos.Close(); err != nil {
		e.logger.Error("error closing badger storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Provider returns the AI provider.
func (e *Engine) Provider() ai.AIProvider {
	return e.provider
}

// Sessions returns the session repository.
func (e *Engine) Sessions() storage.SessionRepository {
	return e.sessions
}

// Leads returns the lead repository.
func (e *Engine) Leads() storage.LeadRepository {
	return e.leads
}

// Index opens the hybrid index on first use and returns it afterwards.
// A stored index whose shape disagrees with the configuration fails with
// core.ErrConfiguration.
func (e *Engine) Index(ctx context.Context) (*index.Hybrid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hybrid != nil {
		return e.hybrid, nil
	}
	hybrid, err := index.Open(ctx, e.repos.Index, e.cfg.AI.Dimension, e.provider.SparseEncoder().VocabularyID(),
		index.WithWeights(float32(e.cfg.Retrieval.DenseWeight), float32(e.cfg.Retrieval.SparseWeight)),
	)
	if err != nil {
		return nil, err
	}
	e.hybrid = hybrid
	return hybrid, nil
}

// NewPipeline creates an ingestion pipeline using the configured chunking.
// opts are applied after the configured ones.
func (e *Engine) NewPipeline(ctx context.Context, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	hybrid, err := e.Index(ctx)
	if err != nil {
		return nil, err
	}
	base := []ingestion.Option{
		ingestion.WithChunking(e.cfg.Chunking.Size, e.cfg.Chunking.Overlap),
		ingestion.WithBatchSize(e.cfg.Ingestion.BatchSize),
	}
	return ingestion.NewPipeline(e.fetcher, hybrid, e.provider, append(base, opts...)...)
}

// NewJobRunner creates a job runner over pipeline with the configured
// number of workers. The caller must Release it.
func (e *Engine) NewJobRunner(pipeline *ingestion.Pipeline) (*ingestion.JobRunner, error) {
	return ingestion.NewJobRunner(pipeline, ingestion.WithWorkers(e.cfg.Ingestion.Workers))
}

// NewRetriever creates a retriever returning the configured top-k.
func (e *Engine) NewRetriever(ctx context.Context) (*index.Retriever, error) {
	hybrid, err := e.Index(ctx)
	if err != nil {
		return nil, err
	}
	return index.NewRetriever(hybrid, e.provider.Embedder(), e.provider.SparseEncoder(), e.cfg.Retrieval.TopK)
}

// NewOrchestrator creates an orchestrator that stores captured leads in
// the lead repository. opts are applied after the configured ones.
func (e *Engine) NewOrchestrator(ctx context.Context, opts ...conversation.Option) (*conversation.Orchestrator, error) {
	retriever, err := e.NewRetriever(ctx)
	if err != nil {
		return nil, err
	}
	sink, err := conversation.NewRepositoryLeadSink(e.leads)
	if err != nil {
		return nil, err
	}
	base := []conversation.Option{
		conversation.WithLeadSink(sink),
		conversation.WithHistoryTurns(e.cfg.Conversation.HistoryTurns),
	}
	if tokens := e.cfg.Conversation.HistoryTokens; tokens > 0 {
		base = append(base, conversation.WithHistoryTokens(tokens, conversation.ModelTokenCounter(e.cfg.AI.ChatModel)))
	}
	return conversation.NewOrchestrator(e.sessions, retriever, e.provider.ChatModel(), append(base, opts...)...)
}

// NewServer assembles the HTTP server with asynchronous ingestion enabled.
// The returned release func stops the job runner.
func (e *Engine) NewServer(ctx context.Context, opts ...server.Option) (*server.Server, func(), error) {
	orch, err := e.NewOrchestrator(ctx)
	if err != nil {
		return nil, nil, err
	}
	pipeline, err := e.NewPipeline(ctx)
	if err != nil {
		return nil, nil, err
	}
	jobs, err := e.NewJobRunner(pipeline)
	if err != nil {
		return nil, nil, err
	}
	hybrid, err := e.Index(ctx)
	if err != nil {
		jobs.Release()
		return nil, nil, err
	}
	base := []server.Option{server.WithJobRunner(jobs), server.WithIndex(hybrid)}
	srv, err := server.New(orch, pipeline, e.leads, append(base, opts...)...)
	if err != nil {
		jobs.Release()
		return nil, nil, err
	}
	return srv, jobs.Release, nil
}

// Reembed rebuilds the vectors of tenants, or of every tenant when none are
// named, with the current provider. Progress is written to progress, or
// discarded when it is nil. The index is reopened on next use so that it
// picks up the new shape.
func (e *Engine) Reembed(ctx context.Context, progress io.Writer, tenants ...string) (*reembed.Summary, error) {
	if progress == nil {
		progress = io.Discard
	}
	cfg := reembed.DefaultConfig()
	cfg.BatchSize = e.cfg.Ingestion.BatchSize
	r, err := reembed.NewReembedder(e.repos.Index, e.provider.Embedder(), e.provider.SparseEncoder(), cfg, progress)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	summary, err := r.Run(ctx, tenants...)
	e.hybrid = nil
	return summary, err
}
