package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/core"
)

// Retriever answers text queries against a Hybrid index.
type Retriever struct {
	hybrid   *Hybrid
	embedder ai.Embedder
	encoder  ai.SparseEncoder
	topK     int
	logger   *slog.Logger
}

// NewRetriever creates a Retriever returning up to topK results per query.
// topK <= 0 selects DefaultTopK.
func NewRetriever(hybrid *Hybrid, embedder ai.Embedder, encoder ai.SparseEncoder, topK int) (*Retriever, error) {
	if hybrid == nil {
		return nil, ErrHybridRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if encoder == nil {
		return nil, ErrSparseEncoderRequired
	}
	if encoder.VocabularyID() != hybrid.VocabularyID() {
		return nil, fmt.Errorf("%w: encoder vocabulary %q does not match index %q",
			core.ErrConfiguration, encoder.VocabularyID(), hybrid.VocabularyID())
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		hybrid:   hybrid,
		embedder: embedder,
		encoder:  encoder,
		topK:     topK,
		logger:   slog.Default().With("component", "retriever"),
	}, nil
}

// Retrieve returns the most relevant units of tenant for text.
func (r *Retriever) Retrieve(ctx context.Context, tenant, text string) ([]*core.SearchResult, error) {
	return r.RetrieveWithMonitor(ctx, tenant, text, r.topK, nil)
}

// RetrieveWithMonitor is Retrieve with an explicit result count and progress hooks.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, tenant, text string, topK int, monitor QueryMonitor) ([]*core.SearchResult, error) {
	dense, err := r.embedder.EmbedText(ctx, text)
	if err != nil {
		r.logger.Error("error embedding query", "tenant", tenant, "err", err)
		return nil, err
	}
	if err := ai.CheckEmbedding(dense, r.hybrid.Dimension()); err != nil {
		return nil, err
	}
	sparse, err := r.encoder.EncodeQuery(text)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = r.topK
	}
	return r.hybrid.QueryWithMonitor(ctx, Query{
		Tenant: tenant,
		Dense:  dense,
		Sparse: sparse,
		TopK:   topK,
	}, monitor)
}
