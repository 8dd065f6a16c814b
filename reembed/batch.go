package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/storage"
)

// BatchProcessor recomputes dense and sparse vectors for batches of records.
type BatchProcessor struct {
	repo           storage.IndexRepository
	embedder       ai.Embedder
	encoder        ai.SparseEncoder
	maxRetries     int
	retryBaseDelay time.Duration
	dimension      int
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.IndexRepository, embedder ai.Embedder, encoder ai.SparseEncoder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		encoder:        encoder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Dimension returns the dense dimension of the vectors written so far,
// or 0 before the first batch.
func (bp *BatchProcessor) Dimension() int {
	return bp.dimension
}

// Process embeds a batch of records of one tenant and writes them back.
// Every vector in a run must have the same dimension. Dense vectors are
// stored at unit length.
func (bp *BatchProcessor) Process(ctx context.Context, tenant string, records []*core.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Text
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		if err == nil && len(embeddings) != len(texts) {
			err = fmt.Errorf("%w: embedding count mismatch: expected %d, got %d",
				core.ErrEmbeddingUnavailable, len(texts), len(embeddings))
		}
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	updated := make([]*core.VectorRecord, len(records))
	for i, record := range records {
		if bp.dimension == 0 {
			bp.dimension = len(embeddings[i])
		}
		if err := ai.CheckEmbedding(embeddings[i], bp.dimension); err != nil {
			return fmt.Errorf("record %d: %w", record.ID, err)
		}
		dense, err := NormalizeVector(embeddings[i])
		if err != nil {
			return err
		}
		sv, err := bp.encoder.EncodeDocument(record.Text)
		if err != nil {
			return err
		}

		rec := *record
		rec.Dense = dense
		rec.Sparse = sv
		updated[i] = &rec
	}

	if _, err := bp.repo.Upsert(ctx, tenant, updated...); err != nil {
		return fmt.Errorf("%w: failed to update records: %w", core.ErrIndexUnavailable, err)
	}
	return nil
}
