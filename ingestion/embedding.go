package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/core"
)

// embeddingProcessor computes dense and sparse vectors for every unit and
// builds the records to index. Dense vectors are requested in batches.
type embeddingProcessor struct {
	embedder  ai.Embedder
	encoder   ai.SparseEncoder
	batchSize int
	dimension func() int
	logger    *slog.Logger
}

func (ep *embeddingProcessor) stage() Stage { return StageEmbedding }

func (ep *embeddingProcessor) process(ctx context.Context, doc *document) error {
	ep.logger.Debug("embedding units", "url", doc.url, "units", len(doc.units))

	texts := make([]string, len(doc.units))
	for i, unit := range doc.units {
		texts[i] = unit.Text
	}

	dim := ep.dimension()
	dense := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += ep.batchSize {
		end := min(start+ep.batchSize, len(texts))
		batch, err := ep.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			ep.logger.Error("error generating embeddings", "url", doc.url, "err", err)
			if ctx.Err() != nil {
				return err
			}
			return ensure(err, core.ErrEmbeddingUnavailable)
		}
		if len(batch) != end-start {
			return fmt.Errorf("%w: embedding result mismatch. expected %d, received %d",
				core.ErrEmbeddingUnavailable, end-start, len(batch))
		}
		for _, vec := range batch {
			if dim == 0 {
				dim = len(vec)
			}
			if err := ai.CheckEmbedding(vec, dim); err != nil {
				return err
			}
			dense = append(dense, vec)
		}
	}

	records := make([]*core.VectorRecord, len(doc.units))
	for i, unit := range doc.units {
		sv, err := ep.encoder.EncodeDocument(unit.Text)
		if err != nil {
			return ensure(err, core.ErrEmbeddingUnavailable)
		}
		records[i] = &core.VectorRecord{
			ID:        core.UnitID(doc.url, unit.Position),
			TenantID:  doc.tenant,
			SourceURL: doc.url,
			Text:      unit.Text,
			Position:  unit.Position,
			Dense:     dense[i],
			Sparse:    sv,
		}
	}
	doc.records = records
	return nil
}
