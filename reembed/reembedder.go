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


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of units to embed in each request
	BatchSize int

	// ReportInterval is how often to report progress (number of units)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for failed embedding calls
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Summary describes a completed run.
type Summary struct {
	Tenants   int
	Units     int
	Dimension int
	Elapsed   time.Duration
}

// Reembedder rewrites the vectors of every unit in an index.
type Reembedder struct {
	repo      storage.IndexRepository
	encoder   ai.SparseEncoder
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *RecordIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.IndexRepository, embedder ai.Embedder, encoder ai.SparseEncoder, config *Config, progress io.Writer) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrIndexRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if encoder == nil {
		return nil, ErrSparseEncoderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:      repo,
		encoder:   encoder,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, encoder, config.MaxRetries, config.RetryDelay),
		iterator:  NewRecordIterator(repo, config.BatchSize),
		logger:    slog.Default().With("component", "reembed"),
	}, nil
}

// Run re-embeds the units of the given tenants, or of every tenant when
// none are named. Index metadata is rewritten to the new dimension and
// vocabulary after the last tenant completes. A failed run leaves the
// metadata unchanged; rerunning it with the same embedder converges.
func (r *Reembedder) Run(ctx context.Context, tenants ...string) (*Summary, error) {
	counts, err := r.repo.CountByTenant(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	if len(tenants) == 0 {
		for tenant := range counts {
			tenants = append(tenants, tenant)
		}
		sort.Strings(tenants)
	}

	summary := &Summary{}
	start := time.Now()
	for _, tenant := range tenants {
		n, err := r.runTenant(ctx, tenant, counts[tenant])
		if err != nil {
			return nil, fmt.Errorf("tenant %s: %w", tenant, err)
		}
		summary.Tenants++
		summary.Units += n
	}
	summary.Elapsed = time.Since(start)
	summary.Dimension = r.processor.Dimension()

	if summary.Units == 0 {
		fmt.Fprintf(r.progress, "No units found in index (0 units)\n")
		return summary, nil
	}

	if len(tenants) < len(counts) {
		r.logger.Warn("re-embedded a subset of tenants; units of other tenants keep their old vectors",
			"tenants", len(tenants), "indexed_tenants", len(counts))
	}
	if err := r.saveMeta(ctx); err != nil {
		return nil, err
	}

	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d units across %d tenants in %v (%.1f units/sec)\n",
		summary.Units, summary.Tenants, summary.Elapsed.Round(time.Second), float64(summary.Units)/summary.Elapsed.Seconds())
	return summary, nil
}

func (r *Reembedder) runTenant(ctx context.Context, tenant string, total int) (int, error) {
	if total == 0 {
		return 0, nil
	}
	fmt.Fprintf(r.progress, "Starting reembedding of %d units for %s (batch size: %d)\n",
		total, tenant, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, tenant, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err := r.iterator.ForEach(ctx, tenant, func(batch []*core.VectorRecord) error {
		if err := r.processor.Process(ctx, tenant, batch); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(batch)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return processed, err
	}

	tracker.Finish()
	r.logger.Info("re-embedded tenant", "tenant", tenant, "units", processed, "elapsed", tracker.Elapsed())
	return processed, nil
}

func (r *Reembedder) saveMeta(ctx context.Context) error {
	now := time.Now().UTC()
	meta, err := r.repo.LoadIndexMeta(ctx)
	if err != nil {
		return fmt.Errorf("failed to load index metadata: %w", err)
	}
	if meta == nil {
		meta = &storage.IndexMeta{CreatedAt: now}
	}
	meta.Dimension = r.processor.Dimension()
	meta.VocabularyID = r.encoder.VocabularyID()
	meta.UpdatedAt = now
	if err := r.repo.SaveIndexMeta(ctx, meta); err != nil {
		return fmt.Errorf("failed to save index metadata: %w", err)
	}
	return nil
}
