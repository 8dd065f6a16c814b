package index

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/storage"
)

const (
	// DefaultTopK is used when a query does not set TopK.
	DefaultTopK = 5

	// DefaultDenseWeight and DefaultSparseWeight are the fusion weights
	// used when a query does not set its own.
	DefaultDenseWeight  = 0.7
	DefaultSparseWeight = 0.3
)

// Query is a tenant-scoped hybrid search request.
type Query struct {
	Tenant string
	Dense  []float32
	Sparse core.SparseVector
	TopK   int

	// DenseWeight and SparseWeight override the index weights when either
	// is non-zero.
	DenseWeight  float32
	SparseWeight float32
}

// Hybrid is a tenant-partitioned dense+sparse index.
type Hybrid struct {
	repo         storage.IndexRepository
	vocabularyID string
	denseWeight  float32
	sparseWeight float32
	logger       *slog.Logger

	dimension atomic.Int64
	metaMu    sync.Mutex
	metaSaved atomic.Bool
}

// Option configures a Hybrid.
type Option func(*Hybrid) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hybrid) error {
		if logger == nil {
			logger = slog.Default()
		}
		h.logger = logger.With("component", "hybrid-index")
		return nil
	}
}

// WithWeights sets the default fusion weights.
func WithWeights(dense, sparse float32) Option {
	return func(h *Hybrid) error {
		if err := checkWeights(dense, sparse); err != nil {
			return err
		}
		h.denseWeight, h.sparseWeight = dense, sparse
		return nil
	}
}

// Open binds a Hybrid to repo. If the repository already holds an index,
// its dense dimension and vocabulary must match the arguments, otherwise
// Open fails with core.ErrConfiguration. A dimension of 0 accepts whatever
// is stored, or the length of the first written vector on a new index.
func Open(ctx context.Context, repo storage.IndexRepository, dimension int, vocabularyID string, opts ...Option) (*Hybrid, error) {
	if repo == nil {
		return nil, ErrIndexRepositoryRequired
	}
	if vocabularyID == "" {
		return nil, fmt.Errorf("%w: sparse vocabulary id is required", core.ErrConfiguration)
	}
	if dimension < 0 {
		return nil, fmt.Errorf("%w: negative dense dimension %d", core.ErrConfiguration, dimension)
	}

	h := &Hybrid{
		repo:         repo,
		vocabularyID: vocabularyID,
		denseWeight:  DefaultDenseWeight,
		sparseWeight: DefaultSparseWeight,
		logger:       slog.Default().With("component", "hybrid-index"),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}

	meta, err := repo.LoadIndexMeta(ctx)
	if err != nil {
		return nil, unavailable("loading index metadata", err)
	}
	if meta != nil {
		if dimension > 0 && meta.Dimension != dimension {
			return nil, fmt.Errorf("%w: %w: index has %d, configured %d",
				core.ErrConfiguration, core.ErrDimensionMismatch, meta.Dimension, dimension)
		}
		if meta.VocabularyID != vocabularyID {
			return nil, fmt.Errorf("%w: sparse vocabulary mismatch: index has %q, configured %q",
				core.ErrConfiguration, meta.VocabularyID, vocabularyID)
		}
		dimension = meta.Dimension
		h.metaSaved.Store(true)
	}
	h.dimension.Store(int64(dimension))

	h.logger.Debug("opened hybrid index", "dimension", dimension, "vocabulary", vocabularyID, "existing", meta != nil)
	return h, nil
}

// Dimension returns the dense dimension, or 0 if not yet known.
func (h *Hybrid) Dimension() int {
	return int(h.dimension.Load())
}

// VocabularyID returns the sparse vocabulary fingerprint.
func (h *Hybrid) VocabularyID() string {
	return h.vocabularyID
}

// Upsert writes records for a tenant, overwriting records with the same ID.
// Returns the number of records written.
func (h *Hybrid) Upsert(ctx context.Context, tenant string, records ...*core.VectorRecord) (int, error) {
	if err := h.prepare(ctx, tenant, records); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	written, err := h.repo.Upsert(ctx, tenant, records...)
	if err != nil {
		return 0, writeError(err)
	}
	return len(written), nil
}

// ReplaceSource atomically swaps the records of (tenant, sourceURL) for
// records. Returns the number of records written. A document too large for
// one transaction fails with core.ErrIndexUnavailable wrapping
// storage.ErrBatchTooLarge and leaves the old records in place.
func (h *Hybrid) ReplaceSource(ctx context.Context, tenant, sourceURL string, records ...*core.VectorRecord) (int, error) {
	if sourceURL == "" {
		return 0, fmt.Errorf("%w: empty source url", core.ErrInvalidRecord)
	}
	if err := h.prepare(ctx, tenant, records); err != nil {
		return 0, err
	}
	written, err := h.repo.ReplaceSource(ctx, tenant, sourceURL, records...)
	if err != nil {
		return 0, writeError(err)
	}
	h.logger.Debug("replaced source", "tenant", tenant, "url", sourceURL, "records", len(written))
	return len(written), nil
}

// DeleteSource removes the records of (tenant, sourceURL).
func (h *Hybrid) DeleteSource(ctx context.Context, tenant, sourceURL string) (int, error) {
	if tenant == "" {
		return 0, core.ErrEmptyTenant
	}
	n, err := h.repo.DeleteSource(ctx, tenant, sourceURL)
	if err != nil {
		return 0, unavailable("deleting source", err)
	}
	return n, nil
}

// DeleteTenant removes every record of tenant.
func (h *Hybrid) DeleteTenant(ctx context.Context, tenant string) (int, error) {
	if tenant == "" {
		return 0, core.ErrEmptyTenant
	}
	n, err := h.repo.DeleteTenant(ctx, tenant)
	if err != nil {
		return 0, unavailable("deleting tenant", err)
	}
	h.logger.Info("deleted tenant records", "tenant", tenant, "records", n)
	return n, nil
}

// Stats reports record counts per tenant.
func (h *Hybrid) Stats(ctx context.Context) (*core.IndexStats, error) {
	counts, err := h.repo.CountByTenant(ctx)
	if err != nil {
		return nil, unavailable("counting records", err)
	}
	stats := &core.IndexStats{
		Dimension:       h.Dimension(),
		VocabularyID:    h.vocabularyID,
		RecordsByTenant: counts,
	}
	for _, n := range counts {
		stats.TotalRecords += n
	}
	return stats, nil
}

// Query returns the TopK records of q.Tenant by fused score.
// A tenant with no records yields an empty result.
func (h *Hybrid) Query(ctx context.Context, q Query) ([]*core.SearchResult, error) {
	return h.QueryWithMonitor(ctx, q, nil)
}

// QueryWithMonitor is Query with progress hooks.
func (h *Hybrid) QueryWithMonitor(ctx context.Context, q Query, monitor QueryMonitor) ([]*core.SearchResult, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if q.Tenant == "" {
		return nil, core.ErrEmptyTenant
	}
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
	if q.DenseWeight == 0 && q.SparseWeight == 0 {
		q.DenseWeight, q.SparseWeight = h.denseWeight, h.sparseWeight
	}
	if err := checkWeights(q.DenseWeight, q.SparseWeight); err != nil {
		return nil, err
	}
	if err := core.ValidateSparseVector(q.Sparse); err != nil {
		return nil, err
	}
	if dim := h.Dimension(); dim > 0 && len(q.Dense) != dim {
		return nil, fmt.Errorf("%w: %w: query has %d, index has %d",
			core.ErrConfiguration, core.ErrDimensionMismatch, len(q.Dense), dim)
	}

	monitor.Start(q)

	sparseQuery, err := h.weightSparse(ctx, q)
	if err != nil {
		return nil, err
	}
	denseNorm := norm(q.Dense)
	sparseNorm := norm(sparseQuery.Values)
	top := &resultHeap{}
	var scanned, skipped int

	err = h.repo.ScanTenant(ctx, q.Tenant, func(rec *core.VectorRecord) error {
		scanned++
		if rec.TenantID != q.Tenant || len(rec.Dense) != len(q.Dense) {
			skipped++
			return nil
		}
		ds := denseSimilarity(q.Dense, denseNorm, rec.Dense)
		ss := sparseSimilarity(sparseQuery, sparseNorm, rec.Sparse)
		result := &core.SearchResult{
			Record:      rec,
			Score:       q.DenseWeight*ds + q.SparseWeight*ss,
			DenseScore:  ds,
			SparseScore: ss,
		}
		if top.Len() < q.TopK {
			heap.Push(top, result)
		} else if better(result, (*top)[0]) {
			(*top)[0] = result
			heap.Fix(top, 0)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		h.logger.Error("error scanning tenant", "tenant", q.Tenant, "err", err)
		return nil, unavailable("scanning tenant", err)
	}
	monitor.AfterScan(scanned, skipped)
	if skipped > 0 {
		h.logger.Warn("skipped records with mismatched dimension", "tenant", q.Tenant, "skipped", skipped)
	}

	results := []*core.SearchResult(*top)
	sort.Slice(results, func(i, j int) bool { return better(results[i], results[j]) })
	monitor.Finish(results)
	return results, nil
}

// weightSparse applies the tenant's term statistics to the sparse query.
func (h *Hybrid) weightSparse(ctx context.Context, q Query) (core.SparseVector, error) {
	if q.Sparse.Len() == 0 {
		return q.Sparse, nil
	}
	n, df, err := h.repo.DocumentFrequencies(ctx, q.Tenant, q.Sparse.Indices)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return core.SparseVector{}, err
		}
		return core.SparseVector{}, unavailable("reading term statistics", err)
	}
	return weightQuery(q.Sparse, n, df), nil
}

// prepare validates records// prepare validates records and records index metadata on the first write.
func (h *Hybrid) prepare(ctx context.Context, tenant string, records []*core.VectorRecord) error {
	if tenant == "" {
		return core.ErrEmptyTenant
	}
	if len(records) == 0 {
		return nil
	}
	if err := h.ensureMeta(ctx, len(records[0].Dense)); err != nil {
		return err
	}
	dim := h.Dimension()
	for _, rec := range records {
		if err := core.ValidateVectorRecord(rec, dim); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hybrid) ensureMeta(ctx context.Context, firstDim int) error {
	if h.metaSaved.Load() {
		return nil
	}
	h.metaMu.Lock()
	defer h.metaMu.Unlock()
	if h.metaSaved.Load() {
		return nil
	}

	dim := h.Dimension()
	if dim == 0 {
		dim = firstDim
	}
	if dim == 0 {
		return fmt.Errorf("%w: %w: empty dense vector", core.ErrInvalidRecord, core.ErrDimensionMismatch)
	}
	now := time.Now().UTC()
	err := h.repo.SaveIndexMeta(ctx, &storage.IndexMeta{
		Dimension:    dim,
		VocabularyID: h.vocabularyID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return unavailable("saving index metadata", err)
	}
	h.dimension.Store(int64(dim))
	h.metaSaved.Store(true)
	h.logger.Info("initialized index metadata", "dimension", dim, "vocabulary", h.vocabularyID)
	return nil
}

func checkWeights(dense, sparse float32) error {
	if dense < 0 || sparse < 0 || dense+sparse == 0 {
		return fmt.Errorf("%w: fusion weights must be non-negative and not both zero, got %v/%v",
			core.ErrConfiguration, dense, sparse)
	}
	return nil
}

// writeError keeps caller mistakes distinguishable from storage failure.
func writeError(err error) error {
	switch {
	case errors.Is(err, storage.ErrTenantMismatch),
		errors.Is(err, storage.ErrSourceMismatch),
		errors.Is(err, core.ErrEmptyTenant),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, storage.ErrBatchTooLarge):
		return unavailable("document too large to replace in one transaction, raise chunking.size", err)
	}
	return unavailable("writing records", err)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrIndexUnavailable, op, err)
}

// better orders results by score, then recency, then ID.
func better(a, b *core.SearchResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Record.Seq != b.Record.Seq {
		return a.Record.Seq > b.Record.Seq
	}
	return a.Record.ID < b.Record.ID
}

// resultHeap is a min-heap on better: the root is the weakest kept result.
type resultHeap []*core.SearchResult

func (r resultHeap) Len() int           { return len(r) }
func (r resultHeap) Less(i, j int) bool { return better(r[j], r[i]) }
func (r resultHeap) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r *resultHeap) Push(x any)        { *r = append(*r, x.(*core.SearchResult)) }
func (r *resultHeap) Pop() any {
	old := *r
	n := len(old)
	x := old[n-1]
	*r = old[:n-1]
	return x
}
