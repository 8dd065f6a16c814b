package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/storage"
)

// IndexRepository implements storage.IndexRepository for BadgerDB.
type IndexRepository struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.IndexRepository = (*IndexRepository)(nil)

// NewIndexRepository creates a new IndexRepository.
func NewIndexRepository(backend *Backend) (*IndexRepository, error) {
	seq, err := backend.GetSequence(vectorRecordSeq)
	if err != nil {
		return nil, err
	}
	return &IndexRepository{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the insertion sequence.
func (r *IndexRepository) Close() error {
	return r.seq.Release()
}

// Upsert writes records for a tenant in one transaction.
func (r *IndexRepository) Upsert(ctx context.Context, tenant string, records ...*core.VectorRecord) ([]*core.VectorRecord, error) {
	if err := checkTenant(tenant, "", records); err != nil {
		return nil, err
	}
	err := r.backend.Update(func(tx *badger.Txn) error {
		return r.writeRecords(tx, tenant, records)
	})
	if err != nil {
		return nil, batchError(err, len(records))
	}
	return records, nil
}

// ReplaceSource deletes the prior records of (tenant, sourceURL) and writes
// records in the same transaction. A document whose records and counters do
// not fit in one badger transaction fails with storage.ErrBatchTooLarge.
func (r *IndexRepository) ReplaceSource(ctx context.Context, tenant, sourceURL string, records ...*core.VectorRecord) ([]*core.VectorRecord, error) {
	if err := checkTenant(tenant, sourceURL, records); err != nil {
		return nil, err
	}
	err := r.backend.Update(func(tx *badger.Txn) error {
		if _, err := r.deleteSource(tx, tenant, sourceURL); err != nil {
			return err
		}
		return r.writeRecords(tx, tenant, records)
	})
	if err != nil {
		return nil, batchError(err, len(records))
	}
	return records, nil
}

// GetRecord retrieves a single record.
func (r *IndexRepository) GetRecord(ctx context.Context, tenant string, id core.ID) (*core.VectorRecord, error) {
	var result *core.VectorRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readVectorRecord(tx, makeVectorRecordKey(tenant, id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ScanTenant iterates over every record of a tenant.
func (r *IndexRepository) ScanTenant(ctx context.Context, tenant string, fn func(*core.VectorRecord) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeTenantRecordPrefix(tenant)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record *core.VectorRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalVectorRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// DeleteSource removes every record of (tenant, sourceURL).
func (r *IndexRepository) DeleteSource(ctx context.Context, tenant, sourceURL string) (int, error) {
	var removed int
	err := r.backend.Update(func(tx *badger.Txn) error {
		var err error
		removed, err = r.deleteSource(tx, tenant, sourceURL)
		return err
	})
	return removed, err
}

// DeleteTenant removes every record of a tenant along with its source index.
func (r *IndexRepository) DeleteTenant(ctx context.Context, tenant string) (int, error) {
	var removed int
	err := r.backend.Update(func(tx *badger.Txn) error {
		recordKeys, err := collectKeys(tx, makeTenantRecordPrefix(tenant))
		if err != nil {
			return err
		}
		sourceKeys, err := collectKeys(tx, appendString([]byte(vectorSourcePrefix), tenant))
		if err != nil {
			return err
		}
		termKeys, err := collectKeys(tx, makeTenantTermPrefix(tenant))
		if err != nil {
			return err
		}
		keys := append(append(recordKeys, sourceKeys...), termKeys...)
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		removed = len(recordKeys)
		return nil
	})
	return removed, err
}

// CountByTenant returns the number of records per tenant.
func (r *IndexRepository) CountByTenant(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorRecordPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			tenant, ok := tenantFromRecordKey(iter.Item().Key())
			if !ok {
				continue
			}
			counts[tenant]++
		}
		return nil
	}, false)
	return counts, err
}

// DocumentFrequencies returns the number of records of a tenant and, for
// each term, how many of those records carry a positive weight for it.
func (r *IndexRepository) DocumentFrequencies(ctx context.Context, tenant string, terms []uint32) (int, []int, error) {
	var total int
	df := make([]int, len(terms))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		total = countKeys(tx, makeTenantRecordPrefix(tenant))
		for i, term := range terms {
			count, err := readCount(tx, makeTermKey(tenant, term))
			if err != nil {
				return err
			}
			df[i] = int(count)
		}
		return nil
	}, false)
	if err != nil {
		return 0, nil, err
	}
	return total, df, nil
}

// LoadIndexMeta returns the stored index metadata, or nil if none exists.
func (r *IndexRepository) LoadIndexMeta(ctx context.Context) (*storage.IndexMeta, error) {
	var meta *storage.IndexMeta
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		_, err := readValue(tx, []byte(indexMetaKey), func(val []byte) error {
			var err error
			meta, err = storage.UnmarshalIndexMeta(val)
			return err
		})
		return err
	}, false)
	return meta, err
}

// SaveIndexMeta persists index metadata.
func (r *IndexRepository) SaveIndexMeta(ctx context.Context, meta *storage.IndexMeta) error {
	now := time.Now().UTC()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now
	value := storage.MarshalIndexMeta(meta)
	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(indexMetaKey), value)
	})
}

// Helper methods

// writeRecords stores records and their source index entries. A record that
// overwrites one from a different source has the stale index entry removed.
func (r *IndexRepository) writeRecords(tx *badger.Txn, tenant string, records []*core.VectorRecord) error {
	now := time.Now().UTC()
	deltas := termDeltas{}
	for _, record := range records {
		key := makeVectorRecordKey(tenant, record.ID)
		old, err := readVectorRecord(tx, key)
		if err != nil {
			return err
		}
		if old != nil {
			deltas.add(old.Sparse, -1)
			if old.SourceURL != record.SourceURL {
				if err := tx.Delete(makeSourceKey(tenant, old.SourceURL, old.ID)); err != nil {
					return err
				}
			}
		}
		deltas.add(record.Sparse, 1)

		seq, err := nextID(r.seq)
		if err != nil {
			return err
		}
		record.Seq = seq
		record.InsertedAt = now

		if err := tx.Set(key, storage.MarshalVectorRecord(record)); err != nil {
			return err
		}
		if err := tx.Set(makeSourceKey(tenant, record.SourceURL, record.ID), storage.MarshalID(record.ID)); err != nil {
			return err
		}
	}
	return deltas.apply(tx, tenant)
}

// deleteSource removes all records reachable from the (tenant, url) source index.
func (r *IndexRepository) deleteSource(tx *badger.Txn, tenant, sourceURL string) (int, error) {
	prefix := makeSourcePrefix(tenant, sourceURL)
	keys, err := collectKeys(tx, prefix)
	if err != nil {
		return 0, err
	}
	deltas := termDeltas{}
	for _, key := range keys {
		id, ok := idFromKeySuffix(key)
		if !ok {
			return 0, storage.ErrTruncatedData
		}
		recordKey := makeVectorRecordKey(tenant, id)
		record, err := readVectorRecord(tx, recordKey)
		if err != nil {
			return 0, err
		}
		if record != nil {
			deltas.add(record.Sparse, -1)
		}
		if err := tx.Delete(recordKey); err != nil {
			return 0, err
		}
		if err := tx.Delete(key); err != nil {
			return 0, err
		}
	}
	return len(keys), deltas.apply(tx, tenant)
}

// collectKeys copies every key under prefix. Keys are collected before
// deletion because badger iterators must not observe their own writes.
func collectKeys(tx *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	return keys, nil
}

// readVectorRecord reads a vector record from the transaction.
// Returns nil, nil when the key is absent.
func readVectorRecord(tx *badger.Txn, key []byte) (*core.VectorRecord, error) {
	var record *core.VectorRecord
	_, err := readValue(tx, key, func(val []byte) error {
		var err error
		record, err = storage.UnmarshalVectorRecord(val)
		return err
	})
	return record, err
}

// checkTenant rejects records that name a different tenant or source than
// the one being written.
func checkTenant(tenant, sourceURL string, records []*core.VectorRecord) error {
	if tenant == "" {
		return core.ErrEmptyTenant
	}
	for _, record := range records {
		if record.TenantID != tenant {
			return fmt.Errorf("%w: record %d has tenant %q, writing to %q", storage.ErrTenantMismatch, record.ID, record.TenantID, tenant)
		}
		if sourceURL != "" && record.SourceURL != sourceURL {
			return fmt.Errorf("%w: record %d has source %q, replacing %q", storage.ErrSourceMismatch, record.ID, record.SourceURL, sourceURL)
		}
	}
	return nil
}

// termDeltas accumulates document frequency changes so each counter is
// written once per transaction.
type termDeltas map[uint32]int

func (d termDeltas) add(v core.SparseVector, sign int) {
	for i, term := range v.Indices {
		if v.Values[i] > 0 {
			d[term] += sign
		}
	}
}

func (d termDeltas) apply(tx *badger.Txn, tenant string) error {
	for term, delta := range d {
		if delta == 0 {
			continue
		}
		key := makeTermKey(tenant, term)
		count, err := readCount(tx, key)
		if err != nil {
			return err
		}
		next := int64(count) + int64(delta)
		if next <= 0 {
			if err := tx.Delete(key); err != nil {
				return err
			}
			continue
		}
		buf := make([]byte, varint.Uint64.Size(uint64(next)))
		varint.Uint64.Marshal(uint64(next), buf)
		if err := tx.Set(key, buf); err != nil {
			return err
		}
	}
	return nil
}

// readCount reads a counter, treating an absent key as zero.
func readCount(tx *badger.Txn, key []byte) (uint64, error) {
	var count uint64
	_, err := readValue(tx, key, func(val []byte) error {
		var err error
		count, _, err = varint.Uint64.Unmarshal(val)
		return err
	})
	return count, err
}

// countKeys counts the keys under prefix without loading values.
func countKeys(tx *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var n int
	for iter.Rewind(); iter.Valid(); iter.Next() {
		n++
	}
	return n
}

func batchError(err error, records int) error {
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("%w: %d records: %w", storage.ErrBatchTooLarge, records, err)
	}
	return err
}
