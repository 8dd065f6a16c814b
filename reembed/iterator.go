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
	"sort"

	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/storage"
)

const (
	// DefaultBatchSize is the default number of records to fetch in each batch
	DefaultBatchSize = 100
)

// RecordIterator iterates over the vector records of a tenant in batches.
type RecordIterator struct {
	repo      storage.IndexRepository
	batchSize int
}

// NewRecordIterator creates a new record iterator.
// batchSize: number of records to pass in each batch (must be > 0)
func NewRecordIterator(repo storage.IndexRepository, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecordIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// Load returns every record of tenant ordered by insertion sequence.
func (it *RecordIterator) Load(ctx context.Context, tenant string) ([]*core.VectorRecord, error) {
	var records []*core.VectorRecord
	err := it.repo.ScanTenant(ctx, tenant, func(rec *core.VectorRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	return records, nil
}

// ForEach iterates over the records of tenant oldest first, calling fn for
// each batch. Iteration stops on first error from fn or when all records
// are processed. Context cancellation is checked between batches.
func (it *RecordIterator) ForEach(ctx context.Context, tenant string, fn func([]*core.VectorRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := it.Load(ctx, tenant)
	if err != nil {
		return err
	}
	return it.batches(ctx, records, fn)
}

func (it *RecordIterator) batches(ctx context.Context, records []*core.VectorRecord, fn func([]*core.VectorRecord) error) error {
	for i := 0; i < len(records); i += it.batchSize {
		end := min(i+it.batchSize, len(records))
		if err := fn(records[i:end]); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
