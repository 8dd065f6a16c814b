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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/lumina/chunk"
	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/fetch"
	"github.com/poiesic/lumina/index"
	"github.com/poiesic/lumina/normalize"
)

// document carries one ingestion through the stages. Each processor reads
// what the previous stage left and fills in its own field.
type document struct {
	url     string
	tenant  string
	page    *fetch.Page
	text    string
	units   []chunk.Unit
	records []*core.VectorRecord
	stored  int
}

// processor is an internal interface for one stage of document ingestion.
type processor interface {
	// stage names the state the document is in while process runs.
	stage() Stage

	// process advances doc. Errors wrap a core failure sentinel.
	process(ctx context.Context, doc *document) error
}

// fetchProcessor retrieves the page markup.
type fetchProcessor struct {
	fetcher fetch.Fetcher
	logger  *slog.Logger
}

func (fp *fetchProcessor) stage() Stage { return StageFetching }

func (fp *fetchProcessor) process(ctx context.Context, doc *document) error {
	if err := fetch.ValidateURL(doc.url); err != nil {
		return err
	}
	page, err := fp.fetcher.Fetch(ctx, doc.url)
	if err != nil {
		return ensure(err, core.ErrFetch)
	}
	fp.logger.Debug("fetched page", "url", doc.url, "bytes", len(page.HTML), "rendered", page.Rendered)
	doc.page = page
	return nil
}

// normalizeProcessor reduces markup to structured text.
type normalizeProcessor struct{}

func (np *normalizeProcessor) stage() Stage { return StageNormalizing }

func (np *normalizeProcessor) process(_ context.Context, doc *document) error {
	text, err := normalize.HTML(doc.page.HTML)
	if err != nil {
		return ensure(err, core.ErrExtractionEmpty)
	}
	doc.text = text
	return nil
}

// chunkProcessor splits text into units. Whitespace-only units are dropped
// and keep their position numbers so IDs stay stable.
type chunkProcessor struct {
	splitter *chunk.Splitter
}

func (cp *chunkProcessor) stage() Stage { return StageChunking }

func (cp *chunkProcessor) process(_ context.Context, doc *document) error {
	for _, unit := range cp.splitter.Split(doc.text) {
		if strings.TrimSpace(unit.Text) != "" {
			doc.units = append(doc.units, unit)
		}
	}
	if len(doc.units) == 0 {
		return fmt.Errorf("%w: no units from %s", core.ErrExtractionEmpty, doc.url)
	}
	return nil
}

// indexProcessor swaps the document's records into the index.
type indexProcessor struct {
	hybrid *index.Hybrid
}

func (ip *indexProcessor) stage() Stage { return StageIndexing }

func (ip *indexProcessor) process(ctx context.Context, doc *document) error {
	n, err := ip.hybrid.ReplaceSource(ctx, doc.tenant, doc.url, doc.records...)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return ensure(err, core.ErrIndexUnavailable)
	}
	doc.stored = n
	return nil
}

// ensure wraps err with sentinel unless it already carries it.
func ensure(err, sentinel error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
