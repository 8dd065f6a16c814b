// Package sparse implements ai.SparseEncoder with a bleve text analyzer and
// a hashed vocabulary, so lexical vectors need no corpus-wide state.
package sparse

import (
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/cespare/xxhash/v2"

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/core"
)

const (
	// AnalyzerName is the name of the registered analyzer.
	AnalyzerName = "lumina_en"

	// DefaultVocabularySize is the number of hash buckets term ids fall into.
	DefaultVocabularySize = 1 << 18

	defaultK1        = 1.2
	defaultB         = 0.75
	defaultAvgDocLen = 80

	// IDFSource names where inverse document frequencies come from. Query
	// weights are scaled at search time by BM25 IDF over the tenant's records.
	IDFSource = "idf-tenant"
)

// Encoder turns text into BM25-weighted sparse vectors. Documents carry
// saturated, length-normalized term frequencies. Queries carry raw counts
// that the index multiplies by each term's IDF within the queried tenant.
// Term ids are xxhash64 of the analyzed term modulo the vocabulary size.
type Encoder struct {
	analyzer  analysis.Analyzer
	vocabSize uint32
	k1        float64
	b         float64
	avgDocLen float64
}

var _ ai.SparseEncoder = (*Encoder)(nil)

// Option configures an Encoder.
type Option func(*Encoder) error

// WithVocabularySize sets the number of hash buckets.
func WithVocabularySize(n uint32) Option {
	return func(e *Encoder) error {
		if n == 0 {
			return fmt.Errorf("%w: vocabulary size must be positive", core.ErrConfiguration)
		}
		e.vocabSize = n
		return nil
	}
}

// WithBM25 overrides the saturation (k1), length normalization (b) and
// expected document length used for document weights.
func WithBM25(k1, b, avgDocLen float64) Option {
	return func(e *Encoder) error {
		if k1 <= 0 || b < 0 || b > 1 || avgDocLen <= 0 {
			return fmt.Errorf("%w: invalid BM25 parameters k1=%v b=%v avgdl=%v", core.ErrConfiguration, k1, b, avgDocLen)
		}
		e.k1, e.b, e.avgDocLen = k1, b, avgDocLen
		return nil
	}
}

// NewEncoder builds an encoder over an English analyzer: unicode word
// segmentation, lowercasing, stop word removal and Porter stemming.
func NewEncoder(opts ...Option) (*Encoder, error) {
	e := &Encoder{
		vocabSize: DefaultVocabularySize,
		k1:        defaultK1,
		b:         defaultB,
		avgDocLen: defaultAvgDocLen,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	indexMapping := bleve.NewIndexMapping()
	err := indexMapping.AddCustomAnalyzer(AnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			en.StopName,
			porter.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: registering analyzer: %w", core.ErrConfiguration, err)
	}
	e.analyzer = indexMapping.AnalyzerNamed(AnalyzerName)
	if e.analyzer == nil {
		return nil, fmt.Errorf("%w: analyzer %s unavailable", core.ErrConfiguration, AnalyzerName)
	}
	return e, nil
}

// VocabularyID fingerprints the analyzer, hash, weighting parameters and
// IDF source.
func (e *Encoder) VocabularyID() string {
	return fmt.Sprintf("%s/xxhash64/%d/bm25-%g-%g-%g/%s", AnalyzerName, e.vocabSize, e.k1, e.b, e.avgDocLen, IDFSource)
}

// EncodeDocument returns BM25 document weights for text.
func (e *Encoder) EncodeDocument(text string) (core.SparseVector, error) {
	counts, length := e.termCounts(text)
	norm := e.k1 * (1 - e.b + e.b*float64(length)/e.avgDocLen)
	return build(counts, func(tf float64) float64 {
		return tf * (e.k1 + 1) / (tf + norm)
	}), nil
}

// EncodeQuery returns raw term counts for text. IDF is applied by the index.
func (e *Encoder) EncodeQuery(text string) (core.SparseVector, error) {
	counts, _ := e.termCounts(text)
	return build(counts, func(tf float64) float64 { return tf }), nil
}

// Terms returns the analyzed terms of text in order. Useful for debugging
// why two texts do or do not overlap.
func (e *Encoder) Terms(text string) []string {
	tokens := e.analyzer.Analyze([]byte(text))
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

func (e *Encoder) termCounts(text string) (map[uint32]float64, int) {
	tokens := e.analyzer.Analyze([]byte(text))
	counts := make(map[uint32]float64, len(tokens))
	for _, tok := range tokens {
		id := uint32(xxhash.Sum64(tok.Term) % uint64(e.vocabSize))
		counts[id]++
	}
	return counts, len(tokens)
}

func build(counts map[uint32]float64, weight func(tf float64) float64) core.SparseVector {
	vec := core.SparseVector{
		Indices: make([]uint32, 0, len(counts)),
		Values:  make([]float32, 0, len(counts)),
	}
	for id := range counts {
		vec.Indices = append(vec.Indices, id)
	}
	sort.Slice(vec.Indices, func(i, j int) bool { return vec.Indices[i] < vec.Indices[j] })
	for _, id := range vec.Indices {
		vec.Values = append(vec.Values, float32(weight(counts[id])))
	}
	return vec
}
