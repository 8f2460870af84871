package embedders

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

// ErrAmbiguousVector reports that two distinct query terms resolved to
// the same sparse index, leaving the weight for that index ambiguous.
// Callers recover by retrying the embedding with sparse disabled.
var ErrAmbiguousVector = errors.New("ambiguous sparse vector: distinct terms share an index")

// bm25Stats is the fitted-corpus statistics file layout. Vocab maps a
// term to its fixed index and document frequency; out-of-vocabulary
// terms are hashed instead.
type bm25Stats struct {
	AvgDocLen float64             `json:"avgdl"`
	NDocs     int                 `json:"n_docs"`
	Vocab     map[string]bm25Term `json:"vocab"`
}

type bm25Term struct {
	Index uint32 `json:"index"`
	DF    int    `json:"df"`
}

// BM25Encoder produces sparse query vectors with BM25 term weighting.
// Stateless after construction and safe for concurrent use.
type BM25Encoder struct {
	k1    float64
	b     float64
	stats bm25Stats
}

const defaultAvgDocLen = 120

func NewBM25Encoder(cfg *config.SparseConfig) (*BM25Encoder, error) {
	enc := &BM25Encoder{
		k1: cfg.K1,
		b:  cfg.B,
		stats: bm25Stats{
			AvgDocLen: defaultAvgDocLen,
		},
	}
	if enc.k1 == 0 {
		enc.k1 = 1.5
	}
	if enc.b == 0 {
		enc.b = 0.75
	}

	if cfg.StatsPath != "" {
		data, err := os.ReadFile(cfg.StatsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read BM25 stats: %w", err)
		}
		if err := json.Unmarshal(data, &enc.stats); err != nil {
			return nil, fmt.Errorf("failed to parse BM25 stats: %w", err)
		}
		if enc.stats.AvgDocLen <= 0 {
			enc.stats.AvgDocLen = defaultAvgDocLen
		}
	}

	return enc, nil
}

// EncodeQuery converts a query into a sparse vector. Empty queries and
// queries reduced to nothing by tokenization yield an empty vector.
func (e *BM25Encoder) EncodeQuery(text string) (*SparseVector, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return &SparseVector{}, nil
	}

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}

	queryLen := float64(len(tokens))
	norm := e.k1 * (1 - e.b + e.b*queryLen/e.stats.AvgDocLen)

	indexOwner := make(map[uint32]string, len(counts))
	weights := make(map[uint32]float32, len(counts))

	for term, count := range counts {
		idx := e.termIndex(term)
		if owner, taken := indexOwner[idx]; taken && owner != term {
			return nil, fmt.Errorf("terms %q and %q collide at index %d: %w", owner, term, idx, ErrAmbiguousVector)
		}
		indexOwner[idx] = term

		tf := float64(count)
		weight := e.idf(term) * tf * (e.k1 + 1) / (tf + norm)
		weights[idx] = float32(weight)
	}

	vec := &SparseVector{
		Indices: make([]uint32, 0, len(weights)),
		Values:  make([]float32, 0, len(weights)),
	}
	for idx := range weights {
		vec.Indices = append(vec.Indices, idx)
	}
	sort.Slice(vec.Indices, func(i, j int) bool { return vec.Indices[i] < vec.Indices[j] })
	for _, idx := range vec.Indices {
		vec.Values = append(vec.Values, weights[idx])
	}

	return vec, nil
}

func (e *BM25Encoder) termIndex(term string) uint32 {
	if entry, ok := e.stats.Vocab[term]; ok {
		return entry.Index
	}
	h := fnv.New32a()
	h.Write([]byte(term))
	return h.Sum32()
}

// idf uses the standard BM25+ formulation, which stays non-negative.
// Without fitted stats every term weighs 1.
func (e *BM25Encoder) idf(term string) float64 {
	if e.stats.NDocs == 0 {
		return 1.0
	}
	df := 0
	if entry, ok := e.stats.Vocab[term]; ok {
		df = entry.DF
	}
	n := float64(e.stats.NDocs)
	return math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "can": true, "do": true,
	"does": true, "for": true, "from": true, "has": true, "have": true,
	"how": true, "i": true, "in": true, "is": true, "it": true,
	"of": true, "on": true, "or": true, "that": true, "the": true,
	"this": true, "to": true, "was": true, "we": true, "what": true,
	"when": true, "where": true, "which": true, "who": true, "why": true,
	"will": true, "with": true, "you": true, "your": true,
}

// tokenize lowercases, splits on non-letter/digit runes, and drops
// stopwords and single-rune fragments.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
