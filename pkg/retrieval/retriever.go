package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/databases"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/embedders"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
)

// Result is the retrieval stage output: the candidate set handed to the
// reranker, the query embedding (reused by the MMR and widen passes),
// and per-stage diagnostics.
type Result struct {
	Docs      []Document
	Embedding *embedders.QueryEmbedding

	Gate     GateResult
	Audience AudienceStats
	MMR      MMRStats

	// Refilled reports that the gate kept too few documents and a
	// widened re-query rebuilt the pool.
	Refilled bool

	// FilterFallback reports that the language-filtered query matched
	// nothing and retrieval retried unfiltered.
	FilterFallback bool

	// HowTo reports that the query reads like an instructional
	// question, which relaxes the gate's minimum pool size.
	HowTo bool
}

// Retriever runs the retrieval stage end to end: query embedding,
// hybrid index search with a language filter, boosting, the audience
// blocklist, dedup, the similarity gate with refill, and MMR
// diversification.
type Retriever struct {
	index       databases.Index
	embedder    *embedders.QueryEmbedder
	cache       *EmbeddingCache
	booster     *Booster
	audience    *AudienceFilter
	diversifier *Diversifier
	cfg         *config.RetrievalConfig
	filters     *config.FiltersConfig
	recorder    observability.Recorder
}

// NewRetriever wires the retrieval stage from its dependencies. The
// recorder may be nil.
func NewRetriever(
	index databases.Index,
	embedder *embedders.QueryEmbedder,
	cfg *config.RetrievalConfig,
	filters *config.FiltersConfig,
	recorder observability.Recorder,
) (*Retriever, error) {
	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}

	cache, err := NewEmbeddingCache(cfg.EmbedCacheSize)
	if err != nil {
		return nil, NewRetrievalError("Retriever", "init", "embedding cache", "", err)
	}

	audience, err := NewAudienceFilter(filters)
	if err != nil {
		return nil, NewRetrievalError("Retriever", "init", "audience filter", "", err)
	}

	return &Retriever{
		index:       index,
		embedder:    embedder,
		cache:       cache,
		booster:     NewBooster(filters),
		audience:    audience,
		diversifier: NewDiversifier(embedder, cache, cfg.MMR.Lambda, cfg.MMR.PoolSize),
		cfg:         cfg,
		filters:     filters,
		recorder:    recorder,
	}, nil
}

// Cache exposes the document-vector cache shared with the diversifier.
func (r *Retriever) Cache() *EmbeddingCache {
	return r.cache
}

// Retrieve returns the diversified candidate set for query, ready for
// reranking. An empty Docs slice with a nil error means the corpus has
// nothing relevant; callers map that to the no-results outcome.
func (r *Retriever) Retrieve(ctx context.Context, query string) (*Result, error) {
	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, NewRetrievalError("Retriever", "embed", "query embedding failed", query, err)
	}

	result := &Result{
		Embedding: embedding,
		HowTo:     IsHowToQuery(query),
	}

	pool, fallback, err := r.fetch(ctx, embedding, r.cfg.FetchK)
	if err != nil {
		return nil, err
	}
	result.FilterFallback = fallback

	pool, result.Audience = r.shape(query, pool)

	result.Gate = ApplyGate(pool, &r.cfg.Gate, r.cfg.TopK)
	kept := result.Gate.Kept

	if len(kept) < r.cfg.Gate.MinKept && r.cfg.Gate.RefillEnabled() && len(pool) > 0 {
		kept, result.Refilled = r.refill(ctx, query, embedding, pool, kept)
	}

	if result.HowTo && len(kept) < r.cfg.Gate.MinKept {
		kept = TopUpBySimilarity(kept, pool, r.cfg.Gate.MinKept)
	}

	if r.cfg.MMR.IsEnabled() && len(kept) > 1 {
		target := r.cfg.TopK
		if target < 10 {
			target = 10
		}
		selected, stats, err := r.diversifier.Select(ctx, embedding.Dense, kept, target)
		if err != nil {
			return nil, err
		}
		kept = selected
		result.MMR = stats
	}

	result.Docs = kept
	return result, nil
}

// Widen runs the guaranteed-quota second pass: a widened hybrid query
// plus a sparse-only variant when the query has sparse terms, shaped
// the same way as the first pass. The caller merges the result with the
// first-pass pool and reranks again.
func (r *Retriever) Widen(ctx context.Context, query string, embedding *embedders.QueryEmbedding) ([]Document, error) {
	widened, _, err := r.fetch(ctx, embedding, r.cfg.FetchK*r.cfg.Gate.WidenFactor)
	if err != nil {
		return nil, err
	}

	if !embedding.Sparse.IsEmpty() {
		sparseOnly := &embedders.QueryEmbedding{
			Dense:  make([]float32, len(embedding.Dense)),
			Sparse: embedding.Sparse,
		}
		extra, err := r.fetchHybrid(ctx, sparseOnly, r.cfg.FetchK, 0, nil)
		if err != nil {
			slog.Warn("Sparse-only widen query failed, continuing with dense results",
				"error", err)
		} else {
			widened = Merge(widened, extra)
		}
	}

	shaped, _ := r.shape(query, widened)
	return shaped, nil
}

// fetch runs one hybrid index query with the configured language
// filter, retrying once unfiltered when the filtered query matches
// nothing. The reported bool is true when the retry path was taken.
func (r *Retriever) fetch(ctx context.Context, embedding *embedders.QueryEmbedding, topK int) ([]Document, bool, error) {
	filter := r.languageFilter()

	matches, err := r.fetchHybrid(ctx, embedding, topK, r.cfg.Alpha, filter)
	if err != nil {
		return nil, false, err
	}

	if len(matches) == 0 && filter != nil {
		slog.Warn("Filtered query matched nothing, retrying without filter",
			"filter", filter)
		matches, err = r.fetchHybrid(ctx, embedding, topK, r.cfg.Alpha, nil)
		if err != nil {
			return nil, false, err
		}
		return matches, true, nil
	}

	return matches, false, nil
}

// fetchHybrid issues one index query with alpha-scaled vectors and
// adapts the matches. Index vectors ride back for the MMR stage. A
// failed query is retried once after a short pause, unless the stage
// deadline has already passed.
func (r *Retriever) fetchHybrid(
	ctx context.Context,
	embedding *embedders.QueryEmbedding,
	topK int,
	alpha float64,
	filter map[string]interface{},
) ([]Document, error) {
	dense, sparse := scaleHybrid(embedding, alpha)

	q := &databases.Query{
		Dense:           dense,
		Sparse:          sparse,
		TopK:            topK,
		Filter:          filter,
		IncludeMetadata: true,
		IncludeValues:   true,
	}

	start := time.Now()
	matches, err := r.index.Query(ctx, q)
	if err != nil && ctx.Err() == nil {
		slog.Warn("Index query failed, retrying once",
			"index", r.index.Name(),
			"error", err)
		select {
		case <-ctx.Done():
		case <-time.After(200 * time.Millisecond):
			matches, err = r.index.Query(ctx, q)
		}
	}
	r.recorder.RecordDependencyCall(ctx, r.index.Name(), "query", time.Since(start), err)
	if err != nil {
		return nil, NewRetrievalError("Retriever", "query", "index query failed", "", err)
	}

	docs := FromMatches(matches)
	for i := range docs {
		if len(docs[i].Values) > 0 {
			r.cache.Put(docs[i].Key(), docs[i].Values)
		}
	}
	return docs, nil
}

// shape applies the post-retrieval transforms in order: boosts, the
// audience blocklist, dedup, and the absolute score pre-filter.
func (r *Retriever) shape(query string, docs []Document) ([]Document, AudienceStats) {
	r.booster.Apply(query, docs)

	docs, stats := r.audience.Apply(docs)

	if r.filters.DedupEnabled() {
		docs = Dedup(docs)
	}

	if min := r.cfg.Gate.MinScore; min > 0 {
		filtered := docs[:0]
		for _, d := range docs {
			if d.IndexScore >= min {
				filtered = append(filtered, d)
			}
		}
		docs = filtered
	}

	return docs, stats
}

// refill widens the query and rebuilds the pool when the gate kept too
// few documents. Refill failures keep the gated set; a thin answer
// beats no answer.
func (r *Retriever) refill(ctx context.Context, query string, embedding *embedders.QueryEmbedding, pool, kept []Document) ([]Document, bool) {
	widened, _, err := r.fetch(ctx, embedding, r.cfg.FetchK*r.cfg.Gate.WidenFactor)
	if err != nil {
		slog.Warn("Refill query failed, keeping gated set",
			"error", err,
			"kept", len(kept))
		return kept, false
	}

	widened, _ = r.shape(query, widened)
	refilled := RefillPool(pool, widened, r.cfg.Gate.FallbackThreshold, r.cfg.MMR.PoolSize)
	r.recorder.RecordFallback(ctx, "retrieval_refill")

	slog.Debug("Gate refill widened the pool",
		"kept_before", len(kept),
		"kept_after", len(refilled))
	return refilled, true
}

// languageFilter builds the metadata filter for the configured corpus
// language. Nil when server-side filtering is disabled.
func (r *Retriever) languageFilter() map[string]interface{} {
	if r.filters == nil || r.filters.Lang == "" {
		return nil
	}
	return map[string]interface{}{"lang": r.filters.Lang}
}

// scaleHybrid applies the alpha weighting: dense scaled by alpha,
// sparse values by (1-alpha). A missing sparse vector leaves dense
// unscaled so a dense-only query keeps its full magnitude.
func scaleHybrid(embedding *embedders.QueryEmbedding, alpha float64) ([]float32, *embedders.SparseVector) {
	if embedding.Sparse.IsEmpty() {
		return embedding.Dense, nil
	}

	dense := make([]float32, len(embedding.Dense))
	for i, v := range embedding.Dense {
		dense[i] = v * float32(alpha)
	}

	values := make([]float32, len(embedding.Sparse.Values))
	for i, v := range embedding.Sparse.Values {
		values[i] = v * float32(1-alpha)
	}

	return dense, &embedders.SparseVector{
		Indices: embedding.Sparse.Indices,
		Values:  values,
	}
}
