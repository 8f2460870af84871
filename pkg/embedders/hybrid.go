package embedders

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

// QueryEmbedder produces the dense + sparse pair hybrid retrieval
// queries with. An ambiguous sparse vector is dropped and the query
// proceeds dense-only; a dense failure is unrecoverable.
type QueryEmbedder struct {
	dense  Embedder
	sparse *BM25Encoder
}

func NewQueryEmbedder(dense Embedder, sparse *BM25Encoder) *QueryEmbedder {
	return &QueryEmbedder{dense: dense, sparse: sparse}
}

// NewQueryEmbedderFromConfig wires the Cohere dense embedder and, when
// enabled, the BM25 sparse encoder.
func NewQueryEmbedderFromConfig(cohere *config.CohereConfig, cfg *config.EmbedderConfig) (*QueryEmbedder, error) {
	dense, err := NewCohereEmbedderFromConfig(cohere, cfg)
	if err != nil {
		return nil, err
	}

	var sparse *BM25Encoder
	if cfg.IsSparseEnabled() {
		sparse, err = NewBM25Encoder(&cfg.Sparse)
		if err != nil {
			return nil, err
		}
	}

	return &QueryEmbedder{dense: dense, sparse: sparse}, nil
}

// EmbedQuery returns the hybrid embedding for text. Sparse is nil when
// the encoder is disabled or its output was ambiguous.
func (e *QueryEmbedder) EmbedQuery(ctx context.Context, text string) (*QueryEmbedding, error) {
	dense, err := e.dense.EmbedQuery(ctx, text)
	if err != nil {
		return nil, NewEmbeddingError("query", "dense embedding failed", err)
	}

	embedding := &QueryEmbedding{Dense: dense}
	if e.sparse == nil {
		return embedding, nil
	}

	vec, err := e.sparse.EncodeQuery(text)
	if err != nil {
		if errors.Is(err, ErrAmbiguousVector) {
			slog.Warn("Sparse encoding ambiguous, retrying dense-only", "error", err)
			return embedding, nil
		}
		return nil, NewEmbeddingError("query", "sparse encoding failed", err)
	}
	if !vec.IsEmpty() {
		embedding.Sparse = vec
	}

	return embedding, nil
}

// EmbedDocuments batches document texts through the dense embedder.
// Used by the MMR stage when index values and the cache both miss.
func (e *QueryEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.dense.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, NewEmbeddingError("documents", "dense embedding failed", err)
	}
	return vectors, nil
}

// Dimension reports the dense vector dimension.
func (e *QueryEmbedder) Dimension() int {
	return e.dense.GetDimension()
}

// Close releases the underlying embedder.
func (e *QueryEmbedder) Close() error {
	return e.dense.Close()
}
