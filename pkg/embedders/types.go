package embedders

import (
	"context"
	"fmt"
)

// SparseVector is a BM25-style sparse query representation: parallel
// term index and weight slices, indices strictly ascending.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// IsEmpty reports whether the vector carries no terms.
func (v *SparseVector) IsEmpty() bool {
	return v == nil || len(v.Indices) == 0
}

// QueryEmbedding bundles the dense and sparse vectors for one query.
// Sparse is nil when sparse encoding is disabled or was dropped after
// an ambiguous-vector recovery.
type QueryEmbedding struct {
	Dense  []float32
	Sparse *SparseVector
}

// Embedder produces dense vectors. EmbedQuery uses the query-side
// input type; EmbedDocuments the document side, batched internally.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	GetDimension() int

	GetModelName() string

	Close() error
}

// EmbeddingError reports an unrecoverable embedding failure.
type EmbeddingError struct {
	Operation string
	Message   string
	Err       error
}

func (e *EmbeddingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("embedding %s failed: %s", e.Operation, e.Message)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

func NewEmbeddingError(operation, message string, err error) *EmbeddingError {
	return &EmbeddingError{Operation: operation, Message: message, Err: err}
}
