// Package databases provides the query-side interface to the vector
// index holding the climate document corpus.
//
// Two providers implement the same interface: Pinecone (production,
// hybrid dense+sparse) and chromem-go (embedded, local development and
// hermetic tests). Provider responses are adapted into the neutral
// Match type at the boundary; everything downstream works on Match.
package databases

import (
	"context"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/embedders"
)

// Match is one scored result returned by a vector index.
type Match struct {
	ID       string                 `json:"id"`
	Score    float32                `json:"score"`
	Values   []float32              `json:"values,omitempty"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Query is a single similarity search request.
//
// For hybrid search the caller scales Dense and Sparse by the alpha
// weight before building the Query; providers pass the vectors through
// unchanged.
type Query struct {
	// Dense is the dense query embedding. Required.
	Dense []float32

	// Sparse holds BM25 term weights. Nil or empty means dense-only.
	Sparse *embedders.SparseVector

	// TopK is the number of matches to return.
	TopK int

	// Filter restricts matches by metadata equality, e.g. {"lang": "en"}.
	// Nil means unfiltered.
	Filter map[string]interface{}

	IncludeMetadata bool
	IncludeValues   bool
}

// Index is the read-side contract every vector index provider satisfies.
type Index interface {
	// Query runs a similarity search and returns matches ordered by
	// descending score. A query that matches nothing returns an empty
	// slice, not an error.
	Query(ctx context.Context, query *Query) ([]Match, error)

	// Ready reports whether the index is reachable and serving.
	Ready(ctx context.Context) error

	// Name identifies the provider ("pinecone", "chromem").
	Name() string

	Close() error
}
