package databases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/embedders"
)

// PineconeIndex serves hybrid dense+sparse queries against a Pinecone
// serverless index. The index host is resolved once at construction and
// a single gRPC connection is reused for the life of the process.
type PineconeIndex struct {
	client *pinecone.Client
	conn   *pinecone.IndexConnection
	config *config.PineconeConfig
}

// NewPineconeIndexFromConfig connects to the configured Pinecone index.
// The host is taken from cfg.Host when set, otherwise resolved via
// DescribeIndex.
func NewPineconeIndexFromConfig(ctx context.Context, cfg *config.PineconeConfig) (*PineconeIndex, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pinecone config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone requires an api_key")
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build pinecone client: %w", err)
	}

	host := cfg.Host
	if host == "" {
		index, err := client.DescribeIndex(ctx, cfg.IndexName)
		if err != nil {
			return nil, fmt.Errorf("failed to describe index %s: %w", cfg.IndexName, err)
		}
		host = index.Host
	}

	conn, err := client.Index(pinecone.NewIndexConnParams{
		Host:      host,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open index connection: %w", err)
	}

	slog.Info("Connected to Pinecone index",
		"index", cfg.IndexName,
		"namespace", cfg.Namespace)

	return &PineconeIndex{
		client: client,
		conn:   conn,
		config: cfg,
	}, nil
}

// Query runs a dense or hybrid similarity search.
func (p *PineconeIndex) Query(ctx context.Context, query *Query) ([]Match, error) {
	if len(query.Dense) == 0 {
		return nil, fmt.Errorf("dense query vector is required")
	}

	var filter *pinecone.MetadataFilter
	if len(query.Filter) > 0 {
		var err error
		filter, err = structpb.NewStruct(query.Filter)
		if err != nil {
			return nil, fmt.Errorf("invalid metadata filter: %w", err)
		}
	}

	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          query.Dense,
		TopK:            uint32(query.TopK),
		MetadataFilter:  filter,
		IncludeMetadata: query.IncludeMetadata,
		IncludeValues:   query.IncludeValues,
		SparseValues:    toSparseValues(query.Sparse),
	}

	resp, err := p.conn.QueryByVectorValues(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pinecone query failed: %w", err)
	}

	return convertScoredVectors(resp.Matches), nil
}

// Ready describes the index and reports whether it is serving.
func (p *PineconeIndex) Ready(ctx context.Context) error {
	index, err := p.client.DescribeIndex(ctx, p.config.IndexName)
	if err != nil {
		return fmt.Errorf("failed to describe index %s: %w", p.config.IndexName, err)
	}
	if index.Status == nil || !index.Status.Ready {
		return fmt.Errorf("index %s is not ready", p.config.IndexName)
	}
	return nil
}

// Name returns the provider name.
func (p *PineconeIndex) Name() string {
	return "pinecone"
}

// Close releases the index connection.
func (p *PineconeIndex) Close() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// toSparseValues adapts BM25 term weights to the Pinecone wire type.
func toSparseValues(sparse *embedders.SparseVector) *pinecone.SparseValues {
	if sparse == nil || sparse.IsEmpty() {
		return nil
	}
	return &pinecone.SparseValues{
		Indices: sparse.Indices,
		Values:  sparse.Values,
	}
}

// convertScoredVectors adapts Pinecone matches to the neutral Match type.
func convertScoredVectors(matches []*pinecone.ScoredVector) []Match {
	out := make([]Match, 0, len(matches))
	for _, scored := range matches {
		if scored == nil || scored.Vector == nil {
			continue
		}

		match := Match{
			ID:    scored.Vector.Id,
			Score: scored.Score,
		}
		if scored.Vector.Values != nil {
			match.Values = scored.Vector.Values
		}
		if scored.Vector.Metadata != nil {
			match.Metadata = scored.Vector.Metadata.AsMap()
		}

		out = append(out, match)
	}
	return out
}

// Ensure PineconeIndex implements Index.
var _ Index = (*PineconeIndex)(nil)
