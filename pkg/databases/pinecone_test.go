package databases

import (
	"context"
	"testing"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/embedders"
)

func TestToSparseValues(t *testing.T) {
	if got := toSparseValues(nil); got != nil {
		t.Errorf("Expected nil for nil sparse vector, got %+v", got)
	}
	if got := toSparseValues(&embedders.SparseVector{}); got != nil {
		t.Errorf("Expected nil for empty sparse vector, got %+v", got)
	}

	sparse := &embedders.SparseVector{
		Indices: []uint32{3, 17},
		Values:  []float32{0.5, 1.2},
	}
	got := toSparseValues(sparse)
	if got == nil {
		t.Fatal("Expected sparse values")
	}
	if len(got.Indices) != 2 || got.Indices[0] != 3 || got.Indices[1] != 17 {
		t.Errorf("Unexpected indices: %v", got.Indices)
	}
	if len(got.Values) != 2 || got.Values[0] != 0.5 {
		t.Errorf("Unexpected values: %v", got.Values)
	}
}

func TestConvertScoredVectors(t *testing.T) {
	metadata, err := structpb.NewStruct(map[string]interface{}{
		"title": "Heat wave safety",
		"lang":  "en",
	})
	if err != nil {
		t.Fatalf("Failed to build metadata: %v", err)
	}

	matches := []*pinecone.ScoredVector{
		{
			Vector: &pinecone.Vector{
				Id:       "chunk-42",
				Values:   []float32{0.1, 0.2},
				Metadata: metadata,
			},
			Score: 0.87,
		},
		{Vector: nil, Score: 0.5},
		nil,
	}

	out := convertScoredVectors(matches)
	if len(out) != 1 {
		t.Fatalf("Expected 1 match (nil vectors skipped), got %d", len(out))
	}

	match := out[0]
	if match.ID != "chunk-42" {
		t.Errorf("Expected ID chunk-42, got %s", match.ID)
	}
	if match.Score != 0.87 {
		t.Errorf("Expected score 0.87, got %v", match.Score)
	}
	if len(match.Values) != 2 {
		t.Errorf("Expected 2 embedding values, got %v", match.Values)
	}
	if match.Metadata["title"] != "Heat wave safety" {
		t.Errorf("Unexpected metadata: %+v", match.Metadata)
	}
}

func TestConvertScoredVectorsEmpty(t *testing.T) {
	out := convertScoredVectors(nil)
	if len(out) != 0 {
		t.Errorf("Expected empty result, got %d", len(out))
	}
}

func TestNewPineconeIndexRequiresAPIKey(t *testing.T) {
	_, err := NewPineconeIndexFromConfig(context.Background(), &config.PineconeConfig{
		IndexName: "climate-chat-index",
	})
	if err == nil {
		t.Error("Expected error for missing API key")
	}
}

func TestNewPineconeIndexHostOverride(t *testing.T) {
	// With an explicit host no DescribeIndex call happens, so
	// construction succeeds without network access.
	idx, err := NewPineconeIndexFromConfig(context.Background(), &config.PineconeConfig{
		APIKey:    "test-key",
		IndexName: "climate-chat-index",
		Host:      "climate-chat-index-abc123.svc.pinecone.io",
	})
	if err != nil {
		t.Fatalf("NewPineconeIndexFromConfig failed: %v", err)
	}
	defer idx.Close()

	if idx.Name() != "pinecone" {
		t.Errorf("Expected provider name pinecone, got %s", idx.Name())
	}
}

func TestPineconeQueryRequiresDenseVector(t *testing.T) {
	idx := &PineconeIndex{}
	if _, err := idx.Query(context.Background(), &Query{TopK: 5}); err == nil {
		t.Error("Expected error for missing dense vector")
	}
}
