package databases

import (
	"context"
	"testing"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

func newTestChromemIndex(t *testing.T) *ChromemIndex {
	t.Helper()
	idx, err := NewChromemIndexFromConfig(&config.ChromemConfig{Collection: "climate-docs"})
	if err != nil {
		t.Fatalf("NewChromemIndexFromConfig failed: %v", err)
	}
	return idx
}

// seedTestDocs stores three documents with unit-norm embeddings so
// cosine ordering against the query [1, 0, 0] is unambiguous.
func seedTestDocs(t *testing.T, idx *ChromemIndex) {
	t.Helper()
	ctx := context.Background()

	docs := []struct {
		id       string
		vector   []float32
		metadata map[string]interface{}
	}{
		{
			id:     "doc-1",
			vector: []float32{1, 0, 0},
			metadata: map[string]interface{}{
				"title":      "Flood preparation",
				"chunk_text": "How to prepare your home for urban flooding.",
				"url":        "https://example.org/flood",
				"lang":       "en",
			},
		},
		{
			id:     "doc-2",
			vector: []float32{0, 1, 0},
			metadata: map[string]interface{}{
				"title":      "Heat wave safety",
				"chunk_text": "Staying safe during extreme heat events.",
				"url":        "https://example.org/heat",
				"lang":       "en",
			},
		},
		{
			id:     "doc-3",
			vector: []float32{0.8, 0.6, 0},
			metadata: map[string]interface{}{
				"title":      "Preparación para inundaciones",
				"chunk_text": "Cómo preparar su hogar para inundaciones.",
				"url":        "https://example.org/inundaciones",
				"lang":       "es",
			},
		},
	}

	for _, doc := range docs {
		if err := idx.Upsert(ctx, doc.id, doc.vector, doc.metadata); err != nil {
			t.Fatalf("Upsert(%s) failed: %v", doc.id, err)
		}
	}
}

func TestChromemIndexQueryOrdersByScore(t *testing.T) {
	idx := newTestChromemIndex(t)
	seedTestDocs(t, idx)

	matches, err := idx.Query(context.Background(), &Query{
		Dense:           []float32{1, 0, 0},
		TopK:            3,
		IncludeMetadata: true,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(matches) != 3 {
		t.Fatalf("Expected 3 matches, got %d", len(matches))
	}

	wantOrder := []string{"doc-1", "doc-3", "doc-2"}
	for i, want := range wantOrder {
		if matches[i].ID != want {
			t.Errorf("Match %d: expected %s, got %s", i, want, matches[i].ID)
		}
	}

	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("Matches not ordered by descending score: %v then %v",
				matches[i-1].Score, matches[i].Score)
		}
	}

	if got := matches[0].Metadata["chunk_text"]; got != "How to prepare your home for urban flooding." {
		t.Errorf("Unexpected chunk_text: %v", got)
	}
	if got := matches[0].Metadata["title"]; got != "Flood preparation" {
		t.Errorf("Unexpected title: %v", got)
	}
}

func TestChromemIndexFilterRestrictsMatches(t *testing.T) {
	idx := newTestChromemIndex(t)
	seedTestDocs(t, idx)

	matches, err := idx.Query(context.Background(), &Query{
		Dense:           []float32{1, 0, 0},
		TopK:            3,
		Filter:          map[string]interface{}{"lang": "es"},
		IncludeMetadata: true,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	if matches[0].ID != "doc-3" {
		t.Errorf("Expected doc-3, got %s", matches[0].ID)
	}
}

func TestChromemIndexClampsTopK(t *testing.T) {
	idx := newTestChromemIndex(t)
	seedTestDocs(t, idx)

	matches, err := idx.Query(context.Background(), &Query{
		Dense: []float32{1, 0, 0},
		TopK:  50,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 3 {
		t.Errorf("Expected 3 matches, got %d", len(matches))
	}
}

func TestChromemIndexEmptyCollection(t *testing.T) {
	idx := newTestChromemIndex(t)

	matches, err := idx.Query(context.Background(), &Query{
		Dense: []float32{1, 0, 0},
		TopK:  5,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected no matches, got %d", len(matches))
	}
}

func TestChromemIndexRequiresDenseVector(t *testing.T) {
	idx := newTestChromemIndex(t)

	if _, err := idx.Query(context.Background(), &Query{TopK: 5}); err == nil {
		t.Error("Expected error for missing dense vector")
	}
}

func TestChromemIndexIncludeValues(t *testing.T) {
	idx := newTestChromemIndex(t)
	seedTestDocs(t, idx)

	matches, err := idx.Query(context.Background(), &Query{
		Dense:         []float32{1, 0, 0},
		TopK:          1,
		IncludeValues: true,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	if len(matches[0].Values) != 3 {
		t.Errorf("Expected embedding values on match, got %v", matches[0].Values)
	}
}

func TestChromemIndexPersistAndReload(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.ChromemConfig{
		PersistPath: dir,
		Collection:  "climate-docs",
	}

	idx, err := NewChromemIndexFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewChromemIndexFromConfig failed: %v", err)
	}
	seedTestDocs(t, idx)
	if err := idx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewChromemIndexFromConfig(cfg)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if got := reopened.Count(); got != 3 {
		t.Fatalf("Expected 3 documents after reload, got %d", got)
	}

	matches, err := reopened.Query(context.Background(), &Query{
		Dense:           []float32{1, 0, 0},
		TopK:            1,
		IncludeMetadata: true,
	})
	if err != nil {
		t.Fatalf("Query after reload failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "doc-1" {
		t.Errorf("Expected doc-1 after reload, got %+v", matches)
	}
}
