package retrieval

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	vectors [][]float32
	texts   []string
	err     error
}

func (s *stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	s.texts = append(s.texts, texts...)
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors, nil
}

func mmrCache(t *testing.T) *EmbeddingCache {
	t.Helper()
	cache, err := NewEmbeddingCache(16)
	if err != nil {
		t.Fatalf("NewEmbeddingCache: %v", err)
	}
	return cache
}

func TestDiversifier_PrefersDiversityOverRedundancy(t *testing.T) {
	docs := []Document{
		{ID: "a", Title: "a", Content: "a", Values: []float32{1, 0}},
		{ID: "b", Title: "b", Content: "b", Values: []float32{1, 0}},
		{ID: "c", Title: "c", Content: "c", Values: []float32{0, 1}},
	}

	d := NewDiversifier(&stubEmbedder{err: errors.New("must not embed")}, mmrCache(t), 0.3, 12)
	out, stats, err := d.Select(context.Background(), []float32{1, 0}, docs, 2)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "c" {
		t.Errorf("selected %v, want [a c]: the duplicate of a should lose to the novel doc", ids(out))
	}
	if stats.UsedIndex != 3 || stats.Embedded != 0 {
		t.Errorf("stats = %+v, want all vectors from the index response", stats)
	}
}

func TestDiversifier_SeedIsMostQuerySimilar(t *testing.T) {
	docs := []Document{
		{ID: "orthogonal", Title: "o", Content: "o", Values: []float32{0, 1}},
		{ID: "aligned", Title: "a", Content: "a", Values: []float32{1, 0}},
	}

	d := NewDiversifier(&stubEmbedder{}, mmrCache(t), 0.3, 12)
	out, _, err := d.Select(context.Background(), []float32{1, 0}, docs, 1)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(out) != 1 || out[0].ID != "aligned" {
		t.Errorf("seed = %v, want the query-aligned doc regardless of input order", ids(out))
	}
}

func TestDiversifier_VectorSourcingHierarchy(t *testing.T) {
	cache := mmrCache(t)
	cache.Put("cached", []float32{0.9, 0.1})

	docs := []Document{
		{ID: "indexed", Title: "i", Content: "indexed text", Values: []float32{1, 0}},
		{ID: "cached", Title: "c", Content: "cached text"},
		{ID: "fresh", Title: "f", Content: "fresh text"},
	}

	embedder := &stubEmbedder{vectors: [][]float32{{0, 1}}}
	d := NewDiversifier(embedder, cache, 0.3, 12)

	out, stats, err := d.Select(context.Background(), []float32{1, 0}, docs, 3)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("selected %d docs, want 3", len(out))
	}

	if stats.UsedIndex != 1 || stats.UsedCache != 1 || stats.Embedded != 1 {
		t.Errorf("stats = %+v, want one vector from each source", stats)
	}
	if len(embedder.texts) != 1 || embedder.texts[0] != "fresh text" {
		t.Errorf("embedded %v, want only the uncached doc", embedder.texts)
	}
	if _, ok := cache.Get("fresh"); !ok {
		t.Error("freshly embedded vector not cached for the next request")
	}
}

func TestDiversifier_EmbedFailureKeepsOrder(t *testing.T) {
	docs := []Document{
		{ID: "a", Title: "a", Content: "a"},
		{ID: "b", Title: "b", Content: "b"},
		{ID: "c", Title: "c", Content: "c"},
	}

	d := NewDiversifier(&stubEmbedder{err: errors.New("embed down")}, mmrCache(t), 0.3, 12)
	out, _, err := d.Select(context.Background(), []float32{1, 0}, docs, 2)
	if err != nil {
		t.Fatalf("Select: %v, want degraded nil error", err)
	}
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "b" {
		t.Errorf("degraded selection = %v, want upstream order truncated", ids(out))
	}
}

func TestDiversifier_PoolCap(t *testing.T) {
	docs := []Document{
		{ID: "a", Title: "a", Content: "a", Values: []float32{1, 0}},
		{ID: "b", Title: "b", Content: "b", Values: []float32{0, 1}},
		{ID: "outside", Title: "o", Content: "o", Values: []float32{1, 0}},
	}

	d := NewDiversifier(&stubEmbedder{}, mmrCache(t), 0.3, 2)
	out, _, err := d.Select(context.Background(), []float32{1, 0}, docs, 3)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("selected %d docs, want pool capped at 2", len(out))
	}
	for _, doc := range out {
		if doc.ID == "outside" {
			t.Error("doc beyond the pool cap was selected")
		}
	}
}

func TestDiversifier_Degenerate(t *testing.T) {
	d := NewDiversifier(&stubEmbedder{}, mmrCache(t), 0.3, 12)

	if out, _, _ := d.Select(context.Background(), []float32{1, 0}, nil, 3); len(out) != 0 {
		t.Errorf("empty pool selected %d docs", len(out))
	}

	single := []Document{{ID: "only", Title: "o", Content: "o", Values: []float32{1, 0}}}
	out, _, err := d.Select(context.Background(), []float32{1, 0}, single, 5)
	if err != nil || len(out) != 1 {
		t.Errorf("single-doc pool: out=%v err=%v, want the doc back", ids(out), err)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"scaled", []float32{2, 0}, []float32{5, 0}, 1},
		{"empty", nil, []float32{1}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosine(tt.a, tt.b); got != tt.want {
				t.Errorf("cosine = %g, want %g", got, tt.want)
			}
		})
	}
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
