package retrieval

import (
	"context"
	"log/slog"
	"math"
)

// DocumentEmbedder produces dense vectors for document texts in one
// batched call. *embedders.QueryEmbedder satisfies it.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// MMRStats reports where the diversifier sourced candidate vectors.
type MMRStats struct {
	UsedIndex int
	UsedCache int
	Embedded  int
}

// Diversifier selects a diverse subset of candidates by maximal
// marginal relevance. Candidate vectors come from the index response
// when present, then the embedding cache, and only then a single
// batched embed call for whatever is still missing.
type Diversifier struct {
	embedder DocumentEmbedder
	cache    *EmbeddingCache
	lambda   float64
	poolCap  int
}

func NewDiversifier(embedder DocumentEmbedder, cache *EmbeddingCache, lambda float64, poolCap int) *Diversifier {
	if lambda <= 0 {
		lambda = 0.3
	}
	if poolCap <= 0 {
		poolCap = 12
	}
	return &Diversifier{
		embedder: embedder,
		cache:    cache,
		lambda:   lambda,
		poolCap:  poolCap,
	}
}

// Select returns up to target documents balancing query relevance
// against novelty. The first pick is the most query-similar candidate;
// each following pick maximizes λ·cos(q,d) − (1−λ)·max_selected
// cos(d,s). When vectors cannot be obtained the input is returned
// truncated, keeping the pipeline moving on the upstream order.
func (m *Diversifier) Select(ctx context.Context, queryVec []float32, docs []Document, target int) ([]Document, MMRStats, error) {
	var stats MMRStats

	pool := docs
	if len(pool) > m.poolCap {
		pool = pool[:m.poolCap]
	}
	if target > len(pool) {
		target = len(pool)
	}
	if target <= 0 || len(pool) == 0 {
		return []Document{}, stats, nil
	}

	vectors, stats, err := m.resolveVectors(ctx, pool)
	if err != nil {
		slog.Warn("MMR vector sourcing failed, keeping retrieval order",
			"error", err,
			"pool", len(pool))
		out := make([]Document, target)
		copy(out, pool[:target])
		return out, stats, nil
	}

	queryScores := make([]float64, len(pool))
	for i := range pool {
		queryScores[i] = cosine(queryVec, vectors[i])
	}

	selected := make([]int, 0, target)
	used := make([]bool, len(pool))

	// Seed with the most query-similar candidate.
	best := 0
	for i := 1; i < len(pool); i++ {
		if queryScores[i] > queryScores[best] {
			best = i
		}
	}
	selected = append(selected, best)
	used[best] = true

	for len(selected) < target {
		bestIdx := -1
		bestScore := math.Inf(-1)

		for i := range pool {
			if used[i] {
				continue
			}
			maxSim := 0.0
			for _, j := range selected {
				if sim := cosine(vectors[i], vectors[j]); sim > maxSim {
					maxSim = sim
				}
			}
			score := m.lambda*queryScores[i] - (1-m.lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}
		selected = append(selected, bestIdx)
		used[bestIdx] = true
	}

	out := make([]Document, 0, len(selected))
	for _, i := range selected {
		out = append(out, pool[i])
	}
	return out, stats, nil
}

// resolveVectors gathers a dense vector per pool document: index values
// first, cache second, one batched embed call for the rest.
func (m *Diversifier) resolveVectors(ctx context.Context, pool []Document) ([][]float32, MMRStats, error) {
	var stats MMRStats
	vectors := make([][]float32, len(pool))
	var missing []int

	for i := range pool {
		if len(pool[i].Values) > 0 {
			vectors[i] = pool[i].Values
			stats.UsedIndex++
			m.cache.Put(pool[i].Key(), pool[i].Values)
			continue
		}
		if vec, ok := m.cache.Get(pool[i].Key()); ok {
			vectors[i] = vec
			stats.UsedCache++
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return vectors, stats, nil
	}

	texts := make([]string, len(missing))
	for n, i := range missing {
		texts[n] = pool[i].Content
	}

	embedded, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, stats, err
	}
	if len(embedded) != len(missing) {
		return nil, stats, NewRetrievalError("Diversifier", "resolveVectors",
			"embedder returned wrong vector count", "", nil)
	}

	for n, i := range missing {
		vectors[i] = embedded[n]
		stats.Embedded++
		m.cache.Put(pool[i].Key(), embedded[n])
	}

	return vectors, stats, nil
}

// cosine returns the cosine similarity of two vectors, 0 when either is
// empty or zero-length.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
