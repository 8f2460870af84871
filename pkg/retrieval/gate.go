package retrieval

import (
	"sort"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

// GateResult reports what the similarity gate kept and the statistics
// it decided on.
type GateResult struct {
	Kept []Document

	MaxSim float64
	P50    float64
	P95    float64
	Margin float64

	// Threshold is the effective lower bound applied to index scores.
	Threshold float64

	// Relative reports that every candidate sat below the base
	// threshold, so the gate fell back to keeping documents within the
	// margin of the best one.
	Relative bool
}

// ApplyGate filters candidates by index similarity. Confident pools are
// cut at the base threshold; weak pools (best score under the base)
// keep whatever sits within an adaptive margin of the best score, so a
// weak-but-coherent pool is not emptied outright.
//
// The margin is derived from the score spread: half the p95-p50
// distance, clamped to the configured range. The kept list is capped at
// max(topK, 10), preserving input order.
func ApplyGate(docs []Document, cfg *config.GateConfig, topK int) GateResult {
	result := GateResult{Kept: []Document{}}
	if len(docs) == 0 {
		return result
	}

	sims := make([]float64, len(docs))
	for i, d := range docs {
		sims[i] = d.IndexScore
		if sims[i] > result.MaxSim {
			result.MaxSim = sims[i]
		}
	}
	result.P50 = percentile(sims, 50)
	result.P95 = percentile(sims, 95)

	result.Margin = cfg.Margin.Min
	if cfg.Margin.IsEnabled() {
		result.Margin = clamp(0.5*(result.P95-result.P50), cfg.Margin.Min, cfg.Margin.Max)
	}

	relativeFloor := result.MaxSim - result.Margin
	if result.MaxSim < cfg.BaseThreshold {
		result.Relative = true
		result.Threshold = relativeFloor
	} else {
		result.Threshold = cfg.BaseThreshold
		if relativeFloor > result.Threshold {
			result.Threshold = relativeFloor
		}
	}

	limit := topK
	if limit < 10 {
		limit = 10
	}

	for _, d := range docs {
		if d.IndexScore >= result.Threshold {
			result.Kept = append(result.Kept, d)
			if len(result.Kept) >= limit {
				break
			}
		}
	}

	return result
}

// TopUpBySimilarity appends the highest-similarity gated-out documents
// until kept reaches target. Used for how-to queries, whose lexical
// phrasing tends to score low against narrative documents even when
// the pool is on topic.
func TopUpBySimilarity(kept, pool []Document, target int) []Document {
	if len(kept) >= target {
		return kept
	}

	have := make(map[string]bool, len(kept))
	for _, d := range kept {
		have[d.dedupKey()] = true
	}

	rest := make([]Document, 0, len(pool))
	for _, d := range pool {
		if !have[d.dedupKey()] {
			rest = append(rest, d)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].IndexScore > rest[j].IndexScore
	})

	for _, d := range rest {
		kept = append(kept, d)
		if len(kept) >= target {
			break
		}
	}
	return kept
}

// RefillPool rebuilds the candidate list from the union of the original
// pool and the widened re-query results: documents clearing the
// fallback threshold first, then backfill by raw similarity up to
// maxDocs regardless of threshold.
func RefillPool(original, widened []Document, fallbackThreshold float64, maxDocs int) []Document {
	union := Merge(original, widened)

	sort.SliceStable(union, func(i, j int) bool {
		return union[i].IndexScore > union[j].IndexScore
	})

	kept := make([]Document, 0, maxDocs)
	var below []Document
	for _, d := range union {
		if d.IndexScore >= fallbackThreshold {
			if len(kept) < maxDocs {
				kept = append(kept, d)
			}
		} else {
			below = append(below, d)
		}
	}

	for _, d := range below {
		if len(kept) >= maxDocs {
			break
		}
		kept = append(kept, d)
	}

	return kept
}
