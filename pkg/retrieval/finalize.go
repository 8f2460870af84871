package retrieval

import "github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"

// floorCeiling caps the working floor so a uniformly strong rerank
// never floors everything out.
const floorCeiling = 0.95

// FinalizeResult is the bounded document set handed to generation, with
// the diagnostics operators tune the floor against.
type FinalizeResult struct {
	Docs []Document

	// FloorUsed is the rerank-score floor actually applied, after any
	// soft relaxation.
	FloorUsed float64

	// AboveFloor counts documents that cleared the floor.
	AboveFloor int

	// Backfilled counts documents included from rerank order despite
	// sitting under the floor, to honor the quota.
	Backfilled int

	// DroppedTop2 counts documents among the reranker's top two that
	// the floor excluded. A non-zero value flags a floor set above what
	// the cross-encoder considers its best evidence.
	DroppedTop2 int

	// Softened reports that the floor was relaxed from p20 toward p10
	// because too few documents cleared the first floor.
	Softened bool
}

// Finalize cuts reranked documents down to at most topK. The floor is
// the 20th percentile of rerank scores, never below the configured hard
// floor and never above 0.95. When fewer than MinAbove documents clear
// it, the floor relaxes once toward the 10th percentile. The quota is
// then filled from floor survivors in rerank order, backfilling from
// the remaining rerank order when short.
//
// Callers wanting the guaranteed-K behavior run a widened second
// retrieval and rerank pass when len(Docs) < topK; Finalize itself
// never re-queries.
func Finalize(reranked []Document, cfg *config.FinalizeConfig, topK int) FinalizeResult {
	result := FinalizeResult{Docs: []Document{}}
	if len(reranked) == 0 {
		return result
	}

	scores := make([]float64, len(reranked))
	for i, d := range reranked {
		scores[i] = d.Score
	}

	p20 := percentile(scores, 20)
	p10 := percentile(scores, 10)

	floor := p20
	if floor < cfg.HardFloor {
		floor = cfg.HardFloor
	}
	if floor > floorCeiling {
		floor = floorCeiling
	}

	keepers := keepAbove(reranked, floor)
	if len(keepers) < cfg.MinAbove {
		softened := p10
		if softened < cfg.HardFloor {
			softened = cfg.HardFloor
		}
		if softened < floor {
			floor = softened
			result.Softened = true
			keepers = keepAbove(reranked, floor)
		}
	}

	result.FloorUsed = floor
	result.AboveFloor = len(keepers)

	for i := 0; i < 2 && i < len(reranked); i++ {
		if reranked[i].Score < floor {
			result.DroppedTop2++
		}
	}

	if len(keepers) > topK {
		keepers = keepers[:topK]
	}

	// Backfill from rerank order to honor the quota; backfilled
	// documents are counted but carry their original scores.
	if len(keepers) < topK {
		have := make(map[string]bool, len(keepers))
		for _, d := range keepers {
			have[d.dedupKey()] = true
		}
		for _, d := range reranked {
			if len(keepers) >= topK {
				break
			}
			if have[d.dedupKey()] {
				continue
			}
			have[d.dedupKey()] = true
			keepers = append(keepers, d)
			result.Backfilled++
		}
	}

	result.Docs = keepers
	return result
}

func keepAbove(docs []Document, floor float64) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if d.Score >= floor {
			out = append(out, d)
		}
	}
	return out
}
