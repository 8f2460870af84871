package retrieval

import (
	"fmt"
	"math"
	"testing"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

func gateConfig() *config.GateConfig {
	cfg := &config.GateConfig{}
	cfg.SetDefaults()
	return cfg
}

func simDocs(sims ...float64) []Document {
	docs := make([]Document, len(sims))
	for i, s := range sims {
		docs[i] = Document{
			Title:      fmt.Sprintf("doc-%d", i),
			Content:    "content",
			Score:      s,
			IndexScore: s,
		}
	}
	return docs
}

func TestApplyGate_ConfidentPool(t *testing.T) {
	docs := simDocs(0.9, 0.88, 0.87, 0.7, 0.5)

	result := ApplyGate(docs, gateConfig(), 5)

	if result.Relative {
		t.Error("Relative = true, want absolute gating above the base threshold")
	}
	if len(result.Kept) != 3 {
		t.Fatalf("kept %d docs, want 3", len(result.Kept))
	}
	for i, want := range []float64{0.9, 0.88, 0.87} {
		if result.Kept[i].IndexScore != want {
			t.Errorf("Kept[%d] = %g, want %g", i, result.Kept[i].IndexScore, want)
		}
	}
	// Narrow spread clamps the margin to its minimum.
	if math.Abs(result.Margin-0.04) > 1e-9 {
		t.Errorf("Margin = %g, want 0.04", result.Margin)
	}
	if math.Abs(result.Threshold-0.86) > 1e-9 {
		t.Errorf("Threshold = %g, want max_sim - margin = 0.86", result.Threshold)
	}
}

func TestApplyGate_RelativeFallback(t *testing.T) {
	// Every candidate sits below the base threshold; the gate keeps
	// whatever is within the margin of the best instead of emptying
	// the pool.
	docs := simDocs(0.55, 0.52, 0.30)

	result := ApplyGate(docs, gateConfig(), 5)

	if !result.Relative {
		t.Fatal("Relative = false, want relative fallback when max_sim < base")
	}
	if len(result.Kept) != 2 {
		t.Fatalf("kept %d docs, want 2", len(result.Kept))
	}
	if math.Abs(result.Threshold-0.51) > 1e-9 {
		t.Errorf("Threshold = %g, want max_sim - margin = 0.51", result.Threshold)
	}
}

func TestApplyGate_CapsAtTenOrTopK(t *testing.T) {
	sims := make([]float64, 15)
	for i := range sims {
		sims[i] = 0.9
	}
	docs := simDocs(sims...)

	if got := ApplyGate(docs, gateConfig(), 5); len(got.Kept) != 10 {
		t.Errorf("kept %d with top_k=5, want cap of 10", len(got.Kept))
	}
	if got := ApplyGate(docs, gateConfig(), 12); len(got.Kept) != 12 {
		t.Errorf("kept %d with top_k=12, want cap of 12", len(got.Kept))
	}
}

func TestApplyGate_MarginDisabled(t *testing.T) {
	docs := simDocs(0.95, 0.6, 0.5, 0.4, 0.2)

	adaptive := ApplyGate(docs, gateConfig(), 5)
	if adaptive.Margin != 0.10 {
		t.Errorf("adaptive margin = %g, want wide spread clamped to 0.10", adaptive.Margin)
	}

	fixed := gateConfig()
	fixed.Margin.Enabled = config.BoolPtr(false)
	result := ApplyGate(docs, fixed, 5)
	if result.Margin != 0.04 {
		t.Errorf("fixed margin = %g, want the configured minimum 0.04", result.Margin)
	}
}

func TestApplyGate_ThresholdNeverBelowBase(t *testing.T) {
	pools := [][]float64{
		{0.9, 0.88, 0.87, 0.7, 0.5},
		{0.70, 0.69, 0.68, 0.67, 0.66},
		{0.99, 0.65, 0.65, 0.65},
	}

	for _, sims := range pools {
		result := ApplyGate(simDocs(sims...), gateConfig(), 5)
		if result.Relative {
			t.Errorf("pool %v: unexpected relative fallback", sims)
			continue
		}
		if result.Threshold < 0.65 {
			t.Errorf("pool %v: threshold %g below base 0.65", sims, result.Threshold)
		}
		for _, d := range result.Kept {
			if d.IndexScore < result.Threshold {
				t.Errorf("pool %v: kept doc %g below threshold %g", sims, d.IndexScore, result.Threshold)
			}
		}
	}
}

func TestApplyGate_MonotoneInBaseThreshold(t *testing.T) {
	// Fixed pool, rising base threshold: the kept count must never
	// grow. Holds in the confident regime (base <= max_sim); the
	// relative fallback re-expands weak pools on purpose.
	docs := simDocs(0.9, 0.89, 0.88, 0.87, 0.86, 0.7, 0.65)

	prev := len(docs) + 1
	for _, base := range []float64{0.65, 0.86, 0.87, 0.88, 0.89, 0.90} {
		cfg := gateConfig()
		cfg.BaseThreshold = base
		result := ApplyGate(docs, cfg, 10)
		if result.Relative {
			t.Fatalf("base %g: relative fallback inside the confident regime", base)
		}
		if len(result.Kept) > prev {
			t.Errorf("base %g: kept %d docs, more than %d at the lower threshold",
				base, len(result.Kept), prev)
		}
		prev = len(result.Kept)
	}
	if prev != 1 {
		t.Errorf("kept %d docs at base = max_sim, want 1", prev)
	}
}

func TestApplyGate_Empty(t *testing.T) {
	result := ApplyGate(nil, gateConfig(), 5)
	if len(result.Kept) != 0 || result.MaxSim != 0 {
		t.Errorf("empty input produced %+v", result)
	}
}

func TestTopUpBySimilarity(t *testing.T) {
	pool := simDocs(0.9, 0.5, 0.7, 0.6)
	kept := []Document{pool[0]}

	out := TopUpBySimilarity(kept, pool, 3)

	if len(out) != 3 {
		t.Fatalf("topped up to %d, want 3", len(out))
	}
	if out[0].IndexScore != 0.9 {
		t.Error("existing kept doc should stay first")
	}
	if out[1].IndexScore != 0.7 || out[2].IndexScore != 0.6 {
		t.Errorf("top-up order = [%g %g], want highest remaining similarity first",
			out[1].IndexScore, out[2].IndexScore)
	}
}

func TestTopUpBySimilarity_AlreadyEnough(t *testing.T) {
	pool := simDocs(0.9, 0.8)
	out := TopUpBySimilarity(pool, pool, 2)
	if len(out) != 2 {
		t.Errorf("got %d docs, want input unchanged at 2", len(out))
	}
}

func TestRefillPool(t *testing.T) {
	original := simDocs(0.9, 0.55)
	widened := []Document{
		original[0], // duplicate of the top doc
		{Title: "w-1", Content: "c", Score: 0.65, IndexScore: 0.65},
		{Title: "w-2", Content: "c", Score: 0.45, IndexScore: 0.45},
	}

	out := RefillPool(original, widened, 0.5, 3)

	if len(out) != 3 {
		t.Fatalf("refilled to %d docs, want 3", len(out))
	}
	for i, want := range []float64{0.9, 0.65, 0.55} {
		if out[i].IndexScore != want {
			t.Errorf("out[%d] = %g, want %g (similarity order above threshold)",
				i, out[i].IndexScore, want)
		}
	}
}

func TestRefillPool_BackfillsIgnoringThreshold(t *testing.T) {
	original := simDocs(0.9)
	widened := simDocs(0.45, 0.40)
	// simDocs titles collide across calls; rename the widened docs.
	widened[0].Title = "w-0"
	widened[1].Title = "w-1"

	out := RefillPool(original, widened, 0.5, 3)

	if len(out) != 3 {
		t.Fatalf("refilled to %d docs, want backfill to 3", len(out))
	}
	if out[0].IndexScore != 0.9 || out[1].IndexScore != 0.45 || out[2].IndexScore != 0.40 {
		t.Errorf("order = [%g %g %g], want threshold survivors then backfill",
			out[0].IndexScore, out[1].IndexScore, out[2].IndexScore)
	}
}

func TestRefillPool_CapsAtMaxDocs(t *testing.T) {
	original := simDocs(0.9, 0.85, 0.8)
	widened := simDocs(0.75, 0.7)
	widened[0].Title = "w-0"
	widened[1].Title = "w-1"

	out := RefillPool(original, widened, 0.5, 4)
	if len(out) != 4 {
		t.Errorf("refilled to %d docs, want cap of 4", len(out))
	}
}
