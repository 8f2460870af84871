package config

import (
	"fmt"
	"time"
)

// RetrievalConfig configures hybrid retrieval and the post-retrieval
// stages that shape the final document set: similarity gating with
// refill, MMR diversification, reranking hand-off, and finalization.
//
// Example:
//
//	retrieval:
//	  top_k: 5
//	  fetch_k: 20
//	  alpha: 0.6
//	  gate:
//	    base_threshold: 0.65
//	    min_kept: 3
//	  mmr:
//	    lambda: 0.3
//	    pool_size: 12
type RetrievalConfig struct {
	// TopK is the number of documents the pipeline ultimately returns
	// to generation. Default: 5
	TopK int `yaml:"top_k,omitempty"`

	// FetchK is the number of candidates fetched from the index before
	// filtering. Default: 20
	FetchK int `yaml:"fetch_k,omitempty"`

	// Alpha weights dense versus sparse scores in hybrid search: dense
	// values are scaled by alpha, sparse values by (1-alpha). Dense-only
	// queries ignore it. Default: 0.6
	Alpha float64 `yaml:"alpha,omitempty"`

	// EmbedCacheSize is the capacity of the in-process LRU that caches
	// document vectors for MMR, keyed by chunk ID. Default: 4000
	EmbedCacheSize int `yaml:"embed_cache_size,omitempty"`

	// Timeout bounds the whole retrieval stage (embed, query, filter,
	// gate, MMR). Default: 8s
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Gate configures the similarity gate and its refill pass.
	Gate GateConfig `yaml:"gate,omitempty"`

	// MMR configures maximal-marginal-relevance diversification.
	MMR MMRConfig `yaml:"mmr,omitempty"`

	// Finalize configures post-rerank score flooring and backfill.
	Finalize FinalizeConfig `yaml:"finalize,omitempty"`
}

// GateConfig configures the adaptive similarity gate.
type GateConfig struct {
	// BaseThreshold is the score below which candidates are dropped
	// before the adaptive margin is added. Default: 0.65
	BaseThreshold float64 `yaml:"base_threshold,omitempty"`

	// MinScore drops candidates below this absolute index score before
	// gating. Zero disables the pre-filter.
	MinScore float64 `yaml:"min_score,omitempty"`

	// Margin configures the adaptive margin below the best score.
	Margin MarginConfig `yaml:"margin,omitempty"`

	// MinKept is the minimum number of survivors; fewer triggers a
	// widened refill query. Default: 3
	MinKept int `yaml:"min_kept,omitempty"`

	// Refill enables the widened re-query when too few candidates
	// survive the gate. Default: true
	Refill *bool `yaml:"refill,omitempty"`

	// WidenFactor multiplies fetch_k for the refill query. Default: 3
	WidenFactor int `yaml:"widen_factor,omitempty"`

	// FallbackThreshold filters refill candidates; it is intentionally
	// looser than the base threshold. Default: 0.5
	FallbackThreshold float64 `yaml:"fallback_threshold,omitempty"`
}

// MarginConfig configures the adaptive similarity margin. The margin is
// derived from the score spread (half the p95-p50 distance) and clamped
// to [Min, Max].
type MarginConfig struct {
	// Enabled turns the adaptive margin on. Default: true
	Enabled *bool `yaml:"enabled,omitempty"`

	// Min is the smallest margin. Default: 0.04
	Min float64 `yaml:"min,omitempty"`

	// Max is the largest margin. Default: 0.10
	Max float64 `yaml:"max,omitempty"`
}

// MMRConfig configures maximal-marginal-relevance diversification.
type MMRConfig struct {
	// Enabled turns MMR on. Default: true
	Enabled *bool `yaml:"enabled,omitempty"`

	// Lambda balances relevance (1.0) against diversity (0.0).
	// Default: 0.3
	Lambda float64 `yaml:"lambda,omitempty"`

	// PoolSize is the overfetched candidate pool MMR selects from,
	// and the cap on documents handed to the reranker. Default: 12
	PoolSize int `yaml:"pool_size,omitempty"`
}

// FinalizeConfig configures the post-rerank finalizer.
type FinalizeConfig struct {
	// HardFloor is the minimum rerank score a document needs to be
	// kept. The working floor never drops below it and never rises
	// above 0.95. Default: 0.6
	HardFloor float64 `yaml:"hard_floor,omitempty"`

	// MinAbove is the number of documents that must clear the floor
	// before it soft-relaxes toward weaker candidates. Default: 3
	MinAbove int `yaml:"min_above,omitempty"`

	// SecondPass enables a widened re-query plus rerank when the first
	// pass keeps fewer than top_k documents. Default: true
	SecondPass *bool `yaml:"second_pass,omitempty"`
}

// SetDefaults applies default values.
func (c *RetrievalConfig) SetDefaults() {
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.FetchK == 0 {
		c.FetchK = 20
	}
	if c.Alpha == 0 {
		c.Alpha = 0.6
	}
	if c.EmbedCacheSize == 0 {
		c.EmbedCacheSize = 4000
	}
	if c.Timeout == 0 {
		c.Timeout = 8 * time.Second
	}
	c.Gate.SetDefaults()
	c.MMR.SetDefaults()
	c.Finalize.SetDefaults()
}

// Validate checks the retrieval configuration.
func (c *RetrievalConfig) Validate() error {
	if c.TopK < 0 {
		return fmt.Errorf("top_k must be non-negative")
	}
	if c.FetchK < c.TopK {
		return fmt.Errorf("fetch_k (%d) must be at least top_k (%d)", c.FetchK, c.TopK)
	}
	if c.Alpha < 0 || c.Alpha > 1 {
		return fmt.Errorf("alpha must be between 0 and 1, got %g", c.Alpha)
	}
	if c.EmbedCacheSize < 0 {
		return fmt.Errorf("embed_cache_size must be non-negative")
	}
	if err := c.Gate.Validate(); err != nil {
		return fmt.Errorf("gate: %w", err)
	}
	if err := c.MMR.Validate(); err != nil {
		return fmt.Errorf("mmr: %w", err)
	}
	if err := c.Finalize.Validate(); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	return nil
}

// SetDefaults applies default values.
func (c *GateConfig) SetDefaults() {
	if c.BaseThreshold == 0 {
		c.BaseThreshold = 0.65
	}
	if c.Refill == nil {
		c.Refill = BoolPtr(true)
	}
	c.Margin.SetDefaults()
	if c.MinKept == 0 {
		c.MinKept = 3
	}
	if c.WidenFactor == 0 {
		c.WidenFactor = 3
	}
	if c.FallbackThreshold == 0 {
		c.FallbackThreshold = 0.5
	}
}

// Validate checks the gate configuration.
func (c *GateConfig) Validate() error {
	if c.BaseThreshold < 0 || c.BaseThreshold > 1 {
		return fmt.Errorf("base_threshold must be between 0 and 1, got %g", c.BaseThreshold)
	}
	if c.FallbackThreshold < 0 || c.FallbackThreshold > 1 {
		return fmt.Errorf("fallback_threshold must be between 0 and 1, got %g", c.FallbackThreshold)
	}
	if c.MinKept < 0 {
		return fmt.Errorf("min_kept must be non-negative")
	}
	if c.WidenFactor < 1 {
		return fmt.Errorf("widen_factor must be at least 1")
	}
	if c.Margin.Min < 0 || c.Margin.Max < c.Margin.Min {
		return fmt.Errorf("margin min/max must satisfy 0 <= min <= max, got %g..%g",
			c.Margin.Min, c.Margin.Max)
	}
	return nil
}

// SetDefaults applies default values.
func (c *MarginConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.Min == 0 {
		c.Min = 0.04
	}
	if c.Max == 0 {
		c.Max = 0.10
	}
}

// IsEnabled returns whether the adaptive margin is on.
func (c *MarginConfig) IsEnabled() bool {
	return BoolValue(c.Enabled, true)
}

// RefillEnabled returns whether the widened refill query is on.
func (c *GateConfig) RefillEnabled() bool {
	return BoolValue(c.Refill, true)
}

// SetDefaults applies default values.
func (c *MMRConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.Lambda == 0 {
		c.Lambda = 0.3
	}
	if c.PoolSize == 0 {
		c.PoolSize = 12
	}
}

// Validate checks the MMR configuration.
func (c *MMRConfig) Validate() error {
	if c.Lambda < 0 || c.Lambda > 1 {
		return fmt.Errorf("lambda must be between 0 and 1, got %g", c.Lambda)
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("pool_size must be non-negative")
	}
	return nil
}

// IsEnabled returns whether MMR diversification is on.
func (c *MMRConfig) IsEnabled() bool {
	return BoolValue(c.Enabled, true)
}

// SetDefaults applies default values.
func (c *FinalizeConfig) SetDefaults() {
	if c.HardFloor == 0 {
		c.HardFloor = 0.6
	}
	if c.MinAbove == 0 {
		c.MinAbove = 3
	}
	if c.SecondPass == nil {
		c.SecondPass = BoolPtr(true)
	}
}

// Validate checks the finalize configuration.
func (c *FinalizeConfig) Validate() error {
	if c.HardFloor < 0 || c.HardFloor > 1 {
		return fmt.Errorf("hard_floor must be between 0 and 1, got %g", c.HardFloor)
	}
	if c.MinAbove < 0 {
		return fmt.Errorf("min_above must be non-negative")
	}
	return nil
}

// SecondPassEnabled returns whether the widened second pass is on.
func (c *FinalizeConfig) SecondPassEnabled() bool {
	return BoolValue(c.SecondPass, true)
}
