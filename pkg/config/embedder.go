package config

import "fmt"

// EmbedderConfig configures query and document embedding. Dense vectors
// come from the Cohere embed API (credentials under models.cohere);
// sparse vectors come from a local BM25 encoder so hybrid search works
// without a second network dependency.
//
// Example:
//
//	embedder:
//	  dimension: 1024
//	  batch_size: 64
//	  sparse:
//	    enabled: true
//	    stats_path: ./data/bm25_stats.json
type EmbedderConfig struct {
	// Dimension is the dense vector dimension, which must match the
	// index. Default: 1024 (embed-multilingual-v3.0)
	Dimension int `yaml:"dimension,omitempty"`

	// BatchSize caps how many texts one embed call may carry.
	// Default: 64
	BatchSize int `yaml:"batch_size,omitempty"`

	// Sparse configures the BM25 sparse encoder.
	Sparse SparseConfig `yaml:"sparse,omitempty"`
}

// SparseConfig configures the BM25 sparse query encoder.
type SparseConfig struct {
	// Enabled turns sparse encoding on. When off, retrieval runs
	// dense-only. Default: true
	Enabled *bool `yaml:"enabled,omitempty"`

	// StatsPath points to a JSON file with corpus statistics
	// (vocabulary, document frequencies). When empty, the encoder
	// falls back to built-in defaults tuned for the climate corpus.
	StatsPath string `yaml:"stats_path,omitempty"`

	// K1 is the BM25 term frequency saturation parameter. Default: 1.5
	K1 float64 `yaml:"k1,omitempty"`

	// B is the BM25 length normalization parameter. Default: 0.75
	B float64 `yaml:"b,omitempty"`
}

// SetDefaults applies default values.
func (c *EmbedderConfig) SetDefaults() {
	if c.Dimension == 0 {
		c.Dimension = 1024
	}
	if c.BatchSize == 0 {
		c.BatchSize = 64
	}
	c.Sparse.SetDefaults()
}

// Validate checks the embedder configuration.
func (c *EmbedderConfig) Validate() error {
	if c.Dimension < 0 {
		return fmt.Errorf("dimension must be non-negative")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must be non-negative")
	}
	return c.Sparse.Validate()
}

// IsSparseEnabled returns whether sparse encoding is on.
func (c *EmbedderConfig) IsSparseEnabled() bool {
	return BoolValue(c.Sparse.Enabled, true)
}

// SetDefaults applies default values.
func (c *SparseConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.K1 == 0 {
		c.K1 = 1.5
	}
	if c.B == 0 {
		c.B = 0.75
	}
}

// Validate checks the sparse encoder configuration.
func (c *SparseConfig) Validate() error {
	if c.K1 < 0 {
		return fmt.Errorf("k1 must be non-negative")
	}
	if c.B < 0 || c.B > 1 {
		return fmt.Errorf("b must be between 0 and 1, got %g", c.B)
	}
	return nil
}
