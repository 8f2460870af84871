package config

import (
	"fmt"
	"time"
)

// RerankConfig configures the Cohere reranker. Reranking is advisory:
// when the call fails or times out, the pipeline keeps the input order.
type RerankConfig struct {
	// Enabled turns reranking on. Default: true
	Enabled *bool `yaml:"enabled,omitempty"`

	// MaxChars clips each document before it is sent to the reranker.
	// Default: 1500
	MaxChars int `yaml:"max_chars,omitempty"`

	// Timeout bounds the rerank call; on expiry the input order is
	// kept. Default: 10s
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *RerankConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.MaxChars == 0 {
		c.MaxChars = 1500
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Validate checks the rerank configuration.
func (c *RerankConfig) Validate() error {
	if c.MaxChars < 0 {
		return fmt.Errorf("max_chars must be non-negative")
	}
	return nil
}

// IsEnabled returns whether reranking is on.
func (c *RerankConfig) IsEnabled() bool {
	return BoolValue(c.Enabled, true)
}
