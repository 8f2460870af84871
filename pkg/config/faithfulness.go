package config

import (
	"fmt"
	"time"
)

// FaithfulnessConfig configures the groundedness check that scores a
// generated answer against its source documents.
type FaithfulnessConfig struct {
	// Enabled turns the check on. Default: true
	Enabled *bool `yaml:"enabled,omitempty"`

	// Threshold is the score at or above which an answer passes.
	// Default: 0.7
	Threshold float64 `yaml:"threshold,omitempty"`

	// FallbackBelow is the score below which the pipeline discards the
	// answer and retries with web search context. Default: 0.1
	FallbackBelow float64 `yaml:"fallback_below,omitempty"`

	// Timeout bounds the scoring call; on expiry the answer is served
	// with a zero score and a warning rather than discarded. Default: 8s
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *FaithfulnessConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.Threshold == 0 {
		c.Threshold = 0.7
	}
	if c.FallbackBelow == 0 {
		c.FallbackBelow = 0.1
	}
	if c.Timeout == 0 {
		c.Timeout = 8 * time.Second
	}
}

// Validate checks the faithfulness configuration.
func (c *FaithfulnessConfig) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %g", c.Threshold)
	}
	if c.FallbackBelow < 0 || c.FallbackBelow > 1 {
		return fmt.Errorf("fallback_below must be between 0 and 1, got %g", c.FallbackBelow)
	}
	if c.FallbackBelow > c.Threshold {
		return fmt.Errorf("fallback_below (%g) must not exceed threshold (%g)", c.FallbackBelow, c.Threshold)
	}
	return nil
}

// IsEnabled returns whether the faithfulness check is on.
func (c *FaithfulnessConfig) IsEnabled() bool {
	return BoolValue(c.Enabled, true)
}
