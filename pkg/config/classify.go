package config

import (
	"fmt"
	"time"
)

// ClassifyConfig configures the combined query classifier and rewriter,
// a single LLM call that yields topic check, safety check, language
// check, and a standalone rewrite of the query.
type ClassifyConfig struct {
	// Timeout bounds the classification call; on expiry the pipeline
	// proceeds with a safe default (on-topic, unharmful, no rewrite).
	// Default: 6s
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// MaxHistoryTurns caps how many prior conversation turns are given
	// to the classifier for rewriting. Default: 4
	MaxHistoryTurns int `yaml:"max_history_turns,omitempty"`
}

// SetDefaults applies default values.
func (c *ClassifyConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 6 * time.Second
	}
	if c.MaxHistoryTurns == 0 {
		c.MaxHistoryTurns = 4
	}
}

// Validate checks the classify configuration.
func (c *ClassifyConfig) Validate() error {
	if c.MaxHistoryTurns < 0 {
		return fmt.Errorf("max_history_turns must be non-negative")
	}
	return nil
}
