package config

import (
	"fmt"
	"time"
)

// GenerationConfig configures grounded answer generation.
type GenerationConfig struct {
	// Timeout bounds the generation call; on expiry a truncated but
	// grounded answer is preferred over failure. Default: 20s
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// ContextTokenBudget caps the token count of retrieved document
	// text packed into the prompt. Documents past the budget are left
	// out. Default: 3000
	ContextTokenBudget int `yaml:"context_token_budget,omitempty"`

	// CitationsRequired rejects answers whose citations reference URLs
	// outside the final document set. Default: true
	CitationsRequired *bool `yaml:"citations_required,omitempty"`
}

// SetDefaults applies default values.
func (c *GenerationConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 20 * time.Second
	}
	if c.ContextTokenBudget == 0 {
		c.ContextTokenBudget = 3000
	}
	if c.CitationsRequired == nil {
		c.CitationsRequired = BoolPtr(true)
	}
}

// Validate checks the generation configuration.
func (c *GenerationConfig) Validate() error {
	if c.ContextTokenBudget < 0 {
		return fmt.Errorf("context_token_budget must be non-negative")
	}
	return nil
}
