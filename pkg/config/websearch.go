package config

import (
	"fmt"
	"time"
)

// WebSearchConfig configures the web search fallback used when the
// faithfulness score collapses or the index returns nothing usable.
type WebSearchConfig struct {
	// Enabled turns the fallback on. Default: true when an API key is
	// configured, false otherwise.
	Enabled *bool `yaml:"enabled,omitempty"`

	// APIKey authenticates against the search API.
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL is the search API endpoint.
	// Default: https://api.tavily.com
	BaseURL string `yaml:"base_url,omitempty"`

	// MaxResults caps how many results are folded into the fallback
	// context. Default: 5
	MaxResults int `yaml:"max_results,omitempty"`

	// Timeout bounds the search call. Default: 15s
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// CACertFile trusts a private CA, for self-hosted search gateways.
	CACertFile string `yaml:"ca_cert_file,omitempty"`

	// InsecureSkipVerify disables TLS verification. Development only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty"`
}

// SetDefaults applies default values.
func (c *WebSearchConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(c.APIKey != "")
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.tavily.com"
	}
	if c.MaxResults == 0 {
		c.MaxResults = 5
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
}

// Validate checks the web search configuration.
func (c *WebSearchConfig) Validate() error {
	if BoolValue(c.Enabled, false) && c.APIKey == "" {
		return fmt.Errorf("api_key is required when web search is enabled")
	}
	if c.MaxResults < 0 {
		return fmt.Errorf("max_results must be non-negative")
	}
	return nil
}

// IsEnabled returns whether the web search fallback is on.
func (c *WebSearchConfig) IsEnabled() bool {
	return BoolValue(c.Enabled, false)
}
