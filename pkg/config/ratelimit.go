package config

import (
	"fmt"
	"time"
)

// RateLimitConfig configures per-client token-bucket rate limiting.
//
// Each client identity (remote IP, or X-Forwarded-For when present) gets
// a bucket with Burst capacity that refills at RequestsPerMinute/60
// tokens per second. A request with no token available is rejected with
// HTTP 429.
//
// Example:
//
//	server:
//	  rate_limit:
//	    enabled: true
//	    requests_per_minute: 60
//	    burst: 10
type RateLimitConfig struct {
	// Enabled turns the limiter on. Tri-state so an explicit false
	// survives defaulting. Default: true.
	Enabled *bool `yaml:"enabled,omitempty"`

	// RequestsPerMinute is the sustained request rate per client.
	// Default: 60
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty"`

	// Burst is the bucket capacity: how many requests a client may
	// issue at once before the refill rate applies.
	// Default: 10
	Burst int `yaml:"burst,omitempty"`

	// IdleTTL is how long an idle client bucket is kept before it is
	// swept. Default: 10m
	IdleTTL time.Duration `yaml:"idle_ttl,omitempty"`
}

// IsEnabled reports whether the limiter applies, defaulting on when
// the field was never set.
func (c *RateLimitConfig) IsEnabled() bool {
	return c != nil && BoolValue(c.Enabled, true)
}

// SetDefaults fills in the limiter defaults.
func (c *RateLimitConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = 60
	}
	if c.Burst == 0 {
		c.Burst = 10
	}
	if c.IdleTTL == 0 {
		c.IdleTTL = 10 * time.Minute
	}
}

// Validate checks the limiter settings for impossible values.
func (c *RateLimitConfig) Validate() error {
	if !c.IsEnabled() {
		return nil
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be non-negative")
	}
	if c.Burst < 0 {
		return fmt.Errorf("burst must be non-negative")
	}
	return nil
}
