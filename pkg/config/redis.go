package config

import (
	"fmt"
	"time"
)

// RedisConfig configures the Redis response cache. The cache is an
// optimization only: connection failures, misses, and write errors are
// logged and the request proceeds uncached.
//
// Example:
//
//	redis:
//	  enabled: true
//	  addr: ${REDIS_ADDR:-localhost:6379}
//	  ttl: 1h
type RedisConfig struct {
	// Enabled turns the response cache on. Default: false
	Enabled *bool `yaml:"enabled,omitempty"`

	// Addr is the host:port of the Redis server.
	// Default: localhost:6379
	Addr string `yaml:"addr,omitempty"`

	// Password authenticates against Redis (optional).
	Password string `yaml:"password,omitempty"`

	// DB selects the Redis logical database. Default: 0
	DB int `yaml:"db,omitempty"`

	// TTL is how long a cached response lives. Default: 1h
	TTL time.Duration `yaml:"ttl,omitempty"`

	// DialTimeout bounds the initial connection and the readiness
	// ping. Default: 2s
	DialTimeout time.Duration `yaml:"dial_timeout,omitempty"`

	// OpTimeout bounds a single get or set. Default: 500ms
	OpTimeout time.Duration `yaml:"op_timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *RedisConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(false)
	}
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.TTL == 0 {
		c.TTL = time.Hour
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 2 * time.Second
	}
	if c.OpTimeout == 0 {
		c.OpTimeout = 500 * time.Millisecond
	}
}

// Validate checks the Redis configuration.
func (c *RedisConfig) Validate() error {
	if c.DB < 0 {
		return fmt.Errorf("db must be non-negative")
	}
	if c.TTL < 0 {
		return fmt.Errorf("ttl must be non-negative")
	}
	return nil
}

// IsEnabled returns whether the response cache is on.
func (c *RedisConfig) IsEnabled() bool {
	return BoolValue(c.Enabled, false)
}
