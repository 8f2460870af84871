// Package config defines the service configuration tree and the loading
// pipeline: raw bytes from a provider, YAML parse, environment variable
// expansion, mapstructure decode, defaults, validation.
package config

import (
	"fmt"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
)

// Config is the root configuration for the climate chat service.
//
// Example YAML:
//
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	models:
//	  cohere:
//	    api_key: ${COHERE_API_KEY}
//	  bedrock:
//	    region: us-east-1
//	index:
//	  provider: pinecone
//	  pinecone:
//	    api_key: ${PINECONE_API_KEY}
//	    index_name: climate-chat-index
//	redis:
//	  enabled: true
//	  addr: ${REDIS_ADDR:-localhost:6379}
type Config struct {
	Server       ServerConfig       `yaml:"server,omitempty"`
	Logging      LoggerConfig       `yaml:"logging,omitempty"`
	Models       ModelsConfig       `yaml:"models,omitempty"`
	Embedder     EmbedderConfig     `yaml:"embedder,omitempty"`
	Index        IndexConfig        `yaml:"index,omitempty"`
	Retrieval    RetrievalConfig    `yaml:"retrieval,omitempty"`
	Filters      FiltersConfig      `yaml:"filters,omitempty"`
	Rerank       RerankConfig       `yaml:"rerank,omitempty"`
	Classify     ClassifyConfig     `yaml:"classify,omitempty"`
	Generation   GenerationConfig   `yaml:"generation,omitempty"`
	Faithfulness FaithfulnessConfig `yaml:"faithfulness,omitempty"`
	WebSearch    WebSearchConfig    `yaml:"web_search,omitempty"`
	Redis        RedisConfig        `yaml:"redis,omitempty"`
	Feedback     FeedbackConfig     `yaml:"feedback,omitempty"`

	// Observability configures tracing and metrics.
	Observability *observability.Config `yaml:"observability,omitempty"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Logging.SetDefaults()
	c.Models.SetDefaults()
	c.Embedder.SetDefaults()
	c.Index.SetDefaults()
	c.Retrieval.SetDefaults()
	c.Filters.SetDefaults()
	c.Rerank.SetDefaults()
	c.Classify.SetDefaults()
	c.Generation.SetDefaults()
	c.Faithfulness.SetDefaults()
	c.WebSearch.SetDefaults()
	c.Redis.SetDefaults()
	c.Feedback.SetDefaults()
	if c.Observability != nil {
		c.Observability.SetDefaults()
	}
}

// Validate checks every section for errors.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"server", &c.Server},
		{"logging", &c.Logging},
		{"models", &c.Models},
		{"embedder", &c.Embedder},
		{"index", &c.Index},
		{"retrieval", &c.Retrieval},
		{"filters", &c.Filters},
		{"rerank", &c.Rerank},
		{"classify", &c.Classify},
		{"generation", &c.Generation},
		{"faithfulness", &c.Faithfulness},
		{"web_search", &c.WebSearch},
		{"redis", &c.Redis},
		{"feedback", &c.Feedback},
	}

	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}

	if c.Observability != nil {
		if err := c.Observability.Validate(); err != nil {
			return fmt.Errorf("observability: %w", err)
		}
	}

	return nil
}

// ObservabilityConfig returns the observability section, or a disabled
// default when the section is absent.
func (c *Config) ObservabilityConfig() observability.Config {
	if c.Observability == nil {
		return observability.Config{}
	}
	return *c.Observability
}

// BoolPtr is a literal-to-pointer helper for the tri-state bool options
// (nil means "defaulted").
func BoolPtr(b bool) *bool { return &b }

// BoolValue dereferences a tri-state bool, falling back when unset.
func BoolValue(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}
