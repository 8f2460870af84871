package config

import (
	"fmt"
	"time"
)

// ModelsConfig configures the two generation backends and how queries
// are routed between them: Cohere Command-A for the languages it
// officially supports, Amazon Nova on Bedrock for everything else.
//
// Example:
//
//	models:
//	  cohere:
//	    api_key: ${COHERE_API_KEY}
//	    chat_model: command-a-03-2025
//	  bedrock:
//	    region: us-east-1
//	    model_id: amazon.nova-lite-v1:0
//	  force_command_a: false
type ModelsConfig struct {
	// Cohere configures the Cohere API client (chat, embed, rerank).
	Cohere CohereConfig `yaml:"cohere,omitempty"`

	// Bedrock configures the Amazon Bedrock runtime client.
	Bedrock BedrockConfig `yaml:"bedrock,omitempty"`

	// ForceCommandA routes every language to the Cohere backend,
	// regardless of the routing table. The FORCE_BACKEND_A environment
	// variable (any non-empty value but "0"/"false") has the same
	// effect and takes precedence.
	ForceCommandA bool `yaml:"force_command_a,omitempty"`
}

// CohereConfig configures the Cohere API client.
type CohereConfig struct {
	// APIKey authenticates against the Cohere API.
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL is the API root. Default: https://api.cohere.com
	BaseURL string `yaml:"base_url,omitempty"`

	// ChatModel is the generation model. Default: command-a-03-2025
	ChatModel string `yaml:"chat_model,omitempty"`

	// EmbedModel is the embedding model. Default: embed-multilingual-v3.0
	EmbedModel string `yaml:"embed_model,omitempty"`

	// RerankModel is the reranking model. Default: rerank-v3.5
	RerankModel string `yaml:"rerank_model,omitempty"`

	// Temperature for chat generation. Default: 0.3
	Temperature float64 `yaml:"temperature,omitempty"`

	// MaxTokens caps chat generation length. Default: 1024
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// Timeout bounds a single API call. Default: 60s
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// MaxRetries bounds retry attempts on retryable failures. Default: 3
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// BedrockConfig configures the Amazon Bedrock runtime client.
// Credentials come from the standard AWS chain (env, shared config,
// instance role).
type BedrockConfig struct {
	// Region is the AWS region. Default: us-east-1
	Region string `yaml:"region,omitempty"`

	// ModelID is the Bedrock model identifier.
	// Default: amazon.nova-lite-v1:0
	ModelID string `yaml:"model_id,omitempty"`

	// Temperature for generation. Default: 0.3
	Temperature float64 `yaml:"temperature,omitempty"`

	// MaxTokens caps generation length. Default: 1024
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// Timeout bounds a single Converse call. Default: 60s
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *ModelsConfig) SetDefaults() {
	c.Cohere.SetDefaults()
	c.Bedrock.SetDefaults()
}

// Validate checks the models configuration.
func (c *ModelsConfig) Validate() error {
	if err := c.Cohere.Validate(); err != nil {
		return fmt.Errorf("cohere: %w", err)
	}
	if err := c.Bedrock.Validate(); err != nil {
		return fmt.Errorf("bedrock: %w", err)
	}
	return nil
}

// SetDefaults applies default values.
func (c *CohereConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.cohere.com"
	}
	if c.ChatModel == "" {
		c.ChatModel = "command-a-03-2025"
	}
	if c.EmbedModel == "" {
		c.EmbedModel = "embed-multilingual-v3.0"
	}
	if c.RerankModel == "" {
		c.RerankModel = "rerank-v3.5"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate checks the Cohere configuration.
func (c *CohereConfig) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	return nil
}

// SetDefaults applies default values.
func (c *BedrockConfig) SetDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.ModelID == "" {
		c.ModelID = "amazon.nova-lite-v1:0"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

// Validate checks the Bedrock configuration.
func (c *BedrockConfig) Validate() error {
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %g", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	return nil
}
