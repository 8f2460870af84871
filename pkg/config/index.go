package config

import "fmt"

// IndexConfig configures the vector index that retrieval queries.
//
// Example:
//
//	index:
//	  provider: pinecone
//	  pinecone:
//	    api_key: ${PINECONE_API_KEY}
//	    index_name: climate-chat-index
//	    namespace: production
type IndexConfig struct {
	// Provider identifies which index to use.
	// Values: "pinecone" (default), "chromem" (embedded, local dev)
	Provider string `yaml:"provider,omitempty"`

	// Pinecone configuration (used when Provider="pinecone").
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`

	// Chromem configuration (used when Provider="chromem").
	Chromem *ChromemConfig `yaml:"chromem,omitempty"`
}

// PineconeConfig configures the Pinecone index client.
type PineconeConfig struct {
	// APIKey authenticates against Pinecone.
	APIKey string `yaml:"api_key,omitempty"`

	// IndexName is the name of the serverless index.
	// Default: climate-chat-index
	IndexName string `yaml:"index_name,omitempty"`

	// Namespace scopes queries within the index (optional).
	Namespace string `yaml:"namespace,omitempty"`

	// Host overrides the index host resolved via DescribeIndex
	// (optional, useful for tests).
	Host string `yaml:"host,omitempty"`
}

// ChromemConfig configures the chromem-go embedded index, used for
// local development and hermetic tests where no Pinecone index is
// reachable.
type ChromemConfig struct {
	// PersistPath for file persistence (optional).
	// If empty, vectors are stored in memory only.
	PersistPath string `yaml:"persist_path,omitempty"`

	// Compress enables gzip compression for persistence.
	Compress bool `yaml:"compress,omitempty"`

	// Collection is the collection name. Default: climate-docs
	Collection string `yaml:"collection,omitempty"`
}

// SetDefaults applies default values.
func (c *IndexConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "pinecone"
	}
	if c.Provider == "pinecone" && c.Pinecone == nil {
		c.Pinecone = &PineconeConfig{}
	}
	if c.Provider == "chromem" && c.Chromem == nil {
		c.Chromem = &ChromemConfig{}
	}
	if c.Pinecone != nil {
		c.Pinecone.SetDefaults()
	}
	if c.Chromem != nil {
		c.Chromem.SetDefaults()
	}
}

// Validate checks the index configuration.
func (c *IndexConfig) Validate() error {
	switch c.Provider {
	case "", "pinecone", "chromem":
	default:
		return fmt.Errorf("unknown index provider: %q (valid: pinecone, chromem)", c.Provider)
	}
	if c.Provider == "pinecone" && c.Pinecone != nil {
		if err := c.Pinecone.Validate(); err != nil {
			return fmt.Errorf("pinecone: %w", err)
		}
	}
	return nil
}

// SetDefaults applies default values.
func (c *PineconeConfig) SetDefaults() {
	if c.IndexName == "" {
		c.IndexName = "climate-chat-index"
	}
}

// Validate checks the Pinecone configuration.
func (c *PineconeConfig) Validate() error {
	if c.IndexName == "" {
		return fmt.Errorf("index_name is required")
	}
	return nil
}

// SetDefaults applies default values.
func (c *ChromemConfig) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "climate-docs"
	}
}
