package databases

import (
	"context"
	"fmt"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

// NewIndexFromConfig creates the configured index provider.
func NewIndexFromConfig(ctx context.Context, cfg *config.IndexConfig) (Index, error) {
	if cfg == nil {
		return nil, fmt.Errorf("index config cannot be nil")
	}

	switch cfg.Provider {
	case "", "pinecone":
		return NewPineconeIndexFromConfig(ctx, cfg.Pinecone)
	case "chromem":
		return NewChromemIndexFromConfig(cfg.Chromem)
	default:
		return nil, fmt.Errorf("unsupported index provider: %s", cfg.Provider)
	}
}
