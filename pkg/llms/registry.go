package llms

import (
	"context"
	"fmt"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

// Provider is a chat generation backend. Implementations must be safe
// for concurrent use; every call honors the context deadline.
type Provider interface {
	Generate(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	GetModelName() string

	Close() error
}

// Providers bundles the two generation backends built from
// configuration. CommandA doubles as the classifier and faithfulness
// judge backend; Nova serves generation for languages outside the
// Command-A set.
type Providers struct {
	CommandA Provider
	Nova     Provider
}

// NewProvidersFromConfig builds both backends. The Bedrock client uses
// the standard AWS credential chain; construction fails only on
// missing Cohere credentials or an unresolvable AWS configuration.
func NewProvidersFromConfig(ctx context.Context, cfg *config.ModelsConfig) (*Providers, error) {
	if cfg == nil {
		return nil, fmt.Errorf("models config cannot be nil")
	}

	cohere, err := NewCohereProviderFromConfig(&cfg.Cohere)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cohere provider: %w", err)
	}

	nova, err := NewNovaProviderFromConfig(ctx, &cfg.Bedrock)
	if err != nil {
		return nil, fmt.Errorf("failed to create Nova provider: %w", err)
	}

	return &Providers{CommandA: cohere, Nova: nova}, nil
}

// Close releases both backends.
func (p *Providers) Close() error {
	if p.CommandA != nil {
		if err := p.CommandA.Close(); err != nil {
			return err
		}
	}
	if p.Nova != nil {
		return p.Nova.Close()
	}
	return nil
}
