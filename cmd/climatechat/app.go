package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/cache"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/classify"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/databases"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/embedders"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/faithfulness"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/generation"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/llms"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/pipeline"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/rerank"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/retrieval"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/server"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/websearch"
)

// app bundles the pipeline and the owned resources behind it so serve
// and query share one wiring path.
type app struct {
	cfg       *config.Config
	obs       *observability.Manager
	providers *llms.Providers
	embedder  *embedders.QueryEmbedder
	index     databases.Index
	cache     *cache.ResponseCache
	pipeline  *pipeline.Pipeline
}

// buildApp wires the full query pipeline from configuration. The
// caller owns the returned app and must Close it.
func buildApp(ctx context.Context, cfg *config.Config, obs *observability.Manager) (*app, error) {
	recorder := obs.Recorder()
	a := &app{cfg: cfg, obs: obs}

	providers, err := llms.NewProvidersFromConfig(ctx, &cfg.Models)
	if err != nil {
		return nil, fmt.Errorf("failed to build model providers: %w", err)
	}
	a.providers = providers

	router := llms.NewRouter(providers, cfg.Models.ForceCommandA)
	translator := llms.NewTranslator(providers.CommandA, recorder)

	embedder, err := embedders.NewQueryEmbedderFromConfig(&cfg.Models.Cohere, &cfg.Embedder)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build query embedder: %w", err)
	}
	a.embedder = embedder

	index, err := databases.NewIndexFromConfig(ctx, &cfg.Index)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	a.index = index

	retriever, err := retrieval.NewRetriever(index, embedder, &cfg.Retrieval, &cfg.Filters, recorder)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build retriever: %w", err)
	}

	var reranker rerank.Reranker = rerank.NewNoopReranker()
	if cfg.Rerank.IsEnabled() {
		cohereReranker, err := rerank.NewCohereRerankerFromConfig(&cfg.Models.Cohere, &cfg.Rerank, recorder)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to build reranker: %w", err)
		}
		reranker = cohereReranker
	}

	classifier, err := classify.NewClassifier(providers.CommandA, translator, &cfg.Classify, recorder)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build classifier: %w", err)
	}

	judge, err := faithfulness.NewJudge(providers.CommandA, &cfg.Faithfulness, recorder)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build faithfulness judge: %w", err)
	}

	deps := pipeline.Deps{
		Classifier: classifier,
		Router:     router,
		Retriever:  retriever,
		Reranker:   reranker,
		Generator:  generation.NewGenerator(translator, &cfg.Generation, recorder),
		Judge:      judge,
		Translator: translator,
		Recorder:   recorder,
		Tracer:     obs.GetTracer("pipeline"),
	}

	if cfg.WebSearch.IsEnabled() {
		web, err := websearch.NewTavilyProviderFromConfig(&cfg.WebSearch, recorder)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to build web search provider: %w", err)
		}
		deps.WebSearch = web
	}

	if cfg.Redis.IsEnabled() {
		a.cache = cache.NewResponseCache(&cfg.Redis, recorder)
		deps.Cache = a.cache
	}

	a.pipeline = pipeline.New(cfg, deps)
	return a, nil
}

// Close releases everything buildApp opened, tolerating a partially
// constructed app.
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("Failed to close response cache", "error", err)
		}
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			slog.Warn("Failed to close vector index", "error", err)
		}
	}
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			slog.Warn("Failed to close embedder", "error", err)
		}
	}
	if a.providers != nil {
		if err := a.providers.Close(); err != nil {
			slog.Warn("Failed to close model providers", "error", err)
		}
	}
}

// readyChecks lists the dependencies /health/ready probes.
func (a *app) readyChecks() []server.ReadyCheck {
	checks := []server.ReadyCheck{
		{Name: "index", Check: a.index.Ready},
	}
	if a.cache != nil {
		checks = append(checks, server.ReadyCheck{Name: "redis", Check: a.cache.Ready})
	}
	return checks
}

// loadConfig loads the configuration file, falling back to built-in
// defaults when no path is given.
func loadConfig(ctx context.Context, path string) (*config.Config, *config.Loader, error) {
	if path == "" {
		slog.Info("No config file given, using defaults")
		return config.Default(), nil, nil
	}

	cfg, loader, err := config.LoadConfigFile(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded configuration", "path", path)
	return cfg, loader, nil
}
