package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/feedback"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/server"
)

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Port  int  `help:"Port to listen on (overrides config)."`
	Watch bool `help:"Watch config file for changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	// Config changes are logged, not hot-swapped; restart to apply.
	if c.Watch && loader != nil {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	obs := observability.NoopManager()
	if cfg.Observability != nil {
		obs = observability.NewManager(*cfg.Observability)
		if err := obs.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize observability: %w", err)
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := obs.Shutdown(sctx); err != nil {
				slog.Warn("Observability shutdown error", "error", err)
			}
		}()
	}

	app, err := buildApp(ctx, cfg, obs)
	if err != nil {
		return err
	}
	defer app.Close()

	var store feedback.Store
	if cfg.Feedback.IsEnabled() {
		sqlStore, err := feedback.NewSQLiteStore(&cfg.Feedback)
		if err != nil {
			return fmt.Errorf("failed to open feedback store: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	srv, err := server.New(server.Options{
		Config:      cfg,
		Pipeline:    app.pipeline,
		Feedback:    store,
		ReadyChecks: app.readyChecks(),
		Metrics:     obs.MetricsHandler(),
		Recorder:    obs.Recorder(),
		Tracer:      obs.GetTracer("http"),
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	printStartupInfo(cfg, srv.Addr(), app)

	go func() {
		<-ctx.Done()
		if err := srv.Stop(context.Background()); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
	}()

	// Block until the listener exits.
	return srv.Wait()
}

func printStartupInfo(cfg *config.Config, addr string, a *app) {
	greenColor := "\033[38;2;16;185;129m"
	resetColor := "\033[0m"
	fmt.Printf("\n%sclimatechat server ready%s\n", greenColor, resetColor)
	fmt.Printf("   Chat:       POST http://%s/api/v1/chat/query\n", addr)
	fmt.Printf("   Languages:  http://%s/api/v1/languages/supported\n", addr)
	fmt.Printf("   Feedback:   POST http://%s/api/v1/feedback/submit\n", addr)
	fmt.Printf("   Health:     http://%s/health\n", addr)
	fmt.Printf("   Metrics:    http://%s/metrics\n", addr)

	fmt.Printf("   Index:      %s\n", a.index.Name())
	if a.cache != nil {
		fmt.Printf("   Cache:      redis (%s)\n", cfg.Redis.Addr)
	} else {
		fmt.Printf("   Cache:      disabled\n")
	}
	if cfg.WebSearch.IsEnabled() {
		fmt.Printf("   Web search: enabled\n")
	}
	if cfg.Server.RateLimit.IsEnabled() {
		fmt.Printf("   Rate limit: %d req/min per client (burst %d)\n",
			cfg.Server.RateLimit.RequestsPerMinute, cfg.Server.RateLimit.Burst)
	}
	if cfg.Observability != nil && cfg.Observability.Tracing.Enabled {
		fmt.Printf("   Tracing:    %s (%s)\n",
			cfg.Observability.Tracing.Exporter, cfg.Observability.Tracing.Endpoint)
	}

	fmt.Println("\nPress Ctrl+C to stop")
}
