package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/pipeline"
)

// QueryCmd answers one question and exits, bypassing the HTTP server.
// Useful for smoke-testing credentials, the index, and the prompt
// chain on a deployed config.
type QueryCmd struct {
	Lang     string `help:"Language code the answer should be in." default:"en"`
	Question string `arg:"" help:"Question to answer."`
}

func (c *QueryCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	app, err := buildApp(ctx, cfg, observability.NoopManager())
	if err != nil {
		return err
	}
	defer app.Close()

	answer, err := app.pipeline.Process(ctx, &pipeline.Request{
		Query:    c.Question,
		Language: c.Lang,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(answer, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
