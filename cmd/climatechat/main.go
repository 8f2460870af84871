// Command climatechat runs the multilingual climate question answering
// service.
//
// Usage:
//
//	climatechat serve --config config.yaml
//	climatechat query --config config.yaml --lang es "¿Por qué sube el nivel del mar?"
//	climatechat seed --config config.yaml documents.jsonl
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	climatechat "github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP API server."`
	Query   QueryCmd   `cmd:"" help:"Answer a single question and print the result as JSON."`
	Seed    SeedCmd    `cmd:"" help:"Embed a JSONL document file into the local chromem index."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or json)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(climatechat.GetVersion().String())
	return nil
}

func main() {
	// .env files feed ${VAR} expansion in the config file; missing
	// files are fine.
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("climatechat"),
		kong.Description("Multilingual climate question answering service."),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
