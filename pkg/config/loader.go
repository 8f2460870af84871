package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config/provider"
)

// Loader turns raw provider bytes into a validated Config. Load runs
// the full pipeline every time: parse, env expansion, decode, defaults,
// validation.
type Loader struct {
	source provider.Provider
}

// NewLoader wraps a config source.
func NewLoader(p provider.Provider) *Loader {
	return &Loader{source: p}
}

// Load reads and processes the configuration.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	data, err := l.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	tree, err := unmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := &Config{}
	if err := decodeTree(expand(tree), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Watch blocks until ctx ends, re-running Load on every change signal.
// Reloads only validate and log; the running service keeps its
// boot-time config and needs a restart to apply changes.
func (l *Loader) Watch(ctx context.Context) error {
	changes, err := l.source.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}
	if changes == nil {
		slog.Info("Config watching not supported by provider", "type", l.source.Type())
		<-ctx.Done()
		return ctx.Err()
	}

	slog.Info("Watching for config changes", "type", l.source.Type())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if _, err := l.Load(ctx); err != nil {
				slog.Error("Config file changed but does not validate", "error", err)
				continue
			}
			slog.Info("Config file changed and validates; restart to apply")
		}
	}
}

// Close releases the underlying provider.
func (l *Loader) Close() error {
	return l.source.Close()
}

// unmarshalTree parses YAML first (a superset of JSON) and falls back
// to plain JSON for callers that generate their config.
func unmarshalTree(data []byte) (map[string]any, error) {
	var tree map[string]any
	if yamlErr := yaml.Unmarshal(data, &tree); yamlErr != nil {
		if json.Unmarshal(data, &tree) != nil {
			return nil, fmt.Errorf("failed to parse as YAML or JSON: %w", yamlErr)
		}
	}
	return tree, nil
}

func decodeTree(tree any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return dec.Decode(tree)
}

// expand substitutes ${VAR}, ${VAR:-default}, and $VAR in every string
// of the tree. Expansion happens after parsing so only values are
// touched; type coercion of expanded strings is left to the decoder's
// weak typing.
func expand(v any) any {
	switch node := v.(type) {
	case string:
		return expandString(node)
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[k] = expand(child)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = expand(child)
		}
		return out
	}
	return v
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandString(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		if !strings.HasPrefix(ref, "${") {
			return os.Getenv(ref[1:])
		}
		inner := ref[2 : len(ref)-1]
		if name, fallback, ok := strings.Cut(inner, ":-"); ok {
			if v := os.Getenv(name); v != "" {
				return v
			}
			return fallback
		}
		return os.Getenv(inner)
	})
}

// LoadConfigFile loads and validates a config file, returning the
// loader so the caller can keep watching the file.
func LoadConfigFile(ctx context.Context, path string) (*Config, *Loader, error) {
	p, err := provider.NewFileProvider(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create provider: %w", err)
	}

	loader := NewLoader(p)
	cfg, err := loader.Load(ctx)
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return cfg, loader, nil
}

// Default returns a fully defaulted configuration without reading any
// file. It is the zero-config path used when no --config flag is given.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}
