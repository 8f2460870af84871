package config

import (
	"fmt"
	"slices"
)

// LoggerConfig is the logging section. CLI flags (--log-level,
// --log-file, --log-format) and the LOG_* environment variables
// override it; defaults are info level, simple format, stderr.
//
//	logging:
//	  level: debug
//	  file: climatechat.log
//	  format: verbose
type LoggerConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level,omitempty"`

	// File receives the log output. Empty means stderr.
	File string `yaml:"file,omitempty"`

	// Format is "simple" (level + message), "verbose" (adds
	// timestamps), or "json" (one object per line, for aggregation).
	// Default: simple.
	Format string `yaml:"format,omitempty"`
}

var (
	logLevels  = []string{"debug", "info", "warn", "warning", "error"}
	logFormats = []string{"simple", "verbose", "json"}
)

// SetDefaults fills in the logging defaults.
func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Validate rejects unknown levels and formats.
func (c *LoggerConfig) Validate() error {
	if c.Level != "" && !slices.Contains(logLevels, c.Level) {
		return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.Level)
	}
	if c.Format != "" && !slices.Contains(logFormats, c.Format) {
		return fmt.Errorf("invalid log format %q (valid: simple, verbose, json)", c.Format)
	}
	return nil
}
