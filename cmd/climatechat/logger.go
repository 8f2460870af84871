package main

import (
	"fmt"
	"os"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/logger"
)

// Environment fallbacks for the logging flags.
const (
	envLogFile   = "LOG_FILE"
	envLogLevel  = "LOG_LEVEL"
	envLogFormat = "LOG_FORMAT"
)

// initLoggerFromCLI installs the process logger. Flags win over
// environment variables, which win over defaults. The returned cleanup
// closes the log file, when one was opened.
func initLoggerFromCLI(cliLevel, cliFile, cliFormat string) (func(), error) {
	level, err := logger.ParseLevel(firstOf(cliLevel, os.Getenv(envLogLevel), "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	var cleanup func()
	if file := firstOf(cliFile, os.Getenv(envLogFile)); file != "" {
		f, closeFile, err := logger.OpenLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = f
		cleanup = closeFile
	}

	logger.Init(level, output, firstOf(cliFormat, os.Getenv(envLogFormat), "simple"))
	return cleanup, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
