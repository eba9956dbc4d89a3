package main

import (
	"fmt"
	"os"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/logger"
)

// initLogger configures the global logger from CLI flags, falling back to the
// ALITA_LOG_LEVEL / ALITA_LOG_FILE / ALITA_LOG_FORMAT environment variables,
// then to warn-level stderr output. Returns a cleanup function when logging
// to a file.
func initLogger(levelFlag, fileFlag, formatFlag string) (func(), error) {
	levelStr := levelFlag
	if levelStr == "" {
		levelStr = os.Getenv("ALITA_LOG_LEVEL")
	}
	if levelStr == "" {
		levelStr = "warn"
	}

	filePath := fileFlag
	if filePath == "" {
		filePath = os.Getenv("ALITA_LOG_FILE")
	}

	format := formatFlag
	if format == "" {
		format = os.Getenv("ALITA_LOG_FORMAT")
	}
	if format == "" {
		format = "simple"
	}

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelStr, err)
	}

	output := os.Stderr
	var cleanup func()
	if filePath != "" {
		file, closeFile, err := logger.OpenLogFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %q: %w", filePath, err)
		}
		output = file
		cleanup = closeFile
	}

	logger.Init(level, output, format)
	return cleanup, nil
}
