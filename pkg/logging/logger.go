// Package logging wraps github.com/hashicorp/go-hclog with the house
// conventions used across the pipeline: a line prefix in human-readable
// mode, an optional JSON mode, and a log level read from the environment.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
)

const logPrefix = "📋 "

// NewLogger creates the standard pipeline logger: a fixed line prefix in
// human-readable mode, disabled entirely in JSON mode.
func NewLogger(name string, level string, output io.Writer) hclog.Logger {
	return newLogger(name, level, output, func() string { return logPrefix })
}

// NewWatchLogger is NewLogger's variant for --watch mode, where one
// process re-invokes the pipeline every time a new photo lands and all
// re-runs share this single logger. Each line is tagged with runCounter's
// current value so an operator reading stderr can tell which re-run
// produced it; the caller increments runCounter before each pipeline.Run.
func NewWatchLogger(name string, level string, output io.Writer, runCounter *atomic.Int64) hclog.Logger {
	return newLogger(name, level, output, func() string {
		return fmt.Sprintf("%s[run %d] ", logPrefix, runCounter.Load())
	})
}

func newLogger(name string, level string, output io.Writer, prefixFn func() string) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	jsonFormat := os.Getenv("INSPECTPACK_JSON_LOG") == "1"
	if !jsonFormat {
		output = newLinePrefixWriter(output, prefixFn)
	}

	opts := &hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z", // UTC ISO format
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	}

	return hclog.New(opts)
}

// GetLogLevel returns the configured log level from the environment,
// defaulting to "warn" for production safety.
func GetLogLevel() string {
	level := os.Getenv("INSPECTPACK_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	return level
}
