// Package logging configures the zerolog global logger shared by every
// scripture-client component.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelTrace LogLevel = "trace"
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names used with NewLogger.
const (
	ComponentApp     = "app"
	ComponentCLI     = "cli"
	ComponentMetrics = "metrics"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to zerolog.Level. "warning" is accepted
// as an alias; empty and unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key)
//   - Queue dequeues and preload guard decisions
//
// Info: Normal operation events
//   - Dispatched requests
//   - Completed preloads
//   - Startup and shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts
//   - Cooldown triggers
//   - Swallowed preload and enrichment failures
//
// Error: Error conditions requiring attention
//   - Requests failing after retries
//   - Configuration errors
//
// Context Fields:
//   - component: emitting component (request-queue, preload, scripture-client, ...)
//   - endpoint: Scripture API endpoint name
//   - status_code: HTTP status code
//   - duration: Request duration
//   - error_class: Error classification (rate_limit, timeout, network, server, ...)
//   - key: content cache key
//   - priority: queue priority
