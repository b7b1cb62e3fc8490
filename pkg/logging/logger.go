// Package logging provides structured logging configuration using zerolog.
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
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
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
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Gate waits (permits used, wait duration)
//   - Pagination flow (cursor, page size, accepted count)
//   - Profile cache operations (hit/miss, key)
//   - Records dropped during enrichment
//
// Info: Normal operation events
//   - Phase transitions
//   - Token refresh
//   - Collection summary (records found, duration)
//   - Export written
//
// Warn: Warning conditions that don't prevent operation
//   - Throttled responses (gate suspended)
//   - Retry attempts
//   - Profile cache errors (fallback to direct lookup)
//   - Phase aborted on malformed response
//
// Error: Error conditions requiring attention
//   - Failed requests (after retries)
//   - Authentication failures
//   - Export failures
//   - Configuration errors
//
// Context Fields:
//   - phase: Pipeline phase name
//   - endpoint: Helix endpoint (streams, search_channels, users, games)
//   - status_code: HTTP status code
//   - duration: Request or phase duration
//   - records: Current record count
//   - reset_after: Throttle suspension duration
//   - id: Twitch user id
