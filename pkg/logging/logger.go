// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level to output: "debug", "info", "warn" or
	// "error". Unknown values fall back to info.
	Level string

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output is the writer logs go to (default: os.Stderr).
	Output io.Writer
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// ParseLevel converts a level string to a zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger tagged with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key, TTL)
//   - Packet cache updates (protocol version, packet size)
//   - Rotation events (new index, strategy)
//
// Info: Normal operation events
//   - Cache initialization and clears
//   - Content refresh (messages replaced, caches invalidated)
//   - Server startup/shutdown, monitor snapshots
//
// Warn: Warning conditions that don't prevent operation
//   - Favicon missing or oversized (served without icon)
//   - Cache hit rate below threshold
//   - Stats publish failures (monitoring degraded, serving unaffected)
//
// Error: Error conditions requiring attention
//   - Packet rebuild failures (falling through to the uncached path)
//   - Listener accept errors
//   - Configuration errors at startup
//
// Context Fields:
//   - cache: cache name (favicon, packet)
//   - protocol: client protocol version
//   - virtual_host: requested virtual host
//   - source: client address
//   - bytes: payload size
//   - ttl: cache entry TTL
