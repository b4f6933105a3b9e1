// Package logging builds the process logger. One call at startup; the
// rest of the code takes a zerolog.Logger and chains fields onto it.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New configures the global level filter and returns a timestamped
// logger writing to out. An unknown level falls back to info. Format
// "console" renders human-readable lines; anything else emits JSON.
func New(level, format string, out io.Writer) zerolog.Logger {
	SetLevel(level)

	if format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// SetLevel reparses and applies the global level filter, so a config
// reload can change verbosity without rebuilding loggers. An unknown
// level falls back to info.
func SetLevel(level string) {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
