// Package logging configures the global zerolog logger used for diagnostics.
// User-facing progress goes through internal/output instead.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelFromString maps a config level name to a zerolog level. Unknown names
// fall back to warn.
func LevelFromString(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "error":
		return zerolog.ErrorLevel
	case "warn":
		return zerolog.WarnLevel
	case "info":
		return zerolog.InfoLevel
	case "debug":
		return zerolog.DebugLevel
	}
	return zerolog.WarnLevel
}

// Setup points the global logger at w with a console writer.
func Setup(w io.Writer, level string) {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger().
		Level(LevelFromString(level))
}
