package server

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// Log output formats accepted by NewLogger
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

const maxLoggedValue = 100

// NewLogger builds the process logger. level is a zerolog level name
// ("debug", "info", ...); format is FormatConsole or FormatJSON.
func NewLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	switch format {
	case FormatConsole, "":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05.000"}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// sanitizeValue shortens client-supplied strings before they are logged
func sanitizeValue(s string) string {
	if len(s) > maxLoggedValue {
		return s[:maxLoggedValue] + "...[truncated]"
	}
	return s
}
