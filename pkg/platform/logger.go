package platform

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the process-wide logger. Console output goes to stderr so
// command stdout stays clean for piped catalog data.
func NewLogger(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}
