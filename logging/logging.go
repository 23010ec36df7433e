// Package logging provides structured logging setup.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates the application logger at the given level, writing
// human-readable console output to stdout. Unknown levels fall back to info.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}
