package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup configures the zerolog root logger and returns it. format is
// "json" for production or "pretty" for local development; an unknown
// level falls back to info.
func Setup(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stdout
	if format == "pretty" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if lvl <= zerolog.DebugLevel {
		// Caller info is expensive; only wire it when debugging.
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}
