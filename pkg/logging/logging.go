// Package logging builds the zerolog logger shared by the server and the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options selects the level and output encoding.
type Options struct {
	Level  string
	Format string
	Out    io.Writer
}

// New returns a timestamped logger. Format "console" writes human-readable lines, anything else JSON.
func New(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("logging: parse level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Component derives a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) *zerolog.Logger {
	l := logger.With().Str("component", name).Logger()
	return &l
}
