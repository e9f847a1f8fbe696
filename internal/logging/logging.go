// Package logging constructs the single zerolog.Logger every other
// component receives as a constructor parameter. There is no
// package-level global logger anywhere in this module — each
// component owns the value it was handed (§9's "owned value, not
// process-wide global" guidance applied uniformly to logging too).
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options configures the root logger.
type Options struct {
	// Level is one of zerolog's level names: "debug", "info", "warn",
	// "error". Unrecognized or empty defaults to "info".
	Level string

	// Pretty switches from newline-delimited JSON to zerolog's
	// human-readable ConsoleWriter, for interactive terminal use
	// (e.g. `testgpt run` invoked directly, as opposed to `intake
	// serve` piping structured logs to a supervisor).
	Pretty bool

	// Writer is where log lines are written. Defaults to os.Stderr so
	// stdout stays reserved for command output (§4.13).
	Writer io.Writer
}

// New builds the root logger from Options. Call once at process
// startup (cmd's responsibility) and thread the result into every
// component constructor.
func New(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var w io.Writer = opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).With().Timestamp().Logger().Level(level)
}
