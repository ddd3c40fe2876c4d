// Package logging builds the logr.Logger handed to the kasa client and the
// outlet registry. Output goes through zerolog: a console writer on a
// terminal, JSON lines otherwise, optionally to a rotated log file.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects verbosity and destination.
type Options struct {
	// Verbose enables info messages.
	Verbose bool
	// Debug enables V(1) messages, including protocol traffic.
	Debug bool
	// DefaultLevel applies when neither Verbose nor Debug is set.
	DefaultLevel zerolog.Level
	// File, when set, receives JSON lines instead of stderr.
	File string
}

// New returns a logger and a function that flushes and closes its output.
func New(opts Options) (logr.Logger, func() error) {
	return newLogger(opts, os.Stderr, isTerminal(os.Stderr))
}

func newLogger(opts Options, stderr io.Writer, tty bool) (logr.Logger, func() error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"

	closer := func() error { return nil }

	var w io.Writer = stderr
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = lj
		closer = lj.Close
		tty = false
	}

	zl := zerolog.New(w)
	if tty {
		zl = zl.Output(zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    !colorTerminal(),
			TimeFormat: time.RFC3339,
		})
	}

	level := ParseLevel(opts.Verbose, opts.Debug, opts.DefaultLevel)
	zl = zl.Level(level).With().Timestamp().Logger()

	logger := zerologr.New(&zl)
	logger.V(1).Info("logger initialized", "level", level.String())
	return logger, closer
}

// ParseLevel maps the --verbose and --debug flags to a zerolog level.
func ParseLevel(verbose, debug bool, defaultLevel zerolog.Level) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	if verbose {
		return zerolog.InfoLevel
	}
	return defaultLevel
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func colorTerminal() bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return true
}
