package util

import (
	"io"

	"github.com/rs/zerolog"
)

type Logger struct {
	Verbose     bool
	Quiet       bool
	Prefix      *string
	Destination *zerolog.Logger
}

// NewLogger - Sets up a logger writing to w, either as JSON lines or as human-readable console output
func NewLogger(w io.Writer, jsonOutput bool, verbose bool, quiet bool) *Logger {
	if !jsonOutput {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05", NoColor: true}
	}
	destination := zerolog.New(w).With().Timestamp().Logger()
	return &Logger{Verbose: verbose, Quiet: quiet, Destination: &destination}
}

// NewNopLogger - Logger that discards everything, used where no logging is wanted (e.g. tests)
func NewNopLogger() *Logger {
	destination := zerolog.Nop()
	return &Logger{Destination: &destination}
}

// WithPrefix - A nil logger stays nil, all Print methods are no-ops on it
func (logger *Logger) WithPrefix(prefix string) *Logger {
	if logger == nil {
		return nil
	}
	return &Logger{Verbose: logger.Verbose, Quiet: logger.Quiet, Destination: logger.Destination, Prefix: &prefix}
}

func (logger *Logger) print(level zerolog.Level, format string, args ...interface{}) {
	if logger.Destination == nil {
		return
	}

	event := logger.Destination.WithLevel(level)
	if logger.Prefix != nil {
		event = event.Str("server", *logger.Prefix)
	}
	event.Msgf(format, args...)
}

func (logger *Logger) PrintVerbose(format string, args ...interface{}) {
	if logger == nil || logger.Quiet || !logger.Verbose {
		return
	}

	logger.print(zerolog.DebugLevel, format, args...)
}

func (logger *Logger) PrintInfo(format string, args ...interface{}) {
	if logger == nil || logger.Quiet {
		return
	}

	logger.print(zerolog.InfoLevel, format, args...)
}

func (logger *Logger) PrintWarning(format string, args ...interface{}) {
	if logger == nil {
		return
	}
	logger.print(zerolog.WarnLevel, format, args...)
}

func (logger *Logger) PrintError(format string, args ...interface{}) {
	if logger == nil {
		return
	}
	logger.print(zerolog.ErrorLevel, format, args...)
}
