// Package log wraps zerolog with the handful of child-logger helpers
// the watcher's components use to scope their output.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance.
	Logger zerolog.Logger
)

// Level represents log level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithContainer creates a child logger with a container field.
func WithContainer(name string) zerolog.Logger {
	return Logger.With().Str("container", name).Logger()
}

// Info logs a message at info level on the global logger.
func Info(msg string) {
	Logger.Info().Msg(msg)
}

// Debug logs a message at debug level on the global logger.
func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

// Warn logs a message at warn level on the global logger.
func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

// Error logs a message at error level on the global logger.
func Error(msg string) {
	Logger.Error().Msg(msg)
}

// Errorf logs an error with a message on the global logger.
func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

// Fatal logs a message at fatal level and exits the process.
func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
