// Package log wraps zerolog with the small helper surface the rest of
// Eidetica logs through: a global logger configured once at startup, named
// component loggers, and leveled helpers that never return an error —
// logging never participates in correctness, so it is dropped rather than
// propagated on the hot path.
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

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
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

// WithComponent creates a child logger tagged with the given component,
// e.g. "storage", "atomicop", "auth".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithTree creates a child logger tagged with a tree's root id.
func WithTree(rootID string) zerolog.Logger {
	return Logger.With().Str("root", rootID).Logger()
}

// Helper functions for common logging patterns.
func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) { Logger.Fatal().Msg(msg) }

// fields turns alternating key/value pairs into a zerolog context; an odd
// trailing key is logged under "extra" rather than dropped.
func fields(e *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		e = e.Interface(key, kv[i+1])
	}
	if len(kv)%2 == 1 {
		e = e.Interface("extra", kv[len(kv)-1])
	}
	return e
}

// Debugw logs msg at debug level with structured key/value context.
func Debugw(msg string, kv ...any) { fields(Logger.Debug(), kv).Msg(msg) }

// Infow logs msg at info level with structured key/value context.
func Infow(msg string, kv ...any) { fields(Logger.Info(), kv).Msg(msg) }

// Warnw logs msg at warn level with structured key/value context.
func Warnw(msg string, kv ...any) { fields(Logger.Warn(), kv).Msg(msg) }

// Errorw logs msg at error level with structured key/value context.
func Errorw(msg string, kv ...any) { fields(Logger.Error(), kv).Msg(msg) }
