// Package logger wraps zerolog for the whole service.
//
// Every layer logs through a scoped logger so lines carry the component:
//
//	log := logger.Module("ws")
//	log.Info().Str("user_id", id).Msg("client connected")
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the root logger. It is usable before Init (info level, stdout) so
// packages that log during tests do not need any setup.
var Log = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures the root logger.
// Valid levels: debug, info, warn, error. Unknown values fall back to info.
func Init(level string) {
	InitWithWriter(level, os.Stdout)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(level string, w io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	Log = zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Module returns a logger with a module field for scoped logging.
func Module(name string) zerolog.Logger {
	return Log.With().Str("module", name).Logger()
}
