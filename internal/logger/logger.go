package logger

import (
	"os"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// New builds the root logger. It starts at Debug so that configuration
// loading itself is visible; main lowers it once LOG_LEVEL is known.
func New() zerolog.Logger {
	return build(zerolog.DebugLevel)
}

// SetLevel rebuilds the root logger at the given level.
func SetLevel(level zerolog.Level) zerolog.Logger {
	return build(level)
}

func build(level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Logger().
		Level(level)
}

var Module = fx.Provide(New)
