package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelFor maps the -v count to a level: none is warn, one is info, more is
// debug. A LOG_LEVEL value, when set, wins.
func LevelFor(verbosity int, env string) zerolog.Level {
	switch strings.ToLower(env) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}
	switch {
	case verbosity >= 2:
		return zerolog.DebugLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	}
	return zerolog.WarnLevel
}

// Init points the global logger at stderr, which stays free when the
// converted stream goes to stdout.
func Init(verbosity int, envLevel string) {
	logLevel := LevelFor(verbosity, envLevel)

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.SetGlobalLevel(logLevel)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		With().Timestamp().Logger()

	log.Debug().
		Str("level", logLevel.String()).
		Msg("Logger initialized")
}
