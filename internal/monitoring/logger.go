package monitoring

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig holds logger construction options. Level and Format carry
// the validated LOG_LEVEL and LOG_FORMAT strings from the config package.
type LoggerConfig struct {
	Level  string
	Format string
}

// NewLogger builds the process-wide structured logger. JSON output by
// default for log shippers; "pretty" switches to the console writer for
// local development.
func NewLogger(config LoggerConfig) zerolog.Logger {
	var output io.Writer = os.Stdout

	level := zerolog.InfoLevel
	switch config.Level {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	case "fatal":
		level = zerolog.FatalLevel
	case "disabled":
		level = zerolog.Disabled
	}
	zerolog.SetGlobalLevel(level)

	if config.Format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("service", "notir").
		Logger()
}
