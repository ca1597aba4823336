package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvLogLevel is read by Init: debug, info, warn, error (default: info).
const EnvLogLevel = "PHOTO_LOG_LEVEL"

// Options configures the global logger after configuration is loaded.
type Options struct {
	Level string
	// JSON writes structured JSON to stderr instead of the console format.
	JSON bool
	// File, when set, also writes JSON logs to a size-rotated file.
	File string
}

// Init initializes the global logger from PHOTO_LOG_LEVEL. Binaries call it
// first thing, then Configure once their configuration is loaded.
func Init() {
	Configure(Options{Level: os.Getenv(EnvLogLevel)})
}

// Configure replaces the global logger. The returned closer releases the log
// file, if any.
func Configure(opts Options) io.Closer {
	zerolog.SetGlobalLevel(ParseLevel(opts.Level))

	var console io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if opts.JSON {
		console = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	out := console
	if opts.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(console, rotated)
		closer = rotated
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer
}

// ParseLevel maps a level name onto a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
