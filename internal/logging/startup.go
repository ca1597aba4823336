package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects a binary's identity, configuration and feature flags
// and emits them as one structured event, so a single log line shows how a
// process was started.
type StartupLogger struct {
	name         string
	commitHash   string
	buildTime    string
	initDuration time.Duration

	ssmParams map[string]string
	features  map[string]bool
	config    map[string]string
}

// NewStartupLogger creates a StartupLogger for the named binary
// (e.g. "photo-web", "photo-lambda").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:      name,
		ssmParams: make(map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

// CommitHash sets the git commit baked in at build time.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

// BuildTime sets the UTC build timestamp baked in at build time.
func (s *StartupLogger) BuildTime(t string) *StartupLogger {
	s.buildTime = t
	return s
}

// SSMParam registers an SSM parameter path. Only the path is logged, never the value.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	s.ssmParams[label] = path
	return s
}

// Feature registers a boolean feature flag.
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration value.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long startup took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log emits the startup event at info level.
func (s *StartupLogger) Log() {
	process := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", zerolog.GlobalLevel().String())
	if s.commitHash != "" {
		process = process.Str("commitHash", s.commitHash)
	}
	if s.buildTime != "" {
		process = process.Str("buildTime", s.buildTime)
	}

	evt := log.Info().Dict("process", process)

	// Lambda identity is only present when running on Lambda.
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		evt = evt.Dict("lambda", zerolog.Dict().
			Str("functionName", fn).
			Str("version", os.Getenv("AWS_LAMBDA_FUNCTION_VERSION")).
			Str("region", os.Getenv("AWS_REGION")).
			Str("memoryMB", os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE")))
	}
	if len(s.ssmParams) > 0 {
		evt = evt.Dict("ssmParams", dictFromMap(s.ssmParams))
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}
	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Startup complete")
}

// EnvOrDefault returns the named environment variable, or defaultVal when unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
