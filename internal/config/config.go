// Package config loads the service configuration once at startup.
//
// Sources, lowest precedence first: built-in defaults, an optional
// config.yaml, a .env file, PHOTO_* environment variables and command-line
// flags bound by the caller. The Gemini key falls back to GEMINI_API_KEY or
// the GPG credentials file when not set explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/fpang/photo-enhance/internal/auth"
	"github.com/fpang/photo-enhance/internal/filehandler"
	"github.com/fpang/photo-enhance/internal/session"
	"github.com/fpang/photo-enhance/internal/transform"
)

// EnvPrefix prefixes every environment override, e.g. PHOTO_SERVER_ADDR.
const EnvPrefix = "PHOTO"

// Config is the loaded configuration. Treat it as read-only after Load.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Lambda  LambdaConfig  `mapstructure:"lambda"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type GeminiConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerMinute int           `mapstructure:"rate_per_minute"`
	ValidateKey   bool          `mapstructure:"validate_key"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	File  string `mapstructure:"file"`
}

type MetricsConfig struct {
	EMF bool `mapstructure:"emf"`
}

type LambdaConfig struct {
	// APIKeyParam is the SSM parameter holding the Gemini key.
	APIKeyParam string `mapstructure:"api_key_param"`
}

// Transform returns the remote client configuration.
func (c Config) Transform() transform.Config {
	return transform.Config{
		APIKey:        c.Gemini.APIKey,
		Model:         c.Gemini.Model,
		Timeout:       c.Gemini.Timeout,
		RatePerMinute: c.Gemini.RatePerMinute,
	}
}

// New returns a viper instance with defaults, config file search paths and
// environment binding set up. Callers bind flags to it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.max_upload_bytes", filehandler.DefaultMaxUploadBytes)
	v.SetDefault("server.session_ttl", session.DefaultTTL.String())
	v.SetDefault("server.sweep_interval", "1m")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:", "http://127.0.0.1:"})
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", transform.DefaultModel)
	v.SetDefault("gemini.timeout", transform.DefaultTimeout.String())
	v.SetDefault("gemini.rate_per_minute", 0)
	v.SetDefault("gemini.validate_key", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)
	v.SetDefault("logging.file", "")
	v.SetDefault("metrics.emf", false)
	v.SetDefault("lambda.api_key_param", "/photo-enhance/gemini-api-key")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/photo-enhance")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads every source into a Config. A missing API key is not an error;
// the transform client reports it on each call.
func Load(v *viper.Viper) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Loaded config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Gemini.APIKey == "" {
		key, err := auth.GetAPIKey()
		if err != nil {
			log.Warn().Err(err).Msg("No Gemini API key configured")
		}
		cfg.Gemini.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("gemini.model is required")
	}
	if c.Gemini.Timeout <= 0 {
		return fmt.Errorf("gemini.timeout must be positive")
	}
	if c.Gemini.RatePerMinute < 0 {
		return fmt.Errorf("gemini.rate_per_minute must not be negative")
	}
	return nil
}
