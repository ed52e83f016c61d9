package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. FPA_SERVER_ADDR.
const EnvPrefix = "FPA"

// DefaultFile is the config file name written by `fpa init`.
const DefaultFile = "fpa.yaml"

// RetryBackoff is the pause between two attempts of an AI request.
const RetryBackoff = 500 * time.Millisecond

// maxResponseMargin caps the time reserved for writing a response after the
// AI call has given up.
const maxResponseMargin = 5 * time.Second

// Config represents the top-level fpa.yaml configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Upload   UploadConfig   `yaml:"upload" envconfig:"UPLOAD"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
	AI       AIConfig       `yaml:"ai" envconfig:"AI"`
	Secrets  SecretsConfig  `yaml:"secrets" envconfig:"SECRETS"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
}

// ServerConfig controls the web server.
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	SessionTTL      time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL" validate:"gt=0"`
	Title           string        `yaml:"title" envconfig:"TITLE"`
}

// UploadConfig bounds CSV uploads.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" envconfig:"MAX_BYTES" validate:"gt=0"`
}

// AnalysisConfig controls the variance transform.
type AnalysisConfig struct {
	ZeroForecast string `yaml:"zero_forecast" envconfig:"ZERO_FORECAST" validate:"oneof=marker error"`
}

// AIConfig controls the text-generation client.
type AIConfig struct {
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	Model             string        `yaml:"model" envconfig:"MODEL" validate:"required"`
	KeyName           string        `yaml:"key_name" envconfig:"KEY_NAME" validate:"required"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	MaxRetries        int           `yaml:"max_retries" envconfig:"MAX_RETRIES" validate:"gte=0,lte=1"`
	RequestsPerMinute int           `yaml:"requests_per_minute" envconfig:"REQUESTS_PER_MINUTE" validate:"gte=0"`
}

// Budget is the longest a single insights request may take: every attempt
// running to its timeout plus the pauses between them.
func (c AIConfig) Budget() time.Duration {
	attempts := time.Duration(c.MaxRetries + 1)
	return attempts*c.Timeout + time.Duration(c.MaxRetries)*RetryBackoff
}

// AIDeadline is how long a request handler may wait on the AI service and
// still write its response before WriteTimeout closes the connection.
func (c ServerConfig) AIDeadline() time.Duration {
	return c.WriteTimeout - min(c.WriteTimeout/10, maxResponseMargin)
}

// SecretsConfig locates the secrets file consulted before the environment.
type SecretsConfig struct {
	File string `yaml:"file" envconfig:"FILE"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// Load reads a config file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Resolve builds the effective configuration: defaults, then the file at
// path (skipped when path is empty or absent and optional), then FPA_*
// environment overrides. The result is validated.
func Resolve(path string, optional bool) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
			// secrets.file in a config file is relative to that file
			if cfg.Secrets.File != "" && !filepath.IsAbs(cfg.Secrets.File) {
				cfg.Secrets.File = filepath.Join(filepath.Dir(path), cfg.Secrets.File)
			}
		case optional && errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if budget, limit := c.AI.Budget(), c.Server.AIDeadline(); budget > limit {
		return fmt.Errorf("invalid config: ai.timeout %s with %d retries needs up to %s, but server.write_timeout %s leaves %s",
			c.AI.Timeout, c.AI.MaxRetries, budget, c.Server.WriteTimeout, limit)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8501",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    150 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			SessionTTL:      2 * time.Hour,
			Title:           "FP&A AI Demo",
		},
		Upload: UploadConfig{
			MaxBytes: 5 * 1024 * 1024,
		},
		Analysis: AnalysisConfig{
			ZeroForecast: "marker",
		},
		AI: AIConfig{
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-4o-mini",
			KeyName:           "OPENAI_API_KEY",
			Timeout:           60 * time.Second,
			MaxRetries:        1,
			RequestsPerMinute: 20,
		},
		Secrets: SecretsConfig{
			File: "secrets.toml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
