// Package config loads worker configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/muhammadolammi/careercards/internal/inference"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	RabbitMQURL  string `koanf:"rabbitmq_url" validate:"required"`
	GoogleAPIKey string `koanf:"google_api_key" validate:"required"`

	// InferenceTransport selects how prompts reach the model: the raw REST
	// endpoint, the genai SDK, or an ADK agent runner.
	InferenceTransport        string `koanf:"inference_transport" validate:"oneof=http genai agent"`
	InferenceModel            string `koanf:"inference_model" validate:"required"`
	InferenceEndpoint         string `koanf:"inference_endpoint" validate:"required_if=InferenceTransport http"`
	InferenceMaxAttempts      int    `koanf:"inference_max_attempts" validate:"gte=1"`
	InferenceBaseDelayMS      int    `koanf:"inference_base_delay_ms" validate:"gte=0"`
	InferenceAttemptTimeoutMS int    `koanf:"inference_attempt_timeout_ms" validate:"gte=1"`
	InferenceCoalesce         bool   `koanf:"inference_coalesce"`

	SessionBackend string `koanf:"session_backend" validate:"oneof=memory redis postgres"`
	// DBURL also enables job result records when set, whatever the backend.
	DBURL    string `koanf:"db_url" validate:"required_if=SessionBackend postgres"`
	RedisURL string `koanf:"redis_url" validate:"required_if=SessionBackend redis"`

	// R2 is only needed for jobs that reference an uploaded document; the
	// four keys are set together or not at all.
	R2AccountID string `koanf:"r2_account_id" validate:"required_with=R2Bucket R2AccessKey R2SecretKey"`
	R2Bucket    string `koanf:"r2_bucket" validate:"required_with=R2AccountID R2AccessKey R2SecretKey"`
	R2AccessKey string `koanf:"r2_access_key" validate:"required_with=R2AccountID R2Bucket R2SecretKey"`
	R2SecretKey string `koanf:"r2_secret_key" validate:"required_with=R2AccountID R2Bucket R2AccessKey"`

	WorkerCount int    `koanf:"worker_count" validate:"gte=1"`
	LogLevel    string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFile     string `koanf:"log_file"`
	LogJSON     bool   `koanf:"log_json"`
	MetricsAddr string `koanf:"metrics_addr"`
}

func New() *Config {
	return &Config{
		InferenceTransport:        "http",
		InferenceModel:            inference.DefaultModel,
		InferenceEndpoint:         inference.DefaultEndpoint,
		InferenceMaxAttempts:      inference.DefaultMaxAttempts,
		InferenceBaseDelayMS:      int(inference.DefaultBaseDelay / time.Millisecond),
		InferenceAttemptTimeoutMS: int(inference.DefaultAttemptTimeout / time.Millisecond),
		SessionBackend:            "memory",
		WorkerCount:               3,
		LogLevel:                  "info",
	}
}

// Load reads .env into the process environment, then layers defaults, the
// YAML file named by CONFIG_FILE, and environment variables. Environment keys
// are the lower-cased variable names, so RABBITMQ_URL sets rabbitmq_url.
func Load(_ context.Context) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", func(s string) string {
		s = strings.ToLower(s)
		// The worker has always read R2_ACCCOUNT_ID.
		if s == "r2_acccount_id" {
			return "r2_account_id"
		}
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.InferenceBaseDelayMS) * time.Millisecond
}

func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.InferenceAttemptTimeoutMS) * time.Millisecond
}

// HasR2 reports whether document downloads are configured.
func (c *Config) HasR2() bool { return c.R2Bucket != "" }
