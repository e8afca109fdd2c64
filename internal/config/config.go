package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	JWTSecret string        `env:"JWT_SECRET,required" validate:"required,min=32"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h" validate:"gt=0"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	// Fulfillment worker knobs. ReceiptSLA is a safety net only; zero
	// disables the delivered -> received timer entirely.
	WorkerTick  time.Duration `env:"WORKER_TICK" envDefault:"1s" validate:"gt=0"`
	DeliverySLA time.Duration `env:"DELIVERY_SLA" envDefault:"24h" validate:"gt=0"`
	ReceiptSLA  time.Duration `env:"RECEIPT_SLA" envDefault:"0" validate:"gte=0"`

	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"" validate:"omitempty,oneof=resend"`
	EmailAPIKey   string `env:"EMAIL_API_KEY"`
	EmailFrom     string `env:"EMAIL_FROM" validate:"omitempty,email"`

	SentryDSN         string  `env:"SENTRY_DSN"`
	SentrySampleRate  float64 `env:"SENTRY_TRACES_SAMPLE_RATE" envDefault:"0.1" validate:"gte=0,lte=1"`
	SentryEnvironment string  `env:"SENTRY_ENVIRONMENT" envDefault:"development"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if c.ReceiptSLA > 0 && c.ReceiptSLA <= c.DeliverySLA {
		return fmt.Errorf("RECEIPT_SLA must exceed DELIVERY_SLA when enabled")
	}

	if c.WorkerTick > c.DeliverySLA {
		return fmt.Errorf("WORKER_TICK must not exceed DELIVERY_SLA")
	}

	hasProvider := strings.TrimSpace(c.EmailProvider) != ""
	if hasProvider && strings.TrimSpace(c.EmailAPIKey) == "" {
		return fmt.Errorf("EMAIL_API_KEY is required when EMAIL_PROVIDER is set")
	}
	if hasProvider && strings.TrimSpace(c.EmailFrom) == "" {
		return fmt.Errorf("EMAIL_FROM is required when EMAIL_PROVIDER is set")
	}

	return nil
}
