package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
)

const envDevelopment = "development"

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"CongoPay Escrow"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL  string   `env:"DATABASE_URL"`
	RedisURL     string   `env:"REDIS_URL"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"escrow.events"`
	JWTSecret    string   `env:"JWT_SECRET"`

	ShutdownPeriod    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL    time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	TxTimeout         time.Duration `env:"TX_TIMEOUT" envDefault:"5s"`
	ConflictRetries   uint64        `env:"CONFLICT_RETRIES" envDefault:"3"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"`
	// OrderRateLimit is the number of orders one account may create per minute. Zero disables the limit.
	OrderRateLimit int `env:"ORDER_RATE_LIMIT" envDefault:"30"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if !c.Development() && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be set outside development")
	}
	if c.TxTimeout <= 0 {
		return errors.New("TX_TIMEOUT must be positive")
	}
	if c.OrderRateLimit < 0 {
		return errors.New("ORDER_RATE_LIMIT must not be negative")
	}
	return nil
}

// Development reports whether the in-memory fallbacks may be used.
func (c Config) Development() bool {
	return c.AppEnv == envDevelopment
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
