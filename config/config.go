package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type DeliveryMode string

const (
	DeliverSync  DeliveryMode = "sync"
	DeliverQueue DeliveryMode = "queue"
)

type Config struct {
	App        AppConfig        `envPrefix:"APP_"`
	Server     ServerConfig     `envPrefix:"SERVER_"`
	Log        LogConfig        `envPrefix:"LOG_"`
	Database   DatabaseConfig   `envPrefix:"DATABASE_"`
	Mail       MailConfig       `envPrefix:"MAIL_"`
	JWT        JWTConfig        `envPrefix:"JWT_"`
	AuthCode   AuthCodeConfig   `envPrefix:"AUTH_CODE_"`
	RateLimit  RateLimitConfig  `envPrefix:"RATE_LIMIT_"`
	Redis      RedisConfig      `envPrefix:"REDIS_"`
	Queue      QueueConfig      `envPrefix:"QUEUE_"`
	Revocation RevocationConfig `envPrefix:"REVOCATION_"`
	Admin      AdminConfig      `envPrefix:"ADMIN_"`
	OpenAPI    OpenAPIConfig    `envPrefix:"OPENAPI_"`
}

type AppConfig struct {
	Name    string `env:"NAME" envDefault:"Ledger Admin"`
	URL     string `env:"URL" envDefault:"http://localhost:8080"`
	Version string `env:"VERSION" envDefault:"1.0.0"`
}

type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	Host           string   `env:"HOST" envDefault:"localhost"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"app.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type MailConfig struct {
	Host         string        `env:"HOST" envDefault:"localhost"`
	Port         int           `env:"PORT" envDefault:"587"`
	Username     string        `env:"USERNAME"`
	Password     string        `env:"PASSWORD"`
	Encryption   string        `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress  string        `env:"FROM_ADDRESS" envDefault:"no-reply@localhost"`
	FromName     string        `env:"FROM_NAME" envDefault:"Ledger Admin"`
	TemplatesDir string        `env:"TEMPLATES_DIR"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type JWTConfig struct {
	SecretKey string `env:"SECRET_KEY"`
	Issuer    string `env:"ISSUER" envDefault:"ledgersite"`
	Algorithm string `env:"ALGORITHM" envDefault:"HS256"`
}

// AuthCodeConfig holds the one-time code policy. Defaults match the values
// the admin login flow has always used.
type AuthCodeConfig struct {
	CodeTTL          time.Duration `env:"TTL" envDefault:"10m"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"5m"`
	RateLimitMax     int           `env:"RATE_LIMIT_MAX" envDefault:"3"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	UsedRetention    time.Duration `env:"USED_RETENTION" envDefault:"24h"`
	CleanupInterval  time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	OperationTimeout time.Duration `env:"OPERATION_TIMEOUT" envDefault:"15s"`
	DeliveryMode     DeliveryMode  `env:"DELIVERY_MODE" envDefault:"sync"`
}

type RateLimitConfig struct {
	Enabled   bool          `env:"ENABLED" envDefault:"true"`
	Store     string        `env:"STORE" envDefault:"memory"`
	Rate      int           `env:"RATE" envDefault:"20"`
	Period    time.Duration `env:"PERIOD" envDefault:"1m"`
	CountMode CountingMode  `env:"COUNT_MODE" envDefault:"all"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type QueueConfig struct {
	Name        string        `env:"NAME" envDefault:"mail"`
	Concurrency int           `env:"CONCURRENCY" envDefault:"5"`
	MaxRetry    int           `env:"MAX_RETRY" envDefault:"5"`
	TaskTimeout time.Duration `env:"TASK_TIMEOUT" envDefault:"30s"`
}

type RevocationConfig struct {
	Enabled         bool          `env:"ENABLED" envDefault:"true"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"6h"`
}

type AdminConfig struct {
	SeedEmail string `env:"SEED_EMAIL"`
	SeedName  string `env:"SEED_NAME" envDefault:"Administrator"`
}

type OpenAPIConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/openapi"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return c.Validate()
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validateJWTConfig(&c.JWT); err != nil {
		return err
	}
	if err := validateAuthCodeConfig(&c.AuthCode); err != nil {
		return err
	}
	return validateRateLimitConfig(&c.RateLimit)
}

func validateJWTConfig(cfg *JWTConfig) error {
	if len(cfg.SecretKey) < 32 {
		return errors.New("JWT secret key must be at least 32 characters long")
	}

	lowered := strings.ToLower(cfg.SecretKey)
	for _, weak := range []string{"password", "secret", "test", "example", "default", "change"} {
		if strings.Contains(lowered, weak) {
			return fmt.Errorf("JWT secret key contains weak patterns (%q)", weak)
		}
	}

	if cfg.Algorithm != "" && cfg.Algorithm != "HS256" {
		return fmt.Errorf("unsupported JWT algorithm: %s (supported: HS256)", cfg.Algorithm)
	}
	return nil
}

func validateAuthCodeConfig(cfg *AuthCodeConfig) error {
	switch {
	case cfg.CodeTTL <= 0:
		return errors.New("auth code TTL must be positive")
	case cfg.RateLimitWindow <= 0:
		return errors.New("auth code rate limit window must be positive")
	case cfg.RateLimitMax < 1:
		return errors.New("auth code rate limit max must be at least 1")
	case cfg.TokenTTL <= 0:
		return errors.New("auth code token TTL must be positive")
	case cfg.UsedRetention < 0:
		return errors.New("auth code used retention cannot be negative")
	}

	switch cfg.DeliveryMode {
	case DeliverSync, DeliverQueue:
	default:
		return fmt.Errorf("auth code delivery mode must be: sync or queue (got %q)", cfg.DeliveryMode)
	}
	return nil
}

func validateRateLimitConfig(cfg *RateLimitConfig) error {
	switch cfg.Store {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("rate limit store must be: memory or redis (got %q)", cfg.Store)
	}

	switch cfg.CountMode {
	case "", CountAll, CountFailures, CountSuccess:
	default:
		return fmt.Errorf("rate limit count mode must be: all, failures, or success (got %q)", cfg.CountMode)
	}
	return nil
}
