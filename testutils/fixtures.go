package testutils

import (
	"time"

	"github.com/tech-arch1tect/ledgersite/config"
)

const TestSigningKey = "k7Qp2vXz9LmN4rT8wY1aB6cD3eF5gH0jK2lM9nP4qR7s"

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:    "Ledger Admin",
			URL:     "http://localhost:8080",
			Version: "test",
		},
		Server: config.ServerConfig{
			Host: "localhost",
			Port: "8080",
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "json",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		Mail: config.MailConfig{
			Host:        "localhost",
			Port:        2525,
			Encryption:  "none",
			FromAddress: "no-reply@ledger.test",
			FromName:    "Ledger Admin",
			Timeout:     time.Second,
		},
		JWT: config.JWTConfig{
			SecretKey: TestSigningKey,
			Issuer:    "ledgersite-test",
			Algorithm: "HS256",
		},
		AuthCode: config.AuthCodeConfig{
			CodeTTL:          10 * time.Minute,
			RateLimitWindow:  5 * time.Minute,
			RateLimitMax:     3,
			TokenTTL:         24 * time.Hour,
			UsedRetention:    24 * time.Hour,
			OperationTimeout: 5 * time.Second,
			DeliveryMode:     config.DeliverSync,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:   false,
			Store:     "memory",
			Rate:      100,
			Period:    time.Minute,
			CountMode: config.CountAll,
		},
		Queue: config.QueueConfig{
			Name:        "mail",
			Concurrency: 1,
			MaxRetry:    2,
			TaskTimeout: 5 * time.Second,
		},
		Revocation: config.RevocationConfig{
			Enabled: true,
		},
		OpenAPI: config.OpenAPIConfig{
			Enabled: true,
			Path:    "/openapi",
		},
	}
}

var TestAdmin = struct {
	Email string
	Name  string
}{
	Email: "admin@test.com",
	Name:  "Avery Ledger",
}
