package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/zap"
)

func NewRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// ProvideRedis connects and pings. The returned client is closed by the
// caller (the app lifecycle does this on stop).
func ProvideRedis(ctx context.Context, cfg config.RedisConfig, logger *logging.Service) (*redis.Client, error) {
	client := NewRedis(cfg)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Error("redis ping failed", zap.String("addr", cfg.Addr), zap.Error(err))
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("redis connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return client, nil
}
