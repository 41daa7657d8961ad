package database

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(ProvideDatabaseFx),
)

var RedisModule = fx.Options(
	fx.Provide(ProvideRedisFx),
)

func ProvideDatabaseFx(cfg *config.Config, modelsOpt *ModelsOption, logger *logging.Service) (*gorm.DB, error) {
	return ProvideDatabase(*cfg, modelsOpt, logger)
}

func ProvideRedisFx(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) (*redis.Client, error) {
	client, err := ProvideRedis(context.Background(), cfg.Redis, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}
