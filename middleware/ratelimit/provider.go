package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/ledgersite/config"
	"go.uber.org/fx"
)

type StoreParams struct {
	fx.In

	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

func ProvideRateLimitStore(lc fx.Lifecycle, p StoreParams) (Store, error) {
	store, err := NewStore(&p.Config.RateLimit, p.Redis)
	if err != nil {
		return nil, err
	}

	if memory, ok := store.(*MemoryStore); ok {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				memory.Close()
				return nil
			},
		})
	}
	return store, nil
}

var Module = fx.Options(
	fx.Provide(ProvideRateLimitStore),
)
