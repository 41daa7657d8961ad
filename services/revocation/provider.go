package revocation

import (
	"context"

	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/jwt"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OptionalDB struct {
	fx.In
	DB *gorm.DB `optional:"true"`
}

func ProvideStore(logger *logging.Service, optDB OptionalDB) Store {
	if optDB.DB == nil {
		logger.Warn("no database available, revoked tokens will not survive a restart")
		return NewMemoryStore()
	}
	return NewGormStore(optDB.DB)
}

func ProvideRevocationService(store Store, logger *logging.Service) *Service {
	svc := NewService(store, logger.Named("revocation"))
	logger.Info("token revocation enabled", zap.String("store", storeName(store)))
	return svc
}

func ProvideRevocationAsJWTInterface(svc *Service) jwt.RevocationChecker {
	return svc
}

func RegisterCleanupWorker(lc fx.Lifecycle, cfg *config.Config, svc *Service) {
	interval := cfg.Revocation.CleanupInterval
	if interval <= 0 {
		return
	}

	var (
		cancel context.CancelFunc
		done   <-chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var workerCtx context.Context
			workerCtx, cancel = context.WithCancel(context.Background())
			done = svc.StartCleanupWorker(workerCtx, interval)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func storeName(store Store) string {
	if _, ok := store.(*GormStore); ok {
		return "database"
	}
	return "memory"
}

var Module = fx.Options(
	fx.Provide(ProvideStore),
	fx.Provide(ProvideRevocationService),
	fx.Provide(ProvideRevocationAsJWTInterface),
	fx.Invoke(RegisterCleanupWorker),
)
