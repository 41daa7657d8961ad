package authcode

import (
	"context"

	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/admins"
	"github.com/tech-arch1tect/ledgersite/services/jwt"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module expects a Deliverer for the email channel to be provided by the
// application (direct SMTP or the mail queue).
var Module = fx.Options(
	fx.Provide(ProvideStore, ProvideService),
	fx.Invoke(RegisterCleanupWorker),
)

func ProvideStore(db *gorm.DB) Store {
	return NewGormStore(db)
}

func ProvideService(cfg *config.Config, store Store, dir *admins.Directory, signer *jwt.Service, mailer Deliverer, logger *logging.Service) *Service {
	return NewService(cfg.AuthCode, store, dir, signer, mailer, logger.Named("authcode"))
}

func RegisterCleanupWorker(lc fx.Lifecycle, cfg *config.Config, svc *Service) {
	interval := cfg.AuthCode.CleanupInterval
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
