package admins

import (
	"context"

	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(ProvideDirectory),
	fx.Invoke(RegisterSeed),
)

func ProvideDirectory(db *gorm.DB, logger *logging.Service) *Directory {
	return NewDirectory(db, logger.Named("admins"))
}

func RegisterSeed(lc fx.Lifecycle, cfg *config.Config, dir *Directory) {
	if cfg.Admin.SeedEmail == "" {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := dir.EnsureSeed(ctx, cfg.Admin.SeedEmail, cfg.Admin.SeedName)
			return err
		},
	})
}
