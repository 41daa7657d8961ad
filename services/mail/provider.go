package mail

import (
	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/fx"
)

func ProvideMailService(cfg *config.Config, logger *logging.Service) (*Service, error) {
	return NewService(&cfg.Mail, Branding{
		AppName: cfg.App.Name,
		CodeTTL: cfg.AuthCode.CodeTTL,
	}, logger.Named("mail"))
}

var Module = fx.Options(
	fx.Provide(ProvideMailService),
)
