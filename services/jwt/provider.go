package jwt

import (
	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/fx"
)

func NewJWTService(cfg *config.Config, logger *logging.Service) *Service {
	return NewService(&cfg.JWT, logger.Named("jwt"))
}

type OptionalRevocation struct {
	fx.In
	Checker RevocationChecker `optional:"true"`
}

func WireRevocation(svc *Service, opt OptionalRevocation) {
	if opt.Checker != nil {
		svc.SetRevocationChecker(opt.Checker)
	}
}

var Module = fx.Options(
	fx.Provide(NewJWTService),
	fx.Invoke(WireRevocation),
)
