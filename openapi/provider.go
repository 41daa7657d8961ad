package openapi

import (
	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/server"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func ProvideDocument(cfg *config.Config) *OpenAPI {
	return New(cfg.App.Name+" API", cfg.App.Version).
		Description("Administrator sign-in with emailed one-time codes.").
		Server(cfg.App.URL, "")
}

func RegisterRoutes(cfg *config.Config, srv *server.Server, doc *OpenAPI, logger *logging.Service) {
	doc.Mount(srv.Echo(), cfg.OpenAPI.Path)
	logger.Info("openapi document mounted",
		zap.String("json", cfg.OpenAPI.Path+".json"),
		zap.String("yaml", cfg.OpenAPI.Path+".yaml"))
}

var Module = fx.Options(
	fx.Provide(ProvideDocument),
	fx.Invoke(RegisterRoutes),
)
