package auth

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/ledgersite/config"
	jwtmw "github.com/tech-arch1tect/ledgersite/middleware/jwt"
	"github.com/tech-arch1tect/ledgersite/middleware/ratelimit"
	"github.com/tech-arch1tect/ledgersite/openapi"
	"github.com/tech-arch1tect/ledgersite/server"
	"github.com/tech-arch1tect/ledgersite/services/authcode"
	"github.com/tech-arch1tect/ledgersite/services/jwt"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"github.com/tech-arch1tect/ledgersite/services/revocation"
	"go.uber.org/fx"
)

type HandlerParams struct {
	fx.In

	Service    *authcode.Service
	Revocation *revocation.Service `optional:"true"`
	Logger     *logging.Service
}

func ProvideHandler(p HandlerParams) *Handler {
	var revoker Revoker
	if p.Revocation != nil {
		revoker = p.Revocation
	}
	return NewHandler(p.Service, revoker, p.Logger.Named("auth"))
}

type RouteParams struct {
	fx.In

	Config  *config.Config
	Server  *server.Server
	Handler *Handler
	JWT     *jwt.Service
	Logger  *logging.Service
	Store   ratelimit.Store  `optional:"true"`
	Docs    *openapi.OpenAPI `optional:"true"`
}

func RegisterRoutes(p RouteParams) {
	p.Handler.RegisterRoutes(p.Server.Group(Prefix), jwtmw.RequireJWT(p.JWT), limiter(p))

	if p.Docs != nil {
		Document(p.Docs)
	}
}

func limiter(p RouteParams) echo.MiddlewareFunc {
	if !p.Config.RateLimit.Enabled {
		return nil
	}
	return ratelimit.Middleware(ratelimit.FromConfig(&p.Config.RateLimit, p.Store, p.Logger.Named("ratelimit")))
}

var Module = fx.Options(
	fx.Provide(ProvideHandler),
	fx.Invoke(RegisterRoutes),
)
