package app

import (
	"fmt"

	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/database"
	authhandlers "github.com/tech-arch1tect/ledgersite/handlers/auth"
	"github.com/tech-arch1tect/ledgersite/middleware/ratelimit"
	"github.com/tech-arch1tect/ledgersite/openapi"
	"github.com/tech-arch1tect/ledgersite/server"
	"github.com/tech-arch1tect/ledgersite/services/admins"
	"github.com/tech-arch1tect/ledgersite/services/authcode"
	"github.com/tech-arch1tect/ledgersite/services/jwt"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"github.com/tech-arch1tect/ledgersite/services/mail"
	"github.com/tech-arch1tect/ledgersite/services/queue"
	"github.com/tech-arch1tect/ledgersite/services/revocation"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type AppBuilder struct {
	config    *config.Config
	services  map[string]bool
	models    []any
	fxOptions []fx.Option
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		services:  make(map[string]bool),
		models:    make([]any, 0),
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithDatabase(models ...any) *AppBuilder {
	b.services["database"] = true
	b.models = append(b.models, models...)
	return b
}

func (b *AppBuilder) WithMail() *AppBuilder {
	b.services["mail"] = true
	return b
}

func (b *AppBuilder) WithJWT() *AppBuilder {
	b.services["jwt"] = true
	return b
}

func (b *AppBuilder) WithRevocation() *AppBuilder {
	b.services["revocation"] = true
	b.services["jwt"] = true
	return b
}

func (b *AppBuilder) WithRedis() *AppBuilder {
	b.services["redis"] = true
	return b
}

// WithQueue runs the mail queue workers in this process.
func (b *AppBuilder) WithQueue() *AppBuilder {
	b.services["queue"] = true
	b.services["mail"] = true
	return b
}

// WithAuthCodes enables email code sign-in and the /auth routes.
func (b *AppBuilder) WithAuthCodes() *AppBuilder {
	b.services["auth_codes"] = true
	b.services["database"] = true
	b.services["jwt"] = true
	return b
}

func (b *AppBuilder) WithOpenAPI() *AppBuilder {
	b.services["openapi"] = true
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if b.config == nil {
		b.WithAutoConfig()
	}

	if err := b.validate(); err != nil {
		return nil, err
	}

	logger, err := b.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{
		config: b.config,
		logger: logger,
	}

	fxOptions := b.buildFxOptions(logger)
	fxOptions = append(fxOptions, fx.Invoke(func(refs appRefs) {
		app.server = refs.Server
		app.db = refs.DB
	}))

	fxApp := fx.New(fxOptions...)
	if err := fxApp.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}
	app.fx = fxApp

	return app, nil
}

type appRefs struct {
	fx.In

	Server *server.Server
	DB     *gorm.DB `optional:"true"`
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, fmt.Errorf("%s", msg))
}

// validate reports builder errors and pulls in the services each enabled
// feature depends on.
func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %v", b.errors)
	}

	if b.services["auth_codes"] {
		b.services["mail"] = true
		if b.config.AuthCode.DeliveryMode == config.DeliverQueue {
			b.services["queue"] = true
		}
		if b.config.RateLimit.Enabled && b.config.RateLimit.Store == "redis" {
			b.services["redis"] = true
		}
		if b.config.Revocation.Enabled {
			b.services["revocation"] = true
		}
		if b.config.OpenAPI.Enabled {
			b.services["openapi"] = true
		}
	}

	if b.services["revocation"] && !b.services["jwt"] {
		return fmt.Errorf("token revocation requires JWT support")
	}

	return nil
}

func (b *AppBuilder) createLogger() (*logging.Service, error) {
	if b.config == nil {
		return nil, fmt.Errorf("config required for logger creation")
	}
	return logging.NewLoggingService(b.config)
}

// databaseModels returns the tables to migrate for the enabled features.
func (b *AppBuilder) databaseModels() []any {
	models := append([]any{}, b.models...)
	if b.services["auth_codes"] {
		models = append(models, &admins.Admin{}, &authcode.VerificationCode{})
	}
	if b.services["revocation"] {
		models = append(models, &revocation.RevokedToken{})
	}
	return models
}

func (b *AppBuilder) buildFxOptions(logger *logging.Service) []fx.Option {
	var options []fx.Option

	options = append(options,
		config.NewProvider(b.config),
		fx.Supply(logger),
		fx.NopLogger,
	)

	if b.services["database"] {
		options = append(options,
			fx.Supply(database.WithModels(b.databaseModels()...)),
			database.Module,
		)
	}

	options = append(options, server.Module)

	if b.services["redis"] {
		options = append(options, database.RedisModule)
	}
	if b.services["mail"] {
		options = append(options, mail.Module)
	}
	if b.services["queue"] {
		options = append(options, queue.Module)
	}
	if b.services["jwt"] {
		options = append(options, jwt.Module)
	}
	if b.services["revocation"] {
		options = append(options, revocation.Module)
	}
	if b.services["openapi"] {
		options = append(options, openapi.Module)
	}
	if b.services["auth_codes"] {
		options = append(options,
			admins.Module,
			ratelimit.Module,
			fx.Provide(b.provideDeliverer()),
			authcode.Module,
			authhandlers.Module,
		)
	}

	options = append(options, b.fxOptions...)

	return options
}

// provideDeliverer hands the auth code service the mail sender or, in queue
// mode, the task dispatcher.
func (b *AppBuilder) provideDeliverer() any {
	if b.config.AuthCode.DeliveryMode == config.DeliverQueue {
		return func(d *queue.Dispatcher) authcode.Deliverer { return d }
	}
	return func(m *mail.Service) authcode.Deliverer { return m }
}
