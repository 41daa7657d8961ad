package queue

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"github.com/tech-arch1tect/ledgersite/services/mail"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func ProvideClient(lc fx.Lifecycle, cfg *config.Config) *asynq.Client {
	client := NewClient(cfg.Redis)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func ProvideDispatcher(client *asynq.Client, cfg *config.Config, logger *logging.Service) *Dispatcher {
	return NewDispatcher(client, cfg.Queue, logger.Named("queue"))
}

func ProvideProcessor(sender *mail.Service, logger *logging.Service) *AuthCodeProcessor {
	return NewAuthCodeProcessor(sender, logger.Named("queue"))
}

// RegisterServer runs the queue workers for the lifetime of the app.
func RegisterServer(lc fx.Lifecycle, cfg *config.Config, processor *AuthCodeProcessor, logger *logging.Service) {
	srv, mux := NewServer(cfg.Redis, cfg.Queue, processor, logger.Named("asynq"))

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting queue workers",
				zap.String("queue", cfg.Queue.Name),
				zap.Int("concurrency", cfg.Queue.Concurrency))
			return srv.Start(mux)
		},
		OnStop: func(context.Context) error {
			srv.Shutdown()
			logger.Info("queue workers stopped")
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(ProvideClient, ProvideDispatcher, ProvideProcessor),
	fx.Invoke(RegisterServer),
)
