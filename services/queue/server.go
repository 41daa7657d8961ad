package queue

import (
	"github.com/hibiken/asynq"
	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/logging"
)

func RedisOptions(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *asynq.Client {
	return asynq.NewClient(RedisOptions(cfg))
}

// NewServer builds the worker side of the mail queue and the mux routing auth
// code tasks to the processor.
func NewServer(redisCfg config.RedisConfig, cfg config.QueueConfig, processor *AuthCodeProcessor, logger *logging.Service) (*asynq.Server, *asynq.ServeMux) {
	mux := asynq.NewServeMux()
	mux.Handle(TypeAuthCodeEmail, processor)

	asynqCfg := asynq.Config{
		Concurrency: cfg.Concurrency,
		LogLevel:    asynq.WarnLevel,
		Queues:      map[string]int{cfg.Name: 1},
	}
	if sugar := logger.Sugar(); sugar != nil {
		asynqCfg.Logger = sugar
	}

	return asynq.NewServer(RedisOptions(redisCfg), asynqCfg), mux
}
