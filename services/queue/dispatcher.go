package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/zap"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher hands verification codes to the mail queue instead of sending
// them inline. A nil error means the task was accepted by the broker, not
// that the email left the building.
type Dispatcher struct {
	client Enqueuer
	cfg    config.QueueConfig
	logger *logging.Service
}

func NewDispatcher(client Enqueuer, cfg config.QueueConfig, logger *logging.Service) *Dispatcher {
	return &Dispatcher{client: client, cfg: cfg, logger: logger}
}

func (d *Dispatcher) SendVerificationCode(ctx context.Context, email, code, name string) error {
	task, err := NewAuthCodeTask(email, code, name)
	if err != nil {
		return err
	}

	info, err := d.client.EnqueueContext(ctx, task, d.options()...)
	if err != nil {
		d.logger.Error("failed to enqueue auth code email", zap.String("recipient", email), zap.Error(err))
		return fmt.Errorf("failed to enqueue auth code email: %w", err)
	}

	d.logger.Debug("auth code email enqueued",
		zap.String("recipient", email),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue))
	return nil
}

func (d *Dispatcher) options() []asynq.Option {
	opts := []asynq.Option{
		asynq.Queue(d.cfg.Name),
		asynq.MaxRetry(d.cfg.MaxRetry),
	}
	if d.cfg.TaskTimeout > 0 {
		opts = append(opts, asynq.Timeout(d.cfg.TaskTimeout))
	}
	return opts
}
