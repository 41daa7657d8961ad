package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/zap"
)

type Sender interface {
	SendVerificationCode(ctx context.Context, email, code, name string) error
}

type AuthCodeProcessor struct {
	sender Sender
	logger *logging.Service
}

func NewAuthCodeProcessor(sender Sender, logger *logging.Service) *AuthCodeProcessor {
	return &AuthCodeProcessor{sender: sender, logger: logger}
}

func (p *AuthCodeProcessor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var data AuthCodePayload
	if err := json.Unmarshal(t.Payload(), &data); err != nil {
		// retrying a payload that cannot be decoded will never succeed
		return fmt.Errorf("process auth code task json unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	if err := p.sender.SendVerificationCode(ctx, data.Email, data.Code, data.Name); err != nil {
		p.logger.Warn("auth code email delivery failed", zap.String("recipient", data.Email), zap.Error(err))
		return fmt.Errorf("send auth code email failed: %w", err)
	}
	return nil
}
