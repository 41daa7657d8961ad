package authcode

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartCleanupWorker runs CleanupExpiredCodes every interval until ctx is
// cancelled. The returned channel is closed once the worker has exited.
func (s *Service) StartCleanupWorker(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpiredCodes(ctx)
			}
		}
	}()

	s.logger.Info("started auth code cleanup worker", zap.Duration("interval", interval))
	return done
}
