package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/zap"
)

var ErrInvalidToken = errors.New("token has no identifier")

// checkTimeout bounds lookups made from token validation, which has no
// request context of its own.
const checkTimeout = 5 * time.Second

type Service struct {
	store  Store
	logger *logging.Service
	now    func() time.Time
}

func NewService(store Store, logger *logging.Service) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return ErrInvalidToken
	}

	if err := s.store.RevokeToken(ctx, jti, expiresAt); err != nil {
		s.logger.Error("failed to revoke token", zap.String("jti", jti), zap.Error(err))
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.logger.Info("token revoked", zap.String("jti", jti), zap.Time("expires_at", expiresAt))
	return nil
}

// IsTokenRevoked implements jwt.RevocationChecker.
func (s *Service) IsTokenRevoked(jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	revoked, err := s.store.IsRevoked(ctx, jti, s.now())
	if err != nil {
		s.logger.Error("failed to check token revocation", zap.String("jti", jti), zap.Error(err))
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return revoked, nil
}

func (s *Service) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	removed, err := s.store.CleanupExpiredTokens(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to clean up revoked tokens", zap.Error(err))
		return 0, err
	}

	if removed > 0 {
		s.logger.Debug("cleaned up revoked tokens", zap.Int64("removed", removed))
	}
	return removed, nil
}

// StartCleanupWorker prunes expired revocations every interval until ctx is
// cancelled. The returned channel is closed when the worker exits.
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
				_, _ = s.CleanupExpiredTokens(ctx)
			}
		}
	}()

	s.logger.Info("started revocation cleanup worker", zap.Duration("interval", interval))
	return done
}
