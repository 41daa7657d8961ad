package authcode

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/admins"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/zap"
)

type Directory interface {
	LookupByEmail(ctx context.Context, email string) (*admins.Admin, error)
}

// Deliverer hands a code to a delivery channel. A nil error means the
// message was accepted, not that it reached the inbox.
type Deliverer interface {
	SendVerificationCode(ctx context.Context, email, code, name string) error
}

type Signer interface {
	GenerateAdminToken(adminID uint, email, name string, ttl time.Duration) (string, error)
}

type Service struct {
	cfg        config.AuthCodeConfig
	store      Store
	directory  Directory
	signer     Signer
	deliverers map[Channel]Deliverer
	logger     *logging.Service
	validate   *validator.Validate
	now        func() time.Time
	entropy    io.Reader
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithDeliverer registers (or replaces) the deliverer for a channel.
func WithDeliverer(channel Channel, d Deliverer) Option {
	return func(s *Service) {
		s.deliverers[channel] = d
	}
}

func WithEntropy(r io.Reader) Option {
	return func(s *Service) {
		s.entropy = r
	}
}

func NewService(cfg config.AuthCodeConfig, store Store, directory Directory, signer Signer, mailer Deliverer, logger *logging.Service, opts ...Option) *Service {
	s := &Service{
		cfg:        cfg,
		store:      store,
		directory:  directory,
		signer:     signer,
		deliverers: map[Channel]Deliverer{},
		logger:     logger,
		validate:   validator.New(),
		now:        func() time.Time { return time.Now().UTC() },
		entropy:    rand.Reader,
	}
	if mailer != nil {
		s.deliverers[ChannelEmail] = mailer
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CodeTTL() time.Duration {
	return s.cfg.CodeTTL
}

func (s *Service) SendAuthCode(ctx context.Context, email string, channel Channel) SendResult {
	email = admins.NormalizeEmail(email)
	if channel == "" {
		channel = ChannelEmail
	}
	log := s.logger.With(zap.String("email", email), zap.String("channel", string(channel)))

	if err := s.validate.Var(email, "required,email,max=255"); err != nil {
		return sendFailure(ReasonInvalidEmail, msgInvalidEmail)
	}
	if !channel.Valid() {
		return sendFailure(ReasonInvalidChannel, msgInvalidChannel)
	}
	deliverer, ok := s.deliverers[channel]
	if !ok {
		log.Warn("auth code requested for channel without a deliverer")
		return sendFailure(ReasonChannelUnsupported, channelUnsupportedMessage(channel))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	now := s.now()

	if s.rateLimited(ctx, log, email, now) {
		log.Warn("auth code rate limit reached")
		result := sendFailure(ReasonRateLimited, msgRateLimited)
		result.RetryAfter = s.cfg.RateLimitWindow
		return result
	}

	admin, err := s.directory.LookupByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, admins.ErrAdminNotFound) {
			log.Info("auth code requested for unknown address")
			return sendFailure(ReasonUnknownIdentity, msgUnknownIdentity)
		}
		log.Error("administrator lookup failed", zap.Error(err))
		return sendFailure(ReasonInternal, msgSendInternal)
	}

	code, err := generateCode(s.entropy)
	if err != nil {
		log.Error("auth code generation failed", zap.Error(err))
		return sendFailure(ReasonInternal, msgSendInternal)
	}

	record := &VerificationCode{
		Email:     email,
		Code:      code,
		Channel:   channel,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.CodeTTL),
	}
	invalidated, err := s.store.ReplaceLive(ctx, record, now)
	if err != nil {
		log.Error("failed to persist auth code", zap.Error(err))
		return sendFailure(ReasonInternal, msgSendInternal)
	}
	log = log.With(zap.Uint("code_id", record.ID))
	log.Info("auth code issued",
		zap.Int64("invalidated", invalidated),
		zap.Time("expires_at", record.ExpiresAt))

	if err := deliverer.SendVerificationCode(ctx, email, code, admin.Name); err != nil {
		// The stored code stays live so support can still complete the sign-in.
		log.Error("auth code delivery failed", zap.Error(err))
		return sendFailure(ReasonDeliveryFailed, msgDeliveryFailed)
	}

	return SendResult{Success: true, Message: sentMessage(s.cfg.CodeTTL)}
}

func (s *Service) ValidateAuthCode(ctx context.Context, email, code string) ValidateResult {
	email = admins.NormalizeEmail(email)
	code = strings.TrimSpace(code)

	if !validCodeFormat(code) {
		return validateFailure(ReasonInvalidFormat, msgInvalidFormat)
	}
	if err := s.validate.Var(email, "required,email,max=255"); err != nil {
		return validateFailure(ReasonInvalidEmail, msgInvalidEmail)
	}

	log := s.logger.With(zap.String("email", email))
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	now := s.now()

	consumed, err := s.store.ConsumeLive(ctx, email, code, now)
	if err != nil {
		if errors.Is(err, ErrNoLiveCode) {
			return s.classifyFailure(ctx, log, email, code, now)
		}
		log.Error("failed to consume auth code", zap.Error(err))
		return validateFailure(ReasonInternal, msgValidateInternal)
	}
	log = log.With(zap.Uint("code_id", consumed.ID))

	admin, err := s.directory.LookupByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, admins.ErrAdminNotFound) {
			log.Warn("auth code consumed for a removed administrator")
			return validateFailure(ReasonNotFound, msgAdminNotFound)
		}
		log.Error("administrator lookup failed", zap.Error(err))
		return validateFailure(ReasonInternal, msgValidateInternal)
	}

	token, err := s.signer.GenerateAdminToken(admin.ID, admin.Email, admin.Name, s.cfg.TokenTTL)
	if err != nil {
		log.Error("failed to sign session token", zap.Error(err))
		return validateFailure(ReasonInternal, msgValidateInternal)
	}

	log.Info("auth code accepted", zap.Uint("admin_id", admin.ID))
	return ValidateResult{
		Success:   true,
		Message:   msgValidateSuccessful,
		Token:     token,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
		User: &User{
			ID:    admin.ID,
			Email: admin.Email,
			Name:  admin.Name,
		},
	}
}

// classifyFailure picks the most helpful message for a rejected code. It only
// affects wording; every branch is a failure.
func (s *Service) classifyFailure(ctx context.Context, log *logging.Service, email, code string, now time.Time) ValidateResult {
	match, err := s.store.FindAnyMatch(ctx, email, code)
	switch {
	case err == nil && match.Used:
		return validateFailure(ReasonAlreadyUsed, msgAlreadyUsed)
	case err == nil && match.IsExpired(now):
		return validateFailure(ReasonExpired, msgExpired)
	case err == nil:
		return validateFailure(ReasonInvalidCode, msgInvalidCode)
	case !errors.Is(err, ErrCodeNotFound):
		log.Warn("auth code diagnostics failed", zap.Error(err))
		return validateFailure(ReasonInvalidCode, msgInvalidCode)
	}

	exists, err := s.store.HasAnyForEmail(ctx, email)
	if err != nil {
		log.Warn("auth code diagnostics failed", zap.Error(err))
		return validateFailure(ReasonInvalidCode, msgInvalidCode)
	}
	if !exists {
		return validateFailure(ReasonNoCode, msgNoCode)
	}
	return validateFailure(ReasonInvalidCode, msgInvalidCode)
}

// CleanupExpiredCodes deletes expired codes and used codes past retention.
// Failures are logged and reported as zero deletions.
func (s *Service) CleanupExpiredCodes(ctx context.Context) int64 {
	now := s.now()

	deleted, err := s.store.DeleteStale(ctx, now, now.Add(-s.cfg.UsedRetention))
	if err != nil {
		s.logger.Error("auth code cleanup failed", zap.Error(err))
		return 0
	}

	if deleted > 0 {
		s.logger.Info("cleaned up auth codes", zap.Int64("deleted", deleted))
	}
	return deleted
}

func (s *Service) rateLimited(ctx context.Context, log *logging.Service, email string, now time.Time) bool {
	recent, err := s.store.CountRecentByEmail(ctx, email, now.Add(-s.cfg.RateLimitWindow))
	if err != nil {
		log.Warn("auth code rate limit check failed, allowing request", zap.Error(err))
		return false
	}
	return recent >= int64(s.cfg.RateLimitMax)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}
