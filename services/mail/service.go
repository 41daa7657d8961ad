package mail

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmlTemplate "html/template"
	"path/filepath"
	textTemplate "text/template"
	"time"

	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const authCodeTemplate = "auth_code"

//go:embed templates/*.html templates/*.txt
var defaultTemplates embed.FS

var ErrMissingFromAddress = errors.New("MAIL_FROM_ADDRESS is required")

// Client is the subset of *mail.Client used for sending.
type Client interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Branding is the application data rendered into every message.
type Branding struct {
	AppName string
	CodeTTL time.Duration
}

type Service struct {
	config        *config.MailConfig
	branding      Branding
	client        Client
	htmlTemplates *htmlTemplate.Template
	textTemplates *textTemplate.Template
	logger        *logging.Service
}

func NewService(cfg *config.MailConfig, branding Branding, logger *logging.Service) (*Service, error) {
	if cfg.FromAddress == "" {
		return nil, ErrMissingFromAddress
	}

	client, err := mail.NewClient(cfg.Host, clientOptions(cfg)...)
	if err != nil {
		logger.Error("failed to create mail client",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return NewServiceWithClient(cfg, branding, logger, client)
}

func NewServiceWithClient(cfg *config.MailConfig, branding Branding, logger *logging.Service, client Client) (*Service, error) {
	if cfg.FromAddress == "" {
		return nil, ErrMissingFromAddress
	}

	s := &Service{
		config:   cfg,
		branding: branding,
		client:   client,
		logger:   logger,
	}
	if err := s.loadTemplates(); err != nil {
		return nil, fmt.Errorf("failed to load mail templates: %w", err)
	}

	logger.Info("mail service initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("encryption", cfg.Encryption),
		zap.String("from_address", cfg.FromAddress))
	return s, nil
}

func clientOptions(cfg *config.MailConfig) []mail.Option {
	opts := []mail.Option{mail.WithPort(cfg.Port)}

	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}

	switch cfg.Encryption {
	case "ssl":
		opts = append(opts, mail.WithSSL())
	case "none":
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}
	return opts
}

// loadTemplates uses the embedded defaults unless a templates directory is
// configured.
func (s *Service) loadTemplates() error {
	var err error

	if s.config.TemplatesDir == "" {
		if s.htmlTemplates, err = htmlTemplate.ParseFS(defaultTemplates, "templates/*.html"); err != nil {
			return err
		}
		s.textTemplates, err = textTemplate.ParseFS(defaultTemplates, "templates/*.txt")
		return err
	}

	s.logger.Info("loading mail templates", zap.String("templates_dir", s.config.TemplatesDir))
	if s.htmlTemplates, err = htmlTemplate.ParseGlob(filepath.Join(s.config.TemplatesDir, "*.html")); err != nil {
		return err
	}
	s.textTemplates, err = textTemplate.ParseGlob(filepath.Join(s.config.TemplatesDir, "*.txt"))
	return err
}

func (s *Service) newMessage(toName, toAddress, subject string) (*mail.Msg, error) {
	message := mail.NewMsg()

	if s.config.FromName != "" {
		if err := message.FromFormat(s.config.FromName, s.config.FromAddress); err != nil {
			return nil, fmt.Errorf("failed to set FROM address: %w", err)
		}
	} else if err := message.From(s.config.FromAddress); err != nil {
		return nil, fmt.Errorf("failed to set FROM address: %w", err)
	}

	var err error
	if toName != "" {
		err = message.AddToFormat(toName, toAddress)
	} else {
		err = message.To(toAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set TO address: %w", err)
	}
	message.Subject(subject)
	return message, nil
}

// SendVerificationCode emails a one-time sign-in code, addressed by name when
// one is known.
func (s *Service) SendVerificationCode(ctx context.Context, email, code, name string) error {
	data := map[string]any{
		"AppName":          s.branding.AppName,
		"Code":             code,
		"Name":             name,
		"ExpiresInMinutes": int(s.branding.CodeTTL.Minutes()),
	}

	message, err := s.newMessage(name, email, fmt.Sprintf("%s verification code", s.branding.AppName))
	if err != nil {
		return err
	}
	if err := s.render(authCodeTemplate, data, message); err != nil {
		return err
	}
	return s.send(ctx, message, email)
}

func (s *Service) render(name string, data map[string]any, message *mail.Msg) error {
	html := s.htmlTemplates.Lookup(name + ".html")
	text := s.textTemplates.Lookup(name + ".txt")
	if html == nil && text == nil {
		return fmt.Errorf("template '%s' not found", name)
	}

	if html != nil {
		var buf bytes.Buffer
		if err := html.Execute(&buf, data); err != nil {
			return fmt.Errorf("failed to execute HTML template: %w", err)
		}
		message.SetBodyString(mail.TypeTextHTML, buf.String())
	}

	if text != nil {
		var buf bytes.Buffer
		if err := text.Execute(&buf, data); err != nil {
			return fmt.Errorf("failed to execute text template: %w", err)
		}
		if html != nil {
			message.AddAlternativeString(mail.TypeTextPlain, buf.String())
		} else {
			message.SetBodyString(mail.TypeTextPlain, buf.String())
		}
	}
	return nil
}

func (s *Service) send(ctx context.Context, message *mail.Msg, recipient string) error {
	start := time.Now()
	err := s.client.DialAndSendWithContext(ctx, message)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("failed to send email",
			zap.String("recipient", recipient),
			zap.Duration("attempt_duration", duration),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", zap.String("recipient", recipient), zap.Duration("send_duration", duration))
	return nil
}
