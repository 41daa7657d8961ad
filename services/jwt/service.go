package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken     = errors.New("invalid JWT token")
	ErrExpiredToken     = errors.New("JWT token has expired")
	ErrMalformedToken   = errors.New("malformed JWT token")
	ErrInvalidSignature = errors.New("invalid JWT token signature")
	ErrTokenRevoked     = errors.New("JWT token has been revoked")
)

type Claims struct {
	AdminID uint   `json:"admin_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	jwt.RegisteredClaims
}

type RevocationChecker interface {
	IsTokenRevoked(jti string) (bool, error)
}

type Service struct {
	config     *config.JWTConfig
	logger     *logging.Service
	revocation RevocationChecker
	now        func() time.Time
}

func NewService(cfg *config.JWTConfig, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) SetRevocationChecker(checker RevocationChecker) {
	s.revocation = checker
}

// GenerateAdminToken signs a session token for an administrator, valid for ttl.
func (s *Service) GenerateAdminToken(adminID uint, email, name string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		AdminID: adminID,
		Email:   email,
		Name:    name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   strconv.FormatUint(uint64(adminID), 10),
			Audience:  []string{s.config.Issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.SecretKey))
	if err != nil {
		s.logger.Error("failed to sign JWT token", zap.Uint("admin_id", adminID), zap.Error(err))
		return "", fmt.Errorf("failed to generate JWT token: %w", err)
	}
	return token, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() == "none" {
			return nil, errors.New("'none' algorithm is not allowed")
		}
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected algorithm: expected HS256, got %s", token.Method.Alg())
		}
		return []byte(s.config.SecretKey), nil
	},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithAudience(s.config.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		s.logger.Warn("JWT token validation failed", zap.Error(err))

		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if s.revocation != nil {
		revoked, err := s.revocation.IsTokenRevoked(claims.ID)
		if err != nil {
			// Fail closed: a token we cannot check is not accepted.
			s.logger.Error("failed to check token revocation status", zap.String("jti", claims.ID), zap.Error(err))
			return nil, ErrInvalidToken
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}
