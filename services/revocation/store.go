package revocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RevokedToken struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	JTI       string    `json:"jti" gorm:"column:jti;uniqueIndex;size:64;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (RevokedToken) TableName() string {
	return "revoked_tokens"
}

type Store interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
	CleanupExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// RevokeToken is idempotent; revoking the same jti twice keeps the first row.
func (s *GormStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(&RevokedToken{JTI: jti, ExpiresAt: expiresAt}).Error
	if err != nil {
		return fmt.Errorf("failed to store revoked token: %w", err)
	}
	return nil
}

func (s *GormStore) IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error) {
	var token RevokedToken
	err := s.db.WithContext(ctx).Where("jti = ?", jti).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up revoked token: %w", err)
	}
	return token.ExpiresAt.After(now), nil
}

func (s *GormStore) CleanupExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&RevokedToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired revoked tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// MemoryStore keeps revocations in process. Used when no database is wired.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]time.Time)}
}

func (m *MemoryStore) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tokens[jti]; !exists {
		m.tokens[jti] = expiresAt
	}
	return nil
}

func (m *MemoryStore) IsRevoked(_ context.Context, jti string, now time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expiresAt, exists := m.tokens[jti]
	return exists && expiresAt.After(now), nil
}

func (m *MemoryStore) CleanupExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for jti, expiresAt := range m.tokens {
		if !expiresAt.After(now) {
			delete(m.tokens, jti)
			removed++
		}
	}
	return removed, nil
}
