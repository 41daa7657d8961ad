package authcode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNoLiveCode   = errors.New("no live verification code matches")
	ErrCodeNotFound = errors.New("verification code not found")
)

type Store interface {
	CountRecentByEmail(ctx context.Context, email string, since time.Time) (int64, error)
	// ReplaceLive marks every live code for the email used and inserts code,
	// atomically. It returns how many codes were invalidated.
	ReplaceLive(ctx context.Context, code *VerificationCode, now time.Time) (int64, error)
	// ConsumeLive flips exactly one live matching code to used. Concurrent
	// callers racing on the same code see ErrNoLiveCode on all but one.
	ConsumeLive(ctx context.Context, email, code string, now time.Time) (*VerificationCode, error)
	FindAnyMatch(ctx context.Context, email, code string) (*VerificationCode, error)
	HasAnyForEmail(ctx context.Context, email string) (bool, error)
	DeleteStale(ctx context.Context, now, usedBefore time.Time) (int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CountRecentByEmail(ctx context.Context, email string, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&VerificationCode{}).
		Where("email = ? AND created_at > ?", email, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count recent verification codes: %w", err)
	}
	return count, nil
}

func (s *GormStore) ReplaceLive(ctx context.Context, code *VerificationCode, now time.Time) (int64, error) {
	var invalidated int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&VerificationCode{}).
			Where("email = ? AND used = ? AND expires_at > ?", code.Email, false, now).
			Updates(map[string]any{"used": true, "used_at": now})
		if result.Error != nil {
			return fmt.Errorf("failed to invalidate live verification codes: %w", result.Error)
		}
		invalidated = result.RowsAffected

		if err := tx.Create(code).Error; err != nil {
			return fmt.Errorf("failed to store verification code: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return invalidated, nil
}

func (s *GormStore) ConsumeLive(ctx context.Context, email, code string, now time.Time) (*VerificationCode, error) {
	db := s.db.WithContext(ctx)

	var candidate VerificationCode
	err := db.Where("email = ? AND code = ? AND used = ? AND expires_at > ?", email, code, false, now).
		Order("id DESC").
		First(&candidate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoLiveCode
		}
		return nil, fmt.Errorf("failed to find verification code: %w", err)
	}

	result := db.Model(&VerificationCode{}).
		Where("id = ? AND used = ? AND expires_at > ?", candidate.ID, false, now).
		Updates(map[string]any{"used": true, "used_at": now})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to consume verification code: %w", result.Error)
	}
	if result.RowsAffected != 1 {
		return nil, ErrNoLiveCode
	}

	candidate.Used = true
	candidate.UsedAt = &now
	return &candidate, nil
}

func (s *GormStore) FindAnyMatch(ctx context.Context, email, code string) (*VerificationCode, error) {
	var match VerificationCode
	err := s.db.WithContext(ctx).
		Where("email = ? AND code = ?", email, code).
		Order("id DESC").
		First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to look up verification code: %w", err)
	}
	return &match, nil
}

func (s *GormStore) HasAnyForEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&VerificationCode{}).
		Where("email = ?", email).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check verification codes: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) DeleteStale(ctx context.Context, now, usedBefore time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR (used = ? AND created_at < ?)", now, true, usedBefore).
		Delete(&VerificationCode{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete stale verification codes: %w", result.Error)
	}
	return result.RowsAffected, nil
}
