package admins

import (
	"context"
	"errors"
	"fmt"

	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrAdminNotFound = errors.New("administrator not found")
	ErrInvalidEmail  = errors.New("administrator email is required")
)

type Directory struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewDirectory(db *gorm.DB, logger *logging.Service) *Directory {
	return &Directory{db: db, logger: logger}
}

func (d *Directory) LookupByEmail(ctx context.Context, email string) (*Admin, error) {
	var admin Admin
	err := d.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to look up administrator: %w", err)
	}
	return &admin, nil
}

func (d *Directory) FindByID(ctx context.Context, id uint) (*Admin, error) {
	var admin Admin
	if err := d.db.WithContext(ctx).First(&admin, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to load administrator %d: %w", id, err)
	}
	return &admin, nil
}

// EnsureSeed creates the administrator if missing and refreshes the display
// name otherwise. Safe to call on every start.
func (d *Directory) EnsureSeed(ctx context.Context, email, name string) (*Admin, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}

	var admin Admin
	err := d.db.WithContext(ctx).
		Where(Admin{Email: email}).
		Assign(Admin{Name: name}).
		FirstOrCreate(&admin).Error
	if err != nil {
		return nil, fmt.Errorf("failed to seed administrator: %w", err)
	}

	d.logger.Info("administrator seeded", zap.Uint("admin_id", admin.ID), zap.String("email", admin.Email))
	return &admin, nil
}
