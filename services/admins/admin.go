package admins

import (
	"strings"
	"time"
)

type Admin struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Email     string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Name      string    `json:"name" gorm:"size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Admin) TableName() string {
	return "admins"
}

// NormalizeEmail is the canonical form used for every lookup and stored row.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
