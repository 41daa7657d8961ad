package authcode

import "time"

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

type VerificationCode struct {
	ID        uint       `json:"id" gorm:"primarykey"`
	Email     string     `json:"email" gorm:"index:idx_verification_codes_email_code,priority:1;size:255;not null"`
	Code      string     `json:"-" gorm:"index:idx_verification_codes_email_code,priority:2;size:6;not null"`
	Channel   Channel    `json:"channel" gorm:"size:16;not null;default:email"`
	CreatedAt time.Time  `json:"created_at" gorm:"index;not null"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"index;not null"`
	Used      bool       `json:"used" gorm:"not null;default:false"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

func (VerificationCode) TableName() string {
	return "verification_codes"
}

func (v *VerificationCode) IsExpired(now time.Time) bool {
	return !v.ExpiresAt.After(now)
}

// IsLive reports whether the code can still be consumed.
func (v *VerificationCode) IsLive(now time.Time) bool {
	return !v.Used && !v.IsExpired(now)
}
