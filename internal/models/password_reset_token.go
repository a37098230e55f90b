package models

import (
	"time"
)

type PasswordResetToken struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	Token  string `gorm:"type:varchar(36);not null;uniqueIndex"`
	UserID uint64 `gorm:"not null;index"`

	ExpiresAt time.Time `gorm:"type:timestamptz;not null;index"`
	Used      bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}
