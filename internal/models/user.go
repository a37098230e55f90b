package models

import (
	"time"
)

type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"type:varchar(20);not null;uniqueIndex"`
	Email        string `gorm:"type:varchar(60);not null;uniqueIndex"`
	PasswordHash string `gorm:"type:varchar(120);not null" json:"-"`

	JoinedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (User) TableName() string {
	return "users"
}
