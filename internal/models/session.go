package models

import "time"

// Session is a server-issued gate session. Only the token hash is stored.
type Session struct {
	ID        uint `gorm:"primaryKey"`
	TokenHash string
	UserName  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (Session) TableName() string {
	return "sessions"
}
