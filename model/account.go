package model

import "time"

// User is an app account. ID is an opaque string so activity events and quest
// rows can key on it directly.
type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:32;not null" json:"username"`
	DisplayName  string     `gorm:"size:64" json:"display_name"`
	PasswordHash string     `gorm:"size:64;not null" json:"-"`
	Status       int        `gorm:"default:1" json:"status"` // 0=banned 1=normal
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	LastLoginIP  string     `gorm:"size:45" json:"last_login_ip"`
}

const (
	UserStatusBanned = 0
	UserStatusNormal = 1
)
