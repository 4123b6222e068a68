package models

import "time"

// User is an account allowed to obtain API tokens.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"size:150;uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	IsSuperuser  bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (u *User) TableName() string {
	return "users"
}
