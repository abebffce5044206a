package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents one connected Oura account. OAuth tokens are stored
// verbatim; there is no local password authentication.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OuraUserID     string    `gorm:"size:255;uniqueIndex;not null" json:"oura_user_id"`
	Email          string    `gorm:"size:255" json:"email"`
	AccessToken    string    `gorm:"size:2048" json:"-"`
	RefreshToken   string    `gorm:"size:2048" json:"-"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
