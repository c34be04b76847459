package model

import "time"

// User represents a registered chat user.
type User struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email          string     `gorm:"uniqueIndex;size:128;not null" json:"email"`
	DisplayName    string     `gorm:"index;size:64;not null" json:"display_name"`
	PasswordHash   string     `gorm:"size:64;not null" json:"-"`
	AvatarURL      string     `gorm:"size:255" json:"avatar_url"`
	AssistantName  string     `gorm:"size:64" json:"assistant_name"`
	AssistantImage string     `gorm:"size:255" json:"assistant_image"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at"`
	LastLoginIP    string     `gorm:"size:45" json:"-"`
}

// Profile is the public view of a user pushed in notifications and returned
// by friend/search listings.
type Profile struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// PublicProfile returns the shareable subset of the user record.
func (u *User) PublicProfile() Profile {
	return Profile{ID: u.ID, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}
