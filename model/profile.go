package model

import (
	"time"

	"gorm.io/datatypes"
)

// Profile is a registered user: the auth account plus the public fields
// other users see in relationship lists and candidate search.
type Profile struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Handle       string         `gorm:"uniqueIndex;size:32;not null" json:"handle"`
	DisplayName  string         `gorm:"size:64" json:"display_name"`
	PasswordHash string         `gorm:"size:64;not null" json:"-"`
	Status       int            `gorm:"default:1" json:"status"` // 0=banned 1=normal
	Settings     datatypes.JSON `json:"settings"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time     `json:"last_login_at"`
	LastLoginIP  string         `gorm:"size:45" json:"last_login_ip"`
}

// ProfileSummary is the subset of a profile shown to other users.
type ProfileSummary struct {
	ID          int64  `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
}

// Summary returns the public view of the profile.
func (p *Profile) Summary() ProfileSummary {
	return ProfileSummary{ID: p.ID, Handle: p.Handle, DisplayName: p.DisplayName}
}
