package model

import "time"

// CheckIn privacy levels.
const (
	PrivacyPublic  = "public"
	PrivacyFriends = "friends"
	PrivacyPrivate = "private"
)

// ValidPrivacy reports whether s is a known privacy level.
func ValidPrivacy(s string) bool {
	return s == PrivacyPublic || s == PrivacyFriends || s == PrivacyPrivate
}

// CheckIn is a time-boxed declaration that a user is at a place.
// A nil ExpiresAt means the check-in never expires on its own.
// Rows are never hard-deleted; removal sets ExpiresAt to the current
// time so the row stays readable as history.
type CheckIn struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	SubjectID int64      `gorm:"index;not null" json:"subject_id"`
	PlaceID   int64      `gorm:"index;not null" json:"place_id"`
	Activity  string     `gorm:"size:140" json:"activity"`
	Privacy   string     `gorm:"size:16;default:public" json:"privacy"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at"`
}

// Active reports whether the check-in is still live at the given instant.
func (c *CheckIn) Active(now time.Time) bool {
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}
