package model

import (
	"time"

	"gorm.io/datatypes"
)

// Activity verbs recorded by the feed writer.
const (
	VerbCheckedIn     = "checked_in"
	VerbCheckInEnded  = "checkin_ended"
	VerbRequestSent   = "request_sent"
	VerbBecameFriends = "became_friends"
	VerbUnfriended    = "unfriended"
)

// Activity is one row in the asynchronous event feed.
type Activity struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorID   int64          `gorm:"index;not null" json:"actor_id"`
	TargetID  int64          `gorm:"index" json:"target_id"` // counterpart user or 0
	Verb      string         `gorm:"size:32;not null" json:"verb"`
	Detail    datatypes.JSON `json:"detail"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
