package model

import "time"

// Relationship status values.
const (
	RelationPending  = "pending"
	RelationAccepted = "accepted"
	// RelationRejected exists for wire compatibility with older clients;
	// a rejection deletes the row, so the value is never stored.
	RelationRejected = "rejected"
)

// Relationship is one friend edge. Direction matters only while pending:
// the requester proposed, only the recipient may accept. PairLo/PairHi
// hold the two participant IDs in ascending order, so the unique index on
// them makes "at most one row per unordered pair" a property the insert
// itself enforces regardless of direction.
type Relationship struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RequesterID int64     `gorm:"index;not null" json:"requester_id"`
	RecipientID int64     `gorm:"index;not null" json:"recipient_id"`
	PairLo      int64     `gorm:"uniqueIndex:idx_relationship_pair;not null" json:"-"`
	PairHi      int64     `gorm:"uniqueIndex:idx_relationship_pair;not null" json:"-"`
	Status      string    `gorm:"size:16;default:pending" json:"status"`
	HopeToBump  bool      `gorm:"default:false" json:"hope_to_bump"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewRelationship builds a pending edge with a normalized pair key.
func NewRelationship(requester, recipient int64) *Relationship {
	lo, hi := requester, recipient
	if lo > hi {
		lo, hi = hi, lo
	}
	return &Relationship{
		RequesterID: requester,
		RecipientID: recipient,
		PairLo:      lo,
		PairHi:      hi,
		Status:      RelationPending,
	}
}

// Involves reports whether userID is a party to this edge.
func (r *Relationship) Involves(userID int64) bool {
	return r.RequesterID == userID || r.RecipientID == userID
}

// CounterpartID returns the other party relative to userID.
func (r *Relationship) CounterpartID(userID int64) int64 {
	if r.RequesterID == userID {
		return r.RecipientID
	}
	return r.RequesterID
}
