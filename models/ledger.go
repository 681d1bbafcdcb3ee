package models

import "time"

// PointCategory is the business reason a hope point grant was made.
type PointCategory string

const (
	CategoryCommunityBuilder  PointCategory = "CommunityBuilder"
	CategorySilentHero        PointCategory = "SilentHero"
	CategoryVoiceOfCompassion PointCategory = "VoiceOfCompassion"
	CategoryCommunityGift     PointCategory = "CommunityGift"
	CategoryRitual            PointCategory = "Ritual"
)

// PointCategories lists every category accepted on a ledger entry.
var PointCategories = []PointCategory{
	CategoryCommunityBuilder,
	CategorySilentHero,
	CategoryVoiceOfCompassion,
	CategoryCommunityGift,
	CategoryRitual,
}

func (c PointCategory) Valid() bool {
	for _, known := range PointCategories {
		if c == known {
			return true
		}
	}
	return false
}

// LedgerEntry is one immutable grant of hope points from an actor to a
// receiver. The table is append-only: no code path in this service updates
// or deletes a row once written. Corrections are made by appending new
// entries, never by editing history.
type LedgerEntry struct {
	ID         string        `gorm:"primaryKey" json:"id"`
	ActorID    string        `gorm:"index;not null" json:"actor_id"`
	ReceiverID string        `gorm:"index;not null" json:"receiver_id"`
	Category   PointCategory `gorm:"index;not null" json:"category"`
	Amount     int64         `gorm:"not null" json:"amount"`
	Timestamp  time.Time     `gorm:"index;not null" json:"timestamp"`
	ActivityID *string       `gorm:"index" json:"activity_id,omitempty"`
	// RequestID is the caller-supplied idempotency key. The unique index
	// turns a replayed request into a detectable conflict instead of a
	// second grant.
	RequestID *string `gorm:"uniqueIndex" json:"request_id,omitempty"`
	Reason    string  `gorm:"type:text" json:"reason,omitempty"`
}

func (LedgerEntry) TableName() string {
	return "hope_ledger"
}
