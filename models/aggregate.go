package models

import "time"

// UserAggregate is the materialized per-receiver total over hope_ledger.
// Ordered by TotalPoints it doubles as the global leaderboard view, so
// there is a single projection instead of separate global and per-user
// documents that can drift apart.
//
// Invariant: TotalPoints equals the sum of Amount over all hope_ledger
// rows with the same ReceiverID. Kept true by applying the ledger row and
// this projection in one transaction; repaired by the nightly recompute.
type UserAggregate struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	ReceiverID  string    `gorm:"uniqueIndex;not null" json:"receiver_id"`
	TotalPoints int64     `gorm:"not null;default:0" json:"total_points"`
	LastEntryAt time.Time `json:"last_entry_at"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (UserAggregate) TableName() string {
	return "user_aggregates"
}

// DailyAggregate buckets a receiver's points per UTC calendar day.
// DayKey is YYYY-MM-DD computed from the ledger entry timestamp.
type DailyAggregate struct {
	ID         string `gorm:"primaryKey" json:"id"`
	ReceiverID string `gorm:"not null;uniqueIndex:idx_daily_receiver_day" json:"receiver_id"`
	DayKey     string `gorm:"type:varchar(10);not null;uniqueIndex:idx_daily_receiver_day" json:"day_key"`
	Points     int64  `gorm:"not null;default:0" json:"points"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (DailyAggregate) TableName() string {
	return "daily_aggregates"
}
