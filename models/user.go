package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the local snapshot of a Mitché account needed by the engagement
// service. Identity fields (username, role, symbolic veil) are mirror-only
// and populated by the profile sync worker; the hope point fields are owned
// and written exclusively by this service.
type User struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // profile service UUID
	Username       string `gorm:"index;not null" json:"username"`
	Role           string `gorm:"index;not null;default:'citizen'" json:"role"` // citizen, organization, admin

	// Anonymity veil shown on public surfaces instead of the real identity.
	SymbolicName string `json:"symbolic_name,omitempty"`
	SymbolicIcon string `json:"symbolic_icon,omitempty"`

	// Denormalized running totals, kept in step with hope_ledger by the
	// same transaction that appends the entry.
	HopePoints          int64            `gorm:"not null;default:0" json:"hope_points"`
	HopePointsBreakdown map[string]int64 `gorm:"serializer:json" json:"hope_points_breakdown"`

	// LastRitualAt is the legacy once-per-day guard for ritual awards,
	// kept as defense in depth next to the per-activity ledger count.
	LastRitualAt *time.Time `json:"last_ritual_at,omitempty"`

	IsBanned bool `gorm:"default:false" json:"is_banned"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
