package models

import "time"

// AnalyticsEvent is a best-effort activity trace. Writes here must never
// fail a primary operation; the service logs and drops on error.
type AnalyticsEvent struct {
	ID      string         `gorm:"primaryKey" json:"id"`
	Type    string         `gorm:"index;not null" json:"type"` // e.g., "ritual_awarded"
	UserID  string         `gorm:"index" json:"user_id,omitempty"`
	Payload map[string]any `gorm:"serializer:json" json:"payload,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
