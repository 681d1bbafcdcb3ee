package models

import "time"

const ActivityTypeRitual = "ritual"

// Activity is an admin-configured point-earning activity. Ritual
// activities are the once-daily kind: the newest active one is resolved
// on every award request.
type Activity struct {
	ID    string `gorm:"primaryKey" json:"id"`
	Slug  string `gorm:"uniqueIndex;not null" json:"slug"`
	Title string `gorm:"not null" json:"title"`
	Type  string `gorm:"index;not null;default:'ritual'" json:"type"`

	Active             bool `gorm:"index;default:true" json:"active"`
	LimitPerUserPerDay int  `gorm:"default:1" json:"limit_per_user_per_day"`

	// Prompts maps a locale tag (en, ar, fr) to the daily reflection
	// prompt shown with the award.
	Prompts map[string]string `gorm:"serializer:json" json:"prompts,omitempty"`

	// EndsAt, when set, is enforced by the scheduler: the activity is
	// deactivated once the end time passes.
	EndsAt *time.Time `json:"ends_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// PromptFor returns the prompt for the given locale, falling back to
// English, then to any prompt at all.
func (a *Activity) PromptFor(locale string) string {
	if p, ok := a.Prompts[locale]; ok && p != "" {
		return p
	}
	if p, ok := a.Prompts["en"]; ok && p != "" {
		return p
	}
	for _, p := range a.Prompts {
		if p != "" {
			return p
		}
	}
	return ""
}
