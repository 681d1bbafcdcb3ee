package models

import "time"

// Achievement criteria evaluated by the engagement service.
const CriteriaHopePoints = "hopePoints"

// Achievement: admin-configured threshold rule. Only hopePoints criteria
// are evaluated today; the type field leaves room for streaks and the like.
type Achievement struct {
	ID            string `gorm:"primaryKey" json:"id"`
	Code          string `gorm:"uniqueIndex;not null" json:"code"` // e.g., "FIRST_LIGHT"
	Name          string `gorm:"not null" json:"name"`
	Description   string `json:"description"`
	IconURL       string `gorm:"type:text" json:"icon_url"`
	Rarity        string `gorm:"type:varchar(16);default:'common'" json:"rarity"` // common, rare, epic, legendary
	CriteriaType  string `gorm:"index;not null;default:'hopePoints'" json:"criteria_type"`
	CriteriaValue int64  `gorm:"not null" json:"criteria_value"`
	Active        bool   `gorm:"index;default:true" json:"active"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// UserAchievement marks completion of one achievement by one user.
// Set-once: the composite unique index makes the insert itself the race
// boundary — a concurrent duplicate award becomes a no-op conflict, never
// a second row.
type UserAchievement struct {
	ID             string `gorm:"primaryKey" json:"id"`
	ExternalUserID string `gorm:"not null;uniqueIndex:idx_user_achievement" json:"external_user_id"`
	AchievementID  string `gorm:"not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	Progress       int64  `json:"progress"`
	Completed      bool   `gorm:"default:true" json:"completed"`

	AwardedAt time.Time `json:"awarded_at" gorm:"autoCreateTime"`
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}

// AchievementSeed is the default catalog, inserted on boot if missing.
// Admins can add more at runtime.
var AchievementSeed = []Achievement{
	{
		Code:          "FIRST_LIGHT",
		Name:          "First Light",
		Description:   "Earned your first 10 Hope Points",
		Rarity:        "common",
		CriteriaType:  CriteriaHopePoints,
		CriteriaValue: 10,
	},
	{
		Code:          "BEACON_OF_HOPE",
		Name:          "Beacon of Hope",
		Description:   "Earned 50 Hope Points",
		Rarity:        "rare",
		CriteriaType:  CriteriaHopePoints,
		CriteriaValue: 50,
	},
	{
		Code:          "PILLAR_OF_COMMUNITY",
		Name:          "Pillar of the Community",
		Description:   "Earned 100 Hope Points",
		Rarity:        "epic",
		CriteriaType:  CriteriaHopePoints,
		CriteriaValue: 100,
	},
	{
		Code:          "GUARDIAN_OF_HOPE",
		Name:          "Guardian of Hope",
		Description:   "Earned 500 Hope Points",
		Rarity:        "legendary",
		CriteriaType:  CriteriaHopePoints,
		CriteriaValue: 500,
	},
}
