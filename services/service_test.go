package services

import (
	"path/filepath"
	"testing"
	"time"

	"mitche-engagement-service/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a throwaway sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "engagement.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.LedgerEntry{},
		&models.UserAggregate{},
		&models.DailyAggregate{},
		&models.User{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.Activity{},
		&models.AnalyticsEvent{},
	))
	return db
}

func newTestUser(t *testing.T, db *gorm.DB, externalID, role string) *models.User {
	t.Helper()
	user := &models.User{
		ID:             uuid.NewString(),
		ExternalUserID: externalID,
		Username:       externalID,
		Role:           role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func newTestRitual(t *testing.T, db *gorm.DB, limitPerDay int) *models.Activity {
	t.Helper()
	activity := &models.Activity{
		ID:                 uuid.NewString(),
		Slug:               "daily-reflection",
		Title:              "Daily Reflection",
		Type:               models.ActivityTypeRitual,
		Active:             true,
		LimitPerUserPerDay: limitPerDay,
		Prompts: map[string]string{
			"en": "What gave you hope today?",
			"ar": "ما الذي منحك الأمل اليوم؟",
			"fr": "Qu'est-ce qui vous a donné de l'espoir aujourd'hui ?",
		},
	}
	require.NoError(t, db.Create(activity).Error)
	return activity
}

func appendEntry(t *testing.T, ledger *LedgerService, receiverID string, category models.PointCategory, amount int64) *models.LedgerEntry {
	t.Helper()
	stored, err := ledger.Append(&models.LedgerEntry{
		ActorID:    "tester",
		ReceiverID: receiverID,
		Category:   category,
		Amount:     amount,
		Timestamp:  time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NotNil(t, stored)
	return stored
}
