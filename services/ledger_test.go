package services

import (
	"sync"
	"testing"
	"time"

	"mitche-engagement-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendKeepsEveryProjectionConsistent(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	newTestUser(t, db, "user-1", "citizen")

	amounts := []int64{3, 5, 7}
	categories := []models.PointCategory{
		models.CategoryCommunityBuilder,
		models.CategorySilentHero,
		models.CategoryCommunityBuilder,
	}
	for i, amount := range amounts {
		appendEntry(t, ledger, "user-1", categories[i], amount)
	}

	var agg models.UserAggregate
	require.NoError(t, db.Where("receiver_id = ?", "user-1").First(&agg).Error)
	assert.Equal(t, int64(15), agg.TotalPoints)

	var dailySum int64
	require.NoError(t, db.Model(&models.DailyAggregate{}).
		Where("receiver_id = ?", "user-1").
		Select("COALESCE(SUM(points), 0)").Scan(&dailySum).Error)
	assert.Equal(t, int64(15), dailySum)

	var user models.User
	require.NoError(t, db.Where("external_user_id = ?", "user-1").First(&user).Error)
	assert.Equal(t, int64(15), user.HopePoints)
	assert.Equal(t, int64(10), user.HopePointsBreakdown[string(models.CategoryCommunityBuilder)])
	assert.Equal(t, int64(5), user.HopePointsBreakdown[string(models.CategorySilentHero)])
}

func TestConcurrentAppendsLoseNoIncrement(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	newTestUser(t, db, "user-1", "citizen")

	// Parallel grants for one receiver: every projection must end at the
	// exact ledger sum — an increment lost to a stale read would leave
	// hope_points behind the aggregate.
	const appends = 10
	errs := make(chan error, appends)
	var wg sync.WaitGroup
	for i := 0; i < appends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Append(&models.LedgerEntry{
				ActorID:    "tester",
				ReceiverID: "user-1",
				Category:   models.CategoryCommunityBuilder,
				Amount:     2,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var agg models.UserAggregate
	require.NoError(t, db.Where("receiver_id = ?", "user-1").First(&agg).Error)
	assert.Equal(t, int64(2*appends), agg.TotalPoints)

	var user models.User
	require.NoError(t, db.Where("external_user_id = ?", "user-1").First(&user).Error)
	assert.Equal(t, int64(2*appends), user.HopePoints)
	assert.Equal(t, int64(2*appends), user.HopePointsBreakdown[string(models.CategoryCommunityBuilder)])
}

func TestAppendMalformedEntryIsNoOp(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	cases := []struct {
		name  string
		entry models.LedgerEntry
	}{
		{"missing receiver", models.LedgerEntry{ActorID: "a", Category: models.CategoryRitual, Amount: 1}},
		{"zero amount", models.LedgerEntry{ActorID: "a", ReceiverID: "r", Category: models.CategoryRitual, Amount: 0}},
		{"negative amount", models.LedgerEntry{ActorID: "a", ReceiverID: "r", Category: models.CategoryRitual, Amount: -4}},
		{"unknown category", models.LedgerEntry{ActorID: "a", ReceiverID: "r", Category: "Bogus", Amount: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := tc.entry
			stored, err := ledger.Append(&entry)
			assert.NoError(t, err)
			assert.Nil(t, stored)
		})
	}

	var ledgerCount, aggCount int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Count(&ledgerCount).Error)
	require.NoError(t, db.Model(&models.UserAggregate{}).Count(&aggCount).Error)
	assert.Zero(t, ledgerCount)
	assert.Zero(t, aggCount)
}

func TestAppendBucketsPerUTCDay(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	today := time.Now().UTC()

	for _, ts := range []time.Time{yesterday, yesterday, today} {
		stored, err := ledger.Append(&models.LedgerEntry{
			ActorID:    "tester",
			ReceiverID: "user-1",
			Category:   models.CategoryCommunityGift,
			Amount:     2,
			Timestamp:  ts,
		})
		require.NoError(t, err)
		require.NotNil(t, stored)
	}

	var rows []models.DailyAggregate
	require.NoError(t, db.Where("receiver_id = ?", "user-1").Order("day_key ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, DayKey(yesterday), rows[0].DayKey)
	assert.Equal(t, int64(4), rows[0].Points)
	assert.Equal(t, DayKey(today), rows[1].DayKey)
	assert.Equal(t, int64(2), rows[1].Points)
}

func TestRecomputeRepairsDriftedAggregates(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	newTestUser(t, db, "user-1", "citizen")

	appendEntry(t, ledger, "user-1", models.CategoryVoiceOfCompassion, 4)
	appendEntry(t, ledger, "user-1", models.CategoryRitual, 1)

	// Simulate a projection that lagged a failed write.
	require.NoError(t, db.Model(&models.UserAggregate{}).
		Where("receiver_id = ?", "user-1").
		Update("total_points", 999).Error)
	require.NoError(t, db.Model(&models.User{}).
		Where("external_user_id = ?", "user-1").
		Update("hope_points", 0).Error)

	require.NoError(t, ledger.RecomputeUser("user-1"))

	var agg models.UserAggregate
	require.NoError(t, db.Where("receiver_id = ?", "user-1").First(&agg).Error)
	assert.Equal(t, int64(5), agg.TotalPoints)

	var user models.User
	require.NoError(t, db.Where("external_user_id = ?", "user-1").First(&user).Error)
	assert.Equal(t, int64(5), user.HopePoints)
	assert.Equal(t, int64(4), user.HopePointsBreakdown[string(models.CategoryVoiceOfCompassion)])
}

func TestRecomputeAllCoversEveryReceiver(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	appendEntry(t, ledger, "user-1", models.CategoryCommunityBuilder, 2)
	appendEntry(t, ledger, "user-2", models.CategorySilentHero, 3)

	n, err := ledger.RecomputeAll()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
