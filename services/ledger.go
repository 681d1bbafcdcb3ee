package services

import (
	"encoding/json"
	"log"
	"time"

	"mitche-engagement-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService owns hope_ledger and every projection derived from it.
// The ledger is the single source of truth; the user aggregate, the daily
// aggregate, and the denormalized user totals are read-optimized views,
// all updated in the same transaction that appends the entry. There is no
// second code path that can make the views drift.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// lockForUpdate takes a FOR UPDATE row lock on Postgres so concurrent
// transactions touching the same user queue on the row. The sqlite test
// driver has a single writer and no FOR UPDATE syntax, so it is left
// unlocked there.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// DayKey buckets a timestamp into its UTC calendar day.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// UTCMidnight returns the start of t's UTC calendar day.
func UTCMidnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Append validates and applies one ledger entry in its own transaction.
//
// Entries missing a receiver or carrying a non-positive amount are a
// silent no-op: a malformed entry must not crash the view maintainer.
// Returns the stored entry, or nil when the entry was skipped.
func (s *LedgerService) Append(entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	if entry.ReceiverID == "" || entry.Amount <= 0 || !entry.Category.Valid() {
		log.Printf("⚠️ [LEDGER] Skipping malformed entry (receiver=%q amount=%d category=%q)",
			entry.ReceiverID, entry.Amount, entry.Category)
		return nil, nil
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		return s.ApplyEntry(tx, entry)
	})
	if err != nil {
		return nil, WrapError(err, "failed to append ledger entry")
	}

	ledgerEntriesTotal.WithLabelValues(string(entry.Category)).Inc()
	return entry, nil
}

// ApplyEntry inserts the ledger row and folds it into every projection,
// inside the caller's transaction. Callers are expected to have validated
// the entry; Append and the ritual award path both funnel through here so
// a point can never land in the ledger without landing in the views.
func (s *LedgerService) ApplyEntry(tx *gorm.DB, entry *models.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := tx.Create(entry).Error; err != nil {
		return err
	}

	// Per-receiver running total. The increment happens inside the upsert,
	// so two concurrent entries for the same receiver serialize on the row
	// conflict instead of losing one update to a stale read.
	agg := models.UserAggregate{
		ID:          uuid.NewString(),
		ReceiverID:  entry.ReceiverID,
		TotalPoints: entry.Amount,
		LastEntryAt: entry.Timestamp,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "receiver_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_points":  gorm.Expr("total_points + ?", entry.Amount),
			"last_entry_at": entry.Timestamp,
			"updated_at":    time.Now().UTC(),
		}),
	}).Create(&agg).Error; err != nil {
		return err
	}

	// Per-receiver daily bucket.
	day := models.DailyAggregate{
		ID:         uuid.NewString(),
		ReceiverID: entry.ReceiverID,
		DayKey:     DayKey(entry.Timestamp),
		Points:     entry.Amount,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "receiver_id"}, {Name: "day_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"points":     gorm.Expr("points + ?", entry.Amount),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&day).Error; err != nil {
		return err
	}

	// Denormalized user total + category breakdown. The local mirror may
	// not have the user yet (sync lag); the recompute pass picks those up.
	// The row lock covers the breakdown's read-modify-write; the total is
	// incremented in the database so a concurrent append for the same
	// receiver can never commit over a stale read.
	var user models.User
	if err := lockForUpdate(tx).Where("external_user_id = ?", entry.ReceiverID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	breakdown := user.HopePointsBreakdown
	if breakdown == nil {
		breakdown = map[string]int64{}
	}
	breakdown[string(entry.Category)] += entry.Amount
	// Map-based Updates bypass the field's serializer:json tag, so the
	// breakdown must be marshaled to the same string form the serializer
	// would produce before the driver sees it.
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return err
	}
	return tx.Model(&models.User{}).
		Where("external_user_id = ?", entry.ReceiverID).
		Updates(map[string]interface{}{
			"hope_points":           gorm.Expr("hope_points + ?", entry.Amount),
			"hope_points_breakdown": string(breakdownJSON),
		}).Error
}

// RecomputeUser rebuilds every projection for one receiver from the
// ledger. This is the out-of-band repair path for aggregates that lagged
// a failed projection write.
func (s *LedgerService) RecomputeUser(receiverID string) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var entries []models.LedgerEntry
		if err := tx.Where("receiver_id = ?", receiverID).
			Order("timestamp ASC").
			Find(&entries).Error; err != nil {
			return err
		}

		var total int64
		var lastAt time.Time
		daily := map[string]int64{}
		breakdown := map[string]int64{}
		for _, e := range entries {
			total += e.Amount
			daily[DayKey(e.Timestamp)] += e.Amount
			breakdown[string(e.Category)] += e.Amount
			if e.Timestamp.After(lastAt) {
				lastAt = e.Timestamp
			}
		}

		agg := models.UserAggregate{
			ID:          uuid.NewString(),
			ReceiverID:  receiverID,
			TotalPoints: total,
			LastEntryAt: lastAt,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "receiver_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_points":  total,
				"last_entry_at": lastAt,
				"updated_at":    time.Now().UTC(),
			}),
		}).Create(&agg).Error; err != nil {
			return err
		}

		if err := tx.Where("receiver_id = ?", receiverID).
			Delete(&models.DailyAggregate{}).Error; err != nil {
			return err
		}
		for dayKey, points := range daily {
			row := models.DailyAggregate{
				ID:         uuid.NewString(),
				ReceiverID: receiverID,
				DayKey:     dayKey,
				Points:     points,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		var user models.User
		if err := lockForUpdate(tx).Where("external_user_id = ?", receiverID).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		// Same serializer bypass as ApplyEntry: marshal the breakdown
		// before handing it to the map-based Updates.
		breakdownJSON, err := json.Marshal(breakdown)
		if err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("external_user_id = ?", receiverID).
			Updates(map[string]interface{}{
				"hope_points":           total,
				"hope_points_breakdown": string(breakdownJSON),
			}).Error
	})
	return WrapError(err, "failed to recompute aggregates")
}

// RecomputeAll repairs every receiver present in the ledger. Returns the
// number of receivers processed.
func (s *LedgerService) RecomputeAll() (int, error) {
	var receiverIDs []string
	if err := s.DB.Model(&models.LedgerEntry{}).
		Distinct("receiver_id").
		Pluck("receiver_id", &receiverIDs).Error; err != nil {
		return 0, WrapError(err, "failed to list ledger receivers")
	}

	for _, id := range receiverIDs {
		if err := s.RecomputeUser(id); err != nil {
			return 0, err
		}
	}
	log.Printf("🔁 [LEDGER] Recomputed aggregates for %d receiver(s)", len(receiverIDs))
	return len(receiverIDs), nil
}

// DailyHistory returns a receiver's daily buckets, newest first.
func (s *LedgerService) DailyHistory(receiverID string, days int) ([]models.DailyAggregate, error) {
	if days < 1 || days > 365 {
		days = 30
	}
	since := DayKey(time.Now().UTC().AddDate(0, 0, -days))

	var rows []models.DailyAggregate
	err := s.DB.Where("receiver_id = ? AND day_key >= ?", receiverID, since).
		Order("day_key DESC").
		Find(&rows).Error
	if err != nil {
		return nil, WrapError(err, "failed to load daily history")
	}
	return rows, nil
}
