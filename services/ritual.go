package services

import (
	"errors"
	"log"
	"time"

	"mitche-engagement-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RitualService grants at most one Ritual hope point per user per UTC
// calendar day per active ritual activity, idempotently.
type RitualService struct {
	DB           *gorm.DB
	Ledger       *LedgerService
	Achievements *AchievementService
	Analytics    *AnalyticsService
}

func NewRitualService(db *gorm.DB, ledger *LedgerService, achievements *AchievementService, analytics *AnalyticsService) *RitualService {
	return &RitualService{DB: db, Ledger: ledger, Achievements: achievements, Analytics: analytics}
}

// RitualAwardResult is what the award endpoint returns to the caller.
type RitualAwardResult struct {
	LedgerID       string           `json:"ledger_id"`
	AlreadyApplied bool             `json:"already_applied,omitempty"`
	NewHopePoints  int64            `json:"new_hope_points,omitempty"`
	NewBreakdown   map[string]int64 `json:"new_breakdown,omitempty"`
	Prompt         string           `json:"prompt,omitempty"`
}

// AwardRitual runs the full award flow for the authenticated caller.
//
// The pre-transaction count is a fast rejection for the common case. The
// daily cap holds under concurrent duplicate submissions (double-click,
// retry-after-timeout) because the transaction locks the user row before
// re-checking: the loser of the lock re-counts after the winner committed.
func (s *RitualService) AwardRitual(externalUserID, requestID, reason, locale string) (*RitualAwardResult, error) {
	if externalUserID == "" {
		ritualAwardsTotal.WithLabelValues("unauthenticated").Inc()
		return nil, NewError(KindUnauthenticated, "caller identity required")
	}

	// Most recently created active ritual wins; admins rotate rituals by
	// creating a new one rather than editing the old.
	var activity models.Activity
	err := s.DB.Where("type = ? AND active = ?", models.ActivityTypeRitual, true).
		Order("created_at DESC").
		First(&activity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ritualAwardsTotal.WithLabelValues("no_active_ritual").Inc()
			return nil, NewError(KindFailedPrecondition, "no-active-ritual")
		}
		return nil, WrapError(err, "failed to resolve active ritual")
	}

	// Idempotency fast path: a replayed request returns the prior ledger id
	// without opening a transaction.
	if requestID != "" {
		var existing models.LedgerEntry
		err := s.DB.Where("request_id = ?", requestID).First(&existing).Error
		if err == nil {
			ritualAwardsTotal.WithLabelValues("already_applied").Inc()
			return &RitualAwardResult{LedgerID: existing.ID, AlreadyApplied: true}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, WrapError(err, "failed to check idempotency key")
		}
	}

	now := time.Now().UTC()
	midnight := UTCMidnight(now)
	limit := int64(activity.LimitPerUserPerDay)
	if limit <= 0 {
		limit = 1
	}

	count, err := s.countToday(s.DB, externalUserID, activity.ID, midnight)
	if err != nil {
		return nil, WrapError(err, "failed to count today's ritual entries")
	}
	if count >= limit {
		ritualAwardsTotal.WithLabelValues("already_completed").Inc()
		return nil, NewError(KindFailedPrecondition, "already-completed")
	}

	result := &RitualAwardResult{}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// Row lock first: a concurrent duplicate award (double-click with
		// no request_id) blocks here until this transaction commits, and
		// its re-count then sees the committed entry. Without the lock,
		// READ COMMITTED lets both transactions count zero and both commit.
		var user models.User
		if err := lockForUpdate(tx).Where("external_user_id = ?", externalUserID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewError(KindNotFound, "user record not found")
			}
			return err
		}

		// Legacy single-timestamp guard. Redundant with the count below,
		// kept until every historical client has the per-activity entries.
		// Only meaningful under the default one-per-day limit.
		if limit == 1 && user.LastRitualAt != nil && !user.LastRitualAt.Before(midnight) {
			return NewError(KindFailedPrecondition, "already-completed")
		}

		// Re-check the idempotency key inside the transaction; a racing
		// duplicate may have committed between the fast path and here.
		if requestID != "" {
			var existing models.LedgerEntry
			err := tx.Where("request_id = ?", requestID).First(&existing).Error
			if err == nil {
				result.LedgerID = existing.ID
				result.AlreadyApplied = true
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		// Race-safe cap: only this count, inside the transaction, is
		// authoritative.
		count, err := s.countToday(tx, externalUserID, activity.ID, midnight)
		if err != nil {
			return err
		}
		if count >= limit {
			return NewError(KindFailedPrecondition, "already-completed")
		}

		entry := &models.LedgerEntry{
			ID:         uuid.NewString(),
			ActorID:    externalUserID,
			ReceiverID: externalUserID,
			Category:   models.CategoryRitual,
			Amount:     1,
			Timestamp:  now,
			ActivityID: &activity.ID,
			Reason:     reason,
		}
		if requestID != "" {
			entry.RequestID = &requestID
		}
		if err := s.Ledger.ApplyEntry(tx, entry); err != nil {
			return err
		}
		result.LedgerID = entry.ID

		user.LastRitualAt = &now
		if err := tx.Model(&models.User{}).
			Where("external_user_id = ?", externalUserID).
			Update("last_ritual_at", now).Error; err != nil {
			return err
		}

		// Totals as written by the projection in this transaction.
		if err := tx.Where("external_user_id = ?", externalUserID).First(&user).Error; err != nil {
			return err
		}
		result.NewHopePoints = user.HopePoints
		result.NewBreakdown = user.HopePointsBreakdown
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "ritual award failed")
	}

	if result.AlreadyApplied {
		ritualAwardsTotal.WithLabelValues("already_applied").Inc()
		return result, nil
	}

	result.Prompt = activity.PromptFor(locale)
	ritualAwardsTotal.WithLabelValues("awarded").Inc()
	ledgerEntriesTotal.WithLabelValues(string(models.CategoryRitual)).Inc()
	log.Printf("🕯️ Ritual awarded: %s → %d hope points (activity %s)",
		externalUserID, result.NewHopePoints, activity.Slug)

	// Post-commit side effects. Achievement evaluation is detached from
	// the award; analytics is best-effort and never fails the operation.
	go func() {
		_, _ = s.Achievements.EvaluateForUser(externalUserID)
	}()
	s.Analytics.Record("ritual_awarded", externalUserID, map[string]any{
		"activity_id": activity.ID,
		"ledger_id":   result.LedgerID,
	})

	return result, nil
}

func (s *RitualService) countToday(db *gorm.DB, actorID, activityID string, midnight time.Time) (int64, error) {
	var count int64
	err := db.Model(&models.LedgerEntry{}).
		Where("actor_id = ? AND category = ? AND activity_id = ? AND timestamp >= ?",
			actorID, models.CategoryRitual, activityID, midnight).
		Count(&count).Error
	return count, err
}
