package services

import (
	"gorm.io/gorm"

	"mitche-engagement-service/models"
)

// LeaderboardService answers ranked read queries over the pre-aggregated
// totals. Reads never touch hope_ledger.
type LeaderboardService struct {
	DB *gorm.DB
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{DB: db}
}

// LeaderboardRow is one ranked entry.
type LeaderboardRow struct {
	ID     string `json:"id"`
	Points int64  `json:"points"`
}

const defaultLeaderboardLimit = 100

// TopN returns the top receivers by total points, descending, tie-broken
// by receiver id ascending so equal totals rank deterministically.
//
// The role filter joins against the user mirror before the limit is
// applied, so a filtered query still returns up to limit rows.
func (s *LeaderboardService) TopN(limit int, role string) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultLeaderboardLimit
	}

	q := s.DB.Model(&models.UserAggregate{}).
		Select("user_aggregates.receiver_id AS id, user_aggregates.total_points AS points").
		Order("user_aggregates.total_points DESC").
		Order("user_aggregates.receiver_id ASC").
		Limit(limit)

	if role != "" {
		q = q.Joins("JOIN users ON users.external_user_id = user_aggregates.receiver_id AND users.deleted_at IS NULL").
			Where("users.role = ?", role)
	}

	var rows []LeaderboardRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, WrapError(err, "failed to read leaderboard")
	}
	if rows == nil {
		rows = []LeaderboardRow{}
	}
	return rows, nil
}
